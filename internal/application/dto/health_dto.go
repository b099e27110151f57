package dto

import "time"

// CacheHealthDTO is the cache health payload served to monitoring clients.
type CacheHealthDTO struct {
	Status          string      `json:"status"`
	Message         string      `json:"message"`
	Source          string      `json:"source"`
	CacheAgeSeconds *float64    `json:"cache_age_seconds"`
	Applications    int         `json:"applications"`
	Providers       []string    `json:"providers"`
	Rules           []string    `json:"rules"`
	Metadata        MetadataDTO `json:"metadata"`
	CheckedAt       time.Time   `json:"checked_at"`
}
