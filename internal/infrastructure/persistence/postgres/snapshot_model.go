package postgres

import (
	"database/sql"
	"time"

	"github.com/GanizaniSitara/controls-ux/internal/application/dto"
	"github.com/GanizaniSitara/controls-ux/internal/domain/entity"
)

// SnapshotDBModel is one stored snapshot row.
type SnapshotDBModel struct {
	SnapshotID   string
	Applications int
	Payload      []byte // JSON
	CreatedAt    time.Time
	SavedAt      time.Time
}

// ToDBModel encodes a snapshot for storage.
func ToDBModel(snapshot *entity.CacheSnapshot, savedAt time.Time) (*SnapshotDBModel, error) {
	payload, err := dto.EncodeSnapshot(snapshot)
	if err != nil {
		return nil, err
	}
	return &SnapshotDBModel{
		SnapshotID:   snapshot.ID(),
		Applications: len(snapshot.AppIDs()),
		Payload:      payload,
		CreatedAt:    snapshot.CreatedAt(),
		SavedAt:      savedAt,
	}, nil
}

// ToEntity decodes the stored payload.
func ToEntity(model *SnapshotDBModel) (*entity.CacheSnapshot, error) {
	return dto.DecodeSnapshot(model.Payload)
}

// ScanSnapshotRow reads a row selected with snapshotColumns.
func ScanSnapshotRow(row interface {
	Scan(dest ...interface{}) error
}) (*SnapshotDBModel, error) {
	var model SnapshotDBModel
	var payload sql.NullString

	err := row.Scan(
		&model.SnapshotID,
		&model.Applications,
		&payload,
		&model.CreatedAt,
		&model.SavedAt,
	)
	if err != nil {
		return nil, err
	}

	if payload.Valid {
		model.Payload = []byte(payload.String)
	}
	return &model, nil
}
