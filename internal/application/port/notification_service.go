package port

import "github.com/GanizaniSitara/controls-ux/internal/application/dto"

// NotificationService pushes refresh events to connected live clients.
type NotificationService interface {
	Broadcast(event *dto.RefreshEventDTO)

	ClientCount() int
}
