package scan

import (
	"QRScanner/internal/entity"
	"QRScanner/pkg/scanner"
	"time"
)

type CameraStateResponse struct {
	State     scanner.UIState `json:"state"`
	SessionID string          `json:"session_id,omitempty"`
	StartedAt *time.Time      `json:"started_at,omitempty"`
}

type DecodeResponse struct {
	Text    string              `json:"text"`
	Corners []entity.Corner     `json:"corners,omitempty"`
	Source  entity.ScanSource   `json:"source"`
	Banking *entity.BankingInfo `json:"banking,omitempty"`
}

type RemoteMessageType string

const (
	RemoteMessageStart RemoteMessageType = "start"
	RemoteMessageStop  RemoteMessageType = "stop"
)

// RemoteClientMessage is a control message sent by a client streaming its own
// camera. Frames travel as binary messages.
type RemoteClientMessage struct {
	Type       RemoteMessageType `json:"type" validate:"required,oneof=start stop"`
	HasCamera  bool              `json:"has_camera"`
	Permission string            `json:"permission" validate:"omitempty,oneof=granted prompt denied"`
}

func CornersFrom(points []scanner.Point) []entity.Corner {
	if len(points) == 0 {
		return nil
	}
	corners := make([]entity.Corner, len(points))
	for i, p := range points {
		corners[i] = entity.Corner{X: p.X, Y: p.Y}
	}
	return corners
}
