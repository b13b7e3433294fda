package scanner

import (
	"image"
	"time"
)

type UIState string

const (
	UIStateIdle     UIState = "idle"
	UIStateScanning UIState = "scanning"
)

// DisplayListener mirrors the session running flag into whatever shows the
// start/stop controls. Transitions arrive in order and a superseded one is
// skipped. OnStateChange must not call Start or Stop.
type DisplayListener interface {
	OnStateChange(state UIState)
}

type DisplayFunc func(state UIState)

func (f DisplayFunc) OnStateChange(state UIState) {
	f(state)
}

// PreviewSink receives what the drawing surface shows after each step.
type PreviewSink interface {
	Publish(frame *image.RGBA)
}

type PreviewFunc func(frame *image.RGBA)

func (f PreviewFunc) Publish(frame *image.RGBA) {
	f(frame)
}

type SessionInfo struct {
	ID        string    `json:"session_id"`
	StartedAt time.Time `json:"started_at"`
}
