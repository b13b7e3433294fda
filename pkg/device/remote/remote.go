package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"sync"

	"QRScanner/pkg/scanner"
)

var ErrNoStream = errors.New("no open stream")

// Devices exposes a camera owned by a remote client. The client announces its
// capabilities and pushes encoded frames; the scanner consumes them as a
// regular stream.
type Devices struct {
	mu         sync.Mutex
	hasCamera  bool
	permission scanner.PermissionState
	stream     *stream
}

func New() *Devices {
	return &Devices{
		permission: scanner.PermissionPrompt,
	}
}

func (d *Devices) Announce(hasCamera bool, permission scanner.PermissionState) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hasCamera = hasCamera
	if permission == "" {
		permission = scanner.PermissionPrompt
	}
	d.permission = permission
}

func (d *Devices) HasVideoInput(ctx context.Context) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hasCamera, nil
}

func (d *Devices) Permission(ctx context.Context) (scanner.PermissionState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.permission, nil
}

func (d *Devices) Open(ctx context.Context, c scanner.Constraints) (scanner.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.hasCamera {
		return nil, scanner.ErrNoCamera
	}
	if d.permission == scanner.PermissionDenied {
		return nil, scanner.ErrPermissionDenied
	}
	if d.stream != nil && d.stream.Live() {
		return nil, errors.New("remote camera already in use")
	}

	d.stream = &stream{live: true}
	return d.stream, nil
}

// Push decodes an encoded frame and makes it the latest frame of the open
// stream. Frames pushed while no stream is live are rejected.
func (d *Devices) Push(data []byte) error {
	d.mu.Lock()
	s := d.stream
	d.mu.Unlock()

	if s == nil || !s.Live() {
		return ErrNoStream
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}
	s.set(img)
	return nil
}

// Close stops any open stream.
func (d *Devices) Close() {
	d.mu.Lock()
	s := d.stream
	d.stream = nil
	d.mu.Unlock()

	if s != nil {
		s.Stop()
	}
}

type stream struct {
	mu     sync.Mutex
	latest image.Image
	live   bool
}

func (s *stream) set(img image.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.live {
		return
	}
	s.latest = img
}

func (s *stream) ReadFrame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return nil, scanner.ErrFrameNotReady
	}
	return s.latest, nil
}

func (s *stream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live = false
	s.latest = nil
}

func (s *stream) Live() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}
