package scanner

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"sync"
	"testing"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/stretchr/testify/require"
)

type task struct {
	fn        func()
	cancelled bool
}

type manualScheduler struct {
	mu    sync.Mutex
	tasks []*task
}

func (m *manualScheduler) Schedule(fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &task{fn: fn}
	m.tasks = append(m.tasks, t)
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		t.cancelled = true
	}
}

func (m *manualScheduler) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tasks {
		if !t.cancelled {
			n++
		}
	}
	return n
}

// RunNext runs the oldest live task and reports whether one ran.
func (m *manualScheduler) RunNext() bool {
	m.mu.Lock()
	var next *task
	for len(m.tasks) > 0 {
		t := m.tasks[0]
		m.tasks = m.tasks[1:]
		if !t.cancelled {
			next = t
			break
		}
	}
	m.mu.Unlock()
	if next == nil {
		return false
	}
	next.fn()
	return true
}

type fakeStream struct {
	mu      sync.Mutex
	frame   image.Image
	readErr error
	stopped bool
}

func (s *fakeStream) ReadFrame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	if s.frame == nil {
		return nil, ErrFrameNotReady
	}
	return s.frame, nil
}

func (s *fakeStream) SetFrame(img image.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame = img
}

func (s *fakeStream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
}

func (s *fakeStream) Live() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.stopped
}

type fakeDevices struct {
	hasVideo   bool
	permission PermissionState
	openErr    error
	stream     *fakeStream
	opened     int
	lastOpen   Constraints
	// onOpen runs inside Open, while Start is still acquiring
	onOpen func()
}

func (d *fakeDevices) HasVideoInput(ctx context.Context) (bool, error) {
	return d.hasVideo, nil
}

func (d *fakeDevices) Permission(ctx context.Context) (PermissionState, error) {
	return d.permission, nil
}

func (d *fakeDevices) Open(ctx context.Context, c Constraints) (Stream, error) {
	d.opened++
	d.lastOpen = c
	if d.onOpen != nil {
		d.onOpen()
	}
	if d.openErr != nil {
		return nil, d.openErr
	}
	return d.stream, nil
}

type fakeDecoder struct {
	mu      sync.Mutex
	calls   int
	widths  []int
	heights []int
	result  *DecodeResult
	// succeedOn is the 1-based call that returns result; zero means the first
	succeedOn int
	onDecode  func()
}

func (d *fakeDecoder) Decode(pixels []byte, width, height int, opts DecodeOptions) (*DecodeResult, error) {
	d.mu.Lock()
	d.calls++
	d.widths = append(d.widths, width)
	d.heights = append(d.heights, height)
	call := d.calls
	hook := d.onDecode
	d.mu.Unlock()

	if hook != nil {
		hook()
	}
	if d.result == nil || call < d.succeedOn {
		return nil, ErrNoSymbolFound
	}
	r := *d.result
	return &r, nil
}

func (d *fakeDecoder) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

type stateRecorder struct {
	mu     sync.Mutex
	states []UIState
}

func (r *stateRecorder) OnStateChange(state UIState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
}

func (r *stateRecorder) States() []UIState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]UIState(nil), r.states...)
}

func solidFrame(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Rect, image.NewUniform(color.RGBA{R: 40, G: 90, B: 140, A: 255}), image.Point{}, draw.Src)
	return img
}

// qrImage encodes text as a QR symbol of the given side, quiet zone included.
func qrImage(t *testing.T, text string, side int) image.Image {
	t.Helper()
	matrix, err := qrcode.NewQRCodeWriter().Encode(text, gozxing.BarcodeFormat_QR_CODE, side, side, nil)
	require.NoError(t, err)
	return matrix
}

// qrFrame places a QR symbol in the middle of a white camera frame.
func qrFrame(t *testing.T, text string, w, h, side int) *image.RGBA {
	t.Helper()
	frame := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(frame, frame.Rect, image.White, image.Point{}, draw.Src)
	symbol := qrImage(t, text, side)
	at := image.Pt((w-side)/2, (h-side)/2)
	draw.Draw(frame, image.Rectangle{Min: at, Max: at.Add(image.Pt(side, side))}, symbol, symbol.Bounds().Min, draw.Src)
	return frame
}
