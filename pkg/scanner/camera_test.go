package scanner

import (
	"context"
	"errors"
	"image"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cameraFixture struct {
	scanner   *CameraScanner
	devices   *fakeDevices
	stream    *fakeStream
	decoder   *fakeDecoder
	scheduler *manualScheduler
	display   *stateRecorder

	mu      sync.Mutex
	decoded []string
	preview *image.RGBA
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newCameraFixture(t *testing.T, cfg CameraConfig) *cameraFixture {
	t.Helper()
	f := &cameraFixture{
		stream:    &fakeStream{},
		decoder:   &fakeDecoder{},
		scheduler: &manualScheduler{},
		display:   &stateRecorder{},
	}
	f.devices = &fakeDevices{hasVideo: true, permission: PermissionGranted, stream: f.stream}
	f.scanner = NewCameraScanner(cfg, Capabilities{
		Devices:   f.devices,
		Decoder:   f.decoder,
		Scheduler: f.scheduler,
		OnDecode: func(text string) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.decoded = append(f.decoded, text)
		},
		Display: f.display,
		Preview: PreviewFunc(func(frame *image.RGBA) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.preview = frame
		}),
		Logger: quietLogger(),
	})
	return f
}

func (f *cameraFixture) Decoded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.decoded...)
}

func TestCameraScanner_StartNoCamera(t *testing.T) {
	f := newCameraFixture(t, DefaultCameraConfig())
	f.devices.hasVideo = false

	err := f.scanner.Start(context.Background())

	require.ErrorIs(t, err, ErrNoCamera)
	assert.Equal(t, UIStateIdle, f.scanner.State())
	assert.Nil(t, f.scanner.Session())
	assert.Zero(t, f.devices.opened)
	assert.Empty(t, f.display.States())
	assert.Zero(t, f.scheduler.Pending())
}

func TestCameraScanner_StartPermissionDenied(t *testing.T) {
	f := newCameraFixture(t, DefaultCameraConfig())
	f.devices.permission = PermissionDenied

	err := f.scanner.Start(context.Background())

	require.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, UIStateIdle, f.scanner.State())
	assert.Zero(t, f.devices.opened)
}

func TestCameraScanner_StartPromptIsGrantable(t *testing.T) {
	f := newCameraFixture(t, DefaultCameraConfig())
	f.devices.permission = PermissionPrompt

	require.NoError(t, f.scanner.Start(context.Background()))
	assert.Equal(t, UIStateScanning, f.scanner.State())
	f.scanner.Stop()
}

func TestCameraScanner_StartStreamAcquisitionFails(t *testing.T) {
	f := newCameraFixture(t, DefaultCameraConfig())
	f.devices.openErr = errors.New("device busy")

	err := f.scanner.Start(context.Background())

	require.ErrorIs(t, err, ErrStreamAcquisition)
	assert.Contains(t, err.Error(), "device busy")
	assert.Equal(t, UIStateIdle, f.scanner.State())
	assert.Empty(t, f.display.States())
}

func TestCameraScanner_StartDevicePermissionFailure(t *testing.T) {
	f := newCameraFixture(t, DefaultCameraConfig())
	f.devices.openErr = ErrPermissionDenied

	err := f.scanner.Start(context.Background())
	require.ErrorIs(t, err, ErrPermissionDenied)
	assert.NotErrorIs(t, err, ErrStreamAcquisition)
}

func TestCameraScanner_StartSchedulesFirstStep(t *testing.T) {
	f := newCameraFixture(t, DefaultCameraConfig())

	require.NoError(t, f.scanner.Start(context.Background()))

	assert.Equal(t, UIStateScanning, f.scanner.State())
	assert.Equal(t, []UIState{UIStateScanning}, f.display.States())
	assert.Equal(t, 1, f.scheduler.Pending())
	assert.Equal(t, DefaultConstraints(), f.devices.lastOpen)

	info := f.scanner.Session()
	require.NotNil(t, info)
	assert.NotEmpty(t, info.ID)
	assert.False(t, info.StartedAt.IsZero())
}

func TestCameraScanner_StartWhileScanning(t *testing.T) {
	f := newCameraFixture(t, DefaultCameraConfig())
	require.NoError(t, f.scanner.Start(context.Background()))

	err := f.scanner.Start(context.Background())

	require.ErrorIs(t, err, ErrAlreadyScanning)
	assert.Equal(t, 1, f.devices.opened)
	assert.True(t, f.stream.Live())
}

func TestCameraScanner_StopIsIdempotent(t *testing.T) {
	f := newCameraFixture(t, DefaultCameraConfig())
	require.NoError(t, f.scanner.Start(context.Background()))

	f.scanner.Stop()
	f.scanner.Stop()

	assert.Equal(t, UIStateIdle, f.scanner.State())
	assert.Equal(t, []UIState{UIStateScanning, UIStateIdle}, f.display.States())
	assert.False(t, f.stream.Live())
	assert.Zero(t, f.scheduler.Pending())
	assert.Nil(t, f.scanner.Session())
}

// stopOnMessage stops the scanner the first time a log line with msg is
// written, which lets a test land a Stop inside Start's unlocked tail.
type stopOnMessage struct {
	msg   string
	stop  func()
	fired bool
}

func (h *stopOnMessage) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *stopOnMessage) Fire(e *logrus.Entry) error {
	if !h.fired && e.Message == h.msg {
		h.fired = true
		h.stop()
	}
	return nil
}

func TestCameraScanner_StopBeforeStartNotifiesKeepsIdleLast(t *testing.T) {
	f := newCameraFixture(t, DefaultCameraConfig())
	hook := &stopOnMessage{msg: "[CameraScanner.Start] camera scanning started", stop: f.scanner.Stop}
	f.scanner.caps.Logger.AddHook(hook)

	require.NoError(t, f.scanner.Start(context.Background()))

	require.True(t, hook.fired)
	assert.Equal(t, UIStateIdle, f.scanner.State())
	assert.Equal(t, []UIState{UIStateIdle}, f.display.States())
	assert.False(t, f.stream.Live())
	assert.Zero(t, f.scheduler.Pending())
}

func TestCameraScanner_StopWhileAcquiringReleasesStream(t *testing.T) {
	f := newCameraFixture(t, DefaultCameraConfig())
	f.devices.onOpen = f.scanner.Stop

	err := f.scanner.Start(context.Background())

	require.ErrorIs(t, err, ErrStartCancelled)
	assert.NotErrorIs(t, err, ErrStreamAcquisition)
	assert.False(t, f.stream.Live())
	assert.Equal(t, UIStateIdle, f.scanner.State())
	assert.Nil(t, f.scanner.Session())
	assert.Empty(t, f.display.States())
	assert.Zero(t, f.scheduler.Pending())

	// the slot is free again
	f.devices.onOpen = nil
	f.devices.stream = &fakeStream{}
	require.NoError(t, f.scanner.Start(context.Background()))
	assert.Equal(t, UIStateScanning, f.scanner.State())
}

func TestCameraScanner_StreamLostEndsSession(t *testing.T) {
	f := newCameraFixture(t, DefaultCameraConfig())
	var failures []error
	f.scanner.caps.OnError = func(err error) { failures = append(failures, err) }
	require.NoError(t, f.scanner.Start(context.Background()))

	f.stream.mu.Lock()
	f.stream.readErr = ErrStreamAcquisition
	f.stream.mu.Unlock()
	require.True(t, f.scheduler.RunNext())

	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0], ErrStreamAcquisition)
	assert.Equal(t, UIStateIdle, f.scanner.State())
	assert.Equal(t, []UIState{UIStateScanning, UIStateIdle}, f.display.States())
	assert.False(t, f.stream.Live())
	assert.Zero(t, f.scheduler.Pending())
	assert.Zero(t, f.decoder.Calls())
}

func TestCameraScanner_StopWhileIdle(t *testing.T) {
	f := newCameraFixture(t, DefaultCameraConfig())

	f.scanner.Stop()

	assert.Equal(t, UIStateIdle, f.scanner.State())
	assert.Empty(t, f.display.States())
}

func TestCameraScanner_FrameNotReadyReschedules(t *testing.T) {
	f := newCameraFixture(t, DefaultCameraConfig())
	require.NoError(t, f.scanner.Start(context.Background()))

	require.True(t, f.scheduler.RunNext())

	assert.Zero(t, f.decoder.Calls())
	assert.Equal(t, 1, f.scheduler.Pending())
	assert.Equal(t, UIStateScanning, f.scanner.State())
	f.scanner.Stop()
}

func TestCameraScanner_DecodesViewfinderRegion(t *testing.T) {
	f := newCameraFixture(t, DefaultCameraConfig())
	f.stream.SetFrame(solidFrame(640, 480))
	require.NoError(t, f.scanner.Start(context.Background()))

	require.True(t, f.scheduler.RunNext())
	require.True(t, f.scheduler.RunNext())

	assert.Equal(t, 2, f.decoder.Calls())
	assert.Equal(t, []int{150, 150}, f.decoder.widths)
	assert.Equal(t, []int{150, 150}, f.decoder.heights)
	assert.Empty(t, f.Decoded())
	assert.Equal(t, 1, f.scheduler.Pending())
	f.scanner.Stop()
}

func TestCameraScanner_FullSurfaceWithoutViewfinder(t *testing.T) {
	cfg := DefaultCameraConfig()
	cfg.Viewfinder = 0
	cfg.Canvas = Size{Width: 300, Height: 200}
	f := newCameraFixture(t, cfg)
	f.stream.SetFrame(solidFrame(640, 480))
	require.NoError(t, f.scanner.Start(context.Background()))

	require.True(t, f.scheduler.RunNext())

	assert.Equal(t, []int{300}, f.decoder.widths)
	assert.Equal(t, []int{200}, f.decoder.heights)
	f.scanner.Stop()
}

func TestCameraScanner_SuccessReleasesSession(t *testing.T) {
	f := newCameraFixture(t, DefaultCameraConfig())
	f.decoder.result = &DecodeResult{
		Text:    "00020101021126570011ID.DANA.WWW",
		Corners: []Point{{X: 10, Y: 10}, {X: 100, Y: 10}, {X: 100, Y: 100}, {X: 10, Y: 100}},
	}
	f.decoder.succeedOn = 3
	f.stream.SetFrame(solidFrame(640, 480))
	require.NoError(t, f.scanner.Start(context.Background()))

	for f.scheduler.RunNext() {
	}

	assert.Equal(t, 3, f.decoder.Calls())
	assert.Equal(t, []string{"00020101021126570011ID.DANA.WWW"}, f.Decoded())
	assert.Equal(t, UIStateIdle, f.scanner.State())
	assert.Equal(t, []UIState{UIStateScanning, UIStateIdle}, f.display.States())
	assert.False(t, f.stream.Live())
	assert.Nil(t, f.scanner.Session())
	assert.Zero(t, f.scheduler.Pending())

	// outline is drawn in viewfinder-relative corners shifted onto the surface
	f.mu.Lock()
	preview := f.preview
	f.mu.Unlock()
	require.NotNil(t, preview)
	assert.Equal(t, OutlineColor, preview.RGBAAt(105+50, 25+10))
}

func TestCameraScanner_OnResultCarriesSurfaceCorners(t *testing.T) {
	f := newCameraFixture(t, DefaultCameraConfig())
	var got DecodeResult
	f.scanner.caps.OnResult = func(r DecodeResult) { got = r }
	f.decoder.result = &DecodeResult{Text: "abc", Corners: []Point{{X: 1, Y: 2}}}
	f.stream.SetFrame(solidFrame(640, 480))
	require.NoError(t, f.scanner.Start(context.Background()))

	require.True(t, f.scheduler.RunNext())

	assert.Equal(t, "abc", got.Text)
	assert.Equal(t, []Point{{X: 106, Y: 27}}, got.Corners)
}

func TestCameraScanner_StopDuringDecodeDiscardsResult(t *testing.T) {
	f := newCameraFixture(t, DefaultCameraConfig())
	f.decoder.result = &DecodeResult{Text: "late"}
	f.decoder.onDecode = func() { f.scanner.Stop() }
	f.stream.SetFrame(solidFrame(640, 480))
	require.NoError(t, f.scanner.Start(context.Background()))

	require.True(t, f.scheduler.RunNext())

	assert.Empty(t, f.Decoded())
	assert.False(t, f.stream.Live())
	assert.Equal(t, UIStateIdle, f.scanner.State())
	assert.Equal(t, []UIState{UIStateScanning, UIStateIdle}, f.display.States())
	assert.False(t, f.scheduler.RunNext())
}

func TestCameraScanner_StaleStepAfterRestart(t *testing.T) {
	f := newCameraFixture(t, DefaultCameraConfig())
	f.decoder.result = &DecodeResult{Text: "x"}
	f.stream.SetFrame(solidFrame(640, 480))
	require.NoError(t, f.scanner.Start(context.Background()))

	var stale func()
	f.scanner.mu.Lock()
	sess := f.scanner.current
	f.scanner.mu.Unlock()
	stale = func() { f.scanner.step(sess) }

	f.scanner.Stop()
	second := &fakeStream{}
	f.devices.stream = second
	require.NoError(t, f.scanner.Start(context.Background()))

	stale()

	assert.Zero(t, f.decoder.Calls())
	assert.Empty(t, f.Decoded())
	assert.True(t, second.Live())
	assert.Equal(t, UIStateScanning, f.scanner.State())
	f.scanner.Stop()
}

func TestCameraScanner_RealDecoderWithOverlay(t *testing.T) {
	cfg := DefaultCameraConfig()
	f := newCameraFixture(t, cfg)
	f.scanner.caps.Decoder = NewQRDecoder()
	f.stream.SetFrame(qrFrame(t, "https://pay.example.com/qr/123", 640, 480, 256))
	require.NoError(t, f.scanner.Start(context.Background()))

	for i := 0; i < 5 && f.scheduler.RunNext(); i++ {
	}

	assert.Equal(t, []string{"https://pay.example.com/qr/123"}, f.Decoded())
	assert.False(t, f.stream.Live())
}
