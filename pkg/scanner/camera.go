package scanner

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type CameraConfig struct {
	Canvas        Size
	Viewfinder    int
	Overlay       bool
	OverlayRadius int
	FrameInterval time.Duration
	Constraints   Constraints
	DecodeOptions DecodeOptions
}

func DefaultCameraConfig() CameraConfig {
	return CameraConfig{
		Canvas:        Size{Width: 360, Height: 200},
		Viewfinder:    150,
		Overlay:       true,
		OverlayRadius: 12,
		FrameInterval: 16 * time.Millisecond,
		Constraints:   DefaultConstraints(),
		DecodeOptions: DecodeOptions{TryHarder: true},
	}
}

type Capabilities struct {
	Devices   MediaDevices
	Decoder   Decoder
	Scheduler FrameScheduler
	// OnDecode receives the decoded text once per successful session.
	OnDecode func(text string)
	// OnResult, when set, receives the full result right before OnDecode.
	OnResult func(result DecodeResult)
	// OnError receives the reason a running session ended without a result.
	OnError func(err error)
	Display DisplayListener
	Preview PreviewSink
	Logger  *logrus.Logger
}

type session struct {
	info    SessionInfo
	stream  Stream
	surface *Surface
	cancel  func()
	running bool
}

type CameraScanner struct {
	cfg  CameraConfig
	caps Capabilities

	mu      sync.Mutex
	current *session
	state   UIState
	// seq numbers state transitions so listeners never see them out of order
	seq uint64

	notifyMu  sync.Mutex
	delivered uint64
}

func NewCameraScanner(cfg CameraConfig, caps Capabilities) *CameraScanner {
	if cfg.Canvas.Empty() {
		cfg.Canvas = DefaultCameraConfig().Canvas
	}
	if caps.Scheduler == nil {
		caps.Scheduler = NewIntervalScheduler(cfg.FrameInterval)
	}
	if caps.Decoder == nil {
		caps.Decoder = NewQRDecoder()
	}
	if caps.Logger == nil {
		caps.Logger = logrus.StandardLogger()
	}

	return &CameraScanner{
		cfg:   cfg,
		caps:  caps,
		state: UIStateIdle,
	}
}

func (s *CameraScanner) State() UIState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Session returns the running session, or nil when idle.
func (s *CameraScanner) Session() *SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	info := s.current.info
	return &info
}

func (s *CameraScanner) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.current != nil {
		s.mu.Unlock()
		return ErrAlreadyScanning
	}
	// reserve the slot so concurrent Start calls fail fast
	pending := &session{}
	s.current = pending
	s.mu.Unlock()

	stream, err := s.acquire(ctx)
	if err != nil {
		s.mu.Lock()
		if s.current == pending {
			s.current = nil
		}
		s.mu.Unlock()

		s.caps.Logger.WithFields(logrus.Fields{
			"error": err.Error(),
		}).Warn("[CameraScanner.Start] failed to start camera")
		return err
	}

	s.mu.Lock()
	if s.current != pending {
		// stopped while acquiring
		s.mu.Unlock()
		stream.Stop()
		return ErrStartCancelled
	}
	pending.info = SessionInfo{ID: uuid.NewString(), StartedAt: time.Now()}
	pending.stream = stream
	pending.surface = NewSurface(s.cfg.Canvas)
	pending.running = true
	s.state = UIStateScanning
	s.seq++
	seq := s.seq
	pending.cancel = s.caps.Scheduler.Schedule(func() { s.step(pending) })
	s.mu.Unlock()

	s.caps.Logger.WithFields(logrus.Fields{
		"session_id": pending.info.ID,
	}).Info("[CameraScanner.Start] camera scanning started")
	s.notify(UIStateScanning, seq)

	return nil
}

func (s *CameraScanner) acquire(ctx context.Context) (Stream, error) {
	if s.caps.Devices == nil {
		return nil, ErrNoCamera
	}

	ok, err := s.caps.Devices.HasVideoInput(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoCamera, err)
	}
	if !ok {
		return nil, ErrNoCamera
	}

	perm, err := s.caps.Devices.Permission(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	if !perm.Grantable() {
		return nil, ErrPermissionDenied
	}

	stream, err := s.caps.Devices.Open(ctx, s.cfg.Constraints)
	if err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrStreamAcquisition, err)
	}
	if stream == nil {
		return nil, ErrStreamAcquisition
	}

	return stream, nil
}

// Stop ends the running session. Calling it while idle does nothing.
func (s *CameraScanner) Stop() {
	s.mu.Lock()
	sess := s.current
	if sess == nil || !sess.running {
		// a pending Start sees the cleared slot and releases its own stream
		if sess != nil {
			s.current = nil
		}
		s.mu.Unlock()
		return
	}
	seq := s.release(sess)
	s.mu.Unlock()

	s.caps.Logger.WithFields(logrus.Fields{
		"session_id": sess.info.ID,
	}).Info("[CameraScanner.Stop] camera scanning stopped")
	s.notify(UIStateIdle, seq)
}

// release must be called with mu held. It returns the transition number
// to pass to notify.
func (s *CameraScanner) release(sess *session) uint64 {
	sess.running = false
	if sess.cancel != nil {
		sess.cancel()
	}
	if sess.stream != nil {
		sess.stream.Stop()
		sess.stream = nil
	}
	s.current = nil
	s.state = UIStateIdle
	s.seq++
	return s.seq
}

// notify delivers a transition unless a later one was already delivered.
func (s *CameraScanner) notify(state UIState, seq uint64) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if seq <= s.delivered {
		return
	}
	s.delivered = seq
	if s.caps.Display != nil {
		s.caps.Display.OnStateChange(state)
	}
}

func (s *CameraScanner) active(sess *session) bool {
	return s.current == sess && sess.running
}

func (s *CameraScanner) reschedule(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active(sess) {
		return
	}
	sess.cancel = s.caps.Scheduler.Schedule(func() { s.step(sess) })
}

func (s *CameraScanner) step(sess *session) {
	s.mu.Lock()
	if !s.active(sess) {
		s.mu.Unlock()
		return
	}
	stream := sess.stream
	surface := sess.surface
	s.mu.Unlock()

	frame, err := stream.ReadFrame()
	if err != nil {
		if errors.Is(err, ErrStreamAcquisition) {
			s.fail(sess, err)
			return
		}
		if !errors.Is(err, ErrFrameNotReady) {
			s.caps.Logger.WithFields(logrus.Fields{
				"session_id": sess.info.ID,
				"error":      err.Error(),
			}).Debug("[CameraScanner.step] frame read failed")
		}
		s.reschedule(sess)
		return
	}

	box := s.render(surface, frame)
	pixels, w, h := surface.Pixels(box)
	if s.cfg.Overlay {
		surface.DrawMask(box, s.cfg.OverlayRadius, MaskColor)
		surface.DrawBrackets(box, BracketColor)
	}

	result, err := s.caps.Decoder.Decode(pixels, w, h, s.cfg.DecodeOptions)
	if err != nil || result == nil {
		s.publish(surface)
		s.reschedule(sess)
		return
	}

	located := result.Offset(float64(box.Min.X), float64(box.Min.Y))
	surface.DrawOutline(located.Corners, OutlineColor)

	s.mu.Lock()
	if !s.active(sess) {
		// stopped while decoding, result is discarded
		s.mu.Unlock()
		return
	}
	seq := s.release(sess)
	s.mu.Unlock()

	s.publish(surface)
	s.caps.Logger.WithFields(logrus.Fields{
		"session_id": sess.info.ID,
	}).Info("[CameraScanner.step] QR code decoded")

	if s.caps.OnResult != nil {
		s.caps.OnResult(located)
	}
	if s.caps.OnDecode != nil {
		s.caps.OnDecode(located.Text)
	}
	s.notify(UIStateIdle, seq)
}

// fail ends a session whose stream died.
func (s *CameraScanner) fail(sess *session, err error) {
	s.mu.Lock()
	if !s.active(sess) {
		s.mu.Unlock()
		return
	}
	seq := s.release(sess)
	s.mu.Unlock()

	s.caps.Logger.WithFields(logrus.Fields{
		"session_id": sess.info.ID,
		"error":      err.Error(),
	}).Warn("[CameraScanner.step] camera stream lost")

	if s.caps.OnError != nil {
		s.caps.OnError(err)
	}
	s.notify(UIStateIdle, seq)
}

// render draws the frame onto the surface and returns the decode region.
func (s *CameraScanner) render(surface *Surface, frame image.Image) image.Rectangle {
	surface.Resize(s.cfg.Canvas)
	b := frame.Bounds()
	placement := Fit(Size{Width: b.Dx(), Height: b.Dy()}, s.cfg.Canvas)
	surface.DrawFrame(frame, placement)
	return Viewfinder(s.cfg.Canvas, s.cfg.Viewfinder)
}

func (s *CameraScanner) publish(surface *Surface) {
	if s.caps.Preview != nil {
		s.caps.Preview.Publish(surface.Snapshot())
	}
}
