package scanService

import (
	"QRScanner/internal/api/scan"
	"QRScanner/internal/entity"
	"QRScanner/pkg/device/remote"
	"QRScanner/pkg/scanner"
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// RemoteSession drives a CameraScanner from frames a client streams over its
// own connection. Events are delivered through emit only.
type RemoteSession struct {
	svc     *scanService
	devices *remote.Devices
	camera  *scanner.CameraScanner
	emit    func(entity.ScanEvent)

	mu        sync.Mutex
	sessionID string
	closed    bool
	wg        sync.WaitGroup
}

func (s *scanService) OpenRemoteSession(emit func(entity.ScanEvent)) *RemoteSession {
	rs := &RemoteSession{
		svc:     s,
		devices: remote.New(),
		emit:    emit,
	}
	rs.camera = scanner.NewCameraScanner(s.cfg.Camera, scanner.Capabilities{
		Devices:   rs.devices,
		Decoder:   s.decoder,
		Scheduler: scanner.NewIntervalScheduler(s.cfg.Camera.FrameInterval),
		OnResult:  rs.onDecode,
		OnError: func(err error) {
			rs.send(errorEvent(err, rs.session(), entity.ScanSourceRemote))
		},
		Display: scanner.DisplayFunc(rs.onState),
		Logger:  s.log,
	})
	return rs
}

func (rs *RemoteSession) Start(ctx context.Context, hasCamera bool, permission scanner.PermissionState) error {
	rs.devices.Announce(hasCamera, permission)
	if err := rs.camera.Start(ctx); err != nil {
		rs.send(errorEvent(err, "", entity.ScanSourceRemote))
		return err
	}
	return nil
}

// Push feeds one encoded camera frame into the running session.
func (rs *RemoteSession) Push(frame []byte) error {
	return rs.devices.Push(frame)
}

func (rs *RemoteSession) Stop() {
	rs.camera.Stop()
}

func (rs *RemoteSession) State() scanner.UIState {
	return rs.camera.State()
}

// Close stops the session and waits for pending banking lookups so emit is
// never called after Close returns.
func (rs *RemoteSession) Close() {
	rs.mu.Lock()
	rs.closed = true
	rs.mu.Unlock()

	rs.camera.Stop()
	rs.devices.Close()
	rs.wg.Wait()
}

func (rs *RemoteSession) send(event entity.ScanEvent) {
	rs.mu.Lock()
	closed := rs.closed
	rs.mu.Unlock()
	if closed {
		return
	}
	rs.emit(event)
}

func (rs *RemoteSession) session() string {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.sessionID
}

func (rs *RemoteSession) onState(state scanner.UIState) {
	if state == scanner.UIStateScanning {
		rs.mu.Lock()
		if info := rs.camera.Session(); info != nil {
			rs.sessionID = info.ID
		}
		rs.mu.Unlock()
	}

	rs.send(entity.ScanEvent{
		Type:      entity.ScanEventState,
		SessionID: rs.session(),
		Source:    entity.ScanSourceRemote,
		State:     string(state),
		At:        time.Now(),
	})
}

func (rs *RemoteSession) onDecode(result scanner.DecodeResult) {
	sessionID := rs.session()

	rs.svc.log.WithFields(logrus.Fields{
		"session_id": sessionID,
	}).Info("[RemoteSession.onDecode] remote scan decoded")

	rs.send(entity.ScanEvent{
		Type:      entity.ScanEventDecoded,
		SessionID: sessionID,
		Source:    entity.ScanSourceRemote,
		Text:      result.Text,
		Corners:   scan.CornersFrom(result.Corners),
		At:        time.Now(),
	})

	if !rs.svc.canResolveBanking(result.Text) {
		return
	}
	rs.mu.Lock()
	if rs.closed {
		rs.mu.Unlock()
		return
	}
	rs.wg.Add(1)
	rs.mu.Unlock()
	go func() {
		defer rs.wg.Done()
		info := rs.svc.resolveBanking(context.Background(), result.Text)
		if info == nil {
			return
		}
		rs.send(entity.ScanEvent{
			Type:      entity.ScanEventBanking,
			SessionID: sessionID,
			Source:    entity.ScanSourceRemote,
			Text:      result.Text,
			Banking:   info,
			At:        time.Now(),
		})
	}()
}
