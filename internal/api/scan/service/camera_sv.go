package scanService

import (
	"QRScanner/internal/api/scan"
	"QRScanner/internal/entity"
	"QRScanner/pkg/scanner"
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"time"

	"github.com/sirupsen/logrus"
)

const previewQuality = 80

func (s *scanService) CameraState() scan.CameraStateResponse {
	resp := scan.CameraStateResponse{State: s.camera.State()}
	if info := s.camera.Session(); info != nil {
		startedAt := info.StartedAt
		resp.SessionID = info.ID
		resp.StartedAt = &startedAt
	}
	return resp
}

func (s *scanService) StartCamera(ctx context.Context) (scan.CameraStateResponse, error) {
	if err := s.camera.Start(ctx); err != nil {
		s.hub.publish(errorEvent(err, "", entity.ScanSourceCamera))
		return s.CameraState(), err
	}
	return s.CameraState(), nil
}

func (s *scanService) StopCamera() scan.CameraStateResponse {
	s.camera.Stop()
	return s.CameraState()
}

func (s *scanService) Preview() ([]byte, error) {
	s.mu.RLock()
	frame := s.preview
	s.mu.RUnlock()

	if frame == nil {
		return nil, scan.ErrNoPreview
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: previewQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *scanService) storePreview(frame *image.RGBA) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preview = frame
}

func (s *scanService) onCameraState(state scanner.UIState) {
	sessionID := ""
	if state == scanner.UIStateScanning {
		if info := s.camera.Session(); info != nil {
			sessionID = info.ID
		}
		s.mu.Lock()
		s.sessionID = sessionID
		s.preview = nil
		s.mu.Unlock()
	} else {
		sessionID = s.currentSession()
	}

	s.hub.publish(entity.ScanEvent{
		Type:      entity.ScanEventState,
		SessionID: sessionID,
		Source:    entity.ScanSourceCamera,
		State:     string(state),
		At:        time.Now(),
	})
}

func (s *scanService) onCameraDecode(result scanner.DecodeResult) {
	sessionID := s.currentSession()

	s.log.WithFields(logrus.Fields{
		"session_id": sessionID,
	}).Info("[scanService.onCameraDecode] camera scan decoded")

	s.hub.publish(entity.ScanEvent{
		Type:      entity.ScanEventDecoded,
		SessionID: sessionID,
		Source:    entity.ScanSourceCamera,
		Text:      result.Text,
		Corners:   scan.CornersFrom(result.Corners),
		At:        time.Now(),
	})

	if !s.canResolveBanking(result.Text) {
		return
	}
	go func() {
		info := s.resolveBanking(context.Background(), result.Text)
		if info == nil {
			return
		}
		s.hub.publish(entity.ScanEvent{
			Type:      entity.ScanEventBanking,
			SessionID: sessionID,
			Source:    entity.ScanSourceCamera,
			Text:      result.Text,
			Banking:   info,
			At:        time.Now(),
		})
	}()
}

func errorEvent(err error, sessionID string, source entity.ScanSource) entity.ScanEvent {
	event := entity.ScanEvent{
		Type:      entity.ScanEventError,
		SessionID: sessionID,
		Source:    source,
		Code:      "INTERNAL_ERROR",
		Message:   err.Error(),
		At:        time.Now(),
	}
	if info, ok := scan.Classify(err); ok {
		event.Code = info.Code
		event.Message = info.Message
	}
	return event
}
