package scanHandler

import (
	"QRScanner/internal/api/scan"
	scanService "QRScanner/internal/api/scan/service"
	"QRScanner/internal/entity"
	"QRScanner/pkg/device/remote"
	"QRScanner/pkg/scanner"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	jsoniter "github.com/json-iterator/go"
)

const (
	maxReadTimeout = 60 * time.Second
	writeTimeout   = 10 * time.Second
	pingPeriod     = 30 * time.Second
	maxFrameSize   = 4 * 1024 * 1024
)

// wsWriter serializes writes; events arrive from scanner goroutines.
type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) writeJSON(v interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	if err := w.conn.WriteJSON(v); err != nil {
		return err
	}
	return w.conn.SetWriteDeadline(time.Time{})
}

func (w *wsWriter) ping() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

func (h *ScanHandler) setPingHandler(c *websocket.Conn, w *wsWriter) {
	c.SetPingHandler(func(data string) error {
		h.log.Debug("Received ping, sending pong")
		w.mu.Lock()
		defer w.mu.Unlock()
		if err := c.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second)); err != nil {
			h.log.Errorf("Error sending pong: %v", err)
		}
		return nil
	})
}

func (h *ScanHandler) handleRemoteCameraWebSocket(c *websocket.Conn) {
	h.log.Info("Remote camera WebSocket client connected")
	defer h.log.Info("Remote camera WebSocket client disconnected")

	writer := &wsWriter{conn: c}
	h.setPingHandler(c, writer)
	c.SetReadLimit(maxFrameSize)

	session := h.scanService.OpenRemoteSession(func(event entity.ScanEvent) {
		if err := writer.writeJSON(event); err != nil {
			h.log.Errorf("Error writing scan event: %v", err)
		}
	})
	defer session.Close()

	for {
		if err := c.SetReadDeadline(time.Now().Add(maxReadTimeout)); err != nil {
			h.log.Errorf("Error setting read deadline: %v", err)
			break
		}

		messageType, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Errorf("Remote camera WebSocket error: %v", err)
			} else {
				h.log.Info("Remote camera WebSocket connection closed")
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			h.handleRemoteControl(session, writer, message)
		case websocket.BinaryMessage:
			if err := session.Push(message); err != nil {
				if errors.Is(err, remote.ErrNoStream) {
					h.log.Debug("Dropping frame, no scan session running")
					continue
				}
				h.log.Warnf("Error decoding remote frame: %v", err)
				h.writeError(writer, "INVALID_FRAME", "Frame is not a JPEG or PNG image")
			}
		default:
			h.log.Warnf("Received unexpected message type: %d", messageType)
		}
	}
}

// decodeRemoteMessage parses a control message; failures wrap scan.ErrInvalidMessage.
func (h *ScanHandler) decodeRemoteMessage(message []byte) (scan.RemoteClientMessage, error) {
	var msg scan.RemoteClientMessage
	if err := jsoniter.Unmarshal(message, &msg); err != nil {
		return msg, fmt.Errorf("%w: message is not valid JSON", scan.ErrInvalidMessage)
	}
	if err := h.validator.Struct(msg); err != nil {
		return msg, fmt.Errorf("%w: validation failed: %v", scan.ErrInvalidMessage, err)
	}
	return msg, nil
}

func (h *ScanHandler) handleRemoteControl(session *scanService.RemoteSession, writer *wsWriter, message []byte) {
	msg, err := h.decodeRemoteMessage(message)
	if err != nil {
		h.log.Debugf("Rejected remote control message: %v", err)
		h.writeError(writer, "INVALID_MESSAGE", err.Error())
		return
	}

	switch msg.Type {
	case scan.RemoteMessageStart:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		// failures are reported to the client by the session itself
		if err := session.Start(ctx, msg.HasCamera, scanner.PermissionState(msg.Permission)); err != nil {
			h.log.Warnf("Remote camera start failed: %v", err)
		}
	case scan.RemoteMessageStop:
		session.Stop()
	}
}

func (h *ScanHandler) writeError(writer *wsWriter, code, message string) {
	err := writer.writeJSON(entity.ScanEvent{
		Type:    entity.ScanEventError,
		Code:    code,
		Message: message,
		At:      time.Now(),
	})
	if err != nil {
		h.log.Errorf("Error sending error response: %v", err)
	}
}

func (h *ScanHandler) handleEventsWebSocket(c *websocket.Conn) {
	h.log.Info("Scan events WebSocket client connected")
	defer h.log.Info("Scan events WebSocket client disconnected")

	writer := &wsWriter{conn: c}
	h.setPingHandler(c, writer)

	events, unsubscribe := h.scanService.Subscribe()
	defer unsubscribe()

	state := h.scanService.CameraState()
	if err := writer.writeJSON(entity.ScanEvent{
		Type:      entity.ScanEventState,
		SessionID: state.SessionID,
		Source:    entity.ScanSourceCamera,
		State:     string(state.State),
		At:        time.Now(),
	}); err != nil {
		h.log.Errorf("Error writing initial state: %v", err)
		return
	}

	// subscribers only listen; reading detects the disconnect
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := writer.writeJSON(event); err != nil {
				h.log.Errorf("Error writing scan event: %v", err)
				return
			}
		case <-ticker.C:
			if err := writer.ping(); err != nil {
				return
			}
		}
	}
}
