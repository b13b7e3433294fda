package websocketPkg

import (
	"QRScanner/internal/entity"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var ErrNotConnected = errors.New("not connected to scan feed")

// IFeedClient streams camera frames to the remote camera endpoint and
// receives scan events back.
type IFeedClient interface {
	Connect(ctx context.Context) error
	Start(hasCamera bool, permission string) error
	SendFrame(frame []byte) error
	Stop() error
	Events() <-chan entity.ScanEvent
	IsConnected() bool
	Close()
}

type feedClient struct {
	url          string
	header       http.Header
	log          *logrus.Logger
	conn         *websocket.Conn
	mu           sync.Mutex
	events       chan entity.ScanEvent
	done         chan struct{}
	closeOnce    sync.Once
	pingInterval time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func NewFeedClient(url string, header http.Header, logger *logrus.Logger) IFeedClient {
	if url == "" {
		url = getFeedURL()
	}
	return &feedClient{
		url:          url,
		header:       header,
		log:          logger,
		events:       make(chan entity.ScanEvent, 64),
		done:         make(chan struct{}),
		pingInterval: 30 * time.Second,
		readTimeout:  90 * time.Second,
		writeTimeout: 5 * time.Second,
	}
}

func (c *feedClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}

	c.log.Infof("Connecting to scan feed at %s", c.url)

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.DialContext(ctx, c.url, c.header)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.url, err)
	}

	conn.SetPingHandler(func(appData string) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(c.writeTimeout))
		if err != nil {
			c.log.Errorf("Error sending pong: %v", err)
		}
		return nil
	})

	c.conn = conn
	go c.readLoop(conn)
	go c.keepAlive(conn)

	return nil
}

func (c *feedClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func (c *feedClient) Events() <-chan entity.ScanEvent {
	return c.events
}

func (c *feedClient) Start(hasCamera bool, permission string) error {
	return c.writeJSON(map[string]interface{}{
		"type":       "start",
		"has_camera": hasCamera,
		"permission": permission,
	})
}

func (c *feedClient) Stop() error {
	return c.writeJSON(map[string]interface{}{"type": "stop"})
}

func (c *feedClient) SendFrame(frame []byte) error {
	return c.write(websocket.BinaryMessage, frame)
}

func (c *feedClient) writeJSON(v interface{}) error {
	data, err := jsoniter.Marshal(v)
	if err != nil {
		return err
	}
	return c.write(websocket.TextMessage, data)
}

func (c *feedClient) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ErrNotConnected
	}

	c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if err := c.conn.WriteMessage(messageType, data); err != nil {
		c.conn.Close()
		c.conn = nil
		return fmt.Errorf("error sending message: %w", err)
	}
	c.conn.SetWriteDeadline(time.Time{})

	return nil
}

func (c *feedClient) readLoop(conn *websocket.Conn) {
	defer c.drop(conn)

	for {
		conn.SetReadDeadline(time.Now().Add(c.readTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Errorf("Scan feed read error: %v", err)
			}
			return
		}

		var event entity.ScanEvent
		if err := jsoniter.Unmarshal(message, &event); err != nil {
			c.log.Warnf("Error unmarshaling scan event: %v", err)
			continue
		}

		select {
		case c.events <- event:
		case <-c.done:
			return
		}
	}
}

func (c *feedClient) keepAlive(conn *websocket.Conn) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
		}

		c.mu.Lock()
		if c.conn != conn {
			c.mu.Unlock()
			return
		}
		err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(c.writeTimeout))
		c.mu.Unlock()

		if err != nil {
			c.log.Errorf("Ping failed, marking connection as dead: %v", err)
			c.drop(conn)
			return
		}
	}
}

func (c *feedClient) drop(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == conn {
		c.conn = nil
	}
	conn.Close()
}

func (c *feedClient) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(c.writeTimeout),
		)
		c.conn.Close()
		c.conn = nil
	}
}

func getFeedURL() string {
	url := os.Getenv("SCAN_FEED_URL")
	if url == "" {
		url = "ws://localhost:3000/api/v1/scan/camera/ws"
	}
	return url
}
