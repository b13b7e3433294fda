// Package capture turns a blocking frame source into a scanner.Stream that
// always serves the most recent frame.
package capture

import (
	"fmt"
	"image"
	"sync"
	"time"

	"QRScanner/pkg/scanner"
	"github.com/sirupsen/logrus"
)

// Source is a device that yields one frame per Grab call.
type Source interface {
	Grab() (image.Image, error)
	Close() error
}

type Config struct {
	// RetryDelay is the wait after the first failed grab; it doubles on each
	// consecutive failure up to MaxRetryDelay.
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
	// MaxFailures consecutive failed grabs end the stream.
	MaxFailures int
}

func DefaultConfig() Config {
	return Config{
		RetryDelay:    20 * time.Millisecond,
		MaxRetryDelay: 500 * time.Millisecond,
		MaxFailures:   25,
	}
}

type Stream struct {
	source Source
	cfg    Config
	logger *logrus.Logger

	mu     sync.Mutex
	latest image.Image
	live   bool
	lost   error
	done   chan struct{}
	once   sync.Once
	exited sync.WaitGroup
}

func NewStream(source Source, cfg Config, logger *logrus.Logger) *Stream {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultConfig().RetryDelay
	}
	if cfg.MaxRetryDelay < cfg.RetryDelay {
		cfg.MaxRetryDelay = cfg.RetryDelay
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = DefaultConfig().MaxFailures
	}

	s := &Stream{
		source: source,
		cfg:    cfg,
		logger: logger,
		live:   true,
		done:   make(chan struct{}),
	}
	s.exited.Add(1)
	go s.readLoop()
	return s
}

func (s *Stream) readLoop() {
	defer s.exited.Done()

	failures := 0
	delay := s.cfg.RetryDelay
	for {
		select {
		case <-s.done:
			return
		default:
		}

		img, err := s.source.Grab()
		if err == nil && img != nil {
			failures = 0
			delay = s.cfg.RetryDelay

			s.mu.Lock()
			s.latest = img
			s.mu.Unlock()
			continue
		}

		failures++
		if failures >= s.cfg.MaxFailures {
			s.logger.WithFields(logrus.Fields{
				"failures": failures,
				"error":    fmt.Sprint(err),
			}).Warn("[capture.readLoop] device stopped delivering frames")

			s.mu.Lock()
			s.live = false
			s.latest = nil
			s.lost = fmt.Errorf("%w: %d consecutive failed reads", scanner.ErrStreamAcquisition, failures)
			s.mu.Unlock()
			return
		}

		timer := time.NewTimer(delay)
		select {
		case <-s.done:
			timer.Stop()
			return
		case <-timer.C:
		}
		if delay *= 2; delay > s.cfg.MaxRetryDelay {
			delay = s.cfg.MaxRetryDelay
		}
	}
}

// ReadFrame returns the newest frame, ErrFrameNotReady before the first one
// arrives, or an ErrStreamAcquisition error once the device is lost.
func (s *Stream) ReadFrame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lost != nil {
		return nil, s.lost
	}
	if s.latest == nil {
		return nil, scanner.ErrFrameNotReady
	}
	return s.latest, nil
}

func (s *Stream) Stop() {
	s.once.Do(func() {
		close(s.done)
		s.exited.Wait()
		if err := s.source.Close(); err != nil {
			s.logger.WithFields(logrus.Fields{
				"error": err.Error(),
			}).Warn("[capture.Stop] failed to close device")
		}

		s.mu.Lock()
		s.live = false
		s.latest = nil
		s.mu.Unlock()
	})
}

func (s *Stream) Live() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}
