package capture

import (
	"errors"
	"image"
	"io"
	"sync"
	"testing"
	"time"

	"QRScanner/pkg/scanner"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUnplugged = errors.New("device unplugged")

// scriptedSource fails while failing is set and otherwise returns frame.
type scriptedSource struct {
	mu      sync.Mutex
	frame   image.Image
	failing bool
	grabs   int
	closed  int
}

func (f *scriptedSource) Grab() (image.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.grabs++
	if f.failing {
		return nil, errUnplugged
	}
	// keep a healthy source from spinning the test
	time.Sleep(time.Millisecond)
	return f.frame, nil
}

func (f *scriptedSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *scriptedSource) setFailing(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing = v
}

func (f *scriptedSource) Grabs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.grabs
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestStream_ServesLatestFrame(t *testing.T) {
	frame := image.NewRGBA(image.Rect(0, 0, 4, 4))
	src := &scriptedSource{frame: frame}
	s := NewStream(src, DefaultConfig(), quietLogger())
	defer s.Stop()

	require.Eventually(t, func() bool {
		img, err := s.ReadFrame()
		return err == nil && img == frame
	}, time.Second, 5*time.Millisecond)
	assert.True(t, s.Live())
}

func TestStream_NotReadyBeforeFirstFrame(t *testing.T) {
	src := &scriptedSource{failing: true}
	s := NewStream(src, Config{RetryDelay: time.Hour, MaxFailures: 10}, quietLogger())
	defer s.Stop()

	_, err := s.ReadFrame()
	assert.ErrorIs(t, err, scanner.ErrFrameNotReady)
	assert.True(t, s.Live())
}

func TestStream_BacksOffOnFailedReads(t *testing.T) {
	src := &scriptedSource{failing: true}
	s := NewStream(src, Config{RetryDelay: 40 * time.Millisecond, MaxRetryDelay: 40 * time.Millisecond, MaxFailures: 1000}, quietLogger())

	time.Sleep(200 * time.Millisecond)
	s.Stop()

	// one grab per retry delay, not a busy loop
	assert.LessOrEqual(t, src.Grabs(), 7)
	assert.GreaterOrEqual(t, src.Grabs(), 2)
}

func TestStream_LostAfterConsecutiveFailures(t *testing.T) {
	src := &scriptedSource{failing: true}
	s := NewStream(src, Config{RetryDelay: time.Millisecond, MaxRetryDelay: 2 * time.Millisecond, MaxFailures: 3}, quietLogger())

	require.Eventually(t, func() bool { return !s.Live() }, time.Second, time.Millisecond)

	_, err := s.ReadFrame()
	assert.ErrorIs(t, err, scanner.ErrStreamAcquisition)
	assert.Equal(t, 3, src.Grabs())

	s.Stop()
	assert.Equal(t, 1, src.closed)
}

func TestStream_RecoveredReadResetsFailures(t *testing.T) {
	frame := image.NewRGBA(image.Rect(0, 0, 2, 2))
	src := &scriptedSource{frame: frame, failing: true}
	s := NewStream(src, Config{RetryDelay: time.Millisecond, MaxRetryDelay: time.Millisecond, MaxFailures: 50}, quietLogger())
	defer s.Stop()

	require.Eventually(t, func() bool { return src.Grabs() >= 5 }, time.Second, time.Millisecond)
	src.setFailing(false)

	require.Eventually(t, func() bool {
		img, err := s.ReadFrame()
		return err == nil && img == frame
	}, time.Second, time.Millisecond)
	assert.True(t, s.Live())
}

func TestStream_StopClosesSourceOnce(t *testing.T) {
	src := &scriptedSource{frame: image.NewRGBA(image.Rect(0, 0, 1, 1))}
	s := NewStream(src, DefaultConfig(), quietLogger())

	s.Stop()
	s.Stop()

	assert.False(t, s.Live())
	assert.Equal(t, 1, src.closed)
	_, err := s.ReadFrame()
	assert.ErrorIs(t, err, scanner.ErrFrameNotReady)
}
