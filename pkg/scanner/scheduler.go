package scanner

import (
	"sync"
	"time"
)

// FrameScheduler runs fn once on the next display refresh. The returned cancel
// prevents fn from running if it has not started yet.
type FrameScheduler interface {
	Schedule(fn func()) (cancel func())
}

type IntervalScheduler struct {
	Interval time.Duration
}

func NewIntervalScheduler(interval time.Duration) *IntervalScheduler {
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	return &IntervalScheduler{Interval: interval}
}

func (s *IntervalScheduler) Schedule(fn func()) func() {
	t := time.AfterFunc(s.Interval, fn)
	var once sync.Once
	return func() {
		once.Do(func() { t.Stop() })
	}
}
