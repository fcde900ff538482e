package service

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"blockwatch/internal/models"
)

// ActionFeed fans recorded actions out to in-process subscribers (the stream
// handler, the webhook pusher). Publishing never blocks; slow subscribers
// lose events.
type ActionFeed struct {
	Logger *zap.Logger

	mu      sync.RWMutex
	subs    map[uint64]chan models.Action
	nextID  uint64
	dropped atomic.Uint64
}

func (f *ActionFeed) Subscribe(buf int) (uint64, <-chan models.Action) {
	if buf <= 0 {
		buf = 16
	}
	ch := make(chan models.Action, buf)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subs == nil {
		f.subs = map[uint64]chan models.Action{}
	}
	f.nextID++
	id := f.nextID
	f.subs[id] = ch
	return id, ch
}

func (f *ActionFeed) Unsubscribe(id uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch, ok := f.subs[id]; ok {
		delete(f.subs, id)
		close(ch)
	}
}

func (f *ActionFeed) Publish(action models.Action) {
	if f == nil {
		return
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, ch := range f.subs {
		select {
		case ch <- action:
		default:
			// Drop when subscriber is slow; the feed must not block recording.
			f.dropped.Add(1)
		}
	}
}

func (f *ActionFeed) Dropped() uint64 {
	if f == nil {
		return 0
	}
	return f.dropped.Load()
}
