package delivery

import (
	"context"
	"sync"
	"time"

	"github.com/rzbill/killfeed/internal/killmail"
)

// memSource is an ordered in-memory Source with failure injection.
type memSource struct {
	mu      sync.Mutex
	records []*killmail.Record
	failN   int
	err     error
	calls   int
}

func newMemSource(n int) *memSource {
	s := &memSource{}
	for i := 0; i < n; i++ {
		s.add(killmail.Killmail{KillmailID: int64(1000 + i), KillmailHash: "h"})
	}
	return s
}

func (s *memSource) add(km killmail.Killmail) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uint64(len(s.records) + 1)
	s.records = append(s.records, &killmail.Record{ID: id, Killmail: km})
	return id
}

func (s *memSource) fail() error {
	s.calls++
	if s.failN > 0 {
		s.failN--
		return s.err
	}
	return nil
}

func (s *memSource) Newest(context.Context) (*killmail.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return nil, err
	}
	if len(s.records) == 0 {
		return nil, nil
	}
	return s.records[len(s.records)-1], nil
}

func (s *memSource) After(_ context.Context, id uint64) (*killmail.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return nil, err
	}
	for _, r := range s.records {
		if r.ID > id {
			return r, nil
		}
	}
	return nil, nil
}

// stepClock advances only when Sleep is called and can run a hook per tick.
type stepClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps int
	onTick func(n int)
}

func newStepClock() *stepClock { return &stepClock{now: time.Unix(1_700_000_000, 0)} }

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.sleeps++
	n := c.sleeps
	hook := c.onTick
	c.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return nil
}
