package loop

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"
)

// Handle identifies a subscription on a TickSource.
type Handle uint64

// TickSource drives ticks. Subscribe registers fn to be called once per
// tick and returns a handle that Unsubscribe accepts.
type TickSource interface {
	Subscribe(fn func()) Handle
	Unsubscribe(h Handle)
}

type subscription struct {
	event  string
	source TickSource
	handle Handle
}

// Begin subscribes the step function of each event group to its source.
// Groups with no scheduled systems are skipped, as are sources for unknown
// groups. The returned map holds the handle of each subscription made.
func (l *Loop[T]) Begin(sources map[string]TickSource) (map[string]Handle, error) {
	if l.closed {
		return nil, errClosed
	}

	events := make([]string, 0, len(sources))
	for event := range sources {
		events = append(events, event)
	}
	sort.Strings(events)

	handles := make(map[string]Handle, len(events))
	for _, event := range events {
		if len(l.plan.Order(event)) == 0 {
			l.logger.Debug("tick source skipped: no systems", "event", event)
			continue
		}
		src := sources[event]
		h := src.Subscribe(l.StepFunc(event))
		l.subs = append(l.subs, subscription{event: event, source: src, handle: h})
		handles[event] = h
		l.logger.Debug("tick source subscribed", "event", event)
	}
	return handles, nil
}

// Stop unsubscribes every subscription made by Begin.
func (l *Loop[T]) Stop() {
	for _, s := range l.subs {
		s.source.Unsubscribe(s.handle)
	}
	l.subs = nil
}

// Signal is a TickSource fired by hand. Subscribers run on the goroutine
// calling Fire, in subscription order.
type Signal struct {
	mu    sync.Mutex
	next  Handle
	order []Handle
	subs  map[Handle]func()
}

// NewSignal creates a signal with no subscribers.
func NewSignal() *Signal {
	return &Signal{subs: make(map[Handle]func())}
}

func (s *Signal) Subscribe(fn func()) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.subs[s.next] = fn
	s.order = append(s.order, s.next)
	return s.next
}

func (s *Signal) Unsubscribe(h Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[h]; !ok {
		return
	}
	delete(s.subs, h)
	s.order = slices.DeleteFunc(s.order, func(x Handle) bool { return x == h })
}

// Fire calls every subscriber once.
func (s *Signal) Fire() {
	s.mu.Lock()
	fns := make([]func(), 0, len(s.order))
	for _, h := range s.order {
		fns = append(fns, s.subs[h])
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Len returns the number of subscribers.
func (s *Signal) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Interval is a TickSource that fires at a fixed period while Run is
// active. The goroutine calling Run becomes the loop's driver.
type Interval struct {
	*Signal
	period time.Duration
}

// NewInterval creates an interval source with the given period.
func NewInterval(period time.Duration) *Interval {
	return &Interval{Signal: NewSignal(), period: period}
}

// Run fires the interval until ctx is done, then returns ctx.Err().
func (i *Interval) Run(ctx context.Context) error {
	t := time.NewTicker(i.period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if err := ctx.Err(); err != nil {
				return err
			}
			i.Fire()
		}
	}
}
