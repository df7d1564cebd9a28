package session

import (
	"sync"

	"github.com/rbright/parley/internal/fsm"
)

// Status is one phase change as seen by the presentation layer.
type Status struct {
	State fsm.State
	Text  string
}

// Handlers is the presentation-facing subscriber set. Nil fields are skipped.
type Handlers struct {
	OnStatus     func(Status)
	OnTranscript func(string)
	OnReply      func(string)
	OnError      func(error)
}

type eventKind int

const (
	eventStatus eventKind = iota + 1
	eventTranscript
	eventReply
	eventError
)

type event struct {
	kind   eventKind
	status Status
	text   string
	err    error
}

type subscription struct {
	handlers Handlers
}

// dispatcher delivers queued events in order from a single goroutine so
// handlers may call back into the controller.
type dispatcher struct {
	mu     sync.Mutex
	queue  []event
	closed bool
	wake   chan struct{}
}

func newDispatcher() *dispatcher {
	return &dispatcher{wake: make(chan struct{}, 1)}
}

func (d *dispatcher) push(ev event) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.queue = append(d.queue, ev)
	d.mu.Unlock()
	d.signal()
}

// close stops accepting events; run returns after flushing what is queued.
func (d *dispatcher) close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.signal()
}

func (d *dispatcher) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *dispatcher) run(deliver func(event)) {
	for {
		d.mu.Lock()
		batch := d.queue
		d.queue = nil
		closed := d.closed
		d.mu.Unlock()

		for _, ev := range batch {
			deliver(ev)
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-d.wake
	}
}

// Subscribe installs h as the only subscriber set, replacing any previous one.
// The returned func removes h if it is still the current set.
func (c *Controller) Subscribe(h Handlers) func() {
	sub := &subscription{handlers: h}

	c.subMu.Lock()
	replaced := c.sub != nil
	c.sub = sub
	c.subMu.Unlock()

	if replaced {
		c.logger.Warn("session subscriber replaced")
	}

	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		if c.sub == sub {
			c.sub = nil
		}
	}
}

func (c *Controller) deliver(ev event) {
	c.subMu.Lock()
	sub := c.sub
	c.subMu.Unlock()
	if sub == nil {
		return
	}

	h := sub.handlers
	switch ev.kind {
	case eventStatus:
		if h.OnStatus != nil {
			h.OnStatus(ev.status)
		}
	case eventTranscript:
		if h.OnTranscript != nil {
			h.OnTranscript(ev.text)
		}
	case eventReply:
		if h.OnReply != nil {
			h.OnReply(ev.text)
		}
	case eventError:
		if h.OnError != nil {
			h.OnError(ev.err)
		}
	}
}

// emit* helpers must be called with c.mu held so queue order matches state order.

func (c *Controller) emitStatusLocked() {
	c.events.push(event{kind: eventStatus, status: Status{State: c.state, Text: c.state.Label()}})
}

func (c *Controller) emitTranscriptLocked(text string) {
	c.events.push(event{kind: eventTranscript, text: text})
}

func (c *Controller) emitReplyLocked(text string) {
	c.events.push(event{kind: eventReply, text: text})
}

func (c *Controller) emitErrorLocked(err error) {
	c.events.push(event{kind: eventError, err: err})
}
