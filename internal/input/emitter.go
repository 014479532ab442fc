package input

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"globalmkh/internal/hook"
)

// DefaultQueueSize bounds the raw events waiting for dispatch.
const DefaultQueueSize = 1024

// Handler consumes a published event. A returned error or a panic is logged
// and does not affect delivery to other handlers.
type Handler func(Event) error

type listener struct {
	id uint64
	fn Handler
}

// rawEvent is one provider callback waiting for decode.
type rawEvent struct {
	keyboard bool
	kind     string
	at       time.Time

	x, y, button int
	delta        int64

	keyName                        string
	shift, ctrl, alt, meta, crazy bool
}

// Emitter is the publish/subscribe surface. Subscribing drives hook
// installation through the Lifecycle; provider callbacks are queued and
// decoded on the single Run goroutine.
type Emitter struct {
	mu        sync.RWMutex
	listeners map[EventName][]listener
	nextID    uint64

	queue     chan rawEvent
	dropped   atomic.Uint64
	malformed atomic.Uint64

	lifecycle *Lifecycle
	log       zerolog.Logger
	now       func() time.Time
}

// Option configures an Emitter.
type Option func(*Emitter)

// WithQueueSize sets the raw event queue capacity.
func WithQueueSize(n int) Option {
	return func(e *Emitter) {
		if n > 0 {
			e.queue = make(chan rawEvent, n)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Emitter) { e.log = l }
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Emitter) { e.now = now }
}

// NewEmitter builds an Emitter over provider p. Call Run to start delivery.
func NewEmitter(p hook.Provider, opts ...Option) *Emitter {
	e := &Emitter{
		listeners: make(map[EventName][]listener),
		queue:     make(chan rawEvent, DefaultQueueSize),
		log:       zerolog.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.lifecycle = newLifecycle(p, e, e.enqueueMouse, e.enqueueKeyboard, e.log)
	return e
}

// Lifecycle exposes the hook lifecycle manager.
func (e *Emitter) Lifecycle() *Lifecycle { return e.lifecycle }

// Subscription is returned by On. Close removes the handler.
type Subscription struct {
	emitter *Emitter
	name    EventName
	id      uint64
	once    sync.Once
}

// Name returns the subscribed event name.
func (s *Subscription) Name() EventName { return s.name }

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() { s.emitter.off(s.name, s.id) })
}

// On subscribes fn to name. The first subscription of a category installs
// its hook; if that fails the handler is not kept and the error wraps
// ErrInstallFailed.
func (e *Emitter) On(name EventName, fn Handler) (*Subscription, error) {
	if _, ok := CategoryOf(name); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
	}
	if fn == nil {
		return nil, errors.New("nil handler")
	}

	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.listeners[name] = append(e.listeners[name], listener{id: id, fn: fn})
	e.mu.Unlock()

	if !e.lifecycle.OnSubscribe(name) {
		e.remove(name, id)
		return nil, fmt.Errorf("subscribe %s: %w", name, ErrInstallFailed)
	}

	return &Subscription{emitter: e, name: name, id: id}, nil
}

// Off removes a subscription returned by On.
func (e *Emitter) Off(sub *Subscription) {
	if sub != nil {
		sub.Close()
	}
}

func (e *Emitter) off(name EventName, id uint64) {
	e.remove(name, id)
	e.lifecycle.OnUnsubscribe(name)
}

func (e *Emitter) remove(name EventName, id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ls := e.listeners[name]
	for i, l := range ls {
		if l.id == id {
			e.listeners[name] = append(ls[:i:i], ls[i+1:]...)
			break
		}
	}
	if len(e.listeners[name]) == 0 {
		delete(e.listeners, name)
	}
}

// ListenerCount returns the number of handlers subscribed to name.
func (e *Emitter) ListenerCount(name EventName) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.listeners[name])
}

func (e *Emitter) enqueueMouse(kind string, x, y, button int, rawDelta int64) {
	e.enqueue(rawEvent{kind: kind, at: e.now(), x: x, y: y, button: button, delta: rawDelta})
}

func (e *Emitter) enqueueKeyboard(kind, keyName string, shift, ctrl, alt, meta, crazy bool) {
	e.enqueue(rawEvent{
		keyboard: true,
		kind:     kind,
		at:       e.now(),
		keyName:  keyName,
		shift:    shift,
		ctrl:     ctrl,
		alt:      alt,
		meta:     meta,
		crazy:    crazy,
	})
}

// enqueue runs on the provider's capture thread and must not block it.
func (e *Emitter) enqueue(r rawEvent) {
	select {
	case e.queue <- r:
	default:
		e.dropped.Add(1)
	}
}

// Run decodes queued provider callbacks and publishes them until ctx is done.
func (e *Emitter) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r := <-e.queue:
			e.dispatch(r)
		}
	}
}

func (e *Emitter) dispatch(r rawEvent) {
	var (
		ev Event
		ok bool
	)
	if r.keyboard {
		ev, ok = DecodeKeyboard(r.kind, r.keyName, r.shift, r.ctrl, r.alt, r.meta, r.crazy, r.at)
	} else {
		ev, ok = DecodeMouse(r.kind, r.x, r.y, r.button, r.delta, r.at)
	}
	if !ok {
		e.malformed.Add(1)
		e.log.Debug().Str("kind", r.kind).Bool("keyboard", r.keyboard).Msg("dropping unknown raw event")
		return
	}
	e.Publish(ev)
}

// Publish delivers ev to every handler subscribed to its name.
func (e *Emitter) Publish(ev Event) {
	e.mu.RLock()
	ls := append([]listener(nil), e.listeners[ev.Name]...)
	e.mu.RUnlock()

	for _, l := range ls {
		e.deliver(l, ev)
	}
}

func (e *Emitter) deliver(l listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Interface("panic", r).Str("event", string(ev.Name)).Msg("event handler panicked")
		}
	}()
	if err := l.fn(ev); err != nil {
		e.log.Warn().Err(err).Str("event", string(ev.Name)).Msg("event handler failed")
	}
}

// Pause suspends capture for cat. See Lifecycle.Pause.
func (e *Emitter) Pause(cat Category) (bool, error) { return e.lifecycle.Pause(cat) }

// Resume restarts capture for cat. See Lifecycle.Resume.
func (e *Emitter) Resume(cat Category) (bool, error) { return e.lifecycle.Resume(cat) }

// Toggle flips the pause state of cat.
func (e *Emitter) Toggle(cat Category) (bool, error) { return e.lifecycle.Toggle(cat) }

// IsPaused reports whether capture for cat is paused.
func (e *Emitter) IsPaused(cat Category) bool { return e.lifecycle.IsPaused(cat) }

// Watch registers fn to run after every pause state change.
func (e *Emitter) Watch(fn func(Category, CategoryState)) { e.lifecycle.Watch(fn) }

// ToggleAll pauses every installed category when any of them is capturing,
// and resumes them all otherwise. It returns the resulting paused state.
func (e *Emitter) ToggleAll() (paused bool, err error) {
	var installed []Category
	active := false
	for _, c := range Categories {
		st := e.lifecycle.State(c)
		if !st.Installed {
			continue
		}
		installed = append(installed, c)
		active = active || !st.Paused
	}

	var errs []error
	for _, c := range installed {
		if active {
			_, err = e.lifecycle.Pause(c)
		} else {
			_, err = e.lifecycle.Resume(c)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return active || len(installed) == 0, errors.Join(errs...)
}

// Status is a point-in-time report of the emitter and its hooks.
type Status struct {
	Categories map[Category]CategoryState `json:"categories"`
	Subscribed []EventName                 `json:"subscribed"`
	Listeners  map[EventName]int           `json:"listeners"`
	Dropped    uint64                      `json:"dropped"`
	Malformed  uint64                      `json:"malformed"`
}

// Status reports the current state.
func (e *Emitter) Status() Status {
	s := Status{
		Categories: make(map[Category]CategoryState, len(Categories)),
		Subscribed: e.lifecycle.Subscribed(),
		Listeners:  make(map[EventName]int),
		Dropped:    e.dropped.Load(),
		Malformed:  e.malformed.Load(),
	}
	for _, c := range Categories {
		s.Categories[c] = e.lifecycle.State(c)
	}
	e.mu.RLock()
	for name, ls := range e.listeners {
		s.Listeners[name] = len(ls)
	}
	e.mu.RUnlock()
	return s
}
