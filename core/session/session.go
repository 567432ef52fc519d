// Package session models the process wide audio session: who holds audio focus, which
// category output runs in, and the platform notifications (interruptions, route changes)
// delivered to the focus holder.
package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"SonicPlayer/logger"
)

// Category 会话类别
type Category string

const (
	CategoryPlayback Category = "playback"
	// CategoryAmbient mixes with other audio and honours the silent switch.
	CategoryAmbient Category = "ambient"
)

// NotificationKind 平台通知类型
type NotificationKind int

const (
	InterruptionBegan NotificationKind = iota
	InterruptionEnded
	RouteChanged
)

func (k NotificationKind) String() string {
	switch k {
	case InterruptionBegan:
		return "interruption_began"
	case InterruptionEnded:
		return "interruption_ended"
	case RouteChanged:
		return "route_changed"
	default:
		return "unknown"
	}
}

// RouteChangeReason 路由变化原因
type RouteChangeReason int

const (
	RouteOther RouteChangeReason = iota
	RouteOldDeviceUnavailable
	RouteNewDeviceAvailable
	RouteCategoryChange
)

func (r RouteChangeReason) String() string {
	switch r {
	case RouteOldDeviceUnavailable:
		return "old_device_unavailable"
	case RouteNewDeviceAvailable:
		return "new_device_available"
	case RouteCategoryChange:
		return "category_change"
	default:
		return "other"
	}
}

// ParseRouteChangeReason maps wire names back to reasons.
func ParseRouteChangeReason(s string) RouteChangeReason {
	switch s {
	case "old_device_unavailable", "oldDeviceUnavailable":
		return RouteOldDeviceUnavailable
	case "new_device_available", "newDeviceAvailable":
		return RouteNewDeviceAvailable
	case "category_change", "categoryChange":
		return RouteCategoryChange
	default:
		return RouteOther
	}
}

// Notification is a platform event for the focus holder.
type Notification struct {
	Kind         NotificationKind
	ShouldResume bool // advisory, InterruptionEnded only
	Reason       RouteChangeReason
}

// Activator is the platform hook that switches audio output on and off.
type Activator interface {
	Activate(category Category) error
	Deactivate() error
}

// NopActivator always succeeds.
type NopActivator struct{}

func (NopActivator) Activate(Category) error { return nil }
func (NopActivator) Deactivate() error       { return nil }

var ErrClosed = errors.New("session handle closed")

// notificationBuffer bounds undelivered notifications per holder.
const notificationBuffer = 16

// Session is the shared audio session. Only one Handle holds focus at a time.
type Session struct {
	mu        sync.Mutex
	activator Activator
	category  Category
	active    bool
	holder    *Handle
	// preempted is the holder that lost focus to the current one.
	preempted *Handle
}

var (
	shared     *Session
	sharedOnce sync.Once
)

// Shared returns the process wide session.
func Shared() *Session {
	sharedOnce.Do(func() {
		shared = New(NopActivator{})
	})
	return shared
}

// SetActivator swaps the platform hook. Used once at startup.
func (s *Session) SetActivator(a Activator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activator = a
}

func New(a Activator) *Session {
	if a == nil {
		a = NopActivator{}
	}
	return &Session{activator: a, category: CategoryPlayback}
}

// Acquire creates a handle. It does not take focus until Activate.
func (s *Session) Acquire() *Handle {
	return &Handle{
		id:    uuid.New().String(),
		s:     s,
		notes: make(chan Notification, notificationBuffer),
	}
}

// Holder returns the id of the current focus holder, empty when none.
func (s *Session) Holder() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.holder == nil {
		return ""
	}
	return s.holder.id
}

func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Session) Category() Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.category
}

// Post delivers a platform notification to the focus holder. It never blocks; when the
// holder is not draining its channel the notification is dropped and logged.
func (s *Session) Post(n Notification) bool {
	s.mu.Lock()
	h := s.holder
	s.mu.Unlock()
	if h == nil {
		logger.Debug("session notification without holder", logger.Stringer("kind", n.Kind))
		return false
	}
	return h.deliver(n)
}

// Handle is one participant's view of the session.
type Handle struct {
	id     string
	s      *Session
	notes  chan Notification
	mu     sync.Mutex
	closed bool
}

func (h *Handle) ID() string { return h.id }

// Notifications delivers platform events while this handle holds focus.
func (h *Handle) Notifications() <-chan Notification { return h.notes }

func (h *Handle) deliver(n Notification) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	select {
	case h.notes <- n:
		return true
	default:
		logger.Warn("session notification dropped",
			logger.String("holder", h.id),
			logger.Stringer("kind", n.Kind))
		return false
	}
}

func (h *Handle) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// Activate takes audio focus. A different holder is preempted and receives
// InterruptionBegan.
func (h *Handle) Activate() error {
	if h.isClosed() {
		return ErrClosed
	}
	s := h.s
	s.mu.Lock()
	prev := s.holder
	if prev != nil && prev != h {
		s.preempted = prev
	}
	if err := s.activator.Activate(s.category); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("activate audio session: %w", err)
	}
	s.holder = h
	s.active = true
	s.mu.Unlock()

	if prev != nil && prev != h {
		logger.Info("audio focus preempted",
			logger.String("from", prev.id),
			logger.String("to", h.id))
		prev.deliver(Notification{Kind: InterruptionBegan})
	}
	return nil
}

// Deactivate releases focus if this handle holds it. A holder that was preempted by this
// one is told the interruption ended.
func (h *Handle) Deactivate() error {
	s := h.s
	s.mu.Lock()
	if s.holder != h {
		if s.preempted == h {
			s.preempted = nil
		}
		s.mu.Unlock()
		return nil
	}
	err := s.activator.Deactivate()
	s.holder = nil
	s.active = false
	waiting := s.preempted
	s.preempted = nil
	s.mu.Unlock()

	if waiting != nil {
		// the waiting handle reactivates and becomes holder again
		waiting.deliver(Notification{Kind: InterruptionEnded, ShouldResume: true})
	}
	if err != nil {
		return fmt.Errorf("deactivate audio session: %w", err)
	}
	return nil
}

// Reactivate cycles the session off and on, used when an interruption ends.
func (h *Handle) Reactivate() error {
	if h.isClosed() {
		return ErrClosed
	}
	s := h.s
	s.mu.Lock()
	if s.holder == h {
		if err := s.activator.Deactivate(); err != nil {
			logger.Warn("deactivate before reactivation failed", logger.ErrorField(err))
		}
		s.active = false
	}
	s.mu.Unlock()
	return h.activateQuietly()
}

// activateQuietly takes focus without preempting: used to reclaim focus after an
// interruption, when the previous holder has already let go.
func (h *Handle) activateQuietly() error {
	s := h.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.holder != nil && s.holder != h {
		return fmt.Errorf("activate audio session: focus held by %s", s.holder.id)
	}
	if err := s.activator.Activate(s.category); err != nil {
		return fmt.Errorf("activate audio session: %w", err)
	}
	s.holder = h
	s.active = true
	return nil
}

// SetCategory switches the session category and reapplies it when active.
func (h *Handle) SetCategory(c Category) error {
	s := h.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.category == c {
		return nil
	}
	if s.active && s.holder == h {
		if err := s.activator.Activate(c); err != nil {
			// the previous category stays in effect
			return fmt.Errorf("apply session category %s: %w", c, err)
		}
	}
	s.category = c
	logger.Info("audio session category changed", logger.String("category", string(c)))
	return nil
}

// Close releases focus and stops deliveries.
func (h *Handle) Close() error {
	err := h.Deactivate()
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	return err
}
