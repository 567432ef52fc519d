// Package events fans engine events out to subscribers.
package events

import (
	"sync"

	"github.com/google/uuid"

	"SonicPlayer/logger"
	"SonicPlayer/model"
)

// DefaultBuffer 订阅默认缓冲大小
const DefaultBuffer = 64

// Subscription 事件订阅
type Subscription struct {
	id   string
	ch   chan model.Event
	bus  *Bus
	once sync.Once
}

// ID 订阅标识
func (s *Subscription) ID() string { return s.id }

// C 事件通道，取消订阅或总线关闭后被关闭
func (s *Subscription) C() <-chan model.Event { return s.ch }

// Close 取消订阅
func (s *Subscription) Close() {
	s.bus.Unsubscribe(s)
}

// Bus 事件总线
//
// Publish never blocks: a subscriber whose buffer is full misses the event.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]*Subscription
	closed bool
}

// NewBus 创建事件总线
func NewBus() *Bus {
	return &Bus{subs: make(map[string]*Subscription)}
}

// Subscribe 订阅事件
func (b *Bus) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	s := &Subscription{
		id:  uuid.New().String(),
		ch:  make(chan model.Event, buffer),
		bus: b,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(s.ch)
		return s
	}
	b.subs[s.id] = s
	return s
}

// Unsubscribe 取消订阅
func (b *Bus) Unsubscribe(s *Subscription) {
	b.mu.Lock()
	if _, ok := b.subs[s.id]; ok {
		delete(b.subs, s.id)
		s.once.Do(func() { close(s.ch) })
	}
	b.mu.Unlock()
}

// Publish 发布事件
func (b *Bus) Publish(e model.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, s := range b.subs {
		select {
		case s.ch <- e:
		default:
			logger.Warn("event dropped, subscriber too slow",
				logger.String("subscriber", s.id),
				logger.String("type", string(e.Type)))
		}
	}
}

// Len 当前订阅数
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close 关闭总线并关闭所有订阅通道
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, s := range b.subs {
		s.once.Do(func() { close(s.ch) })
		delete(b.subs, id)
	}
}
