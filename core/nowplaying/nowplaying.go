// Package nowplaying publishes the current track to system display surfaces.
package nowplaying

import (
	"sync"
	"time"
)

// Info 正在播放信息
type Info struct {
	Title       string  `json:"title"`
	Artist      string  `json:"artist"`
	Album       string  `json:"album,omitempty"`
	Description string  `json:"description,omitempty"`
	ArtworkURI  string  `json:"artworkUri,omitempty"`
	Duration    float64 `json:"duration"`
	IsLive      bool    `json:"isLive"`
	Elapsed     float64 `json:"elapsed"`
	Rate        float64 `json:"rate"`
	UpdatedAt   int64   `json:"updatedAt"`
}

// Sink is a now playing surface. Publish replaces the full record, UpdateProgress only
// touches elapsed time and rate.
type Sink interface {
	Publish(info Info) error
	UpdateProgress(elapsed, rate float64) error
	Clear() error
}

// Nop discards everything.
type Nop struct{}

func (Nop) Publish(Info) error                    { return nil }
func (Nop) UpdateProgress(float64, float64) error { return nil }
func (Nop) Clear() error                          { return nil }

// Memory keeps the record in process.
type Memory struct {
	mu      sync.RWMutex
	info    Info
	present bool
	updates int
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Publish(info Info) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	info.UpdatedAt = time.Now().UnixMilli()
	m.info = info
	m.present = true
	return nil
}

func (m *Memory) UpdateProgress(elapsed, rate float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.present {
		return nil
	}
	m.info.Elapsed = elapsed
	m.info.Rate = rate
	m.info.UpdatedAt = time.Now().UnixMilli()
	m.updates++
	return nil
}

func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.info = Info{}
	m.present = false
	return nil
}

// Current returns the record and whether one is set.
func (m *Memory) Current() (Info, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.info, m.present
}

// ProgressUpdates counts UpdateProgress calls that hit a record.
func (m *Memory) ProgressUpdates() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.updates
}

// Multi fans out to several sinks and returns the first error.
type Multi []Sink

func (ms Multi) Publish(info Info) error {
	var first error
	for _, s := range ms {
		if err := s.Publish(info); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (ms Multi) UpdateProgress(elapsed, rate float64) error {
	var first error
	for _, s := range ms {
		if err := s.UpdateProgress(elapsed, rate); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (ms Multi) Clear() error {
	var first error
	for _, s := range ms {
		if err := s.Clear(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
