package headless

import (
	"context"
	"sync"

	"SonicPlayer/core/audio"
)

// Transport is a simulated stream transport. Items start at position zero and only move
// when the caller advances them.
type Transport struct {
	mu      sync.Mutex
	items   []*Item
	openErr error
	// Gate, when set, blocks Open until it is closed or ctx is done.
	gate chan struct{}
}

func NewTransport() *Transport {
	return &Transport{}
}

// FailOpen makes subsequent Open calls fail with err.
func (t *Transport) FailOpen(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.openErr = err
}

// Hold makes Open block until Release is called.
func (t *Transport) Hold() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gate = make(chan struct{})
}

func (t *Transport) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gate != nil {
		close(t.gate)
		t.gate = nil
	}
}

func (t *Transport) Open(ctx context.Context, url string, opts audio.StreamOptions) (audio.StreamItem, error) {
	t.mu.Lock()
	gate := t.gate
	err := t.openErr
	t.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	item := &Item{URL: url, live: opts.Live, events: make(chan audio.StreamEvent, 4)}
	if !opts.Live {
		item.duration = opts.DurationHint
	}

	t.mu.Lock()
	t.items = append(t.items, item)
	t.mu.Unlock()
	return item, nil
}

// Last returns the most recently opened item.
func (t *Transport) Last() *Item {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.items) == 0 {
		return nil
	}
	return t.items[len(t.items)-1]
}

// Item is a simulated stream item.
type Item struct {
	URL string

	mu       sync.Mutex
	live     bool
	playing  bool
	closed   bool
	position float64
	duration float64
	events   chan audio.StreamEvent
}

func (i *Item) Play() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.playing = true
}

func (i *Item) Pause() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.playing = false
}

func (i *Item) Seek(seconds float64) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.live {
		return audio.ErrSeekUnsupported
	}
	i.position = seconds
	return nil
}

func (i *Item) CurrentTime() float64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.position
}

func (i *Item) Duration() float64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.duration
}

func (i *Item) Events() <-chan audio.StreamEvent { return i.events }

func (i *Item) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.closed = true
	i.playing = false
	return nil
}

// Playing reports whether the item is rendering.
func (i *Item) Playing() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.playing
}

func (i *Item) Closed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.closed
}

// Advance moves the playhead while playing.
func (i *Item) Advance(seconds float64) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.playing {
		i.position += seconds
	}
}

// Finish reports end of stream.
func (i *Item) Finish() {
	i.events <- audio.StreamEvent{Kind: audio.StreamEnded}
}

// Fail reports a transport failure.
func (i *Item) Fail(err error) {
	i.events <- audio.StreamEvent{Kind: audio.StreamFailed, Err: err}
}
