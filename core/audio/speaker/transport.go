package speaker

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"

	"SonicPlayer/core/audio"
	"SonicPlayer/logger"
)

// Transport plays streams straight to the speaker without the effect stages.
type Transport struct {
	sampleRate int
	buffer     time.Duration
	client     *http.Client
}

func NewTransport(sampleRate int, buffer time.Duration, client *http.Client) *Transport {
	if client == nil {
		client = &http.Client{}
	}
	return &Transport{sampleRate: sampleRate, buffer: buffer, client: client}
}

func (t *Transport) Open(ctx context.Context, url string, opts audio.StreamOptions) (audio.StreamItem, error) {
	if err := Init(t.sampleRate, t.buffer); err != nil {
		return nil, err
	}

	body, name, err := t.fetch(ctx, url, opts)
	if err != nil {
		return nil, err
	}

	stream, format, err := decode(name, body)
	if err != nil {
		body.Close()
		return nil, fmt.Errorf("decode stream %s: %w: %v", url, audio.ErrUnsupportedCodec, err)
	}

	var s beep.Streamer = stream
	if format.SampleRate != outputRate {
		s = beep.Resample(resampleQuality, format.SampleRate, outputRate, stream)
	}

	item := &item{
		stream: stream,
		format: format,
		live:   opts.Live,
		hint:   opts.DurationHint,
		ctrl:   &beep.Ctrl{Streamer: s, Paused: true},
		events: make(chan audio.StreamEvent, 1),
	}
	speaker.Play(beep.Seq(item.ctrl, beep.Callback(func() {
		go item.drained()
	})))

	logger.Info("stream opened",
		logger.String("url", url),
		logger.Bool("live", opts.Live),
		logger.Int("sampleRate", int(format.SampleRate)))
	return item, nil
}

// fetch returns the resource body and a name whose extension selects the decoder.
func (t *Transport) fetch(ctx context.Context, url string, opts audio.StreamOptions) (io.ReadCloser, string, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		local := strings.TrimPrefix(url, "file://")
		f, err := os.Open(local)
		if err != nil {
			return nil, "", fmt.Errorf("open stream %s: %w", local, err)
		}
		return f, local, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	if opts.UserAgent != "" {
		req.Header.Set("User-Agent", opts.UserAgent)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("connect stream %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, "", fmt.Errorf("connect stream %s: unexpected status %s", url, resp.Status)
	}

	name := path.Base(req.URL.Path)
	switch ct := resp.Header.Get("Content-Type"); {
	case strings.Contains(ct, "wav"):
		name = "stream.wav"
	case strings.Contains(ct, "flac"):
		name = "stream.flac"
	case strings.Contains(ct, "ogg"):
		name = "stream.ogg"
	}
	return resp.Body, name, nil
}

type item struct {
	stream beep.StreamSeekCloser
	format beep.Format
	live   bool
	hint   float64
	ctrl   *beep.Ctrl
	events chan audio.StreamEvent

	closeOnce sync.Once
	mu        sync.Mutex
	closed    bool
}

func (i *item) drained() {
	i.mu.Lock()
	closed := i.closed
	i.mu.Unlock()
	if closed {
		return
	}

	ev := audio.StreamEvent{Kind: audio.StreamEnded}
	speaker.Lock()
	err := i.stream.Err()
	speaker.Unlock()
	if err != nil {
		ev = audio.StreamEvent{Kind: audio.StreamFailed, Err: err}
	}
	select {
	case i.events <- ev:
	default:
	}
}

func (i *item) Play() {
	speaker.Lock()
	i.ctrl.Paused = false
	speaker.Unlock()
}

func (i *item) Pause() {
	speaker.Lock()
	i.ctrl.Paused = true
	speaker.Unlock()
}

func (i *item) Seek(seconds float64) error {
	if i.live {
		return audio.ErrSeekUnsupported
	}
	speaker.Lock()
	defer speaker.Unlock()
	n := i.format.SampleRate.N(time.Duration(seconds * float64(time.Second)))
	if l := i.stream.Len(); l > 0 && n >= l {
		n = l - 1
	}
	if err := i.stream.Seek(n); err != nil {
		return fmt.Errorf("%w: %v", audio.ErrSeekUnsupported, err)
	}
	return nil
}

func (i *item) CurrentTime() float64 {
	speaker.Lock()
	defer speaker.Unlock()
	return i.format.SampleRate.D(i.stream.Position()).Seconds()
}

func (i *item) Duration() float64 {
	if i.live {
		return 0
	}
	speaker.Lock()
	l := i.stream.Len()
	speaker.Unlock()
	if l > 0 {
		return i.format.SampleRate.D(l).Seconds()
	}
	return i.hint
}

func (i *item) Events() <-chan audio.StreamEvent { return i.events }

func (i *item) Close() error {
	var err error
	i.closeOnce.Do(func() {
		i.mu.Lock()
		i.closed = true
		i.mu.Unlock()

		speaker.Lock()
		i.ctrl.Streamer = nil
		speaker.Unlock()
		err = i.stream.Close()
	})
	return err
}
