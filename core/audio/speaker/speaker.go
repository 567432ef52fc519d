// Package speaker renders audio to the default output device with beep.
package speaker

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"

	"SonicPlayer/core/audio"
	"SonicPlayer/core/session"
	"SonicPlayer/logger"
)

// resampleQuality is passed to beep's resampler.
const resampleQuality = 4

var (
	initOnce    sync.Once
	initErr     error
	outputRate  beep.SampleRate
	initialized bool
)

// Init opens the output device once per process. Later calls return the first result.
func Init(sampleRate int, buffer time.Duration) error {
	initOnce.Do(func() {
		sr := beep.SampleRate(sampleRate)
		initErr = speaker.Init(sr, sr.N(buffer))
		if initErr != nil {
			initErr = fmt.Errorf("init speaker: %w", initErr)
			return
		}
		outputRate = sr
		initialized = true
		logger.Info("speaker initialized",
			logger.Int("sampleRate", sampleRate),
			logger.Duration("buffer", buffer))
	})
	return initErr
}

// decode picks a decoder from the file extension. mp3 is assumed when unknown.
func decode(name string, rc io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".wav":
		return wav.Decode(rc)
	case ".flac":
		return flac.Decode(rc)
	case ".ogg", ".oga":
		return vorbis.Decode(rc)
	default:
		return mp3.Decode(rc)
	}
}

func decodeFile(path string) (beep.StreamSeekCloser, beep.Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("open %s: %w", path, err)
	}
	s, format, err := decode(path, f)
	if err != nil {
		f.Close()
		return nil, beep.Format{}, fmt.Errorf("decode %s: %w: %v", path, audio.ErrUnsupportedCodec, err)
	}
	return s, format, nil
}

// Activator switches the output device on and off for the audio session.
type Activator struct {
	SampleRate int
	Buffer     time.Duration
}

func (a Activator) Activate(category session.Category) error {
	if err := Init(a.SampleRate, a.Buffer); err != nil {
		return err
	}
	return speaker.Resume()
}

func (a Activator) Deactivate() error {
	if !initialized {
		return nil
	}
	return speaker.Suspend()
}
