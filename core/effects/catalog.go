package effects

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"SonicPlayer/core/audio"
)

// SlowedReverbPreset bundles the parameters of a slowed + reverb sound.
type SlowedReverbPreset struct {
	Speed         float64 `json:"speed" yaml:"speed"`
	Pitch         float64 `json:"pitch" yaml:"pitch"`
	ReverbAmount  float64 `json:"reverbAmount" yaml:"reverb_amount"`
	DelayAmount   float64 `json:"delayAmount" yaml:"delay_amount"`
	DelayTime     float64 `json:"delayTime" yaml:"delay_time"`
	DelayFeedback float64 `json:"delayFeedback" yaml:"delay_feedback"`
	Description   string  `json:"description" yaml:"description"`
	ReverbPreset  string  `json:"reverbPreset,omitempty" yaml:"reverb_preset,omitempty"`
}

// AudioPreset is a whole chain configuration.
type AudioPreset struct {
	Equalizer           string  `json:"equalizer" yaml:"equalizer"`
	ReverbWetDryMix     float64 `json:"reverbWetDryMix" yaml:"reverb_wet_dry_mix"`
	ReverbPreset        string  `json:"reverbPreset" yaml:"reverb_preset"`
	DelayTime           float64 `json:"delayTime" yaml:"delay_time"`
	DelayFeedback       float64 `json:"delayFeedback" yaml:"delay_feedback"`
	DelayWetDryMix      float64 `json:"delayWetDryMix" yaml:"delay_wet_dry_mix"`
	DistortionWetDryMix float64 `json:"distortionWetDryMix" yaml:"distortion_wet_dry_mix"`
	DistortionPreset    string  `json:"distortionPreset,omitempty" yaml:"distortion_preset,omitempty"`
}

// Catalog is the preset data. It is replaced wholesale, never mutated.
type Catalog struct {
	Equalizer    map[string][]float64          `json:"equalizer" yaml:"equalizer"`
	Audio        map[string]AudioPreset        `json:"audio" yaml:"audio"`
	SlowedReverb map[string]SlowedReverbPreset `json:"slowedReverb" yaml:"slowed_reverb"`
	Reverb       []string                      `json:"reverb" yaml:"reverb"`
	Distortion   []string                      `json:"distortion" yaml:"distortion"`
}

var ErrInvalidCatalog = errors.New("invalid preset catalog")

// DefaultCatalog returns the built in presets.
func DefaultCatalog() *Catalog {
	return &Catalog{
		Equalizer: map[string][]float64{
			"flat":      {0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
			"rock":      {3, 2, -1, -2, -1, 1, 4, 5, 5, 5},
			"pop":       {-1, 2, 4, 4, 2, 0, -1, -1, -1, -1},
			"jazz":      {2, 1, 0, 1, -1, -1, 0, 1, 2, 3},
			"classical": {3, 2, -1, -1, -1, 0, 1, 2, 3, 4},
			"bass":      {6, 5, 4, 2, 1, -1, -2, -3, -3, -3},
			"treble":    {-3, -3, -3, -2, -1, 1, 2, 4, 5, 6},
			"vocal":     {-2, -1, 1, 3, 4, 4, 3, 1, 0, -1},
		},
		Audio: map[string]AudioPreset{
			"normal": {Equalizer: "flat", ReverbPreset: "mediumhall"},
			"concert": {
				Equalizer:       "classical",
				ReverbWetDryMix: 25,
				ReverbPreset:    "cathedral",
				DelayTime:       0.1,
				DelayFeedback:   10,
				DelayWetDryMix:  10,
			},
			"studio": {
				Equalizer:       "vocal",
				ReverbWetDryMix: 5,
				ReverbPreset:    "smallroom",
				DelayTime:       0.05,
				DelayFeedback:   5,
				DelayWetDryMix:  5,
			},
		},
		SlowedReverb: map[string]SlowedReverbPreset{
			"classic": {Speed: 0.8, Pitch: -200, ReverbAmount: 40, DelayAmount: 15, DelayTime: 0.3, DelayFeedback: 25,
				Description: "Classic slowed + reverb sound"},
			"dreamy": {Speed: 0.7, Pitch: -400, ReverbAmount: 60, DelayAmount: 25, DelayTime: 0.5, DelayFeedback: 35,
				Description: "Dreamy, ethereal atmosphere"},
			"subtle": {Speed: 0.9, Pitch: -100, ReverbAmount: 25, DelayAmount: 10, DelayTime: 0.2, DelayFeedback: 15,
				Description: "Subtle slowed effect"},
			"heavy": {Speed: 0.6, Pitch: -600, ReverbAmount: 80, DelayAmount: 40, DelayTime: 0.7, DelayFeedback: 45,
				Description: "Heavy, dramatic slowed + reverb"},
		},
		Reverb: []string{"smallroom", "mediumroom", "largeroom", "mediumhall", "largehall", "plate", "cathedral"},
		Distortion: []string{
			"drumsbitterbuzz", "drumsbufferlayer", "drumslofi",
			"multibrokenspeaker", "multicellularcpa",
			"multidecimated1", "multidecimated2", "multidecimated3", "multidecimated4",
			"multidistortioncubed", "multiecho1", "multiecho2", "multiechotight1", "multiechotight2",
			"multieverything", "multiextrasmallroom",
			"speechalienchange", "speechcosmicinterference", "speechgoldentone",
			"speechradiodifference", "speechwavelform",
		},
	}
}

// Validate checks structural rules every catalog must satisfy.
func (c *Catalog) Validate() error {
	if _, ok := c.Equalizer["flat"]; !ok {
		return fmt.Errorf("%w: equalizer preset \"flat\" is required", ErrInvalidCatalog)
	}
	for name, gains := range c.Equalizer {
		if len(gains) != audio.BandCount {
			return fmt.Errorf("%w: equalizer preset %q has %d bands, want %d",
				ErrInvalidCatalog, name, len(gains), audio.BandCount)
		}
	}
	for name, p := range c.Audio {
		if _, ok := c.Equalizer[p.Equalizer]; !ok {
			return fmt.Errorf("%w: audio preset %q references unknown equalizer preset %q",
				ErrInvalidCatalog, name, p.Equalizer)
		}
		if p.ReverbPreset != "" && !c.HasReverb(p.ReverbPreset) {
			return fmt.Errorf("%w: audio preset %q references unknown reverb preset %q",
				ErrInvalidCatalog, name, p.ReverbPreset)
		}
		if p.DistortionPreset != "" && !c.HasDistortion(p.DistortionPreset) {
			return fmt.Errorf("%w: audio preset %q references unknown distortion preset %q",
				ErrInvalidCatalog, name, p.DistortionPreset)
		}
	}
	for name, p := range c.SlowedReverb {
		if p.Speed <= 0 {
			return fmt.Errorf("%w: slowed reverb preset %q needs a positive speed", ErrInvalidCatalog, name)
		}
	}
	return nil
}

func (c *Catalog) HasReverb(name string) bool {
	for _, r := range c.Reverb {
		if r == name {
			return true
		}
	}
	return false
}

func (c *Catalog) HasDistortion(name string) bool {
	for _, d := range c.Distortion {
		if d == name {
			return true
		}
	}
	return false
}

// Names lists every preset group sorted, for the presets query.
func (c *Catalog) Names() PresetNames {
	return PresetNames{
		Equalizer:    sortedKeys(c.Equalizer),
		Audio:        sortedKeys(c.Audio),
		SlowedReverb: sortedKeys(c.SlowedReverb),
		Reverb:       append([]string(nil), c.Reverb...),
		Distortion:   append([]string(nil), c.Distortion...),
	}
}

// PresetNames is the answer to "which presets are available".
type PresetNames struct {
	Equalizer    []string `json:"equalizer"`
	Audio        []string `json:"audio"`
	SlowedReverb []string `json:"slowedReverb"`
	Reverb       []string `json:"reverb"`
	Distortion   []string `json:"distortion"`
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LoadCatalog reads a YAML catalog. Groups missing from the file keep their defaults.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read preset catalog: %w", err)
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var file Catalog
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse preset catalog: %w", err)
	}

	c := DefaultCatalog()
	if file.Equalizer != nil {
		c.Equalizer = file.Equalizer
	}
	if file.Audio != nil {
		c.Audio = file.Audio
	}
	if file.SlowedReverb != nil {
		c.SlowedReverb = file.SlowedReverb
	}
	if file.Reverb != nil {
		c.Reverb = file.Reverb
	}
	if file.Distortion != nil {
		c.Distortion = file.Distortion
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
