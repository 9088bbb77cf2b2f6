// Package energy implements an adaptive RMS energy voice activity detector
// and the phrase listener built on top of it.
package energy

import (
	"encoding/binary"
	"math"
	"sync"
	"time"
)

// Config holds configuration for the energy detector
type Config struct {
	// Threshold is the starting RMS level above which a frame counts as speech.
	Threshold float64 `mapstructure:"energy_threshold" json:"energy_threshold" validate:"gt=0"`
	// Dynamic lets the threshold follow the ambient level while no one speaks.
	Dynamic bool `mapstructure:"dynamic_energy" json:"dynamic_energy"`
	// Damping is the fraction of the old threshold kept after one second of audio.
	Damping float64 `mapstructure:"dynamic_damping" json:"dynamic_damping" validate:"gt=0,lt=1"`
	// Ratio is how far above the ambient level speech must be.
	Ratio float64 `mapstructure:"dynamic_ratio" json:"dynamic_ratio" validate:"gte=1"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		Threshold: 300,
		Dynamic:   true,
		Damping:   0.15,
		Ratio:     1.5,
	}
}

// Detector classifies 16-bit PCM frames as speech or silence.
type Detector struct {
	mu        sync.Mutex
	config    Config
	threshold float64
}

// NewDetector creates a detector starting at config.Threshold.
func NewDetector(config Config) *Detector {
	defaults := DefaultConfig()
	if config.Threshold <= 0 {
		config.Threshold = defaults.Threshold
	}
	if config.Damping <= 0 || config.Damping >= 1 {
		config.Damping = defaults.Damping
	}
	if config.Ratio < 1 {
		config.Ratio = defaults.Ratio
	}
	return &Detector{config: config, threshold: config.Threshold}
}

// Threshold returns the current speech threshold.
func (d *Detector) Threshold() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.threshold
}

// IsSpeech reports whether the frame is louder than the current threshold.
func (d *Detector) IsSpeech(frame []byte) bool {
	return RMS(frame) > d.Threshold()
}

// Calibrate moves the threshold toward the ambient level of frame,
// regardless of Dynamic. Call it on audio known to contain no speech.
func (d *Detector) Calibrate(frame []byte, duration time.Duration) {
	d.adjust(RMS(frame), duration)
}

// Adapt is Calibrate gated by the Dynamic setting, for silent frames seen
// while waiting for speech.
func (d *Detector) Adapt(frame []byte, duration time.Duration) {
	if !d.config.Dynamic {
		return
	}
	d.adjust(RMS(frame), duration)
}

func (d *Detector) adjust(energy float64, duration time.Duration) {
	damping := math.Pow(d.config.Damping, duration.Seconds())
	target := energy * d.config.Ratio

	d.mu.Lock()
	d.threshold = d.threshold*damping + target*(1-damping)
	d.mu.Unlock()
}

// RMS returns the root mean square of 16-bit little endian samples.
// A trailing odd byte is ignored.
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[2*i:])))
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}
