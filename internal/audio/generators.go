package audio

import (
	"math"
	"time"

	"github.com/gopxl/beep"

	"github.com/tatianab/dreamcage/internal/models"
)

// WaveType selects the oscillator shape.
type WaveType int

const (
	WaveSine WaveType = iota
	WaveTriangle
	WaveSaw
)

// sfxSpec fixes the synthesized tone for one feedback sound. The triples
// are deterministic so the same kind always produces the same samples.
type sfxSpec struct {
	Wave     WaveType
	FromHz   float64
	ToHz     float64
	Duration time.Duration
	Gain     float64
}

var sfxSpecs = [models.NumSFXKinds]sfxSpec{
	models.SFXClick:   {Wave: WaveSine, FromHz: 800, ToHz: 300, Duration: 100 * time.Millisecond, Gain: 0.12},
	models.SFXConfirm: {Wave: WaveTriangle, FromHz: 400, ToHz: 800, Duration: 300 * time.Millisecond, Gain: 0.12},
	models.SFXAlert:   {Wave: WaveSaw, FromHz: 100, ToHz: 50, Duration: 300 * time.Millisecond, Gain: 0.2},
}

// sweepOscillator ramps linearly from one frequency to another over a
// fixed duration, with a linear gain fade to zero so the tone never ends
// in a click.
type sweepOscillator struct {
	spec     sfxSpec
	rate     beep.SampleRate
	phase    float64
	position int
	duration int
}

func newSweepOscillator(spec sfxSpec, rate beep.SampleRate) *sweepOscillator {
	return &sweepOscillator{
		spec:     spec,
		rate:     rate,
		duration: rate.N(spec.Duration),
	}
}

// newSFXStreamer builds the synthesized tone for a feedback sound.
func newSFXStreamer(kind models.SFXKind, rate beep.SampleRate) beep.Streamer {
	return newSweepOscillator(sfxSpecs[kind], rate)
}

func (o *sweepOscillator) Stream(samples [][2]float64) (n int, ok bool) {
	for i := range samples {
		if o.position >= o.duration {
			return i, i > 0
		}

		progress := float64(o.position) / float64(o.duration)
		freq := o.spec.FromHz + (o.spec.ToHz-o.spec.FromHz)*progress

		var val float64
		switch o.spec.Wave {
		case WaveSine:
			val = math.Sin(2 * math.Pi * o.phase)
		case WaveTriangle:
			if o.phase < 0.5 {
				val = 4*o.phase - 1
			} else {
				val = 3 - 4*o.phase
			}
		case WaveSaw:
			val = 2 * (o.phase - 0.5)
		}

		val *= o.spec.Gain * (1 - progress)

		samples[i][0] = val
		samples[i][1] = val

		o.phase += freq / float64(o.rate)
		o.phase -= math.Floor(o.phase) // keep in [0, 1)
		o.position++
	}
	return len(samples), true
}

func (o *sweepOscillator) Err() error { return nil }
