package telemetry

import (
	"math"

	"github.com/Moinster/SantaCam/internal/randutil"
)

// Readings are the simulated sensor values of one tick.
type Readings struct {
	Lux   float64 `json:"lux"`
	Range float64 `json:"range"`
	Temp  float64 `json:"temp"`
	SNR   float64 `json:"snr"`
}

// BaseReadings returns the noiseless waveforms at seq.
func BaseReadings(seq int64) Readings {
	s := float64(seq)
	return Readings{
		Lux:   18 + 10*math.Sin(s/11),
		Range: 240 + 80*math.Sin(s/17),
		Temp:  21.5 + 0.7*math.Sin(s/50),
		SNR:   28 + 6*math.Sin(s/23),
	}
}

// BaseMotionProb is the noiseless motion probability at seq.
func BaseMotionProb(seq int64) float64 {
	return 0.08 + 0.06*math.Sin(float64(seq)/31)
}

// BaseBurstProb is the noiseless remote burst probability at seq.
func BaseBurstProb(seq int64) float64 {
	return 0.018 + 0.01*math.Sin(float64(seq)/29)
}

// Burst probability bounds.
const (
	MinBurstProb = 0.004
	MaxBurstProb = 0.06
)

// sampleReadings adds bounded noise to the base waveforms.
func sampleReadings(src randutil.Source, seq int64) Readings {
	base := BaseReadings(seq)
	return Readings{
		Lux:   randutil.Clamp(base.Lux+randutil.Range(src, -3, 3), 0, 120),
		Range: randutil.Clamp(base.Range+randutil.Range(src, -12, 12), 40, 600),
		Temp:  randutil.Clamp(base.Temp+randutil.Range(src, -0.2, 0.2), 18, 26),
		SNR:   randutil.Clamp(base.SNR+randutil.Range(src, -1.5, 1.5), 12, 42),
	}
}

func sampleMotionProb(src randutil.Source, seq int64) float64 {
	return randutil.Clamp(BaseMotionProb(seq)+randutil.Range(src, -0.03, 0.03), 0, 0.55)
}

func sampleBurstProb(src randutil.Source, seq int64) float64 {
	return randutil.Clamp(BaseBurstProb(seq)+randutil.Range(src, -0.006, 0.006), MinBurstProb, MaxBurstProb)
}
