package radio

import (
	"fmt"
	"math"
)

// Range is a closed interval of a device setting. A non-zero Step quantizes
// values to Min plus a multiple of Step.
type Range struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Step float64 `json:"step,omitempty"`
}

func (r Range) Contains(v float64) bool { return v >= r.Min && v <= r.Max }

// Clip returns the nearest value the range can hold.
func (r Range) Clip(v float64) float64 {
	v = math.Max(r.Min, math.Min(r.Max, v))
	if r.Step > 0 {
		v = r.Min + math.Round((v-r.Min)/r.Step)*r.Step
		v = math.Min(r.Max, v)
	}
	return v
}

func (r Range) String() string { return fmt.Sprintf("%g-%g", r.Min, r.Max) }

// Band is a span of spectrum in Hz given by its center and width.
type Band struct {
	Center float64 `json:"center_hz"`
	Width  float64 `json:"width_hz"`
}

func (b Band) Begin() float64 { return b.Center - b.Width/2 }
func (b Band) End() float64   { return b.Center + b.Width/2 }

func (b Band) Range() Range { return Range{Min: b.Begin(), Max: b.End()} }
