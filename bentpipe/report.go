package bentpipe

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// Step is one configuration call. Requested and Actual hold a float64 for
// numeric settings and a string otherwise.
type Step struct {
	Name      string `json:"name"`
	Unit      string `json:"unit,omitempty"`
	Requested any    `json:"requested"`
	Actual    any    `json:"actual,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Coerced reports whether the device applied something other than what was
// asked for.
func (s Step) Coerced() bool {
	return s.Error == "" && s.Actual != nil && s.Requested != s.Actual
}

type Report struct {
	Device           string `json:"device"`
	SamplesPerBuffer uint64 `json:"spb"`
	WireFormat       string `json:"wirefmt"`
	Steps            []Step `json:"steps"`
}

// Failed returns the step that stopped the run, if any.
func (r *Report) Failed() *Step {
	for i := range r.Steps {
		if r.Steps[i].Error != "" {
			return &r.Steps[i]
		}
	}
	return nil
}

func formatValue(v any, unit string) string {
	switch v := v.(type) {
	case float64:
		switch unit {
		case "Hz", "sps":
			return humanize.SIWithDigits(v, 6, unit)
		case "":
			return humanize.FtoaWithDigits(v, 6)
		default:
			return humanize.FtoaWithDigits(v, 6) + " " + unit
		}
	case string:
		if v == "" {
			return "(none)"
		}
		return v
	case nil:
		return "(none)"
	}
	return fmt.Sprint(v)
}
