package radio

import (
	"errors"
	"fmt"
)

var ErrRateOutOfRange = errors.New("sample rate out of range")
var ErrFrequencyOutOfRange = errors.New("frequency out of range")
var ErrGainOutOfRange = errors.New("gain out of range")
var ErrUnknownAntenna = errors.New("unknown antenna")
var ErrUnknownClockSource = errors.New("unknown clock source")
var ErrBadSubdevSpec = errors.New("bad subdevice specification")
var ErrNotSupported = errors.New("not supported by device")
var ErrNoDevice = errors.New("no devices found")

// Direction selects the receive or transmit path of a device.
type Direction int

const (
	RX Direction = iota
	TX
)

func (d Direction) String() string {
	switch d {
	case RX:
		return "RX"
	case TX:
		return "TX"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// TuneRequest asks for an overall center frequency. A non-zero LOOffset
// places the RF local oscillator away from the target and lets the DSP
// stage shift the difference.
type TuneRequest struct {
	TargetFreq float64 `json:"target_freq"`
	LOOffset   float64 `json:"lo_offset"`
}

type TuneResult struct {
	TargetRFFreq  float64 `json:"target_rf_freq"`
	ActualRFFreq  float64 `json:"actual_rf_freq"`
	ActualDSPFreq float64 `json:"actual_dsp_freq"`
}

func (tr TuneResult) Freq() float64 { return tr.ActualRFFreq + tr.ActualDSPFreq }

// Device is a radio with independent receive and transmit paths. Setters
// may coerce the requested value to what the hardware supports; the getters
// report what was actually applied.
type Device interface {
	String() string

	SetClockSource(src string) error
	ClockSource() string

	SetSubdevSpec(d Direction, spec SubdevSpec) error
	SubdevSpec(d Direction) SubdevSpec

	SetRate(d Direction, rate float64) error
	Rate(d Direction) float64

	Tune(d Direction, req TuneRequest) (TuneResult, error)
	Freq(d Direction) float64

	SetGain(d Direction, db float64) error
	Gain(d Direction) float64

	SetAntenna(d Direction, name string) error
	Antenna(d Direction) string

	Close() error
}

// HWInfo describes a device that a driver can open.
type HWInfo struct {
	Driver string `json:"driver"`
	Id     string `json:"id"`
	Name   string `json:"name"`
	Args   Args   `json:"args"`
}

func (hw HWInfo) String() string {
	return fmt.Sprintf("%s [%s]", hw.Name, hw.Args)
}
