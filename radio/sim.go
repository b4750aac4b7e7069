package radio

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strconv"
	"sync"

	"github.com/dustin/go-humanize"
)

const (
	simMasterClock = 32e6
	simMaxDecim    = 512
	simMinHz       = 70e6
	simMaxHz       = 6e9
	simLOStepHz    = 100e3
)

var (
	simFreqs = Range{Min: simMinHz, Max: simMaxHz}
	simLOs   = Range{Min: simMinHz, Max: simMaxHz, Step: simLOStepHz}
)

var simGains = [...]Range{
	RX: {0, 76, 1},
	TX: {0, 89.75, 0.25},
}

var simAntennas = [...][]string{
	RX: {"TX/RX", "RX2"},
	TX: {"TX/RX"},
}

var simClockSources = []string{"internal", "external", "gpsdo"}

type simPath struct {
	rate    float64
	freq    float64
	gain    float64
	antenna string
	subdev  SubdevSpec
}

// simSDR is a dual path radio that coerces settings the way hardware does:
// rates are integer decimations of a master clock, frequencies are clipped
// and split between a stepped LO and a DSP shift, gains are clipped and
// rounded to the gain step.
type simSDR struct {
	serial      string
	masterClock float64
	clock       string
	paths       [2]simPath
	closed      bool
	mu          sync.RWMutex
}

type simDriver struct{}

func init() { Register("sim", simDriver{}) }

func (simDriver) Find(ctx context.Context, hint Args) ([]HWInfo, error) {
	// Only report the simulator when asked for it by name.
	if hint.Type() != "sim" {
		return nil, nil
	}
	args := Args{"type": "sim", "serial": hint.Get("serial", "sim0")}
	return []HWInfo{{Driver: "sim", Id: args["serial"], Name: "simulated radio", Args: args}}, nil
}

func (simDriver) Open(ctx context.Context, args Args) (Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return newSimSDR(args)
}

func newSimSDR(args Args) (*simSDR, error) {
	mcr := simMasterClock
	if v, ok := args["master_clock_rate"]; ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return nil, fmt.Errorf("sim: bad master_clock_rate %q", v)
		}
		mcr = f
	}
	s := &simSDR{
		serial:      args.Get("serial", "sim0"),
		masterClock: mcr,
		clock:       simClockSources[0],
	}
	for d := range s.paths {
		s.paths[d] = simPath{
			rate:    mcr / 32,
			freq:    simMinHz,
			antenna: simAntennas[d][len(simAntennas[d])-1],
			subdev:  SubdevSpec{{DBName: "A", SDName: "A"}},
		}
	}
	return s, nil
}

func (s *simSDR) String() string {
	return fmt.Sprintf("sim device (serial=%s, master clock %s)",
		s.serial, humanize.SIWithDigits(s.masterClock, 3, "Hz"))
}

func (s *simSDR) path(d Direction) (*simPath, error) {
	if d != RX && d != TX {
		return nil, fmt.Errorf("bad direction %v", d)
	}
	if s.closed {
		return nil, fmt.Errorf("sim: device closed")
	}
	return &s.paths[d], nil
}

func (s *simSDR) SetClockSource(src string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.Contains(simClockSources, src) {
		return fmt.Errorf("%w: %q (valid: %v)", ErrUnknownClockSource, src, simClockSources)
	}
	s.clock = src
	return nil
}

func (s *simSDR) ClockSource() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clock
}

func (s *simSDR) SetSubdevSpec(d Direction, spec SubdevSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.path(d)
	if err != nil {
		return err
	}
	if len(spec) == 0 || len(spec) > 2 {
		return fmt.Errorf("%w: %d channels", ErrBadSubdevSpec, len(spec))
	}
	for _, pair := range spec {
		if pair.DBName != "A" || (pair.SDName != "A" && pair.SDName != "B" && pair.SDName != "0") {
			return fmt.Errorf("%w: no frontend %s", ErrBadSubdevSpec, pair)
		}
	}
	p.subdev = slices.Clone(spec)
	return nil
}

func (s *simSDR) SubdevSpec(d Direction) SubdevSpec {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, err := s.path(d); err == nil {
		return slices.Clone(p.subdev)
	}
	return nil
}

func (s *simSDR) SetRate(d Direction, rate float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.path(d)
	if err != nil {
		return err
	}
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return fmt.Errorf("%w: %v", ErrRateOutOfRange, rate)
	}
	decim := math.Round(s.masterClock / rate)
	decim = math.Max(1, math.Min(simMaxDecim, decim))
	p.rate = s.masterClock / decim
	return nil
}

func (s *simSDR) Rate(d Direction) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, err := s.path(d); err == nil {
		return p.rate
	}
	return 0
}

func (s *simSDR) Tune(d Direction, req TuneRequest) (TuneResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.path(d)
	if err != nil {
		return TuneResult{}, err
	}
	if math.IsNaN(req.TargetFreq) || math.IsNaN(req.LOOffset) {
		return TuneResult{}, fmt.Errorf("%w: NaN", ErrFrequencyOutOfRange)
	}
	target := simFreqs.Clip(req.TargetFreq)
	rfTarget := simFreqs.Clip(target + req.LOOffset)
	rf := simLOs.Clip(rfTarget)
	// The DSP shift cannot leave the baseband.
	dsp := Band{Width: p.rate}.Range().Clip(target - rf)
	p.freq = rf + dsp
	return TuneResult{TargetRFFreq: rfTarget, ActualRFFreq: rf, ActualDSPFreq: dsp}, nil
}

func (s *simSDR) Freq(d Direction) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, err := s.path(d); err == nil {
		return p.freq
	}
	return 0
}

func (s *simSDR) SetGain(d Direction, db float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.path(d)
	if err != nil {
		return err
	}
	if math.IsNaN(db) {
		return fmt.Errorf("%w: NaN", ErrGainOutOfRange)
	}
	p.gain = simGains[d].Clip(db)
	return nil
}

func (s *simSDR) Gain(d Direction) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, err := s.path(d); err == nil {
		return p.gain
	}
	return 0
}

func (s *simSDR) SetAntenna(d Direction, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.path(d)
	if err != nil {
		return err
	}
	if !slices.Contains(simAntennas[d], name) {
		return fmt.Errorf("%w: %s antenna %q (valid: %v)", ErrUnknownAntenna, d, name, simAntennas[d])
	}
	p.antenna = name
	return nil
}

func (s *simSDR) Antenna(d Direction) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, err := s.path(d); err == nil {
		return p.antenna
	}
	return ""
}

func (s *simSDR) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
