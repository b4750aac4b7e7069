package bentpipe

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/chzchzchz/bentpipe/radio"
)

// Configurator applies Options to an open device, one call at a time.
type Configurator struct {
	dev    radio.Device
	opts   Options
	out    io.Writer
	logger *slog.Logger
}

func WithLogger(l *slog.Logger) func(*Configurator) {
	return func(c *Configurator) { c.logger = l }
}

// WithOutput sets where the Setting/Actual lines are printed.
func WithOutput(w io.Writer) func(*Configurator) {
	return func(c *Configurator) { c.out = w }
}

func NewConfigurator(dev radio.Device, opts Options, options ...func(*Configurator)) *Configurator {
	c := &Configurator{
		dev:    dev,
		opts:   opts,
		out:    io.Discard,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range options {
		o(c)
	}
	return c
}

type step struct {
	name string
	unit string
	req  any
	set  func() error
	get  func() any
}

func (c *Configurator) steps() ([]step, error) {
	var ss []step
	dev, o := c.dev, c.opts
	if o.Subdev != "" {
		spec, err := radio.ParseSubdevSpec(o.Subdev)
		if err != nil {
			return nil, err
		}
		for _, d := range []radio.Direction{radio.RX, radio.TX} {
			d := d
			ss = append(ss, step{
				name: d.String() + " Subdev",
				req:  spec.String(),
				set:  func() error { return dev.SetSubdevSpec(d, spec) },
				get:  func() any { return dev.SubdevSpec(d).String() },
			})
		}
	}
	ss = append(ss, step{
		name: "Clock Source",
		req:  o.Ref,
		set:  func() error { return dev.SetClockSource(o.Ref) },
		get:  func() any { return dev.ClockSource() },
	})
	for _, d := range []radio.Direction{radio.RX, radio.TX} {
		d := d
		ss = append(ss, step{
			name: d.String() + " Rate",
			unit: "sps",
			req:  o.SampleRate,
			set:  func() error { return dev.SetRate(d, o.SampleRate) },
			get:  func() any { return dev.Rate(d) },
		})
	}
	for _, d := range []radio.Direction{radio.RX, radio.TX} {
		d := d
		ss = append(ss, step{
			name: d.String() + " Freq",
			unit: "Hz",
			req:  o.Freq,
			set: func() error {
				tr, err := dev.Tune(d, radio.TuneRequest{TargetFreq: o.Freq})
				if err == nil {
					c.logger.Debug("tuned",
						slog.String("dir", d.String()),
						slog.Float64("rf", tr.ActualRFFreq),
						slog.Float64("dsp", tr.ActualDSPFreq))
				}
				return err
			},
			get: func() any { return dev.Freq(d) },
		})
	}
	gains := [...]float64{radio.RX: o.RxGain, radio.TX: o.TxGain}
	for _, d := range []radio.Direction{radio.RX, radio.TX} {
		d := d
		ss = append(ss, step{
			name: d.String() + " Gain",
			unit: "dB",
			req:  gains[d],
			set:  func() error { return dev.SetGain(d, gains[d]) },
			get:  func() any { return dev.Gain(d) },
		})
	}
	ants := [...]string{radio.RX: o.RxAntenna, radio.TX: o.TxAntenna}
	for _, d := range []radio.Direction{radio.RX, radio.TX} {
		d := d
		if ants[d] == "" {
			continue
		}
		ss = append(ss, step{
			name: d.String() + " Antenna",
			req:  ants[d],
			set:  func() error { return dev.SetAntenna(d, ants[d]) },
			get:  func() any { return dev.Antenna(d) },
		})
	}
	return ss, nil
}

// Run issues the configuration calls in order and stops at the first
// failure. The returned report holds every step attempted, including the
// failed one, and is non-nil even when err is set.
func (c *Configurator) Run(ctx context.Context) (*Report, error) {
	r := &Report{
		Device:           c.dev.String(),
		SamplesPerBuffer: c.opts.SamplesPerBuffer,
		WireFormat:       c.opts.WireFormat,
	}
	ss, err := c.steps()
	if err != nil {
		return r, err
	}
	for _, s := range ss {
		if err := ctx.Err(); err != nil {
			return r, fmt.Errorf("%s: %w", s.name, err)
		}
		st := Step{Name: s.name, Unit: s.unit, Requested: s.req}
		fmt.Fprintf(c.out, "Setting %s: %s...\n", s.name, formatValue(s.req, s.unit))
		if err := s.set(); err != nil {
			st.Error = err.Error()
			r.Steps = append(r.Steps, st)
			return r, fmt.Errorf("setting %s: %w", s.name, err)
		}
		st.Actual = s.get()
		r.Steps = append(r.Steps, st)
		fmt.Fprintf(c.out, "Actual %s: %s...\n\n", s.name, formatValue(st.Actual, s.unit))
		if st.Coerced() {
			c.logger.Warn("device coerced setting",
				slog.String("step", s.name),
				slog.Any("requested", s.req),
				slog.Any("actual", st.Actual))
		}
	}
	fmt.Fprintf(c.out, "Samples per buffer: %d, wire format: %s\n", r.SamplesPerBuffer, r.WireFormat)
	return r, nil
}
