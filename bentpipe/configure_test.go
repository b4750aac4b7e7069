package bentpipe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/chzchzchz/bentpipe/radio"
)

// fakeDevice records every setter call and applies values unchanged unless
// told to fail or coerce.
type fakeDevice struct {
	calls  []string
	failOn string
	gainFn func(float64) float64

	clock   string
	subdev  [2]radio.SubdevSpec
	rate    [2]float64
	freq    [2]float64
	gain    [2]float64
	antenna [2]string
}

var errFake = errors.New("fake failure")

func (f *fakeDevice) record(call string) error {
	f.calls = append(f.calls, call)
	if call == f.failOn {
		return errFake
	}
	return nil
}

func (f *fakeDevice) String() string { return "fake device" }

func (f *fakeDevice) SetClockSource(src string) error {
	if err := f.record("clock " + src); err != nil {
		return err
	}
	f.clock = src
	return nil
}

func (f *fakeDevice) ClockSource() string { return f.clock }

func (f *fakeDevice) SetSubdevSpec(d radio.Direction, spec radio.SubdevSpec) error {
	if err := f.record(fmt.Sprintf("subdev %v %s", d, spec)); err != nil {
		return err
	}
	f.subdev[d] = spec
	return nil
}

func (f *fakeDevice) SubdevSpec(d radio.Direction) radio.SubdevSpec { return f.subdev[d] }

func (f *fakeDevice) SetRate(d radio.Direction, rate float64) error {
	if err := f.record(fmt.Sprintf("rate %v %v", d, rate)); err != nil {
		return err
	}
	f.rate[d] = rate
	return nil
}

func (f *fakeDevice) Rate(d radio.Direction) float64 { return f.rate[d] }

func (f *fakeDevice) Tune(d radio.Direction, req radio.TuneRequest) (radio.TuneResult, error) {
	if err := f.record(fmt.Sprintf("tune %v %v", d, req.TargetFreq)); err != nil {
		return radio.TuneResult{}, err
	}
	f.freq[d] = req.TargetFreq
	return radio.TuneResult{TargetRFFreq: req.TargetFreq, ActualRFFreq: req.TargetFreq}, nil
}

func (f *fakeDevice) Freq(d radio.Direction) float64 { return f.freq[d] }

func (f *fakeDevice) SetGain(d radio.Direction, db float64) error {
	if err := f.record(fmt.Sprintf("gain %v %v", d, db)); err != nil {
		return err
	}
	if f.gainFn != nil {
		db = f.gainFn(db)
	}
	f.gain[d] = db
	return nil
}

func (f *fakeDevice) Gain(d radio.Direction) float64 { return f.gain[d] }

func (f *fakeDevice) SetAntenna(d radio.Direction, name string) error {
	if err := f.record(fmt.Sprintf("antenna %v %s", d, name)); err != nil {
		return err
	}
	f.antenna[d] = name
	return nil
}

func (f *fakeDevice) Antenna(d radio.Direction) string { return f.antenna[d] }

func (f *fakeDevice) Close() error { return nil }

func TestConfigureOrder(t *testing.T) {
	opts := DefaultOptions()
	opts.SampleRate = 2.5e6
	opts.Freq = 915e6
	opts.RxGain = 10
	opts.TxGain = 20.5
	opts.RxAntenna = "RX2"
	opts.TxAntenna = "TX/RX"
	opts.Subdev = "A:0 B:0"
	opts.Ref = "external"

	dev := &fakeDevice{}
	var out bytes.Buffer
	r, err := NewConfigurator(dev, opts, WithOutput(&out)).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"subdev RX A:0 B:0",
		"subdev TX A:0 B:0",
		"clock external",
		"rate RX 2.5e+06",
		"rate TX 2.5e+06",
		"tune RX 9.15e+08",
		"tune TX 9.15e+08",
		"gain RX 10",
		"gain TX 20.5",
		"antenna RX RX2",
		"antenna TX TX/RX",
	}
	if !slices.Equal(dev.calls, want) {
		t.Fatalf("got calls\n%s\nwant\n%s", strings.Join(dev.calls, "\n"), strings.Join(want, "\n"))
	}
	if len(r.Steps) != len(want) {
		t.Fatalf("got %d steps, want %d", len(r.Steps), len(want))
	}
	for _, s := range r.Steps {
		if s.Coerced() {
			t.Errorf("step %s coerced %v -> %v", s.Name, s.Requested, s.Actual)
		}
	}
	for _, line := range []string{
		"Setting RX Rate: 2.5 Msps...",
		"Actual TX Freq: 915 MHz...",
		"Setting TX Gain: 20.5 dB...",
		"Actual Clock Source: external...",
		"Samples per buffer: 10000, wire format: sc16",
	} {
		if !strings.Contains(out.String(), line) {
			t.Errorf("output missing %q:\n%s", line, out.String())
		}
	}
}

func TestConfigureSkipsUnset(t *testing.T) {
	dev := &fakeDevice{}
	if _, err := NewConfigurator(dev, DefaultOptions()).Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	want := []string{
		"clock internal",
		"rate RX 1e+06",
		"rate TX 1e+06",
		"tune RX 0",
		"tune TX 0",
		"gain RX 0",
		"gain TX 0",
	}
	if !slices.Equal(dev.calls, want) {
		t.Fatalf("got calls %q, want %q", dev.calls, want)
	}
}

func TestConfigureStopsOnFailure(t *testing.T) {
	dev := &fakeDevice{failOn: "rate TX 1e+06"}
	r, err := NewConfigurator(dev, DefaultOptions()).Run(context.Background())
	if !errors.Is(err, errFake) {
		t.Fatalf("expected fake failure, got %v", err)
	}
	if !strings.Contains(err.Error(), "TX Rate") {
		t.Fatalf("error %q does not name the step", err)
	}
	if last := dev.calls[len(dev.calls)-1]; last != dev.failOn {
		t.Fatalf("calls continued after failure: %q", dev.calls)
	}
	failed := r.Failed()
	if failed == nil || failed.Name != "TX Rate" {
		t.Fatalf("got failed step %+v", failed)
	}
}

func TestConfigureBadSubdev(t *testing.T) {
	opts := DefaultOptions()
	opts.Subdev = "A"
	dev := &fakeDevice{}
	if _, err := NewConfigurator(dev, opts).Run(context.Background()); !errors.Is(err, radio.ErrBadSubdevSpec) {
		t.Fatalf("expected ErrBadSubdevSpec, got %v", err)
	}
	if len(dev.calls) != 0 {
		t.Fatalf("device touched: %q", dev.calls)
	}
}

func TestConfigureCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dev := &fakeDevice{}
	if _, err := NewConfigurator(dev, DefaultOptions()).Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(dev.calls) != 0 {
		t.Fatalf("device touched after cancel: %q", dev.calls)
	}
}

func TestConfigureCoerced(t *testing.T) {
	opts := DefaultOptions()
	opts.RxGain = 10.3
	dev := &fakeDevice{gainFn: func(db float64) float64 { return float64(int(db)) }}
	r, err := NewConfigurator(dev, opts).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	var coerced []string
	for _, s := range r.Steps {
		if s.Coerced() {
			coerced = append(coerced, s.Name)
		}
	}
	if !slices.Equal(coerced, []string{"RX Gain"}) {
		t.Fatalf("got coerced steps %q", coerced)
	}
}

func TestConfigureSim(t *testing.T) {
	dev, err := radio.Open(context.Background(), "type=sim")
	if err != nil {
		t.Fatal(err)
	}
	defer dev.Close()
	opts := DefaultOptions()
	opts.SampleRate = 3e6
	opts.Freq = 2.4501e9
	opts.RxAntenna = "TX/RX"
	r, err := NewConfigurator(dev, opts).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	// 32 MHz master clock only divides down to 32/11 MHz near 3 MHz.
	if rate := dev.Rate(radio.RX); rate != 32e6/11 {
		t.Fatalf("got rx rate %v", rate)
	}
	if f := dev.Freq(radio.TX); f != opts.Freq {
		t.Fatalf("got tx freq %v", f)
	}
	if r.Steps[1].Name != "RX Rate" || !r.Steps[1].Coerced() {
		t.Fatalf("expected coerced RX Rate step, got %+v", r.Steps[1])
	}
}
