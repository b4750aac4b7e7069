package radio

import (
	"context"
	"errors"
	"math"
	"testing"
)

func openSim(t *testing.T, args string) Device {
	dev, err := Open(context.TODO(), args)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { dev.Close() })
	return dev
}

func TestSimRateCoercion(t *testing.T) {
	dev := openSim(t, "type=sim")
	tests := []struct {
		rate float64
		want float64
	}{
		{1e6, 32e6 / 32},
		{3e6, 32e6 / 11},
		{64e6, 32e6},
		{1, 32e6 / 512},
	}
	for _, tt := range tests {
		if err := dev.SetRate(RX, tt.rate); err != nil {
			t.Fatal(err)
		}
		if got := dev.Rate(RX); got != tt.want {
			t.Errorf("rate %v: got %v, want %v", tt.rate, got, tt.want)
		}
	}
	if err := dev.SetRate(TX, 0); !errors.Is(err, ErrRateOutOfRange) {
		t.Fatalf("expected ErrRateOutOfRange, got %v", err)
	}
}

func TestSimMasterClockArg(t *testing.T) {
	dev := openSim(t, "type=sim,master_clock_rate=30.72e6")
	if err := dev.SetRate(TX, 1e6); err != nil {
		t.Fatal(err)
	}
	if got, want := dev.Rate(TX), 30.72e6/31; got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
	if _, err := Open(context.TODO(), "type=sim,master_clock_rate=abc"); err == nil {
		t.Fatal("expected error on bad master clock")
	}
}

func TestSimTune(t *testing.T) {
	dev := openSim(t, "type=sim")
	if err := dev.SetRate(RX, 1e6); err != nil {
		t.Fatal(err)
	}
	tr, err := dev.Tune(RX, TuneRequest{TargetFreq: 915.03e6})
	if err != nil {
		t.Fatal(err)
	}
	if tr.ActualRFFreq != 915e6 {
		t.Fatalf("expected LO on 100kHz step, got %+v", tr)
	}
	if math.Abs(tr.Freq()-915.03e6) > 1e-3 || math.Abs(dev.Freq(RX)-915.03e6) > 1e-3 {
		t.Fatalf("expected DSP to correct residual, got %+v", tr)
	}

	// Below range clips to the minimum frequency.
	tr, err = dev.Tune(TX, TuneRequest{TargetFreq: 0})
	if err != nil {
		t.Fatal(err)
	}
	if dev.Freq(TX) != simMinHz || tr.ActualDSPFreq != 0 {
		t.Fatalf("expected clip to %v, got %+v", simMinHz, tr)
	}

	// LO offset moves the RF part, DSP makes up the rest.
	tr, err = dev.Tune(RX, TuneRequest{TargetFreq: 100e6, LOOffset: 200e3})
	if err != nil {
		t.Fatal(err)
	}
	if tr.ActualRFFreq != 100.2e6 || math.Abs(tr.Freq()-100e6) > 1e-3 {
		t.Fatalf("got %+v", tr)
	}
}

func TestSimGain(t *testing.T) {
	dev := openSim(t, "type=sim")
	tests := []struct {
		d    Direction
		db   float64
		want float64
	}{
		{RX, 10.4, 10},
		{RX, 100, 76},
		{RX, -5, 0},
		{TX, 10.1, 10},
		{TX, 10.2, 10.25},
		{TX, 200, 89.75},
	}
	for _, tt := range tests {
		if err := dev.SetGain(tt.d, tt.db); err != nil {
			t.Fatal(err)
		}
		if got := dev.Gain(tt.d); got != tt.want {
			t.Errorf("%v gain %v: got %v, want %v", tt.d, tt.db, got, tt.want)
		}
	}
}

func TestSimAntennaAndClock(t *testing.T) {
	dev := openSim(t, "type=sim")
	if dev.Antenna(RX) != "RX2" || dev.Antenna(TX) != "TX/RX" {
		t.Fatalf("unexpected default antennas %q %q", dev.Antenna(RX), dev.Antenna(TX))
	}
	if err := dev.SetAntenna(RX, "TX/RX"); err != nil {
		t.Fatal(err)
	}
	if dev.Antenna(RX) != "TX/RX" {
		t.Fatalf("antenna not applied")
	}
	if err := dev.SetAntenna(TX, "RX2"); !errors.Is(err, ErrUnknownAntenna) {
		t.Fatalf("expected ErrUnknownAntenna, got %v", err)
	}
	if err := dev.SetClockSource("external"); err != nil {
		t.Fatal(err)
	}
	if dev.ClockSource() != "external" {
		t.Fatalf("clock source not applied")
	}
	if err := dev.SetClockSource("mimo"); !errors.Is(err, ErrUnknownClockSource) {
		t.Fatalf("expected ErrUnknownClockSource, got %v", err)
	}
}

func TestSimSubdev(t *testing.T) {
	dev := openSim(t, "type=sim")
	spec, err := ParseSubdevSpec("A:A A:B")
	if err != nil {
		t.Fatal(err)
	}
	if err := dev.SetSubdevSpec(RX, spec); err != nil {
		t.Fatal(err)
	}
	if got := dev.SubdevSpec(RX).String(); got != "A:A A:B" {
		t.Fatalf("got subdev %q", got)
	}
	spec, _ = ParseSubdevSpec("B:0")
	if err := dev.SetSubdevSpec(TX, spec); !errors.Is(err, ErrBadSubdevSpec) {
		t.Fatalf("expected ErrBadSubdevSpec, got %v", err)
	}
}

func TestSimClosed(t *testing.T) {
	dev, err := Open(context.TODO(), "type=sim")
	if err != nil {
		t.Fatal(err)
	}
	dev.Close()
	if err := dev.SetGain(RX, 1); err == nil {
		t.Fatal("expected error on closed device")
	}
}
