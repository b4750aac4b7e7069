package radio

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kr/pty"
)

var rtlFreqs = Range{Min: 24e6, Max: 1766e6}
var minRate = uint32(225001)
var maxRate = uint32(3200000)

const rtlAntenna = "RX"

// rtlSDR drives an RTL2832 dongle through rtl_tcp. It is receive only.
// rtl_tcp cannot report settings back, so the last applied values are kept.
type rtlSDR struct {
	*RTLTCPSDR
	addr string

	// set when rtl_tcp was spawned by us
	cmd  *exec.Cmd
	fpty *os.File
	// device serial number or device index
	serialNumber string

	lastCenter     uint32
	lastSampleRate uint32
	lastGain       int
	lastPPM        int32

	mu sync.Mutex
}

// rtlTCPDriver connects to an already running rtl_tcp server.
type rtlTCPDriver struct{}

// rtlSDRDriver spawns rtl_tcp for a locally attached dongle.
type rtlSDRDriver struct{}

func init() {
	Register("rtltcp", rtlTCPDriver{})
	Register("rtlsdr", rtlSDRDriver{})
}

func (rtlTCPDriver) Find(ctx context.Context, hint Args) ([]HWInfo, error) {
	addr, ok := hint["addr"]
	if !ok {
		return nil, nil
	}
	args := Args{"type": "rtltcp", "addr": addr}
	return []HWInfo{{Driver: "rtltcp", Id: addr, Name: "rtl_tcp server", Args: args}}, nil
}

func (rtlTCPDriver) Open(ctx context.Context, args Args) (Device, error) {
	addr := args.Get("addr", "127.0.0.1:1234")
	s := &rtlSDR{addr: addr, serialNumber: addr}
	if err := s.connect(ctx); err != nil {
		return nil, err
	}
	if err := s.applyArgs(args); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (rtlSDRDriver) Find(ctx context.Context, hint Args) ([]HWInfo, error) {
	if _, err := exec.LookPath("rtl_test"); err != nil {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	// An out of range index makes rtl_test print the device listing and
	// exit without sampling.
	out, _ := exec.CommandContext(ctx, "rtl_test", "-d", "9999").CombinedOutput()
	hws := parseRTLTest(string(out))
	if ser := hint["serial"]; ser != "" {
		var ret []HWInfo
		for _, hw := range hws {
			if hw.Id == ser || hw.Args["serial"] == ser {
				ret = append(ret, hw)
			}
		}
		hws = ret
	}
	return hws, nil
}

// "  0:  Realtek, RTL2838UHIDIR, SN: 00000001"
var rtlTestLine = regexp.MustCompile(`^\s*(\d+):\s+(.*?),\s*SN:\s*(\S*)\s*$`)

func parseRTLTest(out string) (ret []HWInfo) {
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		m := rtlTestLine.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		idx, name, ser := m[1], m[2], m[3]
		args := Args{"type": "rtlsdr", "serial": idx}
		if ser != "" {
			args["serial"] = ser
		}
		ret = append(ret, HWInfo{Driver: "rtlsdr", Id: idx, Name: name, Args: args})
	}
	return ret
}

func (rtlSDRDriver) Open(ctx context.Context, args Args) (Device, error) {
	ser := args.Get("serial", "0")
	port := args.Get("port", "12345")
	addr := net.JoinHostPort("127.0.0.1", port)
	cmd := exec.CommandContext(ctx, "rtl_tcp", "-a", "127.0.0.1", "-p", port, "-d", ser)
	fpty, err := pty.Start(cmd)
	if err != nil {
		return nil, fmt.Errorf("starting rtl_tcp: %w", err)
	}
	s := &rtlSDR{addr: addr, cmd: cmd, fpty: fpty, serialNumber: ser}
	if err := waitListening(ctx, fpty, 5*time.Second); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.connect(ctx); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.applyArgs(args); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// waitListening reads the rtl_tcp console until it reports that it is
// listening, then keeps draining it in the background. The pty line-buffers
// the child so each line arrives whole.
func waitListening(ctx context.Context, r io.Reader, timeout time.Duration) error {
	readyc := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(r)
		ready, last := false, ""
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			slog.Debug("rtl_tcp", slog.String("line", line))
			if line != "" {
				last = line
			}
			if !ready && strings.Contains(line, "listening...") {
				ready = true
				readyc <- nil
			}
		}
		if !ready {
			// A pty read fails with EIO once the child is gone.
			readyc <- fmt.Errorf("rtl_tcp exited before listening (last output %q)", last)
		}
	}()
	select {
	case err := <-readyc:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("rtl_tcp did not start listening within %v", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *rtlSDR) connect(ctx context.Context) (err error) {
	for i := 0; i < 10; i++ {
		sdr := &RTLTCPSDR{}
		if err = sdr.Connect(ctx, s.addr); err == nil {
			s.RTLTCPSDR = sdr
			return nil
		}
		slog.Debug("rtl_tcp connect", slog.String("addr", s.addr), slog.Any("err", err))
		select {
		case <-time.After(100 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// applyArgs handles the dongle specific device args.
func (s *rtlSDR) applyArgs(args Args) error {
	if v, ok := args["ppm"]; ok {
		ppm, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return fmt.Errorf("bad ppm %q: %w", v, err)
		}
		if err := s.SetFreqCorrection(int32(ppm)); err != nil {
			return err
		}
		s.lastPPM = int32(ppm)
	}
	if _, ok := args["bias"]; ok {
		if err := s.SetBiasTee(true); err != nil {
			return err
		}
	}
	if _, ok := args["agc"]; ok {
		if err := s.SetAGCMode(true); err != nil {
			return err
		}
	}
	if _, ok := args["offset"]; ok {
		if err := s.SetOffsetTuning(true); err != nil {
			return err
		}
	}
	if _, ok := args["direct"]; ok {
		if err := s.SetDirectSampling(2); err != nil {
			return err
		}
	}
	return nil
}

func (s *rtlSDR) String() string {
	return fmt.Sprintf("rtl-sdr %s (tuner %v, %d gains, %d ppm) via rtl_tcp %s",
		s.serialNumber, s.Info.Tuner, s.Info.GainCount, s.lastPPM, s.addr)
}

func errTX(op string) error {
	return fmt.Errorf("rtl-sdr %s on TX: %w", op, ErrNotSupported)
}

func (s *rtlSDR) SetClockSource(src string) error {
	if src != "internal" {
		return fmt.Errorf("%w: %q (valid: [internal])", ErrUnknownClockSource, src)
	}
	return nil
}

func (s *rtlSDR) ClockSource() string { return "internal" }

func (s *rtlSDR) SetSubdevSpec(d Direction, spec SubdevSpec) error {
	if d == TX {
		return errTX("subdev")
	}
	if len(spec) != 1 || spec[0] != (SubdevPair{"A", "0"}) {
		return fmt.Errorf("%w: %q (valid: A:0)", ErrBadSubdevSpec, spec.String())
	}
	return nil
}

func (s *rtlSDR) SubdevSpec(d Direction) SubdevSpec {
	if d == TX {
		return nil
	}
	return SubdevSpec{{"A", "0"}}
}

func isValidRate(rate uint32) bool {
	return !((rate <= 225000) || (rate > 3200000) ||
		((rate > 300000) && (rate <= 900000)))
}

func (s *rtlSDR) SetRate(d Direction, rate float64) error {
	if d == TX {
		return errTX("rate")
	}
	if math.IsNaN(rate) || rate < 0 || rate > math.MaxUint32 {
		return fmt.Errorf("%w: %v", ErrRateOutOfRange, rate)
	}
	r := uint32(math.Round(rate))
	if !isValidRate(r) {
		return fmt.Errorf("%w: %d (valid: %d-300000, 900001-%d)", ErrRateOutOfRange, r, minRate, maxRate)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastSampleRate == r {
		return nil
	}
	if err := s.SetSampleRate(r); err != nil {
		return err
	}
	s.lastSampleRate = r
	return nil
}

func (s *rtlSDR) Rate(d Direction) float64 {
	if d == TX {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return float64(s.lastSampleRate)
}

func (s *rtlSDR) Tune(d Direction, req TuneRequest) (TuneResult, error) {
	if d == TX {
		return TuneResult{}, errTX("tune")
	}
	rf := req.TargetFreq + req.LOOffset
	if !rtlFreqs.Contains(rf) {
		return TuneResult{}, fmt.Errorf("%w: %v (valid: %v)", ErrFrequencyOutOfRange, rf, rtlFreqs)
	}
	cent := uint32(math.Round(rf))
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastCenter != cent {
		if err := s.SetCenterFreq(cent); err != nil {
			return TuneResult{}, err
		}
		s.lastCenter = cent
	}
	// No DSP stage; the offset is left for the host to mix out.
	return TuneResult{TargetRFFreq: rf, ActualRFFreq: float64(cent)}, nil
}

func (s *rtlSDR) Freq(d Direction) float64 {
	if d == TX {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return float64(s.lastCenter)
}

// nearestGain picks the table entry closest to the requested tenths of dB.
func nearestGain(gains []int, tenths int) int {
	best := gains[0]
	for _, g := range gains[1:] {
		if abs(g-tenths) < abs(best-tenths) {
			best = g
		}
	}
	return best
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func (s *rtlSDR) SetGain(d Direction, db float64) error {
	if d == TX {
		return errTX("gain")
	}
	if math.IsNaN(db) {
		return fmt.Errorf("%w: NaN", ErrGainOutOfRange)
	}
	g := nearestGain(s.Info.Tuner.Gains(), int(math.Round(db*10)))
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.SetGainMode(false); err != nil {
		return err
	}
	if err := s.RTLTCPSDR.SetGain(int32(g)); err != nil {
		return err
	}
	s.lastGain = g
	return nil
}

func (s *rtlSDR) Gain(d Direction) float64 {
	if d == TX {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return float64(s.lastGain) / 10
}

func (s *rtlSDR) SetAntenna(d Direction, name string) error {
	if d == TX {
		return errTX("antenna")
	}
	if name != rtlAntenna {
		return fmt.Errorf("%w: RX antenna %q (valid: [%s])", ErrUnknownAntenna, name, rtlAntenna)
	}
	return nil
}

func (s *rtlSDR) Antenna(d Direction) string {
	if d == TX {
		return ""
	}
	return rtlAntenna
}

func (s *rtlSDR) Close() (err error) {
	if s.RTLTCPSDR != nil {
		err = s.RTLTCPSDR.Close()
		s.RTLTCPSDR = nil
	}
	if s.cmd != nil {
		s.cmd.Process.Kill()
		s.fpty.Close()
		s.cmd.Wait()
	}
	return err
}
