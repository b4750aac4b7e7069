package radio

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
)

var dongleMagic = [...]byte{'R', 'T', 'L', '0'}

// RTLTCPSDR contains dongle information and an embedded tcp connection to the spectrum server.
type RTLTCPSDR struct {
	net.Conn
	Info DongleInfo
}

// Connect dials an rtl_tcp server at addr ("127.0.0.1:1234") and reads the
// dongle header. The user is responsible for closing this connection.
func (sdr *RTLTCPSDR) Connect(ctx context.Context, addr string) (err error) {
	var d net.Dialer
	if sdr.Conn, err = d.DialContext(ctx, "tcp", addr); err != nil {
		return fmt.Errorf("error connecting to spectrum server: %w", err)
	}
	defer func() {
		if err != nil {
			sdr.Close()
		}
	}()
	if err = binary.Read(sdr.Conn, binary.BigEndian, &sdr.Info); err != nil {
		return fmt.Errorf("error getting dongle information: %w", err)
	}
	if !sdr.Info.Valid() {
		return fmt.Errorf("bad magic number: %q", sdr.Info.Magic)
	}
	return nil
}

// DongleInfo is data pulled from the RTLTCPSDR on connection.
type DongleInfo struct {
	Magic     [4]byte
	Tuner     TunerType
	GainCount uint32 // Useful for setting gain by index
}

// Valid checks the received magic number matches the expected byte string 'RTL0'.
func (d DongleInfo) Valid() bool {
	return d.Magic == dongleMagic
}

// TunerType is the tuner chip id reported by librtlsdr.
type TunerType uint32

const (
	TunerUnknown TunerType = iota
	TunerE4000
	TunerFC0012
	TunerFC0013
	TunerFC2580
	TunerR820T
	TunerR828D
)

var tunerNames = map[TunerType]string{
	TunerUnknown: "unknown",
	TunerE4000:   "E4000",
	TunerFC0012:  "FC0012",
	TunerFC0013:  "FC0013",
	TunerFC2580:  "FC2580",
	TunerR820T:   "R820T",
	TunerR828D:   "R828D",
}

func (t TunerType) String() string {
	if s, ok := tunerNames[t]; ok {
		return s
	}
	return fmt.Sprintf("tuner(%d)", uint32(t))
}

// Gains returns the tuner gain table in tenths of dB, as librtlsdr does.
func (t TunerType) Gains() []int {
	switch t {
	case TunerE4000:
		return []int{-10, 15, 40, 65, 90, 115, 140, 165, 190, 215, 240, 290, 340, 420}
	case TunerFC0012:
		return []int{-99, -40, 71, 179, 192}
	case TunerFC0013:
		return []int{-99, -73, -65, -63, -60, -58, -54, 58, 61, 63, 65, 67, 68, 70, 71, 179, 181, 182, 184, 186, 188, 191, 197}
	case TunerR820T, TunerR828D:
		return []int{0, 9, 14, 27, 37, 77, 87, 125, 144, 157, 166, 197, 207, 229, 254, 280, 297, 328, 338, 364, 372, 386, 402, 421, 434, 439, 445, 480, 496}
	}
	return []int{0}
}

type command struct {
	command   uint8
	Parameter uint32
}

// Command constants defined in rtl_tcp.c
const (
	centerFreq = iota + 1
	sampleRate
	tunerGainMode
	tunerGain
	freqCorrection
	tunerIfGain
	testMode
	agcMode
	directSampling
	offsetTuning
	rtlXtalFreq
	tunerXtalFreq
	gainByIndex
	biasTee
)

func (sdr *RTLTCPSDR) do(cmd uint8, v uint32) error {
	return binary.Write(sdr.Conn, binary.BigEndian, command{cmd, v})
}

func (sdr *RTLTCPSDR) doBool(cmd uint8, state bool) error {
	if state {
		return sdr.do(cmd, 1)
	}
	return sdr.do(cmd, 0)
}

// Set the center frequency in Hz.
func (sdr *RTLTCPSDR) SetCenterFreq(freq uint32) error {
	return sdr.do(centerFreq, freq)
}

// Set the sample rate in Hz.
func (sdr *RTLTCPSDR) SetSampleRate(rate uint32) error {
	return sdr.do(sampleRate, rate)
}

// Set gain in tenths of dB. (197 => 19.7dB)
func (sdr *RTLTCPSDR) SetGain(gain int32) error {
	return sdr.do(tunerGain, uint32(gain))
}

// Set the Tuner AGC, true to enable.
func (sdr *RTLTCPSDR) SetGainMode(auto bool) error {
	return sdr.doBool(tunerGainMode, !auto)
}

// Set frequency correction in ppm.
func (sdr *RTLTCPSDR) SetFreqCorrection(ppm int32) error {
	return sdr.do(freqCorrection, uint32(ppm))
}

// SetAGCMode switches the RTL2832 digital AGC.
func (sdr *RTLTCPSDR) SetAGCMode(state bool) error {
	return sdr.doBool(agcMode, state)
}

// Set direct sampling mode. 0 = disabled, 1 = i-branch, 2 = q-branch.
func (sdr *RTLTCPSDR) SetDirectSampling(state uint32) error {
	return sdr.do(directSampling, state)
}

// SetOffsetTuning moves the tuner LO off center to dodge the DC spike.
// Only E4000 tuners support it.
func (sdr *RTLTCPSDR) SetOffsetTuning(state bool) error {
	return sdr.doBool(offsetTuning, state)
}

// Set the bias tee on the antenna input, true for enabled.
func (sdr *RTLTCPSDR) SetBiasTee(state bool) error {
	return sdr.doBool(biasTee, state)
}
