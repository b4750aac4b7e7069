package bentpipe

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

var ErrBadSampleRate = errors.New("please specify a valid sample rate")

// Options are the settings of one configuration run. They are read once at
// startup and forwarded unchanged to the device.
type Options struct {
	Args             string  `yaml:"args" json:"args"`
	SamplesPerBuffer uint64  `yaml:"spb" json:"spb"`
	SampleRate       float64 `yaml:"samp_rate" json:"samp_rate"`
	Freq             float64 `yaml:"freq" json:"freq"`
	TxGain           float64 `yaml:"tx_gain" json:"tx_gain"`
	RxGain           float64 `yaml:"rx_gain" json:"rx_gain"`
	TxAntenna        string  `yaml:"tx_ant" json:"tx_ant,omitempty"`
	RxAntenna        string  `yaml:"rx_ant" json:"rx_ant,omitempty"`
	Subdev           string  `yaml:"subdev" json:"subdev,omitempty"`
	Ref              string  `yaml:"ref" json:"ref"`
	WireFormat       string  `yaml:"wirefmt" json:"wirefmt"`
}

func DefaultOptions() Options {
	return Options{
		SamplesPerBuffer: 10000,
		SampleRate:       1e6,
		Ref:              "internal",
		WireFormat:       "sc16",
	}
}

// Validate only checks the sample rate; everything else is left for the
// device to accept or reject.
func (o *Options) Validate() error {
	if !(o.SampleRate > 0) || math.IsInf(o.SampleRate, 0) {
		return fmt.Errorf("%w: %v", ErrBadSampleRate, o.SampleRate)
	}
	return nil
}

// LoadOptions reads a YAML options file on top of base. Keys missing from
// the file keep the base value.
func LoadOptions(path string, base Options) (Options, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("reading options: %w", err)
	}
	opts := base
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
		return base, fmt.Errorf("parsing options %s: %w", path, err)
	}
	return opts, nil
}
