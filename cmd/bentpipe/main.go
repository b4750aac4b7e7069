package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/chzchzchz/bentpipe/bentpipe"
	"github.com/chzchzchz/bentpipe/radio"
	"github.com/chzchzchz/bentpipe/store"
)

const (
	exitOK      = 0
	exitFailure = 1
	// 8-bit truncation of ^0
	exitUsage = 255
)

type cli struct {
	stdout, stderr io.Writer
	logger         *slog.Logger
	level          *slog.LevelVar

	config   string
	record   string
	logLevel string

	helped bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	level := new(slog.LevelVar)
	level.Set(slog.LevelWarn)
	c := &cli{
		stdout: stdout,
		stderr: stderr,
		logger: slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})),
		level:  level,
	}
	slog.SetDefault(c.logger)

	root := newRootCmd(c)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	switch {
	case c.helped:
		return exitUsage
	case errors.Is(err, bentpipe.ErrBadSampleRate):
		fmt.Fprintln(stderr, "Please specify a valid sample rate")
		return exitUsage
	case err != nil:
		c.logger.Error("bentpipe failed", slog.Any("err", err))
		return exitFailure
	}
	return exitOK
}

// bindOptions registers one flag per option, defaulting to the values in o.
func bindOptions(fs *pflag.FlagSet, o *bentpipe.Options) {
	fs.StringVar(&o.Args, "args", o.Args, "single device address args")
	fs.Uint64Var(&o.SamplesPerBuffer, "spb", o.SamplesPerBuffer, "samples per buffer")
	fs.Float64Var(&o.SampleRate, "samp_rate", o.SampleRate, "rate of incoming and outgoing samples")
	fs.Float64Var(&o.Freq, "freq", o.Freq, "RF center frequency in Hz")
	fs.Float64Var(&o.TxGain, "tx_gain", o.TxGain, "gain for the TX RF chain")
	fs.Float64Var(&o.RxGain, "rx_gain", o.RxGain, "gain for the RX RF chain")
	fs.StringVar(&o.TxAntenna, "tx_ant", o.TxAntenna, "TX antenna selection")
	fs.StringVar(&o.RxAntenna, "rx_ant", o.RxAntenna, "RX antenna selection")
	fs.StringVar(&o.Subdev, "subdev", o.Subdev, "subdevice specification")
	fs.StringVar(&o.Ref, "ref", o.Ref, "reference source (internal, external, gpsdo)")
	fs.StringVar(&o.WireFormat, "wirefmt", o.WireFormat, "wire format (sc8 or sc16)")
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "bentpipe",
		Short:         "Configure an SDR to receive and retransmit",
		Long:          "Receives samples and then retransmits them.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := c.level.UnmarshalText([]byte(c.logLevel)); err != nil {
				return fmt.Errorf("bad --log-level: %w", err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := c.options(cmd.Flags())
			if err != nil {
				return err
			}
			return c.configure(cmd.Context(), opts)
		},
	}
	defHelp := root.HelpFunc()
	root.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		c.helped = true
		defHelp(cmd, args)
	})

	flagOpts := bentpipe.DefaultOptions()
	bindOptions(root.Flags(), &flagOpts)
	root.Flags().StringVar(&c.config, "config", "", "YAML options file; flags given on the command line override it")

	pf := root.PersistentFlags()
	pf.StringVar(&c.record, "record", "", "sqlite run history database")
	pf.StringVar(&c.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(newFindCmd(c), newHistoryCmd(c))
	return root
}

// options merges defaults, the config file, then flags set on the command line.
func (c *cli) options(fs *pflag.FlagSet) (bentpipe.Options, error) {
	opts := bentpipe.DefaultOptions()
	if c.config != "" {
		var err error
		if opts, err = bentpipe.LoadOptions(c.config, opts); err != nil {
			return opts, err
		}
	}
	merged := pflag.NewFlagSet("merged", pflag.ContinueOnError)
	bindOptions(merged, &opts)
	var err error
	fs.Visit(func(f *pflag.Flag) {
		if err != nil || merged.Lookup(f.Name) == nil {
			return
		}
		err = merged.Set(f.Name, f.Value.String())
	})
	return opts, err
}

func (c *cli) configure(ctx context.Context, opts bentpipe.Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	c.logger.Debug("options", slog.Any("opts", opts))

	fmt.Fprintf(c.stdout, "\nCreating the device with: %s...\n", opts.Args)
	start := time.Now()
	dev, err := radio.Open(ctx, opts.Args)
	if err != nil {
		return fmt.Errorf("opening device: %w", err)
	}
	defer dev.Close()
	fmt.Fprintf(c.stdout, "Using Device: %s\n\n", dev)

	cfg := bentpipe.NewConfigurator(dev, opts,
		bentpipe.WithLogger(c.logger),
		bentpipe.WithOutput(c.stdout))
	r, runErr := cfg.Run(ctx)
	if c.record != "" {
		// Record interrupted runs too.
		if err := c.recordRun(context.WithoutCancel(ctx), start, opts, r, runErr); err != nil {
			c.logger.Warn("could not record run", slog.String("db", c.record), slog.Any("err", err))
		}
	}
	if runErr != nil {
		return runErr
	}
	fmt.Fprintf(c.stdout, "\nDone!\n")
	return nil
}

func (c *cli) recordRun(ctx context.Context, start time.Time, opts bentpipe.Options, r *bentpipe.Report, runErr error) error {
	optsJSON, err := json.Marshal(opts)
	if err != nil {
		return err
	}
	stepsJSON, err := json.Marshal(r.Steps)
	if err != nil {
		return err
	}
	sess := store.Session{
		StartTime: start,
		Device:    r.Device,
		Args:      opts.Args,
		Options:   optsJSON,
		Steps:     stepsJSON,
	}
	if runErr != nil {
		sess.Err = runErr.Error()
	}
	ss := store.NewSessionStore(c.record)
	defer ss.Close()
	id, err := ss.Record(ctx, sess)
	if err != nil {
		return err
	}
	c.logger.Info("recorded run", slog.Int64("id", id), slog.String("db", c.record))
	return nil
}
