package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-eltako/internal/bus"
	"github.com/nerrad567/gray-logic-eltako/internal/capture"
	"github.com/nerrad567/gray-logic-eltako/internal/directory"
	"github.com/nerrad567/gray-logic-eltako/internal/enocean"
	"github.com/nerrad567/gray-logic-eltako/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-eltako/internal/infrastructure/logging"
)

// sniffOptions holds the sniff command flags.
type sniffOptions struct {
	baud    int
	esp3    bool
	record  string
	verbose bool
}

func sniffCommand() *cobra.Command {
	var opts sniffOptions

	cmd := &cobra.Command{
		Use:   "sniff PORT",
		Short: "Print live bus traffic",
		Long: "Open the serial port read-only and print every telegram.\n" +
			"With --record the raw stream is also written to a CBOR capture file for replay.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return sniff(cmd, args[0], opts)
		},
	}
	cmd.Flags().IntVar(&opts.baud, "baud", enocean.BaudBus, "Line speed (9600 for the FAM-USB)")
	cmd.Flags().BoolVar(&opts.esp3, "esp3", false, "Gateway speaks ESP3 (USB300 and similar)")
	cmd.Flags().StringVar(&opts.record, "record", "", "Record the raw stream to this capture file")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log frame errors and skipped frames to stderr")

	return cmd
}

func sniff(cmd *cobra.Command, device string, opts sniffOptions) error {
	ctx := cmd.Context()

	generation := enocean.ESP2
	if opts.esp3 {
		generation = enocean.ESP3
	}

	port, err := bus.OpenSerial(bus.SerialConfig{Device: device, Baud: opts.baud})
	if err != nil {
		return fmt.Errorf("opening serial: %w", err)
	}

	var stream bus.Port = port
	var rec *capture.Writer
	if opts.record != "" {
		rec, err = capture.Create(opts.record, string(generation))
		if err != nil {
			port.Close()
			return fmt.Errorf("creating capture: %w", err)
		}
		defer rec.Close()
		stream = capture.Tap(port, rec, func(err error) {
			fmt.Fprintf(cmd.ErrOrStderr(), "capture write failed: %v\n", err)
		})
	}

	// An empty directory reports every telegram as unresolved.
	session, err := bus.New(bus.Config{Generation: generation}, directory.New())
	if err != nil {
		stream.Close()
		return err
	}
	if opts.verbose {
		log := logging.NewWithWriter(config.LoggingConfig{Level: "debug", Format: "text"}, version, cmd.ErrOrStderr())
		session.SetLogger(log.Component("bus"))
	}

	printer := &eventPrinter{w: cmd.OutOrStdout()}
	faulted := make(chan error, 1)
	cancel := session.Subscribe(func(ev bus.Event) {
		printer.print(ev)
		if e, ok := ev.(bus.EventSessionState); ok && e.State == bus.StateFaulted {
			select {
			case faulted <- e.Err:
			default:
			}
		}
	})
	defer cancel()

	if err := session.Open(ctx, stream); err != nil {
		stream.Close()
		return fmt.Errorf("opening session: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "sniffing %s at %d baud (%s), Ctrl+C to stop\n", device, opts.baud, generation)

	var sniffErr error
	select {
	case <-ctx.Done():
	case err := <-faulted:
		sniffErr = fmt.Errorf("serial port failed: %w", err)
	}
	session.Close()

	st := session.Stats()
	fmt.Fprintf(cmd.ErrOrStderr(), "%d frames, %d frame errors\n", st.Rx, st.FrameErrors)
	if rec != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "%d chunks recorded to %s\n", rec.Count(), opts.record)
	}
	return sniffErr
}
