package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-eltako/internal/bridges/eltako"
	"github.com/nerrad567/gray-logic-eltako/internal/bus"
	"github.com/nerrad567/gray-logic-eltako/internal/capture"
	"github.com/nerrad567/gray-logic-eltako/internal/directory"
	"github.com/nerrad567/gray-logic-eltako/internal/enocean"
	"github.com/nerrad567/gray-logic-eltako/internal/infrastructure/config"
)

// replaySettleTimeout bounds the wait for queued events after the capture
// has been read.
const replaySettleTimeout = 5 * time.Second

func replayCommand(configPath *string) *cobra.Command {
	var useESP3 bool

	cmd := &cobra.Command{
		Use:   "replay FILE",
		Short: "Decode a recorded capture offline",
		Long: "Feed a capture made with sniff --record (or capture.enabled) through the\n" +
			"framer and decoder. With --config the configured devices are decoded by profile.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := directory.New()
			if *configPath != "" {
				cfg, err := config.Load(*configPath)
				if err != nil {
					return fmt.Errorf("loading config: %w", err)
				}
				// Registration problems are reported but do not stop a replay.
				dir, err = eltako.BuildDirectory(cfg.Devices, cfg.GetGatewayKind(), cfg.GetBaseID(), nil)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
				}
			}
			return replay(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0], useESP3, dir)
		},
	}
	cmd.Flags().BoolVar(&useESP3, "esp3", false, "Capture is ESP3 (default: as recorded, else ESP2)")

	return cmd
}

func replay(ctx context.Context, w, summary io.Writer, path string, useESP3 bool, dir *directory.Directory) error {
	r, err := capture.Open(path)
	if err != nil {
		return fmt.Errorf("opening capture: %w", err)
	}
	records, err := r.All()
	r.Close()
	if err != nil {
		return fmt.Errorf("reading capture: %w", err)
	}

	generation := enocean.ESP2
	if len(records) > 0 && records[0].Generation != "" {
		generation = enocean.Generation(records[0].Generation)
	}
	if useESP3 {
		generation = enocean.ESP3
	}

	// Replay runs faster than any bus, so the queue holds every possible event.
	session, err := bus.New(bus.Config{Generation: generation, QueueSize: maxEvents(records)}, dir)
	if err != nil {
		return err
	}
	printer := &eventPrinter{w: w}
	cancel := session.Subscribe(printer.print)
	defer cancel()

	port := capture.NewReplayPort(records)
	if err := session.Open(ctx, port); err != nil {
		return fmt.Errorf("opening session: %w", err)
	}

	var g errgroup.Group
	g.Go(func() error {
		defer session.Close()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-port.Drained():
		}
		return settle(ctx, session, printer)
	})
	if err := g.Wait(); err != nil {
		return err
	}

	st := session.Stats()
	fmt.Fprintf(summary, "%d records, %d frames: %d decoded, %d unresolved, %d skipped, %d frame errors\n",
		len(records), st.Rx, st.Decoded, st.Unresolved, st.Skipped, st.FrameErrors)
	return nil
}

// settle waits until every telegram the session produced has been printed.
func settle(ctx context.Context, session *bus.Session, printer *eventPrinter) error {
	deadline := time.Now().Add(replaySettleTimeout)
	for {
		st := session.Stats()
		want := st.Decoded + st.Unresolved + st.Skipped
		have := uint64(printer.count()) + st.Dropped
		if have >= want {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timed out waiting for %d events", want-have)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// maxEvents bounds the events a capture can produce: one per shortest frame.
func maxEvents(records []capture.Record) int {
	const shortestFrame = 7
	n := 0
	for _, r := range records {
		n += len(r.Data)
	}
	return n/shortestFrame + 16
}
