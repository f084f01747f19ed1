package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aretw0/sagalens"
	"github.com/aretw0/sagalens/pkg/adapters/memory"
	"github.com/aretw0/sagalens/pkg/ingest"
	"github.com/spf13/cobra"
)

var replayCmd = &cobra.Command{
	Use:   "replay <events.jsonl>",
	Short: "Replay a recorded event log and print the task snapshots",
	Long: `Feeds a JSON-lines log of lifecycle events to a fresh monitor, using the
recorded timestamps as the clock, and prints the messages it would ship.
Use "-" to read the log from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		except, _ := cmd.Flags().GetStringSlice("except")
		if !cmd.Flags().Changed("except") {
			except = cfg.Except
		}

		in := cmd.InOrStdin()
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}

		printMsg, err := newPrinter(cmd.OutOrStdout(), format)
		if err != nil {
			return err
		}

		stats, err := replay(cmd.Context(), in, printMsg, except)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "replayed %d events: %d effects, %d snapshots shipped, %d tasks unsettled\n",
			stats.events, stats.effects, stats.shipped, stats.unsettled)
		return nil
	},
}

type replayStats struct {
	events    int
	effects   int
	shipped   int
	unsettled int
}

func replay(ctx context.Context, in io.Reader, printMsg printFunc, except []string) (replayStats, error) {
	logger := cfg.Logger()
	clock := ingest.NewEventClock(time.Time{})
	transport := memory.NewTransport()

	mon := sagalens.New(
		sagalens.WithLogger(logger),
		sagalens.WithName(cfg.Name),
		sagalens.WithExcept(except...),
		sagalens.WithBufferLimit(0),
		sagalens.WithTransport(transport),
		sagalens.WithClock(clock.Now),
		sagalens.WithErrorHandler(func(err error) {
			logger.Warn("saga task failed", "err", err)
		}),
	)
	defer mon.Close()

	player := ingest.NewPlayer(mon, ingest.WithLogger(logger), ingest.WithEventClock(clock))
	n, err := player.Play(ctx, in)
	if err != nil {
		return replayStats{events: n}, err
	}
	// Logs recorded before the client connected end without client_ready.
	mon.ClientReady(ctx)

	for _, msg := range transport.Messages() {
		if err := printMsg(msg); err != nil {
			return replayStats{events: n}, err
		}
	}

	s := mon.Stats()
	return replayStats{
		events:    n,
		effects:   s.Effects,
		shipped:   s.Shipped,
		unsettled: player.Pending(),
	}, nil
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().StringP("format", "f", formatAuto, "Output format: auto, json or markdown")
	replayCmd.Flags().StringSlice("except", nil, "Task descriptions to leave out (defaults to the configured list)")
}
