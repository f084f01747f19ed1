package main

import (
	"os"
	"os/signal"
	"syscall"

	redisAdapter "github.com/aretw0/sagalens/pkg/adapters/redis"
	"github.com/spf13/cobra"
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Print the messages monitors publish on redis",
	Long: `Subscribes to the configured redis channel as an inspection client. On
subscribing it signals readiness, so monitors flush their buffered snapshots.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		printMsg, err := newPrinter(cmd.OutOrStdout(), format)
		if err != nil {
			return err
		}

		codec, err := redisAdapter.CodecByName(cfg.Redis.Codec)
		if err != nil {
			return err
		}
		client := redisAdapter.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer client.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sub := redisAdapter.NewSubscriber(client,
			redisAdapter.WithChannel(cfg.Redis.Channel),
			redisAdapter.WithPubSubCodec(codec),
			redisAdapter.WithLogger(cfg.Logger()),
		)
		err = sub.Listen(ctx, func(env redisAdapter.Envelope) error {
			return printMsg(env.Message())
		})
		if ctx.Err() != nil {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(listenCmd)
	listenCmd.Flags().StringP("format", "f", formatAuto, "Output format: auto, json or markdown")
}
