// Command ingest loads WhatsApp payload files from a directory into the
// store, once or continuously.
package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tbourn/wa-inbox/internal/app"
	"github.com/tbourn/wa-inbox/internal/config"
	"github.com/tbourn/wa-inbox/internal/ingest"
	"github.com/tbourn/wa-inbox/internal/sysutil"
)

var dirFlag string

func main() {
	root := &cobra.Command{
		Use:          "ingest",
		Short:        "Load WhatsApp webhook payload files into the inbox store",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&dirFlag, "dir", "d", "", "payload directory (default: PAYLOADS_DIR)")

	root.AddCommand(runCmd())
	root.AddCommand(watchCmd())
	root.AddCommand(retryCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run [dir]",
		Short: "Ingest every payload file in the directory once",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				sum, err := ingest.ScanDir(ctx, payloadDir(a.Config, args), a.Ingest)
				if err != nil {
					return err
				}
				return printJSON(cmd, sum)
			})
		},
	}
}

func watchCmd() *cobra.Command {
	var noScan bool
	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Ingest payload files as they appear, until interrupted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				go a.RunRetryLoop(ctx)
				w := &ingest.Watcher{
					Dir:       payloadDir(a.Config, args),
					Ingest:    a.Ingest,
					ScanFirst: !noScan,
				}
				sum, err := w.Run(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd, sum)
			})
		},
	}
	cmd.Flags().BoolVar(&noScan, "no-scan", false, "skip ingesting files already present")
	return cmd
}

func retryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry",
		Short: "Run one retry pass over deferred deliveries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				sum, err := a.RetryOnce(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd, sum)
			})
		},
	}
}

func withApp(parent context.Context, fn func(context.Context, *app.App) error) error {
	if parent == nil {
		parent = context.Background()
	}
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx, stop := sysutil.SignalContext(parent)
	defer stop()

	a, err := app.Bootstrap(ctx, cfg, app.Options{Component: "ingest", LogOutput: os.Stderr})
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(context.Background()); err != nil {
			log.Warn().Err(err).Msg("close failed")
		}
	}()
	return fn(ctx, a)
}

func payloadDir(cfg config.Config, args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return sysutil.FirstNonEmpty(dirFlag, cfg.PayloadsDir)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
