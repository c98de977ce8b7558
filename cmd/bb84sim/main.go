// bb84sim simulates BB84 quantum key distribution rounds.
//
//	bb84sim round --n 256 --sample-frac 0.25 --seed 42 --eve-rate 1
//	bb84sim run --config batch.yaml --out records.pb --metrics-addr :9100
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type rootOpts struct {
	logLevel string
	logJSON  bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOpts{}
	root := &cobra.Command{
		Use:          "bb84sim",
		Short:        "Simulate BB84 quantum key distribution",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	root.PersistentFlags().BoolVar(&opts.logJSON, "log-json", false, "Emit logs as JSON")
	root.AddCommand(newRoundCmd(), newRunCmd(opts))
	return root
}

// logger builds the slog logger selected by the persistent flags. Logs go to
// stderr so stdout carries only results.
func (o *rootOpts) logger(cmd *cobra.Command) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(o.logLevel))); err != nil {
		return nil, fmt.Errorf("parsing --log-level: %w", err)
	}
	hopts := &slog.HandlerOptions{Level: level}
	w := cmd.ErrOrStderr()
	if o.logJSON {
		return slog.New(slog.NewJSONHandler(w, hopts)), nil
	}
	return slog.New(slog.NewTextHandler(w, hopts)), nil
}
