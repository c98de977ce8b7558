package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/qkdsim/bb84/go/bb84/record"
	"github.com/qkdsim/bb84/go/bb84/runner"
)

type runOpts struct {
	root        *rootOpts
	configPath  string
	rounds      int
	workers     int
	seed        int64
	out         string
	metricsAddr string
}

func newRunCmd(root *rootOpts) *cobra.Command {
	opts := &runOpts{root: root}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a batch of BB84 rounds in parallel and print a summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "YAML batch config; defaults are used if unset")
	f.IntVar(&opts.rounds, "rounds", 0, "Override the config's round count")
	f.IntVar(&opts.workers, "workers", 0, "Override the config's worker count")
	f.Int64Var(&opts.seed, "seed", 0, "Override the config's base seed")
	f.StringVarP(&opts.out, "out", "o", "", "Write length-delimited round records to this file")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address during the run")
	return cmd
}

// config loads the batch config and applies explicitly set flags over it.
func (o *runOpts) config(cmd *cobra.Command) (runner.Config, error) {
	cfg := runner.DefaultConfig()
	if o.configPath != "" {
		var err error
		if cfg, err = runner.LoadConfig(o.configPath); err != nil {
			return runner.Config{}, err
		}
	}
	f := cmd.Flags()
	if f.Changed("rounds") {
		cfg.Rounds = o.rounds
	}
	if f.Changed("workers") {
		cfg.Workers = o.workers
	}
	if f.Changed("seed") {
		cfg.Seed = o.seed
	}
	return cfg, cfg.Validate()
}

func (o *runOpts) run(cmd *cobra.Command) error {
	logger, err := o.root.logger(cmd)
	if err != nil {
		return err
	}
	cfg, err := o.config(cmd)
	if err != nil {
		return err
	}
	r, err := runner.New(cfg, runner.WithLogger(logger))
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if o.metricsAddr != "" {
		stop, err := serveMetrics(o.metricsAddr, logger)
		if err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			stop(sctx)
		}()
	}

	rep, err := r.Run(ctx)
	if err != nil {
		return err
	}
	if o.out != "" {
		if err := writeRecords(o.out, rep.Outcomes); err != nil {
			return err
		}
		logger.Info("wrote records", "path", o.out, "count", len(rep.Outcomes))
	}
	printSummary(cmd.OutOrStdout(), cfg, rep.Summary)
	return nil
}

// serveMetrics serves /metrics on addr until stop is called. stop waits for
// in-flight scrapes until its context is done.
func serveMetrics(addr string, logger *slog.Logger) (stop func(context.Context), err error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening for metrics: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", l.Addr().String())
	return func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("metrics server shutdown", "error", err)
		}
	}, nil
}

func writeRecords(path string, outcomes []runner.Outcome) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating records file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	w := record.NewWriter(f)
	for _, o := range outcomes {
		if err := w.Write(o.Record()); err != nil {
			return fmt.Errorf("writing round %d: %w", o.Index, err)
		}
	}
	return w.Flush()
}

func printSummary(w io.Writer, cfg runner.Config, s runner.Summary) {
	conf := cfg.Confidence
	if conf <= 0 {
		conf = 0.95
	}
	fmt.Fprintf(w, "rounds:       %d (accepted %d, rejected %d, aborted %d)\n", s.Rounds, s.Accepted, s.Rejected, s.Aborted)
	fmt.Fprintf(w, "mean qber:    %.4f (sd %.4f)\n", s.MeanQBER, s.StdQBER)
	fmt.Fprintf(w, "pooled qber:  %.4f (%g%% CI %.4f-%.4f)\n", s.PooledQBER, conf*100, s.PooledLo, s.PooledHi)
	fmt.Fprintf(w, "sent bits:    %d\n", s.SentBits)
	fmt.Fprintf(w, "sifted bits:  %d (rate %.4f)\n", s.SiftedBits, s.SiftRate)
	fmt.Fprintf(w, "key bits:     %d accepted of %d (rate %.4f)\n", s.AcceptedKeyBits, s.KeyBits, s.KeyRate)
}
