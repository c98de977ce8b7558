// Package runner executes batches of BB84 rounds in parallel and aggregates
// their statistics.
//
// Every round gets its own random source, derived from the base seed and
// the round index, and its own channel. Rounds share no mutable state, so a
// batch is reproducible for any worker count. Results are written into a
// pre-sized slice by index and need no locking.
//
// The acceptance policy lives here rather than in package bb84: a round whose
// error rate exceeds Config.MaxQBER is rejected, which is how an
// eavesdropper is detected.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/qkdsim/bb84/go/bb84"
	"github.com/qkdsim/bb84/go/bb84/photon"
	"github.com/qkdsim/bb84/go/bb84/record"
	"github.com/qkdsim/bb84/go/bb84/rng"
)

// A Verdict is the caller-side judgement of a round.
type Verdict int

const (
	// Accepted rounds distilled a key at a tolerable error rate.
	Accepted Verdict = iota
	// Rejected rounds were estimated but their error rate, or an empty key,
	// makes them unusable.
	Rejected
	// Aborted rounds sifted nothing.
	Aborted
)

func (v Verdict) String() string {
	switch v {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	case Aborted:
		return "aborted"
	}
	return fmt.Sprintf("Verdict(%d)", int(v))
}

// A ChannelFactory builds the channel for one round from that round's
// random source.
type ChannelFactory func(src *rng.Source) (photon.Channel, error)

// An Outcome is the result of one round of a batch.
type Outcome struct {
	Index   int
	Seed    int64
	ID      uuid.UUID
	Result  bb84.Result
	Verdict Verdict
	// Bound is the error rate compared against MaxQBER: the point estimate,
	// or its upper confidence bound.
	Bound    float64
	Duration time.Duration
}

// Record converts o into its persisted form.
func (o Outcome) Record() record.Record {
	return record.FromResult(o.ID, o.Index, o.Seed, o.Result)
}

// A Report is the result of a batch.
type Report struct {
	Outcomes []Outcome
	Summary  Summary
}

// A Runner runs batches of rounds. It is safe to call Run concurrently.
type Runner struct {
	cfg        Config
	protocol   *bb84.Protocol
	logger     *slog.Logger
	newChannel ChannelFactory
}

// An Option customizes a Runner.
type Option func(*Runner)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithChannelFactory overrides the channel built from Config.Channel.
func WithChannelFactory(f ChannelFactory) Option {
	return func(r *Runner) { r.newChannel = f }
}

// New returns a Runner for cfg, or an error if cfg is invalid.
func New(cfg Config, opts ...Option) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p, err := bb84.NewProtocol(bb84.Opts{NQubits: cfg.NQubits, SampleFrac: cfg.SampleFrac})
	if err != nil {
		return nil, fmt.Errorf("building protocol: %w", err)
	}
	r := &Runner{
		cfg:        cfg,
		protocol:   p,
		logger:     slog.Default(),
		newChannel: cfg.Channel.NewChannel,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Config returns the configuration r was built with.
func (r *Runner) Config() Config {
	return r.cfg
}

// Run executes cfg.Rounds rounds. The first channel failure cancels the
// remaining rounds and is returned.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	workers := r.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	start := time.Now()
	r.logger.Info("starting batch",
		"rounds", r.cfg.Rounds,
		"workers", workers,
		"seed", r.cfg.Seed,
		"n_qubits", r.protocol.NQubits(),
		"sample_frac", r.protocol.SampleFrac(),
		"channel", r.cfg.Channel.Kind)

	outcomes := make([]Outcome, r.cfg.Rounds)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < r.cfg.Rounds; i++ {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			o, err := r.RunRound(i)
			if err != nil {
				return err
			}
			outcomes[i] = o
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	sum := Summarize(outcomes, r.cfg.Confidence)
	r.logger.Info("batch complete",
		"rounds", sum.Rounds,
		"accepted", sum.Accepted,
		"rejected", sum.Rejected,
		"aborted", sum.Aborted,
		"mean_qber", sum.MeanQBER,
		"pooled_qber", sum.PooledQBER,
		"key_bits", sum.AcceptedKeyBits,
		"elapsed", time.Since(start))
	return Report{Outcomes: outcomes, Summary: sum}, nil
}

// RunRound executes the index-th round of the batch on its own derived
// source. It is deterministic in (Config.Seed, index).
func (r *Runner) RunRound(index int) (Outcome, error) {
	start := time.Now()
	src := rng.Derive(r.cfg.Seed, index)
	o := Outcome{
		Index: index,
		Seed:  src.Seed(),
		ID:    record.RoundID(r.cfg.Seed, index),
	}
	ch, err := r.newChannel(src.Split())
	if err != nil {
		return Outcome{}, fmt.Errorf("round %d: building channel: %w", index, err)
	}
	res, err := r.protocol.Negotiate(src, ch)
	if err != nil {
		channelFailures.Inc()
		r.logger.Error("round failed", "index", index, "id", o.ID, "error", err)
		return Outcome{}, fmt.Errorf("round %d: %w", index, err)
	}
	o.Result = res
	o.Verdict, o.Bound = r.judge(res)
	o.Duration = time.Since(start)
	r.observe(o)
	return o, nil
}

func (r *Runner) judge(res bb84.Result) (Verdict, float64) {
	if res.State == bb84.StateAborted {
		return Aborted, math.NaN()
	}
	bound := res.Estimate.QBER
	if r.cfg.Confidence > 0 {
		_, bound = res.Estimate.Bounds(r.cfg.Confidence)
	}
	if !res.Usable() || bound > r.cfg.MaxQBER {
		return Rejected, bound
	}
	return Accepted, bound
}

func (r *Runner) observe(o Outcome) {
	roundsTotal.WithLabelValues(o.Verdict.String()).Inc()
	roundDuration.Observe(o.Duration.Seconds())
	st := o.Result.Stats
	switch o.Verdict {
	case Aborted:
		r.logger.Warn("round aborted",
			"index", o.Index, "id", o.ID, "sent", st.Sent, "detected", st.Detected,
			"reason", o.Result.Abort)
		return
	case Rejected:
		r.logger.Warn("round rejected",
			"index", o.Index, "id", o.ID, "qber", st.QBER, "bound", o.Bound,
			"max_qber", r.cfg.MaxQBER, "key_bits", st.KeyBits)
	default:
		r.logger.Debug("round accepted",
			"index", o.Index, "id", o.ID, "sifted", st.Sifted, "qber", st.QBER,
			"key_bits", st.KeyBits)
	}
	roundQBER.Observe(st.QBER)
	keyBits.Observe(float64(st.KeyBits))
}
