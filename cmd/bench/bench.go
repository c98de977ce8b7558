// bench runs a batch of BB84 rounds for each entry in the cartesian product of
// a collection of tuning parameters, e.g. channel error rate and qubits sent
// per round, and outputs a CSV of batch statistics for each combination, e.g.
// pooled QBER and accepted key bits.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/template"

	flag "github.com/spf13/pflag"

	"github.com/qkdsim/bb84/go/bb84/runner"
)

var (
	n          = flag.IntSlice("n", []int{256}, "Qubits sent per round.")
	sampleFrac = flag.Float64Slice("sampleFrac", []float64{0.25}, "Fraction of the sifted key disclosed for QBER estimation.")
	errorRate  = flag.Float64Slice("errorRate", []float64{0}, "Probability the channel flips a bit when bases align.")
	lossRate   = flag.Float64Slice("lossRate", []float64{0}, "Probability a pulse is never detected.")
	eveRate    = flag.Float64Slice("eveRate", []float64{0}, "Fraction of pulses an intercept-resend attacker measures.")
	rounds     = flag.IntSlice("rounds", []int{100}, "Rounds per batch.")
	channel    = flag.String("channel", runner.ChannelSimulated, "Channel model, simulated or qubit.")
	seed       = flag.Int64("seed", 42, "Base seed of every batch.")
	maxQBER    = flag.Float64("maxQBER", 0.11, "Highest error rate at which a round's key is accepted.")
)

var (
	inputs  = []string{"n", "sampleFrac", "errorRate", "lossRate", "eveRate", "rounds"}
	columns = []string{"N", "SampleFrac", "ErrorRate", "LossRate", "EveRate", "Rounds",
		"Accepted", "Rejected", "Aborted", "MeanQBER", "PooledQBER", "SiftRate",
		"KeyBits", "KeyRate", "Succeeded"}
)

// An Experiment packages together the result of benchmarking a single
// parameterization for easy formatting.
type Experiment struct {
	// Fields corresponding to experiment parameters
	N                   int
	SampleFrac          float64
	ErrorRate, LossRate float64
	EveRate             float64
	Rounds              int

	// Fields corresponding to experiment results
	Accepted, Rejected, Aborted int
	MeanQBER                    float64
	PooledQBER                  float64
	SiftRate                    float64
	KeyBits                     int
	KeyRate                     float64
	Succeeded                   bool
}

func main() {
	flag.Parse()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	fmt.Println(header())
	tmpl := template.Must(template.New("line").Parse(lineTmpl()))
	var args [][]any
	for _, inp := range inputs {
		vals, err := lookupInput(flag.CommandLine, inp)
		if err != nil {
			logger.Error("reading input", "input", inp, "error", err)
			os.Exit(2)
		}
		args = append(args, vals)
	}
	applyCartesian(func(args []any) {
		exp := &Experiment{
			N:          args[inpIndex("n")].(int),
			SampleFrac: args[inpIndex("sampleFrac")].(float64),
			ErrorRate:  args[inpIndex("errorRate")].(float64),
			LossRate:   args[inpIndex("lossRate")].(float64),
			EveRate:    args[inpIndex("eveRate")].(float64),
			Rounds:     args[inpIndex("rounds")].(int),
		}
		if err := bench(context.Background(), exp, logger); err != nil {
			logger.Error("benching", "experiment", *exp, "error", err)
		}
		if err := tmpl.Execute(os.Stdout, exp); err != nil {
			logger.Error("BUG: could not fill in line template", "error", err)
			os.Exit(1)
		}
	}, args)
}

func inpIndex(v string) int {
	for i, inp := range inputs {
		if inp == v {
			return i
		}
	}
	return -1
}

func bench(ctx context.Context, exp *Experiment, logger *slog.Logger) error {
	cfg := runner.DefaultConfig()
	cfg.Rounds = exp.Rounds
	cfg.Seed = *seed
	cfg.NQubits = exp.N
	cfg.SampleFrac = exp.SampleFrac
	cfg.MaxQBER = *maxQBER
	cfg.Channel = runner.ChannelConfig{
		Kind:      *channel,
		ErrorRate: exp.ErrorRate,
		LossRate:  exp.LossRate,
		EveRate:   exp.EveRate,
	}
	r, err := runner.New(cfg, runner.WithLogger(logger))
	if err != nil {
		return err
	}
	rep, err := r.Run(ctx)
	if err != nil {
		return err
	}
	exp.record(rep.Summary)
	return nil
}

func (exp *Experiment) record(s runner.Summary) {
	exp.Accepted = s.Accepted
	exp.Rejected = s.Rejected
	exp.Aborted = s.Aborted
	exp.MeanQBER = s.MeanQBER
	exp.PooledQBER = s.PooledQBER
	exp.SiftRate = s.SiftRate
	exp.KeyBits = s.AcceptedKeyBits
	exp.KeyRate = s.KeyRate
	exp.Succeeded = true
}

func header() string {
	return strings.Join(columns, ", ")
}

func lineTmpl() string {
	var els []string
	for _, c := range columns {
		els = append(els, "{{."+c+"}}")
	}
	return strings.Join(els, ", ") + "\n"
}

func lookupInput(fs *flag.FlagSet, name string) ([]any, error) {
	var r []any
	if v, err := fs.GetIntSlice(name); err == nil {
		for _, val := range v {
			r = append(r, val)
		}
	} else if v, err := fs.GetFloat64Slice(name); err == nil {
		for _, val := range v {
			r = append(r, val)
		}
	} else {
		return nil, fmt.Errorf("unknown type for input %s", name)
	}
	return r, nil
}

func applyCartesian(f func([]any), args [][]any) {
	for i := range args {
		if len(args[i]) == 1 {
			continue
		}
		l := make([][]any, len(args))
		r := make([][]any, len(args))
		copy(l, args)
		copy(r, args)
		l[i] = args[i][:1]
		r[i] = args[i][1:]
		applyCartesian(f, l)
		applyCartesian(f, r)
		return
	}
	x := make([]any, 0, len(args))
	for _, a := range args {
		x = append(x, a[0])
	}
	f(x)
}
