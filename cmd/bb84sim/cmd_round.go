package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/qkdsim/bb84/go/bb84"
	"github.com/qkdsim/bb84/go/bb84/rng"
	"github.com/qkdsim/bb84/go/bb84/runner"
)

type roundOpts struct {
	n          int
	sampleFrac float64
	seed       int64
	channel    runner.ChannelConfig
	verbose    bool
}

func newRoundCmd() *cobra.Command {
	opts := &roundOpts{}
	cmd := &cobra.Command{
		Use:   "round",
		Short: "Run a single BB84 round and print its statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd)
		},
	}
	f := cmd.Flags()
	f.IntVar(&opts.n, "n", bb84.DefaultNQubits, "Qubits Alice sends")
	f.Float64Var(&opts.sampleFrac, "sample-frac", bb84.DefaultSampleFrac, "Fraction of the sifted key disclosed for QBER estimation")
	f.Int64Var(&opts.seed, "seed", 42, "Random seed")
	f.StringVar(&opts.channel.Kind, "channel", runner.ChannelSimulated, "Channel model: simulated or qubit")
	f.Float64Var(&opts.channel.ErrorRate, "error-rate", 0, "Probability the channel flips a bit when bases align")
	f.Float64Var(&opts.channel.LossRate, "loss-rate", 0, "Probability a pulse is never detected")
	f.Float64Var(&opts.channel.EveRate, "eve-rate", 0, "Fraction of pulses an intercept-resend attacker measures")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "Also print the sifted and distilled keys")
	return cmd
}

func (o *roundOpts) run(cmd *cobra.Command) error {
	if o.n <= 0 {
		return fmt.Errorf("--n must be positive, got %d", o.n)
	}
	if err := o.channel.Validate(); err != nil {
		return err
	}
	p, err := bb84.NewProtocol(bb84.Opts{NQubits: o.n, SampleFrac: o.sampleFrac})
	if err != nil {
		return err
	}
	src := rng.New(o.seed)
	ch, err := o.channel.NewChannel(src.Split())
	if err != nil {
		return err
	}
	res, err := p.Negotiate(src, ch)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	st := res.Stats
	trace := make([]string, len(res.Trace))
	for i, s := range res.Trace {
		trace[i] = s.String()
	}
	fmt.Fprintf(out, "state:     %v\n", res.State)
	fmt.Fprintf(out, "trace:     %s\n", strings.Join(trace, " -> "))
	fmt.Fprintf(out, "sent:      %d\n", st.Sent)
	fmt.Fprintf(out, "detected:  %d\n", st.Detected)
	fmt.Fprintf(out, "sifted:    %d\n", st.Sifted)
	if res.Abort != nil {
		fmt.Fprintf(out, "aborted:   %v\n", res.Abort)
		return nil
	}
	lo, hi := res.Estimate.Bounds(0.95)
	fmt.Fprintf(out, "disclosed: %d\n", st.Disclosed)
	fmt.Fprintf(out, "qber:      %.4f (%d/%d, 95%% CI %.4f-%.4f)\n", st.QBER, res.Estimate.Mismatches, res.Estimate.Sample, lo, hi)
	fmt.Fprintf(out, "key bits:  %d\n", st.KeyBits)
	if o.verbose {
		fmt.Fprintf(out, "alice key: %v\n", res.AliceKey)
		fmt.Fprintf(out, "bob key:   %v\n", res.BobKey)
	}
	return nil
}
