package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"text/template"

	flag "github.com/spf13/pflag"
)

func TestApplyCartesian(t *testing.T) {
	var got []string
	applyCartesian(func(args []any) {
		var parts []string
		for _, a := range args {
			parts = append(parts, fmt.Sprint(a))
		}
		got = append(got, strings.Join(parts, ","))
	}, [][]any{{1, 2}, {0.5}, {"a", "b"}})

	want := []string{"1,0.5,a", "1,0.5,b", "2,0.5,a", "2,0.5,b"}
	if len(got) != len(want) {
		t.Fatalf("applyCartesian visited %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("combination %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestLookupInput(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.IntSlice("ints", nil, "")
	fs.Float64Slice("floats", nil, "")
	fs.String("str", "", "")
	if err := fs.Parse([]string{"--ints=1,2,3", "--floats=0.5"}); err != nil {
		t.Fatal(err)
	}

	ints, err := lookupInput(fs, "ints")
	if err != nil || len(ints) != 3 || ints[2].(int) != 3 {
		t.Errorf("lookupInput(ints) = %v, %v", ints, err)
	}
	floats, err := lookupInput(fs, "floats")
	if err != nil || len(floats) != 1 || floats[0].(float64) != 0.5 {
		t.Errorf("lookupInput(floats) = %v, %v", floats, err)
	}
	if _, err := lookupInput(fs, "str"); err == nil {
		t.Error("lookupInput(str) succeeded, want error")
	}
}

func TestBenchLine(t *testing.T) {
	exp := &Experiment{N: 128, SampleFrac: 0.25, Rounds: 4}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := bench(context.Background(), exp, logger); err != nil {
		t.Fatalf("bench: %v", err)
	}
	if !exp.Succeeded || exp.Accepted != 4 || exp.KeyBits == 0 {
		t.Errorf("noiseless bench = %+v, want 4 accepted rounds with key", exp)
	}

	var buf bytes.Buffer
	tmpl := template.Must(template.New("line").Parse(lineTmpl()))
	if err := tmpl.Execute(&buf, exp); err != nil {
		t.Fatal(err)
	}
	fields := strings.Split(strings.TrimSpace(buf.String()), ", ")
	if len(fields) != len(columns) || len(strings.Split(header(), ", ")) != len(columns) {
		t.Errorf("line %q has %d fields, want %d", buf.String(), len(fields), len(columns))
	}
	if fields[0] != "128" || fields[len(fields)-1] != "true" {
		t.Errorf("line %q", buf.String())
	}
}

func TestBenchInvalid(t *testing.T) {
	exp := &Experiment{N: 0, SampleFrac: 0.25, Rounds: 1}
	if err := bench(context.Background(), exp, slog.New(slog.NewTextHandler(io.Discard, nil))); err == nil {
		t.Error("bench with zero qubits succeeded, want error")
	}
	if exp.Succeeded {
		t.Error("failed experiment marked succeeded")
	}
}
