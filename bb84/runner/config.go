package runner

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/qkdsim/bb84/go/bb84/photon"
	"github.com/qkdsim/bb84/go/bb84/rng"
)

// MaxConfigSize is the largest config file LoadConfig will read.
const MaxConfigSize = 1 << 20

// Channel kinds understood by ChannelConfig.
const (
	ChannelSimulated = "simulated"
	ChannelQubit     = "qubit"
)

// Config describes a batch of BB84 rounds.
type Config struct {
	// Rounds is the number of rounds to run.
	Rounds int `yaml:"rounds" validate:"gte=1"`
	// Workers bounds the rounds in flight. Zero means GOMAXPROCS.
	Workers int `yaml:"workers" validate:"gte=0"`
	// Seed is the base seed; round i uses rng.Derive(Seed, i).
	Seed int64 `yaml:"seed"`

	NQubits    int     `yaml:"n_qubits" validate:"gte=1"`
	SampleFrac float64 `yaml:"sample_frac" validate:"gt=0,lte=1"`

	// MaxQBER is the highest error rate at which a key is accepted.
	MaxQBER float64 `yaml:"max_qber" validate:"gte=0,lte=1"`
	// Confidence, if nonzero, compares the upper Clopper-Pearson bound at
	// this confidence against MaxQBER instead of the point estimate.
	Confidence float64 `yaml:"confidence" validate:"gte=0,lt=1"`

	Channel ChannelConfig `yaml:"channel"`
}

// ChannelConfig selects and parameterizes the simulated quantum channel.
type ChannelConfig struct {
	Kind      string  `yaml:"kind" validate:"oneof=simulated qubit"`
	ErrorRate float64 `yaml:"error_rate" validate:"gte=0,lte=1"`
	LossRate  float64 `yaml:"loss_rate" validate:"gte=0,lte=1"`
	// EveRate is the fraction of pulses an intercept-resend attacker
	// measures.
	EveRate float64 `yaml:"eve_rate" validate:"gte=0,lte=1"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Rounds:     100,
		Seed:       42,
		NQubits:    256,
		SampleFrac: 0.25,
		MaxQBER:    0.11,
		Channel:    ChannelConfig{Kind: ChannelSimulated},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate reports the first constraint c violates.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Validate reports the first constraint c violates.
func (c ChannelConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid channel: %w", err)
	}
	return nil
}

// LoadConfig reads a YAML config from path. Fields absent from the file keep
// their DefaultConfig values; unknown fields are an error.
func LoadConfig(path string) (Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	if info.Size() > MaxConfigSize {
		return Config{}, fmt.Errorf("config %s is %d bytes, limit is %d", path, info.Size(), MaxConfigSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes and validates a YAML config.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// NewChannel builds the channel described by c. All of its randomness comes
// from src.
func (c ChannelConfig) NewChannel(src *rng.Source) (photon.Channel, error) {
	r := rand.New(rand.NewSource(src.Rand().Int63()))
	var ch photon.Channel
	switch c.Kind {
	case ChannelSimulated, "":
		sc := photon.NewSimulatedChannel(r)
		sc.ErrorRate = c.ErrorRate
		sc.LossRate = c.LossRate
		ch = sc
	case ChannelQubit:
		ch = photon.NewQubitChannel(r)
		if c.ErrorRate > 0 || c.LossRate > 0 {
			ch = photon.NewNoisy(ch, c.ErrorRate, c.LossRate, r)
		}
	default:
		return nil, fmt.Errorf("unknown channel kind %q", c.Kind)
	}
	if c.EveRate > 0 {
		ch = photon.NewEavesdropper(ch, c.EveRate, r)
	}
	return ch, nil
}
