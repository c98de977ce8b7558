// Package record persists BB84 round outputs as protobuf wire-format
// messages, so that key-rate analysis and acceptance policies can run
// outside the process that negotiated them.
package record

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/qkdsim/bb84/go/bb84"
	"github.com/qkdsim/bb84/go/bb84/bitmap"
)

// Field numbers of the Record message.
const (
	fieldID protowire.Number = iota + 1
	fieldIndex
	fieldSeed
	fieldBits
	fieldBasisA
	fieldBasisB
	fieldOutcomes
	fieldLost
	fieldMask
	fieldAliceSift
	fieldBobSift
	fieldDisclosed
	fieldQBER
	fieldMismatches
	fieldSample
	fieldAliceKey
	fieldBobKey
	fieldState
)

// Field numbers of the nested bit array message.
const (
	fieldArrayBits protowire.Number = 1
	fieldArrayLen  protowire.Number = 2
)

// A Record is the externally visible output of one round.
type Record struct {
	ID    uuid.UUID
	Index int
	Seed  int64

	Bits      bitmap.Dense
	BasisA    bitmap.Dense
	BasisB    bitmap.Dense
	Outcomes  bitmap.Dense
	Lost      bitmap.Dense
	Mask      bitmap.Dense
	AliceSift bitmap.Dense
	BobSift   bitmap.Dense

	Disclosed  []int
	QBER       float64
	Mismatches int
	Sample     int

	AliceKey bitmap.Dense
	BobKey   bitmap.Dense
	State    bb84.State
}

// RoundID returns the deterministic identifier of the index-th round of a
// run seeded with seed.
func RoundID(seed int64, index int) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("bb84/%d/%d", seed, index)))
}

// FromResult packages res, the index-th round of a run, into a Record. seed
// is the seed of the round's own random source.
func FromResult(id uuid.UUID, index int, seed int64, res bb84.Result) Record {
	return Record{
		ID:         id,
		Index:      index,
		Seed:       seed,
		Bits:       res.Round.Bits,
		BasisA:     res.Round.BasisA,
		BasisB:     res.Round.BasisB,
		Outcomes:   res.Round.Outcomes,
		Lost:       res.Round.Lost,
		Mask:       res.Sifted.Mask,
		AliceSift:  res.Sifted.Alice,
		BobSift:    res.Sifted.Bob,
		Disclosed:  res.Estimate.Disclosed,
		QBER:       res.Estimate.QBER,
		Mismatches: res.Estimate.Mismatches,
		Sample:     res.Estimate.Sample,
		AliceKey:   res.AliceKey,
		BobKey:     res.BobKey,
		State:      res.State,
	}
}

// Marshal encodes r in protobuf wire format.
func (r Record) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldID, protowire.BytesType)
	b = protowire.AppendString(b, r.ID.String())
	b = protowire.AppendTag(b, fieldIndex, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.Index))
	b = protowire.AppendTag(b, fieldSeed, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(r.Seed))

	for _, f := range []struct {
		num protowire.Number
		d   bitmap.Dense
	}{
		{fieldBits, r.Bits},
		{fieldBasisA, r.BasisA},
		{fieldBasisB, r.BasisB},
		{fieldOutcomes, r.Outcomes},
		{fieldLost, r.Lost},
		{fieldMask, r.Mask},
		{fieldAliceSift, r.AliceSift},
		{fieldBobSift, r.BobSift},
		{fieldAliceKey, r.AliceKey},
		{fieldBobKey, r.BobKey},
	} {
		b = protowire.AppendTag(b, f.num, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalDense(f.d))
	}

	var packed []byte
	for _, i := range r.Disclosed {
		packed = protowire.AppendVarint(packed, uint64(i))
	}
	b = protowire.AppendTag(b, fieldDisclosed, protowire.BytesType)
	b = protowire.AppendBytes(b, packed)

	b = protowire.AppendTag(b, fieldQBER, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(r.QBER))
	b = protowire.AppendTag(b, fieldMismatches, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.Mismatches))
	b = protowire.AppendTag(b, fieldSample, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.Sample))
	b = protowire.AppendTag(b, fieldState, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.State))
	return b
}

// Unmarshal decodes a Record from protobuf wire format. Unknown fields are
// skipped.
func Unmarshal(b []byte) (Record, error) {
	r := Record{Disclosed: []int{}}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Record{}, fmt.Errorf("reading tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		n, err := r.consumeField(num, typ, b)
		if err != nil {
			return Record{}, fmt.Errorf("field %d: %w", num, err)
		}
		b = b[n:]
	}
	return r, nil
}

func (r *Record) consumeField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	if d := r.denseField(num); d != nil {
		v, n, err := consumeBytes(typ, b)
		if err != nil {
			return 0, err
		}
		*d, err = unmarshalDense(v)
		return n, err
	}
	switch num {
	case fieldID:
		v, n, err := consumeBytes(typ, b)
		if err != nil {
			return 0, err
		}
		r.ID, err = uuid.ParseBytes(v)
		return n, err
	case fieldIndex, fieldSeed, fieldMismatches, fieldSample, fieldState:
		if typ != protowire.VarintType {
			return 0, fmt.Errorf("wire type %d, want varint", typ)
		}
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return 0, protowire.ParseError(n)
		}
		switch num {
		case fieldIndex:
			r.Index = int(v)
		case fieldSeed:
			r.Seed = protowire.DecodeZigZag(v)
		case fieldMismatches:
			r.Mismatches = int(v)
		case fieldSample:
			r.Sample = int(v)
		case fieldState:
			r.State = bb84.State(v)
		}
		return n, nil
	case fieldQBER:
		if typ != protowire.Fixed64Type {
			return 0, fmt.Errorf("wire type %d, want fixed64", typ)
		}
		v, n := protowire.ConsumeFixed64(b)
		if n < 0 {
			return 0, protowire.ParseError(n)
		}
		r.QBER = math.Float64frombits(v)
		return n, nil
	case fieldDisclosed:
		return r.consumeDisclosed(typ, b)
	}
	n := protowire.ConsumeFieldValue(num, typ, b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	return n, nil
}

// consumeDisclosed accepts both packed and unpacked encodings.
func (r *Record) consumeDisclosed(typ protowire.Type, b []byte) (int, error) {
	if typ == protowire.VarintType {
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return 0, protowire.ParseError(n)
		}
		r.Disclosed = append(r.Disclosed, int(v))
		return n, nil
	}
	packed, n, err := consumeBytes(typ, b)
	if err != nil {
		return 0, err
	}
	for len(packed) > 0 {
		v, m := protowire.ConsumeVarint(packed)
		if m < 0 {
			return 0, protowire.ParseError(m)
		}
		r.Disclosed = append(r.Disclosed, int(v))
		packed = packed[m:]
	}
	return n, nil
}

func (r *Record) denseField(num protowire.Number) *bitmap.Dense {
	switch num {
	case fieldBits:
		return &r.Bits
	case fieldBasisA:
		return &r.BasisA
	case fieldBasisB:
		return &r.BasisB
	case fieldOutcomes:
		return &r.Outcomes
	case fieldLost:
		return &r.Lost
	case fieldMask:
		return &r.Mask
	case fieldAliceSift:
		return &r.AliceSift
	case fieldBobSift:
		return &r.BobSift
	case fieldAliceKey:
		return &r.AliceKey
	case fieldBobKey:
		return &r.BobKey
	}
	return nil
}

func consumeBytes(typ protowire.Type, b []byte) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, fmt.Errorf("wire type %d, want bytes", typ)
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, protowire.ParseError(n)
	}
	return v, n, nil
}

func marshalDense(d bitmap.Dense) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldArrayBits, protowire.BytesType)
	b = protowire.AppendBytes(b, d.Data())
	b = protowire.AppendTag(b, fieldArrayLen, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(d.Size()))
	return b
}

func unmarshalDense(b []byte) (bitmap.Dense, error) {
	var (
		data []byte
		size int
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return bitmap.Empty(), protowire.ParseError(n)
		}
		b = b[n:]
		switch {
		case num == fieldArrayBits && typ == protowire.BytesType:
			data, n = protowire.ConsumeBytes(b)
		case num == fieldArrayLen && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			size = int(v)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return bitmap.Empty(), protowire.ParseError(n)
		}
		b = b[n:]
	}
	if len(data) < bitmap.BytesFor(size) {
		return bitmap.Empty(), fmt.Errorf("bit array of len %d backed by %d bytes", size, len(data))
	}
	return bitmap.NewDense(data, size), nil
}
