package bitmap

// And returns the bitwise AND of two bitmaps. The result has the length of
// the shorter operand.
func And(a, b Dense) Dense {
	short := a
	if b.len < a.len {
		short = b
	}
	r := Dense{
		bits: make([]byte, 0, BytesFor(short.len)),
		len:  short.len,
	}
	for i := range short.bits {
		r.bits = append(r.bits, a.bits[i]&b.bits[i])
	}
	return r
}

// Or returns the bitwise OR of two bitmaps. The shorter operand is padded
// with zeros.
func Or(a, b Dense) Dense {
	return zip(a, b, func(x, y byte) byte { return x | y })
}

// XOr returns the bitwise XOR of two bitmaps. The shorter operand is padded
// with zeros.
func XOr(a, b Dense) Dense {
	return zip(a, b, func(x, y byte) byte { return x ^ y })
}

// XNor returns the bitwise equality of two bitmaps, i.e. a 1 wherever a and b
// agree. The shorter operand is padded with zeros.
func XNor(a, b Dense) Dense {
	return zip(a, b, func(x, y byte) byte { return ^(x ^ y) })
}

// Not returns the bitwise negation of a bitmap.
func Not(d Dense) Dense {
	r := Dense{
		bits: make([]byte, 0, len(d.bits)),
		len:  d.len,
	}
	for _, b := range d.bits {
		r.bits = append(r.bits, ^b)
	}
	r.clearTail()
	return r
}

func zip(a, b Dense, f func(x, y byte) byte) Dense {
	long := a
	if b.len > a.len {
		long = b
	}
	r := Dense{
		bits: make([]byte, 0, len(long.bits)),
		len:  long.len,
	}
	for i := range long.bits {
		r.bits = append(r.bits, f(byteAt(a, i), byteAt(b, i)))
	}
	r.clearTail()
	return r
}

func byteAt(d Dense, i int) byte {
	if i < len(d.bits) {
		return d.bits[i]
	}
	return 0
}
