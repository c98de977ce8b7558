package record

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxRecordSize bounds the length prefix a Reader will accept.
const MaxRecordSize = 64 << 20

// A Writer writes framed records to an underlying stream. The structure of
// the frame is trivial: record-length | record, with the length a
// little-endian uint32.
type Writer struct {
	w *bufio.Writer
	n int
}

// NewWriter returns a Writer buffering into w. Call Flush when done.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write frames and writes a single record.
func (w *Writer) Write(r Record) error {
	marshalled := r.Marshal()
	if err := binary.Write(w.w, binary.LittleEndian, uint32(len(marshalled))); err != nil {
		return err
	}
	if _, err := w.w.Write(marshalled); err != nil {
		return err
	}
	w.n++
	return nil
}

// Flush writes any buffered records to the underlying stream.
func (w *Writer) Flush() error {
	return w.w.Flush()
}

// Count returns the number of records written so far.
func (w *Writer) Count() int {
	return w.n
}

// A Reader reads records framed by a Writer.
type Reader struct {
	r *bufio.Reader
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Read returns the next record, or io.EOF once the stream ends cleanly
// between records.
func (r *Reader) Read() (Record, error) {
	var mLen uint32
	if err := binary.Read(r.r, binary.LittleEndian, &mLen); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("reading frame length: %w", err)
	}
	if mLen > MaxRecordSize {
		return Record{}, fmt.Errorf("frame of %d bytes exceeds limit of %d", mLen, MaxRecordSize)
	}
	marshalled := make([]byte, mLen)
	if _, err := io.ReadFull(r.r, marshalled); err != nil {
		return Record{}, fmt.Errorf("reading frame body: %w", err)
	}
	return Unmarshal(marshalled)
}

// ReadAll reads records until the stream ends.
func (r *Reader) ReadAll() ([]Record, error) {
	var recs []Record
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return recs, nil
		}
		if err != nil {
			return recs, err
		}
		recs = append(recs, rec)
	}
}
