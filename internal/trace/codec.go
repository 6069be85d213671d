package trace

import (
	"bufio"
	"cmp"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/san-kum/dronetrace/internal/dynamo"
)

// A trace file is a msgpack array of exactly six elements: timestamps,
// an N x 20 sample matrix, an N x 6 control reference matrix and three
// reserved values that are ignored on load and written as nil.
const containerArity = 6

// Load reads a trace file. Paths ending in .zst are zstd-compressed.
func Load(path string) (*Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dynamo.ErrIO, err)
	}
	defer f.Close()

	src := &readErrors{r: f}
	r := &readErrors{r: bufio.NewReader(src)}
	if isCompressed(path) {
		zr, err := zstd.NewReader(r.r, zstd.WithDecoderConcurrency(0))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", dynamo.ErrIO, path, err)
		}
		defer zr.Close()
		r.r = zr
	}

	t, err := Decode(r)
	if rerr := cmp.Or(src.err, r.err); rerr != nil {
		return nil, fmt.Errorf("%w: %s: %v", dynamo.ErrIO, path, rerr)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// readErrors keeps the first read failure other than EOF, so an unreadable
// file or stream is not mistaken for malformed content.
type readErrors struct {
	r   io.Reader
	err error
}

func (e *readErrors) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	if err != nil && err != io.EOF && e.err == nil {
		e.err = err
	}
	return n, err
}

// Decode reads one uncompressed trace container from r.
func Decode(r io.Reader) (*Trace, error) {
	dec := msgpack.NewDecoder(r)

	n, err := dec.DecodeArrayLen()
	if err != nil {
		return nil, decodeErr("container", err)
	}
	if n != containerArity {
		return nil, dynamo.Formatf("container has %d elements, want %d", n, containerArity)
	}

	var timestamps []float64
	if err := dec.Decode(&timestamps); err != nil {
		return nil, decodeErr("timestamps", err)
	}
	var sampleRows, targetRows [][]float64
	if err := dec.Decode(&sampleRows); err != nil {
		return nil, decodeErr("samples", err)
	}
	if err := dec.Decode(&targetRows); err != nil {
		return nil, decodeErr("control reference", err)
	}
	for i := 0; i < containerArity-3; i++ {
		if err := dec.Skip(); err != nil {
			return nil, decodeErr("reserved", err)
		}
	}

	samples := make([]dynamo.TraceSample, len(sampleRows))
	for i, row := range sampleRows {
		if samples[i], err = dynamo.TraceSampleFromRow(row); err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
	}
	targets := make([]dynamo.ControlTarget, len(targetRows))
	for i, row := range targetRows {
		if targets[i], err = dynamo.ControlTargetFromRow(row); err != nil {
			return nil, fmt.Errorf("target %d: %w", i, err)
		}
	}
	return New(timestamps, samples, targets)
}

// decodeErr reports a container that ended early or has the wrong shape.
func decodeErr(what string, err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return dynamo.Formatf("%s: truncated", what)
	}
	return dynamo.Formatf("%s: %v", what, err)
}

// Encode writes t to w in the uncompressed container layout.
func Encode(w io.Writer, t *Trace) error {
	enc := msgpack.NewEncoder(w)
	if err := enc.EncodeArrayLen(containerArity); err != nil {
		return err
	}
	if err := enc.Encode(t.timestamps); err != nil {
		return err
	}

	sampleRows := make([][]float64, len(t.samples))
	for i, s := range t.samples {
		sampleRows[i] = s.Row()
	}
	if err := enc.Encode(sampleRows); err != nil {
		return err
	}

	targetRows := make([][]float64, len(t.targets))
	for i, c := range t.targets {
		targetRows[i] = c.Row()
	}
	if err := enc.Encode(targetRows); err != nil {
		return err
	}

	for i := 0; i < containerArity-3; i++ {
		if err := enc.EncodeNil(); err != nil {
			return err
		}
	}
	return nil
}

// Save writes t to path, compressing when the path ends in .zst.
func Save(path string, t *Trace) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create trace directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create trace file: %w", err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	if isCompressed(path) {
		zw, err := zstd.NewWriter(bw, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
		if err != nil {
			return fmt.Errorf("failed to create zstd writer: %w", err)
		}
		if err := Encode(zw, t); err != nil {
			zw.Close()
			return fmt.Errorf("failed to encode trace: %w", err)
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("failed to close zstd writer: %w", err)
		}
	} else if err := Encode(bw, t); err != nil {
		return fmt.Errorf("failed to encode trace: %w", err)
	}

	if err := bw.Flush(); err != nil {
		return err
	}
	return f.Close()
}

func isCompressed(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".zst")
}
