// Package frame reads and writes bare fixed-length frames over byte streams.
package frame

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// DefaultSize is the fixed frame length both peers agree on.
const DefaultSize = 24

// maxEmptyReads bounds consecutive (0, nil) reads before giving up.
const maxEmptyReads = 100

var (
	ErrCanceled = errors.New("frame: operation canceled")
	ErrNegative = errors.New("frame: reader returned negative count")
)

// Outcome classifies one frame read attempt.
type Outcome uint8

const (
	OutcomeComplete Outcome = iota
	OutcomePartial
	OutcomeClosed
	OutcomeCanceled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeComplete:
		return "complete"
	case OutcomePartial:
		return "partial"
	case OutcomeClosed:
		return "closed"
	case OutcomeCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("outcome(%d)", uint8(o))
	}
}

// Result is the byte count collected by one ReadFrame call and its outcome.
type Result struct {
	N       int
	Outcome Outcome
}

// ReadError is a transport fault raised mid-frame. N holds the bytes
// collected before the fault.
type ReadError struct {
	N   int
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("frame: read failed after %d bytes: %v", e.N, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Classify maps a collected byte count onto an end-of-stream outcome.
func Classify(n, size int) Outcome {
	switch {
	case n >= size:
		return OutcomeComplete
	case n == 0:
		return OutcomeClosed
	default:
		return OutcomePartial
	}
}

// ReadFrame fills buf from r using as many reads as the stream needs.
// It stops early on end of stream or when ctx is done; neither is an error.
// Only transport faults are returned as *ReadError.
func ReadFrame(ctx context.Context, r io.Reader, buf []byte) (Result, error) {
	if len(buf) == 0 {
		return Result{Outcome: OutcomeComplete}, nil
	}
	if ctx.Err() != nil {
		return Result{Outcome: OutcomeCanceled}, nil
	}
	stop := interruptRead(ctx, r)
	defer stop()

	n, empty := 0, 0
	for n < len(buf) {
		if ctx.Err() != nil {
			return Result{N: n, Outcome: OutcomeCanceled}, nil
		}
		m, err := r.Read(buf[n:])
		if m < 0 {
			return Result{N: n, Outcome: Classify(n, len(buf))}, &ReadError{N: n, Err: ErrNegative}
		}
		n += m
		if n == len(buf) {
			return Result{N: n, Outcome: OutcomeComplete}, nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return Result{N: n, Outcome: Classify(n, len(buf))}, nil
			}
			if ctx.Err() != nil && errors.Is(err, os.ErrDeadlineExceeded) {
				return Result{N: n, Outcome: OutcomeCanceled}, nil
			}
			return Result{N: n, Outcome: Classify(n, len(buf))}, &ReadError{N: n, Err: err}
		}
		if m == 0 {
			empty++
			if empty >= maxEmptyReads {
				return Result{N: n, Outcome: Classify(n, len(buf))}, &ReadError{N: n, Err: io.ErrNoProgress}
			}
			continue
		}
		empty = 0
	}
	return Result{N: n, Outcome: OutcomeComplete}, nil
}

// WriteFrame performs one blocking write of p that unblocks when ctx is done.
func WriteFrame(ctx context.Context, w io.Writer, p []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCanceled, err)
	}
	stop := interruptWrite(ctx, w)
	defer stop()

	n, err := w.Write(p)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, os.ErrDeadlineExceeded) {
			return n, fmt.Errorf("%w: %w", ErrCanceled, ctx.Err())
		}
		return n, err
	}
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// A deadline in the past makes blocked net.Conn I/O return immediately.
var aLongTimeAgo = time.Unix(1, 0)

func interruptRead(ctx context.Context, r io.Reader) func() bool {
	d, ok := r.(readDeadliner)
	if !ok {
		return func() bool { return false }
	}
	return context.AfterFunc(ctx, func() {
		_ = d.SetReadDeadline(aLongTimeAgo)
	})
}

func interruptWrite(ctx context.Context, w io.Writer) func() bool {
	d, ok := w.(writeDeadliner)
	if !ok {
		return func() bool { return false }
	}
	return context.AfterFunc(ctx, func() {
		_ = d.SetWriteDeadline(aLongTimeAgo)
	})
}
