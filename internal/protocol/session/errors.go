package session

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"

	"github.com/danmuck/frameecho/internal/protocol/frame"
)

// ErrorKind buckets transport errors so loops can branch on them.
type ErrorKind uint8

const (
	KindNone ErrorKind = iota
	KindCanceled
	KindRefused
	KindTimeout
	KindClosed
	KindTransport
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindCanceled:
		return "canceled"
	case KindRefused:
		return "refused"
	case KindTimeout:
		return "timeout"
	case KindClosed:
		return "closed"
	default:
		return "transport"
	}
}

// ClassifyError maps err onto an ErrorKind. A net.OpError that timed out
// (dial timeout, expired I/O deadline) is KindTimeout even though a dial
// timeout also matches context.DeadlineExceeded; callers decide whether
// their own ctx ended by checking it directly.
func ClassifyError(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, frame.ErrCanceled),
		errors.Is(err, context.Canceled):
		return KindCanceled
	case isOpTimeout(err):
		return KindTimeout
	case errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.Is(err, syscall.ECONNREFUSED):
		return KindRefused
	case errors.Is(err, net.ErrClosed),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrClosedPipe):
		return KindClosed
	default:
		return KindTransport
	}
}

func isOpTimeout(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Timeout()
}
