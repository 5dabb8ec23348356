package client

import (
	"context"
	"net"
	"time"

	"github.com/danmuck/frameecho/internal/observability"
	"github.com/danmuck/frameecho/internal/protocol/frame"
	"github.com/danmuck/frameecho/internal/protocol/session"
)

// operate sends the probe frame and then only reads, logging each outcome,
// until ctx is done or the connection is gone. conn is closed on return.
func (c *Client) operate(ctx context.Context, conn net.Conn) {
	remote := conn.RemoteAddr().String()
	logger := c.log.With().Str("remote", remote).Logger()

	c.sessions.Add(1)
	c.connected.Store(true)
	sessionDone := observability.SessionStarted(observability.RoleClient)
	ctx, span := observability.StartSessionSpan(ctx, observability.RoleClient, remote)
	var fault error
	defer func() {
		_ = conn.Close()
		c.connected.Store(false)
		sessionDone()
		observability.EndSessionSpan(span, fault)
	}()

	buf := make([]byte, c.cfg.Session.FrameSize)
	for i := range buf {
		buf[i] = c.cfg.ProbeByte
	}
	if err := c.sendProbe(ctx, conn, buf); err != nil {
		kind := session.ClassifyError(err)
		observability.RecordIOError(observability.RoleClient, "write", kind.String())
		if kind == session.KindCanceled {
			logger.Warn().Err(err).Msg("client.operate probe write has been canceled")
			return
		}
		fault = err
		logger.Error().Err(err).Int("buffer_length", len(buf)).
			Msg("client.operate unexpected error while trying to send probe")
		return
	}

	connected := true
	emptyReads := 0
	for ctx.Err() == nil && connected {
		res, err := frame.ReadFrame(ctx, conn, buf)
		if err != nil {
			fault = err
			connected = false
			observability.RecordIOError(observability.RoleClient, "read", session.ClassifyError(err).String())
			logger.Error().Err(err).Int("read_count", res.N).
				Msg("client.operate unexpected error while reading from server")
			continue
		}
		observability.RecordFrameRead(observability.RoleClient, res.Outcome.String())
		observability.RecordFrameEvent(span, res.Outcome.String(), res.N)

		switch res.Outcome {
		case frame.OutcomeCanceled:
			logger.Warn().Int("read_count", res.N).Msg("client.operate read operation has been canceled")
			continue
		case frame.OutcomeClosed:
			emptyReads++
			logger.Warn().Int("empty_reads", emptyReads).Bool("connected", emptyReads < c.cfg.Session.MaxEmptyReads).
				Msg("client.operate cannot read from server")
			if emptyReads >= c.cfg.Session.MaxEmptyReads {
				connected = false
			}
		case frame.OutcomePartial:
			emptyReads = 0
			c.framesPartial.Add(1)
			logger.Warn().Int("read_count", res.N).Msg("client.operate partially read frame")
		default:
			emptyReads = 0
			c.framesComplete.Add(1)
			logger.Info().Int("read_count", res.N).Msg("client.operate received frame")
		}
		if c.cfg.OnFrame != nil {
			c.cfg.OnFrame(res, buf[:res.N])
		}
	}
}

func (c *Client) sendProbe(ctx context.Context, conn net.Conn, p []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(c.cfg.Session.WriteTimeout)); err != nil {
		return err
	}
	n, err := frame.WriteFrame(ctx, conn, p)
	observability.RecordBytesWritten(observability.RoleClient, n)
	return err
}
