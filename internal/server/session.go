package server

import (
	"context"
	"net"
	"time"

	"github.com/danmuck/frameecho/internal/observability"
	"github.com/danmuck/frameecho/internal/protocol/frame"
	"github.com/danmuck/frameecho/internal/protocol/session"
)

// serveConn runs the read -> classify -> echo cycle for one connection until
// ctx is done or the connection is gone. conn is closed on return.
func (s *Service) serveConn(ctx context.Context, conn net.Conn) {
	remote := conn.RemoteAddr().String()
	logger := s.log.With().Str("remote", remote).Logger()

	active := s.active.Add(1)
	sessionDone := observability.SessionStarted(observability.RoleServer)
	ctx, span := observability.StartSessionSpan(ctx, observability.RoleServer, remote)
	var fault error
	defer func() {
		_ = conn.Close()
		s.untrackConn(conn)
		sessionDone()
		observability.EndSessionSpan(span, fault)
		remaining := s.active.Add(-1)
		logger.Debug().Int64("active_sessions", remaining).Msg("server.serveConn session closed")
	}()
	logger.Debug().Int64("active_sessions", active).Msg("server.serveConn session opened")

	buf := make([]byte, s.cfg.Session.FrameSize)
	connected := true
	emptyReads := 0

	for ctx.Err() == nil && connected {
		res, err := frame.ReadFrame(ctx, conn, buf)
		if err != nil {
			fault = err
			connected = false
			observability.RecordIOError(observability.RoleServer, "read", session.ClassifyError(err).String())
			logger.Error().Err(err).Int("read_count", res.N).
				Msg("server.serveConn unexpected error while reading from client")
			continue
		}
		observability.RecordFrameRead(observability.RoleServer, res.Outcome.String())
		observability.RecordFrameEvent(span, res.Outcome.String(), res.N)

		switch res.Outcome {
		case frame.OutcomeCanceled:
			logger.Warn().Int("read_count", res.N).Msg("server.serveConn read operation has been canceled")
			continue
		case frame.OutcomeClosed:
			emptyReads++
			logger.Warn().Int("empty_reads", emptyReads).Bool("connected", emptyReads < s.cfg.Session.MaxEmptyReads).
				Msg("server.serveConn cannot read from client")
			if emptyReads >= s.cfg.Session.MaxEmptyReads {
				connected = false
			}
			continue
		case frame.OutcomePartial:
			logger.Warn().Int("read_count", res.N).Msg("server.serveConn partially read frame")
		default:
			logger.Info().Int("read_count", res.N).Msg("server.serveConn received frame")
		}
		emptyReads = 0

		if err := s.echo(ctx, conn, buf[:res.N]); err != nil {
			kind := session.ClassifyError(err)
			observability.RecordIOError(observability.RoleServer, "write", kind.String())
			if kind == session.KindCanceled {
				logger.Warn().Err(err).Msg("server.serveConn write operation has been canceled")
				continue
			}
			fault = err
			connected = false
			logger.Error().Err(err).Int("write_count", res.N).
				Msg("server.serveConn unexpected error while writing to client")
		}
	}
}

// echo writes p back in a single write bounded by the session write timeout.
func (s *Service) echo(ctx context.Context, conn net.Conn, p []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(s.cfg.Session.WriteTimeout)); err != nil {
		return err
	}
	n, err := frame.WriteFrame(ctx, conn, p)
	observability.RecordBytesWritten(observability.RoleServer, n)
	return err
}
