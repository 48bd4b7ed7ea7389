package server

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/ienet/earthnet/pkg/lobby"
	"github.com/ienet/earthnet/pkg/protocol"
)

// The handshake is two request/reply exchanges of compressed frames:
// ClientIdent/ServerIdent, then ClientLogin/ServerWelcome-or-ServerReject.
// A malformed frame at any point closes the connection without a reply; a
// reject sends ServerReject and closes. The whole exchange runs under one
// read deadline.

type handshakeResult struct {
	Username   string
	Version    uuid.UUID
	VersionIdx uint32
}

// errHandshakeRejected marks failures that already sent a ServerReject.
var errHandshakeRejected = errors.New("handshake rejected")

func (s *Server) runHandshake(conn net.Conn) (*handshakeResult, error) {
	conn.SetReadDeadline(time.Now().Add(s.config.HandshakeTimeout))
	defer conn.SetReadDeadline(time.Time{})

	payload, err := protocol.ReadFrame(conn)
	if err != nil {
		return nil, s.handshakeFailed(err)
	}
	var ident protocol.ClientIdent
	if err := ident.Decode(payload); err != nil {
		s.metrics.RecordHandshake(HandshakeMalformed)
		return nil, fmt.Errorf("bad client ident: %w", err)
	}

	idx, ok := s.config.VersionIndex(ident.GameVersion)
	if !ok {
		s.metrics.RecordHandshake(HandshakeRejectedVersion)
		s.reject(conn, "Unsupported game version")
		return nil, fmt.Errorf("%w: version %s", errHandshakeRejected, ident.GameVersion)
	}

	identReply := protocol.NewServerIdent()
	replyPayload, err := identReply.Encode()
	if err != nil {
		return nil, err
	}
	if err := protocol.WriteFrame(conn, replyPayload); err != nil {
		return nil, err
	}

	payload, err = protocol.ReadFrame(conn)
	if err != nil {
		return nil, s.handshakeFailed(err)
	}
	var login protocol.ClientLogin
	if err := login.Decode(payload); err != nil {
		s.metrics.RecordHandshake(HandshakeMalformed)
		return nil, fmt.Errorf("bad client login: %w", err)
	}

	if !lobby.ValidUserName(login.Username) {
		s.metrics.RecordHandshake(HandshakeRejectedName)
		// The client renders this token as a localized message.
		s.reject(conn, "translateInvalidCharactersInName")
		return nil, fmt.Errorf("%w: bad username %q", errHandshakeRejected, login.Username)
	}

	create := login.CreateAccount() && s.config.AllowCreate
	if err := s.store.Authenticate(login.Username, login.Password, create); err != nil {
		s.metrics.RecordHandshake(HandshakeRejectedAuth)
		switch {
		case errors.Is(err, ErrAccountExists):
			s.reject(conn, "Account already exists")
		case errors.Is(err, ErrUnknownAccount), errors.Is(err, ErrWrongPassword):
			s.reject(conn, "Invalid username or password")
		default:
			s.log.Error().Err(err).Str("user", login.Username).Msg("authentication backend failure")
			s.reject(conn, "Login temporarily unavailable")
		}
		return nil, fmt.Errorf("%w: auth %q: %v", errHandshakeRejected, login.Username, err)
	}

	return &handshakeResult{
		Username:   login.Username,
		Version:    ident.GameVersion,
		VersionIdx: idx,
	}, nil
}

// handshakeFailed classifies a frame read error for metrics and wraps it.
func (s *Server) handshakeFailed(err error) error {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		s.metrics.RecordHandshake(HandshakeTimeout)
		return fmt.Errorf("handshake timed out: %w", err)
	}
	s.metrics.RecordHandshake(HandshakeMalformed)
	return fmt.Errorf("handshake frame: %w", err)
}

// reject sends ServerReject. Errors are ignored: the connection closes
// right after either way.
func (s *Server) reject(conn net.Conn, reason string) {
	msg := protocol.ServerReject{Reason: reason}
	if payload, err := msg.Encode(); err == nil {
		_ = protocol.WriteFrame(conn, payload)
	}
}
