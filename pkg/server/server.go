package server

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ienet/earthnet/pkg/lobby"
	"github.com/ienet/earthnet/pkg/protocol"
)

// Server owns the listeners and ties the handshake, the session registry
// and the lobby together.
type Server struct {
	config   ServerConfig
	store    AccountStore
	lobby    *lobby.Lobby
	sessions *SessionManager
	metrics  *Metrics
	log      zerolog.Logger

	listener net.Listener
	httpSrv  *http.Server
	shutdown chan struct{}
	wg       sync.WaitGroup
}

var errCommandTooLong = errors.New("command exceeds length limit")

// NewServer creates a new server instance. metrics may be nil when the
// caller does not scrape Prometheus.
func NewServer(config ServerConfig, store AccountStore, metrics *Metrics, log zerolog.Logger) *Server {
	l := lobby.New(lobby.Config{
		DefaultChannel:   config.DefaultChannel,
		RequestedGameTTL: config.RequestedGameTTL,
	}, log)

	return &Server{
		config:   config,
		store:    store,
		lobby:    l,
		sessions: NewSessionManager(metrics),
		metrics:  metrics,
		log:      log,
		shutdown: make(chan struct{}),
	}
}

// Start begins accepting game clients, and the HTTP sidecar when
// configured. It does not block.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.config.TCPAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.TCPAddr, err)
	}
	s.listener = listener
	s.log.Info().Str("addr", listener.Addr().String()).Msg("lobby server listening")

	if s.config.HTTPAddr != "" {
		if err := s.startHTTP(); err != nil {
			s.listener.Close()
			return err
		}
	}

	s.wg.Add(2)
	go s.acceptLoop()
	go s.statsLoop()
	return nil
}

// Addr returns the bound TCP address, useful when listening on port 0.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Stop gracefully stops the server
func (s *Server) Stop() error {
	close(s.shutdown)

	if s.listener != nil {
		s.listener.Close()
	}
	s.stopHTTP()

	s.wg.Wait()
	s.sessions.CloseAll()
	return nil
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return
			default:
				s.log.Warn().Err(err).Msg("accept error")
				continue
			}
		}
		go s.handleConnection(conn)
	}
}

// statsLoop periodically sweeps stale game requests, pushes /syncstats to
// everyone and refreshes the lobby gauges.
func (s *Server) statsLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.StatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.lobby.ExpireRequestedGames()

			total, err := s.store.CountAccounts()
			if err != nil {
				s.log.Warn().Err(err).Msg("account count failed, skipping stats push")
				continue
			}
			s.lobby.BroadcastStats(total)

			st := s.lobby.Stats()
			s.metrics.RecordLobbyStats(st.PlayersOnline, st.ChannelsTotal, st.GamesOpen)
		case <-s.shutdown:
			return
		}
	}
}

// handleConnection runs one client from handshake to disconnect.
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		tcpConn.SetNoDelay(true)
	}

	res, err := s.runHandshake(conn)
	if err != nil {
		s.log.Debug().Err(err).Stringer("remote", conn.RemoteAddr()).Msg("handshake failed")
		return
	}

	limiter := rate.NewLimiter(rate.Limit(s.config.CommandRate), s.config.CommandBurst)
	sess := s.sessions.CreateSession(res.Username, conn, s.config.SendQueueDepth, limiter, s.log)
	defer s.sessions.RemoveSession(sess.ID)

	// The welcome frame goes out first, then the channel and game listings,
	// then the default channel join. AddUser enqueues the welcome before the
	// user is visible to broadcasts, so nothing can slip in ahead of it.
	welcome, err := s.buildWelcome()
	if err != nil {
		s.log.Error().Err(err).Msg("failed to build welcome")
		return
	}
	if err := s.lobby.AddUser(res.Username, res.Version, res.VersionIdx, remoteIP(conn), sess, welcome); err != nil {
		s.metrics.RecordHandshake(HandshakeRejectedDup)
		s.reject(conn, "Account already logged in")
		return
	}
	defer s.lobby.RemoveUser(res.Username)
	s.metrics.RecordHandshake(HandshakeOK)

	s.lobby.AnnounceState(res.Username)
	s.lobby.JoinChannel(res.Username, s.config.DefaultChannel)

	s.log.Info().Str("user", res.Username).Stringer("remote", conn.RemoteAddr()).Msg("login complete")

	reader := bufio.NewReader(conn)
	for {
		line, err := readCommand(reader, s.config.MaxCommandLength)
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.log.Info().Str("user", res.Username).Msg("client disconnected")
			} else {
				s.log.Debug().Err(err).Str("user", res.Username).Msg("read failed, dropping session")
			}
			return
		}
		if err := s.handleCommand(sess, line); err != nil {
			s.log.Error().Err(err).Str("user", res.Username).Msg("command handling failed, dropping session")
			return
		}
	}
}

// buildWelcome renders the ServerWelcome frame from current lobby state.
func (s *Server) buildWelcome() ([]byte, error) {
	total, err := s.store.CountAccounts()
	if err != nil {
		// Not worth failing a login over a vanity counter.
		s.log.Warn().Err(err).Msg("account count failed")
		total = 0
	}
	st := s.lobby.Stats()

	msg := protocol.NewServerWelcome()
	msg.ServerIdent = s.config.ServerName
	msg.WelcomeText = s.config.WelcomeText
	msg.PlayersTotal = total
	// The recipient is not registered yet but is definitionally online.
	msg.PlayersOnline = st.PlayersOnline + 1
	msg.ChannelsTotal = st.ChannelsTotal
	msg.GamesTotalA = st.GamesTotal
	msg.GamesTotalB = st.GamesTotal
	msg.GamesAvailable = st.GamesOpen
	msg.InitialChannel = s.config.DefaultChannel
	for i, v := range s.config.GameVersions {
		msg.GameVersions = append(msg.GameVersions, protocol.ListEntry{ID: uint8(i), Name: v.Name})
	}

	payload, err := msg.Encode()
	if err != nil {
		return nil, err
	}
	return protocol.EncodeFrame(payload)
}

// readCommand reads one null-terminated command. The terminator is
// stripped; a client that exceeds the length limit without terminating is
// disconnected.
func readCommand(r *bufio.Reader, maxLen int) ([]byte, error) {
	line := make([]byte, 0, 64)
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b == 0 {
			return line, nil
		}
		line = append(line, b)
		if len(line) > maxLen {
			return nil, errCommandTooLong
		}
	}
}

func remoteIP(conn net.Conn) net.IP {
	if addr, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		return addr.IP
	}
	if host, _, err := net.SplitHostPort(conn.RemoteAddr().String()); err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return net.IPv4zero
}
