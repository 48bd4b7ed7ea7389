package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// The HTTP sidecar carries everything that is not the game protocol:
// health checks, Prometheus scrapes and the WebSocket bridge for proxy
// clients.

func (s *Server) startHTTP() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/stats", s.handleStats)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ws", s.HandleWebSocket)

	s.httpSrv = &http.Server{
		Addr:         s.config.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.log.Info().Str("addr", s.config.HTTPAddr).Msg("http sidecar listening")
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error().Err(err).Msg("http sidecar failed")
		}
	}()
	return nil
}

func (s *Server) stopHTTP() {
	if s.httpSrv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.log.Warn().Err(err).Msg("http shutdown failed")
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

// handleStats exposes the same counters /syncstats pushes to clients.
func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	st := s.lobby.Stats()
	total, err := s.store.CountAccounts()
	if err != nil {
		http.Error(w, "account store unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]uint32{
		"players_total":  total,
		"players_online": st.PlayersOnline,
		"channels":       st.ChannelsTotal,
		"games_total":    st.GamesTotal,
		"games_open":     st.GamesOpen,
	})
}
