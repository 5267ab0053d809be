package www

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/angas/awattar-go/config"
	"github.com/angas/awattar-go/database"
	"github.com/rs/cors"
)

type StateReader interface {
	GetStates(ctx context.Context, prefix string) ([]database.StateRow, error)
}

type LogReader interface {
	GetLogEntries(ctx context.Context, minLvl slog.Level, page, pageSize int) ([]database.LogEntryRow, error)
}

type Server struct {
	logger  *slog.Logger
	config  config.AppConfigApi
	hub     *Hub
	handler http.Handler
}

// NewServer sets up the routes. logs may be nil, then /api/log is not served.
// run is called in its own goroutine for every POST /api/run.
func NewServer(config config.AppConfigApi, hub *Hub, states StateReader, logs LogReader, run func(ctx context.Context) error) *Server {
	logger := slog.Default().With("module", "www")
	s := &Server{
		logger: logger,
		config: config,
		hub:    hub,
	}

	logReqMW := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.logger.Debug("http request",
				slog.String("method", r.Method),
				slog.String("url", r.URL.String()),
				slog.String("remoteAddr", r.RemoteAddr))
			next.ServeHTTP(w, r)
		})
	}

	mux := http.NewServeMux()
	mux.Handle("GET /api/states", logReqMW(NewStatesHandler(logger.With(slog.String("handler", "states")), states)))
	if logs != nil {
		mux.Handle("GET /api/log", logReqMW(NewLogHandler(logger.With(slog.String("handler", "log")), logs)))
	}
	mux.Handle("POST /api/run", logReqMW(NewRunHandler(logger.With(slog.String("handler", "run")), run)))

	origins := config.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	upgrader := newUpgrader(origins)
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		name := r.Header.Get("User-Agent")
		client, err := NewClient(s.hub, upgrader, w, r, name)
		if err != nil {
			s.logger.Warn("new websocket client failed", slog.Any("error", err))
			return
		}
		if !s.hub.register(client) {
			client.conn.Close()
			return
		}
		go client.WritePump()
		go client.ReadPump()
	})

	s.handler = cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	}).Handler(mux)

	return s
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is done.
func (s *Server) Run(ctx context.Context) {
	s.logger.Info("starting server...", "port", s.config.Port)
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.config.Address, s.config.Port),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErrors := make(chan error, 1)
	go func() {
		srvErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-srvErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server error", slog.Any("error", err))
		}

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("server shutdown failed", slog.Any("error", err))
		}
	}
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("writing response failed", slog.Any("error", err))
	}
}
