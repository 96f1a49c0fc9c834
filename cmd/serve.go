package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/jsphweid/keyfall/logger"
	"github.com/jsphweid/keyfall/model"
	"github.com/jsphweid/keyfall/session"
	"github.com/rs/cors"
)

const shutdownTimeout = 2 * time.Second

// NewRouter exposes a session read-only so a renderer can follow along.
func NewRouter(s *session.Session) http.Handler {
	router := mux.NewRouter().StrictSlash(true)
	router.HandleFunc("/state", HandleState(s)).Methods("GET")
	router.HandleFunc("/stats", HandleStats(s)).Methods("GET")
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, model.ErrorResponse{Error: "not found"})
	})
	return cors.Default().Handler(router)
}

func HandleState(s *session.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.Snapshot())
	}
}

func HandleStats(s *session.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := s.Stats()
		writeJSON(w, http.StatusOK, struct {
			model.SessionStats
			Accuracy float64 `json:"accuracy"`
		}{stats, stats.Accuracy()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Could not encode response", err, nil)
	}
}

// serve runs the state endpoint until ctx is done.
func serve(ctx context.Context, addr string, s *session.Session) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(s),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Serving session state", logger.Fields{"addr": addr, "session_id": s.ID})
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("State server stopped", err, logger.Fields{"addr": addr})
	}
}
