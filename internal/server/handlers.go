package server

import (
	"context"
	"net/http"
	"time"

	"github.com/aristath/stockwatch/internal/httpjson"
)

// handleHealth pings every database.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for _, db := range s.container.Databases() {
		if err := db.Conn().PingContext(ctx); err != nil {
			s.log.Warn().Err(err).Str("database", db.Name()).Msg("Health check failed")
			httpjson.Write(w, s.log, http.StatusServiceUnavailable, map[string]string{
				"status":   "unhealthy",
				"service":  "stockwatch",
				"database": db.Name(),
			})
			return
		}
	}

	httpjson.Write(w, s.log, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "stockwatch",
	})
}
