package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-eltako/internal/enocean"
)

// defaultDiscoveryLimit caps the rows returned without a limit parameter.
const defaultDiscoveryLimit = 500

// DiscoverySummary provides aggregate statistics about discovered senders.
type DiscoverySummary struct {
	Total           int `json:"total"`
	ActiveLast5Min  int `json:"active_last_5min"`
	ActiveLast1Hour int `json:"active_last_1hour"`
}

// handleListDiscovery returns senders heard on the bus that no configured
// device claims, most recent first.
//
// Query parameters:
//   - limit: maximum rows (default 500)
func (s *Server) handleListDiscovery(w http.ResponseWriter, r *http.Request) {
	if s.discovery == nil {
		writeUnavailable(w, "database")
		return
	}

	limit := defaultDiscoveryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	addresses, err := s.discovery.List(r.Context(), limit)
	if err != nil {
		s.logger.Error("listing discovered addresses", "error", err)
		writeInternalError(w, "failed to query discovered addresses")
		return
	}

	now := time.Now()
	summary := DiscoverySummary{Total: len(addresses)}
	for _, a := range addresses {
		age := now.Sub(a.LastSeen)
		if age <= 5*time.Minute {
			summary.ActiveLast5Min++
		}
		if age <= time.Hour {
			summary.ActiveLast1Hour++
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"addresses": addresses,
		"summary":   summary,
	})
}

// handleForgetDiscovered removes a discovered sender, typically after it has
// been added to the configuration.
func (s *Server) handleForgetDiscovered(w http.ResponseWriter, r *http.Request) {
	if s.discovery == nil {
		writeUnavailable(w, "database")
		return
	}

	addr, err := enocean.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if err := s.discovery.Forget(r.Context(), addr); err != nil {
		s.logger.Error("forgetting discovered address", "address", addr.String(), "error", err)
		writeInternalError(w, "failed to delete discovered address")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
