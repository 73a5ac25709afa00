package server

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"rpsp/internal/analytics"
)

type leaderboardResponse struct {
	Category string                       `json:"category"`
	Entries  []analytics.LeaderboardEntry `json:"entries"`
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		s.writeError(w, r, errNoDatabase)
		return
	}

	category := r.URL.Query().Get("cat")
	if category == "" {
		category = "wins"
	}
	switch category {
	case "wins", "rounds", "tiebreaks":
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown leaderboard category: " + category})
		return
	}

	entries, err := analytics.NewQueries(s.DB).GetLeaderboard(category, 10)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []analytics.LeaderboardEntry{}
	}
	writeJSON(w, http.StatusOK, leaderboardResponse{Category: category, Entries: entries})
}

func (s *Server) handlePlayerStats(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		s.writeError(w, r, errNoDatabase)
		return
	}

	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "player not found"})
		return
	}

	stats, err := analytics.NewQueries(s.DB).GetPlayerLifetimeStats(id)
	if errors.Is(err, sql.ErrNoRows) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "player not found"})
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleMatchRecap(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		s.writeError(w, r, errNoDatabase)
		return
	}

	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "match not found"})
		return
	}

	recap, err := analytics.NewQueries(s.DB).GetMatchRecap(id)
	if errors.Is(err, sql.ErrNoRows) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "match not found"})
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recap)
}
