package server

import (
	"canvassync/internal/analytics"
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

const (
	defaultRoomLimit     = 20
	defaultTimelineLimit = 200
	maxLimit             = 1000
)

// limitParam reads ?limit=, clamped to (0, maxLimit].
func limitParam(r *http.Request, fallback int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return fallback
	}
	return min(n, maxLimit)
}

func (s *Server) requireDB(w http.ResponseWriter) bool {
	if s.DB == nil {
		http.Error(w, "Analytics requires a database connection", http.StatusServiceUnavailable)
		return false
	}
	return true
}

// queryFailed answers a failed per-room query: 404 when the journal has
// nothing for the room, 500 for anything else.
func queryFailed(w http.ResponseWriter, err error, what string) {
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "Room not found", http.StatusNotFound)
		return
	}
	log.WithError(err).Error("analytics: " + what)
	http.Error(w, "Error loading "+what, http.StatusInternalServerError)
}

func (s *Server) handleAnalyticsRooms(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}

	q := analytics.NewQueries(s.DB)
	list, err := q.GetRecentRooms(limitParam(r, defaultRoomLimit))
	if err != nil {
		log.WithError(err).Error("analytics: recent rooms")
		http.Error(w, "Error loading rooms", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []analytics.RoomSummary{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleAnalyticsRoom(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}

	q := analytics.NewQueries(s.DB)
	summary, err := q.GetRoomSummary(mux.Vars(r)["room"])
	if err != nil {
		queryFailed(w, err, "room summary")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleAnalyticsTimeline(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}

	q := analytics.NewQueries(s.DB)
	tl, err := q.GetRoomTimeline(mux.Vars(r)["room"], limitParam(r, defaultTimelineLimit))
	if err != nil {
		queryFailed(w, err, "room timeline")
		return
	}
	writeJSON(w, http.StatusOK, tl)
}

func (s *Server) handleAnalyticsDrops(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}

	q := analytics.NewQueries(s.DB)
	counts, err := q.GetDropCounts()
	if err != nil {
		log.WithError(err).Error("analytics: drop counts")
		http.Error(w, "Error loading drop counts", http.StatusInternalServerError)
		return
	}
	if counts == nil {
		counts = []analytics.DropCount{}
	}
	writeJSON(w, http.StatusOK, counts)
}
