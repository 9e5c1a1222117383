package server

import (
	"canvassync/internal/broadcast"
	"canvassync/internal/collab"
	"canvassync/internal/config"
	"canvassync/internal/db"
	"canvassync/internal/rooms"
	"canvassync/internal/wshub"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

type Server struct {
	Engine  *collab.Engine
	Hub     *wshub.Hub
	Feed    *broadcast.Feed
	Metrics prometheus.Gatherer
	Config  config.Config
	DB      *db.DB // nil if no database configured
}

var log = logrus.WithField("component", "server")

type roomInfo struct {
	RoomID       string    `json:"roomId"`
	CreatedAt    time.Time `json:"createdAt"`
	Participants int       `json:"participants"`
	Strokes      int       `json:"strokes"`
}

// describe reads a room's counters under its lock. It returns false if the
// room was reclaimed in the meantime.
func describe(r *rooms.Room) (roomInfo, bool) {
	info := roomInfo{RoomID: r.ID, CreatedAt: r.CreatedAt}
	ok, _ := r.Do(func(st *rooms.State) {
		info.Participants = st.ParticipantCount()
		info.Strokes = st.StrokeCount()
	})
	return info, ok
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Debug("writing response")
	}
}

// handleWS upgrades the request and runs one canvas connection until it
// closes. Each connection gets a fresh identity; a client that reconnects
// is a new participant.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.Config.AllowedOrigins,
	})
	if err != nil {
		log.WithError(err).Warn("websocket accept failed")
		return
	}
	defer conn.CloseNow()
	if s.Config.MaxMessageBytes > 0 {
		conn.SetReadLimit(s.Config.MaxMessageBytes)
	}

	connID := uuid.NewString()
	client, ctx := wshub.NewClient(r.Context(), connID, conn, s.Config.SendBuffer)
	defer client.Close()
	s.Hub.Register(client)
	go client.WritePump(ctx)

	session := s.Engine.Connect(connID)
	err = client.ReadPump(ctx, func(data []byte) {
		s.Engine.HandleRaw(session, data)
	})
	if err != nil {
		log.WithError(err).WithField("conn_id", connID).Debug("connection read ended")
	}

	// leave broadcasts go out before this connection's queue is torn down
	s.Engine.Disconnect(session)
	s.Hub.Unregister(connID)
	conn.Close(websocket.StatusNormalClosure, "")
}

// handleCreateRoom mints an unused room id. The room itself comes into
// existence when the first participant joins it.
func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	id, err := s.Engine.Rooms().MintID()
	if err != nil {
		log.WithError(err).Error("minting room id")
		http.Error(w, "Failed to create room", http.StatusInternalServerError)
		return
	}
	log.WithField("room_id", id).Info("minted room id")
	writeJSON(w, http.StatusCreated, map[string]string{"roomId": id})
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	list := make([]roomInfo, 0)
	for _, room := range s.Engine.Rooms().List() {
		if info, ok := describe(room); ok {
			list = append(list, info)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	room := s.Engine.Rooms().Get(mux.Vars(r)["room"])
	if room == nil {
		http.Error(w, "Room not found", http.StatusNotFound)
		return
	}
	info, ok := describe(room)
	if !ok {
		http.Error(w, "Room not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// handleEvents streams room lifecycle events to an operator as server-sent
// events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	feed, cancel := s.Feed.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-feed:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: %s\n", msg.Event)
			for _, line := range strings.Split(msg.Msg, "\n") {
				fmt.Fprintf(w, "data: %s\n", line)
			}
			fmt.Fprint(w, "\n")
			flusher.Flush()
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":      "ok",
		"rooms":       s.Engine.Rooms().Len(),
		"connections": s.Hub.Len(),
	}
	if s.DB != nil {
		if err := s.DB.Ping(); err != nil {
			body["status"] = "db_error"
			body["error"] = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, body)
			return
		}
	}
	writeJSON(w, http.StatusOK, body)
}
