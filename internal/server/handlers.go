package server

import (
	"errors"
	"net/http"

	"github.com/skip2/go-qrcode"

	"rpsp/internal/gamedata"
	"rpsp/internal/rps"
)

const (
	defaultMaxPlayers  = 2
	defaultPointsToWin = 3
)

type createRoomRequest struct {
	Name        string `json:"name"`
	MaxPlayers  int    `json:"maxPlayers"`
	PointsToWin int    `json:"pointsToWin"`
}

type joinRoomRequest struct {
	Name string `json:"name"`
}

type choiceRequest struct {
	Choice string `json:"choice"`
}

type advanceRequest struct {
	Round int `json:"round"`
}

type sessionResponse struct {
	Code     string         `json:"code"`
	PlayerID string         `json:"playerId"`
	Room     *gamedata.Room `json:"room"`
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	if !s.createLimiter.Allow() {
		s.writeError(w, r, errRateLimited)
		return
	}

	var req createRoomRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.MaxPlayers == 0 {
		req.MaxPlayers = defaultMaxPlayers
	}
	if req.PointsToWin == 0 {
		req.PointsToWin = defaultPointsToWin
	}

	id := sessionID(r)
	room, err := s.Rooms.Create(r.Context(), func(code string) (*gamedata.Room, error) {
		return gamedata.NewRoom(code, id, req.Name, req.MaxPlayers, req.PointsToWin, s.now())
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.rememberPlayer(id, room.Players.Get(id).Name)

	s.log.Info().Str("room", room.Code).Str("host", id).
		Int("maxPlayers", room.MaxPlayers).Int("pointsToWin", room.PointsToWin).Msg("room created")
	setSession(w, room.Code, id)
	writeJSON(w, http.StatusCreated, sessionResponse{Code: room.Code, PlayerID: id, Room: room.Public()})
}

func (s *Server) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	code, err := roomCode(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req joinRoomRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	id := sessionID(r)
	started := false
	room, err := s.Rooms.Update(r.Context(), code, func(room *gamedata.Room) error {
		before := room.Status
		if err := room.Join(id, req.Name, s.now()); err != nil {
			return err
		}
		started = before == gamedata.StatusWaiting && room.Status == gamedata.StatusPlaying
		return nil
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.rememberPlayer(id, room.Players.Get(id).Name)

	log := s.log.With().Str("room", code).Logger()
	log.Info().Str("player", id).Msg("player joined")
	if started {
		log.Info().Str("match", room.MatchID).Msg("match started")
	}
	setSession(w, code, id)
	writeJSON(w, http.StatusOK, sessionResponse{Code: code, PlayerID: id, Room: room.Public()})
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	code, err := roomCode(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	room, err := s.Rooms.Get(r.Context(), code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room.Public())
}

func (s *Server) handleChoice(w http.ResponseWriter, r *http.Request) {
	code, err := roomCode(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id := playerID(r)
	if id == "" {
		s.writeError(w, r, errNoIdentity)
		return
	}
	if !s.choiceLimiter.Allow(id, s.now()) {
		s.writeError(w, r, errRateLimited)
		return
	}
	var req choiceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	choice, err := rps.ParseChoice(req.Choice)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	room, err := s.submit(r.Context(), code, id, choice)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room.Public())
}

// handleAdvance moves past a displayed result. Advancing a round that has
// already moved on returns the current room.
func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	code, err := roomCode(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req advanceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	room, err := s.advance(r.Context(), code, req.Round)
	if errors.Is(err, gamedata.ErrStaleRound) || errors.Is(err, gamedata.ErrNoResults) {
		room, err = s.Rooms.Get(r.Context(), code)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room.Public())
}

func (s *Server) handlePlayAgain(w http.ResponseWriter, r *http.Request) {
	code, err := roomCode(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id := playerID(r)
	if id == "" {
		s.writeError(w, r, errNoIdentity)
		return
	}

	room, err := s.restart(r.Context(), code, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.log.Info().Str("room", code).Str("match", room.MatchID).Msg("match restarted")
	writeJSON(w, http.StatusOK, room.Public())
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	code, err := roomCode(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id := playerID(r)
	if id == "" {
		s.writeError(w, r, errNoIdentity)
		return
	}

	room, err := s.leave(r.Context(), code, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	clearSession(w)
	if room == nil {
		s.log.Info().Str("room", code).Msg("room closed")
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.log.Info().Str("room", code).Str("player", id).Msg("player left")
	writeJSON(w, http.StatusOK, room.Public())
}

// handleQR renders the room's join link as a PNG.
func (s *Server) handleQR(w http.ResponseWriter, r *http.Request) {
	code, err := roomCode(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := s.Rooms.Get(r.Context(), code); err != nil {
		s.writeError(w, r, err)
		return
	}

	png, err := qrcode.Encode(s.BaseURL+"/rooms/"+code+"/join", qrcode.Medium, 256)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=300")
	_, _ = w.Write(png)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.DB != nil {
		if err := s.DB.Ping(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "db_error", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "streams": s.Streams.Active()})
}
