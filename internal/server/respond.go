package server

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"rpsp/internal/gamedata"
	"rpsp/internal/metrics"
	"rpsp/internal/rooms"
	"rpsp/internal/rps"
)

var (
	errRateLimited = errors.New("too many requests, slow down")
	errNoIdentity  = errors.New("player id required")
	errBadRequest  = errors.New("malformed request body")
	errNoDatabase  = errors.New("history requires a database connection")
)

const maxBodyBytes = 1 << 16

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads an optional JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return errBadRequest
	}
	return nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, rooms.ErrNotFound),
		errors.Is(err, gamedata.ErrUnknownPlayer):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest),
		errors.Is(err, errUnknownMessage),
		errors.Is(err, rooms.ErrInvalidCode),
		errors.Is(err, rps.ErrInvalidChoice),
		errors.Is(err, gamedata.ErrInvalidName),
		errors.Is(err, gamedata.ErrInvalidPointsToWin),
		errors.Is(err, gamedata.ErrInvalidMaxPlayers):
		return http.StatusBadRequest
	case errors.Is(err, errNoIdentity):
		return http.StatusUnauthorized
	case errors.Is(err, gamedata.ErrRoomFull),
		errors.Is(err, gamedata.ErrGameInProgress),
		errors.Is(err, gamedata.ErrNotPlaying),
		errors.Is(err, gamedata.ErrNotFinished),
		errors.Is(err, gamedata.ErrNotParticipant),
		errors.Is(err, gamedata.ErrAlreadyChosen),
		errors.Is(err, gamedata.ErrResultsPending),
		errors.Is(err, gamedata.ErrAlreadyResolved),
		errors.Is(err, gamedata.ErrNotReady),
		errors.Is(err, gamedata.ErrNoResults),
		errors.Is(err, gamedata.ErrStaleRound),
		errors.Is(err, rooms.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, rooms.ErrCodesExhausted),
		errors.Is(err, errNoDatabase):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// publicMessage hides internal failures from clients.
func publicMessage(err error) string {
	if statusFor(err) == http.StatusInternalServerError {
		return "internal error"
	}
	return err.Error()
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, status, errorResponse{Error: publicMessage(err)})
}

// playerID reads the caller's identity from the X-Player-ID header or the
// player_id cookie.
func playerID(r *http.Request) string {
	if id := r.Header.Get("X-Player-ID"); id != "" {
		return id
	}
	if c, err := r.Cookie("player_id"); err == nil {
		return c.Value
	}
	return ""
}

// sessionID returns the caller's id, minting a new one when absent or malformed.
func sessionID(r *http.Request) string {
	if id := playerID(r); id != "" {
		if _, err := uuid.Parse(id); err == nil {
			return id
		}
	}
	return uuid.NewString()
}

func setSession(w http.ResponseWriter, code, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     "room_code",
		Value:    code,
		Path:     "/",
		HttpOnly: true,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     "player_id",
		Value:    id,
		Path:     "/",
		HttpOnly: true,
	})
}

func clearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: "room_code", Path: "/", MaxAge: -1})
}

func roomCode(r *http.Request) (string, error) {
	return rooms.NormalizeCode(r.PathValue("code"))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return http.NewResponseController(r.ResponseWriter).Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// instrument counts requests per route pattern and status code.
func instrument(route string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
	})
}
