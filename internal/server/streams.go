package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"golang.org/x/time/rate"

	"rpsp/internal/broadcast"
	"rpsp/internal/gamedata"
	"rpsp/internal/rps"
	"rpsp/internal/wshub"
)

var errUnknownMessage = errors.New("unknown message type")

// handleEvents streams room snapshots as server-sent events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	code, err := roomCode(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	msgs, unsubscribe, err := s.Streams.Subscribe(r.Context(), code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			if err := broadcast.WriteSSE(w, msg); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// handleWS serves a seated player's WebSocket. Room snapshots are pushed as
// {"t":"room"}; the client may send choice, advance and play-again messages.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
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
	room, err := s.Rooms.Get(r.Context(), code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if room.Players.Get(id) == nil {
		s.writeError(w, r, gamedata.ErrUnknownPlayer)
		return
	}

	msgs, unsubscribe, err := s.Streams.Subscribe(r.Context(), code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer unsubscribe()

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Str("room", code).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	client := wshub.NewClient(code, id, conn)
	s.Hub.Register(client)
	defer s.Hub.Unregister(client)

	go func() {
		client.WritePump(ctx)
		cancel()
	}()
	go s.forwardRoom(ctx, cancel, client, msgs)

	s.readPump(ctx, client)
	conn.Close(websocket.StatusNormalClosure, "")
}

// forwardRoom relays the room feed to one connection. The connection is
// torn down when the room closes.
func (s *Server) forwardRoom(ctx context.Context, cancel context.CancelFunc, c *wshub.Client, msgs <-chan broadcast.Message) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			if msg.Event != "room" {
				s.Hub.SendTo(c.RoomCode, c.PlayerID, wshub.ServerMessage{Type: msg.Event})
				continue
			}
			s.Hub.SendTo(c.RoomCode, c.PlayerID, wshub.ServerMessage{Type: "room", Room: json.RawMessage(msg.Data)})
		}
	}
}

func (s *Server) readPump(ctx context.Context, c *wshub.Client) {
	limiter := rate.NewLimiter(5, 10)
	for {
		_, data, err := c.Conn.Read(ctx)
		if err != nil {
			return
		}

		var msg wshub.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.Hub.SendTo(c.RoomCode, c.PlayerID, wshub.ServerMessage{Type: "error", Error: errBadRequest.Error()})
			continue
		}
		if !limiter.Allow() {
			s.Hub.SendTo(c.RoomCode, c.PlayerID, wshub.ServerMessage{Type: "error", Error: errRateLimited.Error()})
			continue
		}

		if err := s.dispatch(ctx, c, msg); err != nil {
			s.Hub.SendTo(c.RoomCode, c.PlayerID, wshub.ServerMessage{Type: "error", Error: publicMessage(err)})
		}
	}
}

func (s *Server) dispatch(ctx context.Context, c *wshub.Client, msg wshub.ClientMessage) error {
	var err error
	switch msg.Type {
	case "choice":
		var choice rps.Choice
		if choice, err = rps.ParseChoice(msg.Choice); err != nil {
			return err
		}
		_, err = s.submit(ctx, c.RoomCode, c.PlayerID, choice)
	case "advance":
		_, err = s.advance(ctx, c.RoomCode, msg.Round)
		if isStale(err) {
			err = nil
		}
	case "play-again":
		_, err = s.restart(ctx, c.RoomCode, c.PlayerID)
	default:
		err = errUnknownMessage
	}
	if err != nil && statusFor(err) == http.StatusInternalServerError {
		s.log.Error().Err(err).Str("room", c.RoomCode).Str("type", msg.Type).Msg("websocket message failed")
	}
	return err
}
