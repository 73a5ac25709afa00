package server

import (
	"context"
	"errors"
	"time"

	"rpsp/internal/analytics"
	"rpsp/internal/events"
	"rpsp/internal/gamedata"
	"rpsp/internal/metrics"
	"rpsp/internal/rooms"
	"rpsp/internal/rps"
)

// submit records a throw. The round is resolved in the same transaction
// once every active participant has chosen.
func (s *Server) submit(ctx context.Context, code, id string, c rps.Choice) (*gamedata.Room, error) {
	var res *gamedata.Results
	room, err := s.Rooms.Update(ctx, code, func(room *gamedata.Room) error {
		res = nil
		now := s.now()
		if err := room.Submit(id, c, now); err != nil {
			return err
		}
		if !room.ReadyToResolve() {
			return nil
		}
		r, err := room.ResolveRound(now)
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	if res != nil {
		s.roundResolved(room, res)
	}
	return room, nil
}

func (s *Server) roundResolved(room *gamedata.Room, res *gamedata.Results) {
	metrics.RoundsResolved.WithLabelValues(string(res.Type)).Inc()

	ev := events.RoundEvent{
		RoomCode: room.Code,
		MatchID:  room.MatchID,
		Round:    res.Round,
		Verdict:  string(res.Type),
		Tag:      res.Tag,
		Choices:  make(map[string]string, len(res.Choices)),
		Winners:  res.Winners,
		Scores:   make(map[string]int, room.Players.Count()),
		Finished: room.Status == gamedata.StatusFinished,
		At:       room.LastActivity,
	}
	for id, c := range res.Choices {
		ev.Choices[id] = string(c)
	}
	for _, p := range room.Players.GetList() {
		ev.Scores[p.ID] = p.Score
	}
	if room.Winner != nil {
		ev.WinnerID = room.Winner.ID
	}
	if !s.Bus.PublishRound(ev) {
		s.log.Warn().Str("room", room.Code).Int("round", res.Round).Msg("round queue full, dropping event")
	}

	log := s.log.With().Str("room", room.Code).Int("round", res.Round).Logger()
	log.Info().Str("verdict", string(res.Type)).Str("tag", res.Tag).Msg("round resolved")

	if room.Status == gamedata.StatusFinished {
		metrics.MatchesFinished.Inc()
		log.Info().Str("winner", room.Winner.ID).Msg("match finished")
		go s.recordMatch(room)
		return
	}
	s.scheduleAdvance(room.Code, res.Round)
}

// scheduleAdvance moves the room past a displayed result after ResultDelay.
// Advance is keyed on the round, so a manual advance in the meantime makes
// this a no-op.
func (s *Server) scheduleAdvance(code string, round int) {
	time.AfterFunc(s.ResultDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := s.advance(ctx, code, round); err != nil && !isStale(err) {
			s.log.Warn().Err(err).Str("room", code).Int("round", round).Msg("scheduled advance failed")
		}
	})
}

func (s *Server) advance(ctx context.Context, code string, round int) (*gamedata.Room, error) {
	return s.Rooms.Update(ctx, code, func(room *gamedata.Room) error {
		return room.Advance(round, s.now())
	})
}

// isStale reports errors that mean someone else already moved the room on.
func isStale(err error) bool {
	return errors.Is(err, gamedata.ErrStaleRound) ||
		errors.Is(err, gamedata.ErrNoResults) ||
		errors.Is(err, gamedata.ErrNotPlaying) ||
		errors.Is(err, rooms.ErrNotFound)
}

func (s *Server) restart(ctx context.Context, code, id string) (*gamedata.Room, error) {
	return s.Rooms.Update(ctx, code, func(room *gamedata.Room) error {
		if room.Players.Get(id) == nil {
			return gamedata.ErrUnknownPlayer
		}
		return room.Restart(s.now())
	})
}

// leave removes the player and deletes the room when it empties. The
// returned room is nil once deleted.
func (s *Server) leave(ctx context.Context, code, id string) (*gamedata.Room, error) {
	return s.Rooms.Update(ctx, code, func(room *gamedata.Room) error {
		empty, err := room.Leave(id, s.now())
		if err != nil {
			return err
		}
		if empty {
			return rooms.Remove
		}
		return nil
	})
}

// recordMatch writes a finished match to history and awards badges.
func (s *Server) recordMatch(room *gamedata.Room) {
	if s.DB == nil {
		return
	}
	log := s.log.With().Str("room", room.Code).Str("match", room.MatchID).Logger()

	if err := s.DB.RecordMatch(analytics.MatchResult(room)); err != nil {
		log.Error().Err(err).Msg("recording match")
		return
	}

	q := analytics.NewQueries(s.DB)
	for _, st := range analytics.Standings(room) {
		for _, b := range analytics.EvaluateMatchBadges(st) {
			matchID := room.MatchID
			s.award(st.PlayerID, b, &matchID)
		}
		life, err := q.GetPlayerLifetimeStats(st.PlayerID)
		if err != nil {
			log.Error().Err(err).Str("player", st.PlayerID).Msg("loading lifetime stats")
			continue
		}
		for _, b := range life.Badges {
			s.award(st.PlayerID, b, nil)
		}
	}
	log.Info().Msg("match recorded")
}

func (s *Server) award(playerID string, b analytics.Badge, matchID *string) {
	awarded, err := s.DB.AwardBadge(playerID, string(b.ID), matchID)
	if err != nil {
		s.log.Error().Err(err).Str("player", playerID).Str("badge", string(b.ID)).Msg("awarding badge")
		return
	}
	if awarded {
		s.log.Info().Str("player", playerID).Str("badge", string(b.ID)).Msg("badge awarded")
	}
}

// rememberPlayer upserts the player's display name into history.
func (s *Server) rememberPlayer(id, name string) {
	if s.DB == nil {
		return
	}
	if err := s.DB.UpsertPlayer(id, name); err != nil {
		s.log.Error().Err(err).Str("player", id).Msg("upserting player")
	}
}
