package db

import (
	"fmt"
	"time"
)

type MatchPlayer struct {
	PlayerID     string
	Name         string
	FinalScore   int
	Rank         int
	TiebreakWins int
}

// MatchResult is a finished match as written to history.
type MatchResult struct {
	ID          string
	RoomCode    string
	HostID      string
	PointsToWin int
	MaxPlayers  int
	Rounds      int
	StartedAt   *time.Time
	EndedAt     time.Time
	Players     []MatchPlayer
}

// RecordMatch writes a finished match and its final standings in one
// transaction. Recording the same match twice is a no-op.
func (d *DB) RecordMatch(m MatchResult) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, p := range m.Players {
		if _, err := tx.Exec(`
			INSERT INTO players (id, name)
			VALUES ($1, $2)
			ON CONFLICT (id) DO UPDATE SET name = $2
		`, p.PlayerID, p.Name); err != nil {
			return fmt.Errorf("upserting match player: %w", err)
		}
	}

	res, err := tx.Exec(`
		INSERT INTO matches (id, room_code, host_id, points_to_win, max_players, rounds, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`, m.ID, m.RoomCode, nullable(m.HostID), m.PointsToWin, m.MaxPlayers, m.Rounds, m.StartedAt, m.EndedAt)
	if err != nil {
		return fmt.Errorf("inserting match: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}

	for _, p := range m.Players {
		if _, err := tx.Exec(`
			INSERT INTO match_players (match_id, player_id, final_score, rank, tiebreak_wins)
			VALUES ($1, $2, $3, $4, $5)
		`, m.ID, p.PlayerID, p.FinalScore, p.Rank, p.TiebreakWins); err != nil {
			return fmt.Errorf("inserting match player: %w", err)
		}
	}

	return tx.Commit()
}

type MatchRecord struct {
	ID          string
	RoomCode    string
	PointsToWin int
	Rounds      int
	StartedAt   *time.Time
	EndedAt     *time.Time
}

func (d *DB) GetMatch(id string) (*MatchRecord, error) {
	var m MatchRecord
	err := d.conn.QueryRow(`
		SELECT id, room_code, points_to_win, rounds, started_at, ended_at FROM matches WHERE id = $1
	`, id).Scan(&m.ID, &m.RoomCode, &m.PointsToWin, &m.Rounds, &m.StartedAt, &m.EndedAt)
	if err != nil {
		return nil, fmt.Errorf("getting match: %w", err)
	}
	return &m, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
