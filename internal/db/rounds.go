package db

import (
	"encoding/json"
	"fmt"
	"time"
)

type RoundRecord struct {
	MatchID    string
	RoomCode   string
	Round      int
	Verdict    string
	Tag        string
	Choices    map[string]string
	Winners    []string
	Scores     map[string]int
	ResolvedAt time.Time
}

func (r RoundRecord) args() ([]any, error) {
	choices, err := json.Marshal(r.Choices)
	if err != nil {
		return nil, fmt.Errorf("encoding choices: %w", err)
	}
	winners := r.Winners
	if winners == nil {
		winners = []string{}
	}
	w, err := json.Marshal(winners)
	if err != nil {
		return nil, fmt.Errorf("encoding winners: %w", err)
	}
	scores, err := json.Marshal(r.Scores)
	if err != nil {
		return nil, fmt.Errorf("encoding scores: %w", err)
	}
	return []any{r.MatchID, r.RoomCode, r.Round, r.Verdict, r.Tag, string(choices), string(w), string(scores), r.ResolvedAt}, nil
}

const insertRound = `
	INSERT INTO rounds (match_id, room_code, round, verdict, tag, choices, winners, scores, resolved_at)
	VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7::jsonb, $8::jsonb, $9)
`

func (d *DB) RecordRound(r RoundRecord) error {
	args, err := r.args()
	if err != nil {
		return err
	}
	if _, err := d.conn.Exec(insertRound, args...); err != nil {
		return fmt.Errorf("recording round: %w", err)
	}
	return nil
}

func (d *DB) BatchRecordRounds(rounds []RoundRecord) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(insertRound)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range rounds {
		args, err := r.args()
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(args...); err != nil {
			return fmt.Errorf("recording round in batch: %w", err)
		}
	}

	return tx.Commit()
}
