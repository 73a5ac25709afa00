package db

import (
	"fmt"

	"github.com/google/uuid"
)

type ShotSession struct {
	ID         string
	Shooter    string
	CourseID   string
	CourseName string
	OffsetMs   int
}

type ShotRow struct {
	Pidx         int
	StageID      string
	ElapsedMs    float64
	DeltaMs      float64
	RawMs        float64
	CalibratedMs float64
	RMS          float64
}

// SaveShotSession stores a participant's archived shots and returns the
// session id.
func (d *DB) SaveShotSession(s ShotSession, shots []ShotRow) (string, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}

	tx, err := d.conn.Begin()
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO shot_sessions (id, shooter, course_id, course_name, offset_ms)
		VALUES ($1, $2, $3, $4, $5)
	`, s.ID, s.Shooter, s.CourseID, s.CourseName, s.OffsetMs); err != nil {
		return "", fmt.Errorf("inserting shot session: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO shots (session_id, pidx, stage_id, elapsed_ms, delta_ms, raw_ms, calibrated_ms, rms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`)
	if err != nil {
		return "", fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, sh := range shots {
		if _, err := stmt.Exec(s.ID, sh.Pidx, sh.StageID, sh.ElapsedMs, sh.DeltaMs, sh.RawMs, sh.CalibratedMs, sh.RMS); err != nil {
			return "", fmt.Errorf("recording shot: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing shot session: %w", err)
	}
	return s.ID, nil
}

func (d *DB) CountShots(sessionID string) (int, error) {
	var n int
	if err := d.conn.QueryRow(`SELECT COUNT(*) FROM shots WHERE session_id = $1`, sessionID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting shots: %w", err)
	}
	return n, nil
}
