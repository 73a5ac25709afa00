package db

import (
	"fmt"
	"time"
)

type BadgeRecord struct {
	BadgeID   string
	MatchID   *string
	AwardedAt time.Time
}

// AwardBadge grants a badge once per player; later awards are ignored.
func (d *DB) AwardBadge(playerID, badgeID string, matchID *string) (bool, error) {
	res, err := d.conn.Exec(`
		INSERT INTO player_badges (player_id, badge_id, match_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (player_id, badge_id) DO NOTHING
	`, playerID, badgeID, matchID)
	if err != nil {
		return false, fmt.Errorf("awarding badge: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (d *DB) GetPlayerBadges(playerID string) ([]BadgeRecord, error) {
	rows, err := d.conn.Query(`
		SELECT badge_id, match_id, awarded_at FROM player_badges WHERE player_id = $1 ORDER BY awarded_at
	`, playerID)
	if err != nil {
		return nil, fmt.Errorf("getting badges: %w", err)
	}
	defer rows.Close()

	var badges []BadgeRecord
	for rows.Next() {
		var b BadgeRecord
		if err := rows.Scan(&b.BadgeID, &b.MatchID, &b.AwardedAt); err != nil {
			return nil, err
		}
		badges = append(badges, b)
	}
	return badges, rows.Err()
}
