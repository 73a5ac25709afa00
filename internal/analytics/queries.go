package analytics

import (
	"fmt"

	"rpsp/internal/db"
)

type Queries struct {
	DB *db.DB
}

func NewQueries(database *db.DB) *Queries {
	return &Queries{DB: database}
}

func (q *Queries) GetPlayerMatchStats(matchID, playerID string) (*PlayerMatchStats, error) {
	stats := &PlayerMatchStats{
		MatchID:  matchID,
		PlayerID: playerID,
	}

	err := q.DB.QueryRow(`
		SELECT p.name, mp.final_score, mp.rank, mp.tiebreak_wins
		FROM match_players mp
		JOIN players p ON p.id = mp.player_id
		WHERE mp.match_id = $1 AND mp.player_id = $2
	`, matchID, playerID).Scan(&stats.PlayerName, &stats.FinalScore, &stats.Rank, &stats.TiebreakWins)
	if err != nil {
		return nil, fmt.Errorf("getting match player: %w", err)
	}
	stats.Won = stats.Rank == 1

	err = q.DB.QueryRow(`
		SELECT COALESCE(MAX(final_score), 0)
		FROM match_players
		WHERE match_id = $1 AND player_id <> $2
	`, matchID, playerID).Scan(&stats.BestOpponentScore)
	if err != nil {
		return nil, fmt.Errorf("getting opponent scores: %w", err)
	}

	err = q.DB.QueryRow(`
		SELECT COUNT(*) FROM rounds WHERE match_id = $1 AND winners ? $2
	`, matchID, playerID).Scan(&stats.RoundsWon)
	if err != nil {
		return nil, fmt.Errorf("getting rounds won: %w", err)
	}

	return stats, nil
}

func (q *Queries) GetPlayerLifetimeStats(playerID string) (*PlayerLifetimeStats, error) {
	stats := &PlayerLifetimeStats{
		PlayerID: playerID,
	}

	err := q.DB.QueryRow(`SELECT name FROM players WHERE id = $1`, playerID).Scan(&stats.PlayerName)
	if err != nil {
		return nil, fmt.Errorf("getting player: %w", err)
	}

	err = q.DB.QueryRow(`
		SELECT
			COUNT(*) as matches_played,
			COUNT(*) FILTER (WHERE rank = 1) as win_count,
			COALESCE(SUM(tiebreak_wins), 0) as tiebreak_wins,
			COALESCE(MAX(final_score), 0) as best_score
		FROM match_players
		WHERE player_id = $1
	`, playerID).Scan(&stats.MatchesPlayed, &stats.WinCount, &stats.TiebreakWins, &stats.BestScore)
	if err != nil {
		return nil, fmt.Errorf("getting lifetime stats: %w", err)
	}

	err = q.DB.QueryRow(`
		SELECT COUNT(*) FROM rounds WHERE winners ? $1
	`, playerID).Scan(&stats.RoundsWon)
	if err != nil {
		return nil, fmt.Errorf("getting rounds won: %w", err)
	}

	// Most recent consecutive wins
	rows, err := q.DB.Query(`
		SELECT mp.rank
		FROM match_players mp
		JOIN matches m ON m.id = mp.match_id
		WHERE mp.player_id = $1 AND m.ended_at IS NOT NULL
		ORDER BY m.ended_at DESC
	`, playerID)
	if err != nil {
		return nil, fmt.Errorf("getting win streak: %w", err)
	}
	defer rows.Close()

	ranks := []int{}
	for rows.Next() {
		var rank int
		if err := rows.Scan(&rank); err != nil {
			return nil, err
		}
		ranks = append(ranks, rank)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	stats.WinStreak = winStreak(ranks)

	stats.Badges = EvaluateLifetimeBadges(*stats)

	return stats, nil
}

// winStreak counts leading first-place finishes, newest first.
func winStreak(ranks []int) int {
	streak := 0
	for _, r := range ranks {
		if r != 1 {
			break
		}
		streak++
	}
	return streak
}

func (q *Queries) GetLeaderboard(category string, limit int) ([]LeaderboardEntry, error) {
	var query string
	switch category {
	case "wins":
		query = `
			SELECT p.id, p.name, COUNT(*) FILTER (WHERE mp.rank = 1) as value
			FROM players p
			JOIN match_players mp ON mp.player_id = p.id
			GROUP BY p.id, p.name
			ORDER BY value DESC, p.name
			LIMIT $1`
	case "rounds":
		query = `
			SELECT p.id, p.name, COUNT(r.id) as value
			FROM players p
			JOIN rounds r ON r.winners ? p.id::text
			GROUP BY p.id, p.name
			ORDER BY value DESC, p.name
			LIMIT $1`
	case "tiebreaks":
		query = `
			SELECT p.id, p.name, COALESCE(SUM(mp.tiebreak_wins), 0) as value
			FROM players p
			JOIN match_players mp ON mp.player_id = p.id
			GROUP BY p.id, p.name
			ORDER BY value DESC, p.name
			LIMIT $1`
	default:
		return nil, fmt.Errorf("unknown leaderboard category: %s", category)
	}

	rows, err := q.DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("getting leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []LeaderboardEntry
	rank := 1
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.PlayerID, &e.PlayerName, &e.Value); err != nil {
			return nil, err
		}
		e.Rank = rank
		rank++
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (q *Queries) GetMatchRecap(matchID string) (*MatchRecap, error) {
	recap := &MatchRecap{MatchID: matchID}

	err := q.DB.QueryRow(`
		SELECT room_code, points_to_win, rounds, started_at, ended_at FROM matches WHERE id = $1
	`, matchID).Scan(&recap.RoomCode, &recap.PointsToWin, &recap.Rounds, &recap.StartedAt, &recap.EndedAt)
	if err != nil {
		return nil, fmt.Errorf("getting match: %w", err)
	}

	rows, err := q.DB.Query(`
		SELECT player_id FROM match_players WHERE match_id = $1 ORDER BY rank
	`, matchID)
	if err != nil {
		return nil, fmt.Errorf("getting match players: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()

	for _, id := range ids {
		stats, err := q.GetPlayerMatchStats(matchID, id)
		if err != nil {
			return nil, err
		}
		recap.Players = append(recap.Players, *stats)
	}

	return recap, nil
}
