package analytics

import (
	"sort"

	"rpsp/internal/db"
	"rpsp/internal/gamedata"
)

// Standings ranks a finished room's players: the winner first, then by
// score, then by id.
func Standings(room *gamedata.Room) []PlayerMatchStats {
	list := room.Players.GetList()
	winnerID := ""
	if room.Winner != nil {
		winnerID = room.Winner.ID
	}
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if (a.ID == winnerID) != (b.ID == winnerID) {
			return a.ID == winnerID
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.ID < b.ID
	})

	stats := make([]PlayerMatchStats, 0, len(list))
	for i, p := range list {
		best := 0
		for _, o := range list {
			if o.ID != p.ID && o.Score > best {
				best = o.Score
			}
		}
		stats = append(stats, PlayerMatchStats{
			PlayerID:          p.ID,
			PlayerName:        p.Name,
			MatchID:           room.MatchID,
			FinalScore:        p.Score,
			Rank:              i + 1,
			Won:               p.ID == winnerID,
			TiebreakWins:      room.TiebreakWins[p.ID],
			BestOpponentScore: best,
		})
	}
	return stats
}

// MatchResult converts a finished room into its history row.
func MatchResult(room *gamedata.Room) db.MatchResult {
	m := db.MatchResult{
		ID:          room.MatchID,
		RoomCode:    room.Code,
		HostID:      room.HostID,
		PointsToWin: room.PointsToWin,
		MaxPlayers:  room.MaxPlayers,
		Rounds:      room.Round,
		StartedAt:   room.StartedAt,
		EndedAt:     room.LastActivity,
	}
	if room.FinishedAt != nil {
		m.EndedAt = *room.FinishedAt
	}
	for _, s := range Standings(room) {
		m.Players = append(m.Players, db.MatchPlayer{
			PlayerID:     s.PlayerID,
			Name:         s.PlayerName,
			FinalScore:   s.FinalScore,
			Rank:         s.Rank,
			TiebreakWins: s.TiebreakWins,
		})
	}
	return m
}
