package analytics

import "time"

type PlayerMatchStats struct {
	PlayerID          string `json:"playerId"`
	PlayerName        string `json:"playerName"`
	MatchID           string `json:"matchId"`
	FinalScore        int    `json:"finalScore"`
	Rank              int    `json:"rank"`
	Won               bool   `json:"won"`
	RoundsWon         int    `json:"roundsWon"`
	TiebreakWins      int    `json:"tiebreakWins"`
	BestOpponentScore int    `json:"bestOpponentScore"`
}

type PlayerLifetimeStats struct {
	PlayerID      string  `json:"playerId"`
	PlayerName    string  `json:"playerName"`
	MatchesPlayed int     `json:"matchesPlayed"`
	WinCount      int     `json:"winCount"`
	RoundsWon     int     `json:"roundsWon"`
	TiebreakWins  int     `json:"tiebreakWins"`
	BestScore     int     `json:"bestScore"`
	WinStreak     int     `json:"winStreak"`
	Badges        []Badge `json:"badges"`
}

type LeaderboardEntry struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Value      int    `json:"value"`
	Rank       int    `json:"rank"`
}

type MatchRecap struct {
	MatchID     string             `json:"matchId"`
	RoomCode    string             `json:"roomCode"`
	PointsToWin int                `json:"pointsToWin"`
	Rounds      int                `json:"rounds"`
	StartedAt   *time.Time         `json:"startedAt"`
	EndedAt     *time.Time         `json:"endedAt"`
	Players     []PlayerMatchStats `json:"players"`
}
