package analytics

type BadgeID string

const (
	BadgeFlawless    BadgeID = "flawless"
	BadgeClutch      BadgeID = "clutch"
	BadgeVeteran     BadgeID = "veteran"
	BadgeUnstoppable BadgeID = "unstoppable"
)

type Badge struct {
	ID          BadgeID `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Icon        string  `json:"icon"`
}

var AllBadges = map[BadgeID]Badge{
	BadgeFlawless:    {ID: BadgeFlawless, Name: "Flawless", Description: "Won a match with every opponent on 0", Icon: "💎"},
	BadgeClutch:      {ID: BadgeClutch, Name: "Clutch", Description: "Won a match after taking a tie-break", Icon: "🎯"},
	BadgeVeteran:     {ID: BadgeVeteran, Name: "Veteran", Description: "Played 10+ matches", Icon: "🏅"},
	BadgeUnstoppable: {ID: BadgeUnstoppable, Name: "Unstoppable", Description: "3-match win streak", Icon: "🔥"},
}

// EvaluateMatchBadges checks which badges a player earned in a single match.
func EvaluateMatchBadges(stats PlayerMatchStats) []Badge {
	var earned []Badge
	if !stats.Won {
		return earned
	}

	// Flawless: no opponent scored
	if stats.BestOpponentScore == 0 {
		earned = append(earned, AllBadges[BadgeFlawless])
	}

	// Clutch: took at least one tie-break on the way to the win
	if stats.TiebreakWins > 0 {
		earned = append(earned, AllBadges[BadgeClutch])
	}

	return earned
}

// EvaluateLifetimeBadges checks which badges a player earned across their career.
func EvaluateLifetimeBadges(stats PlayerLifetimeStats) []Badge {
	var earned []Badge

	// Unstoppable: 3-match win streak
	if stats.WinStreak >= 3 {
		earned = append(earned, AllBadges[BadgeUnstoppable])
	}

	// Veteran: 10+ matches
	if stats.MatchesPlayed >= 10 {
		earned = append(earned, AllBadges[BadgeVeteran])
	}

	return earned
}
