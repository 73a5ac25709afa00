package analytics

import "testing"

func TestEvaluateMatchBadges_Flawless(t *testing.T) {
	stats := PlayerMatchStats{Won: true, FinalScore: 3, BestOpponentScore: 0}
	badges := EvaluateMatchBadges(stats)
	if !hasBadge(badges, BadgeFlawless) {
		t.Error("should earn Flawless when no opponent scored")
	}
}

func TestEvaluateMatchBadges_NoFlawless(t *testing.T) {
	stats := PlayerMatchStats{Won: true, FinalScore: 3, BestOpponentScore: 1}
	badges := EvaluateMatchBadges(stats)
	if hasBadge(badges, BadgeFlawless) {
		t.Error("should not earn Flawless when an opponent scored")
	}
}

func TestEvaluateMatchBadges_Clutch(t *testing.T) {
	stats := PlayerMatchStats{Won: true, FinalScore: 5, TiebreakWins: 1, BestOpponentScore: 3}
	badges := EvaluateMatchBadges(stats)
	if !hasBadge(badges, BadgeClutch) {
		t.Error("should earn Clutch after winning a tie-break")
	}
}

func TestEvaluateMatchBadges_NoClutch(t *testing.T) {
	stats := PlayerMatchStats{Won: true, FinalScore: 5, BestOpponentScore: 3}
	badges := EvaluateMatchBadges(stats)
	if hasBadge(badges, BadgeClutch) {
		t.Error("should not earn Clutch without a tie-break win")
	}
}

func TestEvaluateMatchBadges_LoserEarnsNothing(t *testing.T) {
	stats := PlayerMatchStats{Won: false, TiebreakWins: 2, BestOpponentScore: 0}
	badges := EvaluateMatchBadges(stats)
	if len(badges) != 0 {
		t.Errorf("loser should earn no badges, got %d", len(badges))
	}
}

func TestEvaluateMatchBadges_MultipleBadges(t *testing.T) {
	stats := PlayerMatchStats{Won: true, FinalScore: 2, TiebreakWins: 1, BestOpponentScore: 0}
	badges := EvaluateMatchBadges(stats)
	// Should earn: Flawless, Clutch
	if len(badges) != 2 {
		t.Errorf("should earn 2 badges, got %d", len(badges))
	}
}

func TestEvaluateLifetimeBadges_Unstoppable(t *testing.T) {
	stats := PlayerLifetimeStats{WinStreak: 3}
	badges := EvaluateLifetimeBadges(stats)
	if !hasBadge(badges, BadgeUnstoppable) {
		t.Error("should earn Unstoppable with 3-match win streak")
	}
}

func TestEvaluateLifetimeBadges_NoUnstoppable(t *testing.T) {
	stats := PlayerLifetimeStats{WinStreak: 2}
	badges := EvaluateLifetimeBadges(stats)
	if hasBadge(badges, BadgeUnstoppable) {
		t.Error("should not earn Unstoppable with 2-match win streak")
	}
}

func TestEvaluateLifetimeBadges_Veteran(t *testing.T) {
	stats := PlayerLifetimeStats{MatchesPlayed: 10}
	badges := EvaluateLifetimeBadges(stats)
	if !hasBadge(badges, BadgeVeteran) {
		t.Error("should earn Veteran with 10 matches")
	}
}

func TestEvaluateLifetimeBadges_NoVeteran(t *testing.T) {
	stats := PlayerLifetimeStats{MatchesPlayed: 9}
	badges := EvaluateLifetimeBadges(stats)
	if hasBadge(badges, BadgeVeteran) {
		t.Error("should not earn Veteran with 9 matches")
	}
}

func TestWinStreak(t *testing.T) {
	tests := []struct {
		ranks []int
		want  int
	}{
		{nil, 0},
		{[]int{2, 1, 1}, 0},
		{[]int{1, 1, 2, 1}, 2},
		{[]int{1, 1, 1}, 3},
	}
	for _, tt := range tests {
		if got := winStreak(tt.ranks); got != tt.want {
			t.Errorf("winStreak(%v) = %d, want %d", tt.ranks, got, tt.want)
		}
	}
}

func hasBadge(badges []Badge, id BadgeID) bool {
	for _, b := range badges {
		if b.ID == id {
			return true
		}
	}
	return false
}
