package gamedata

import "rpsp/internal/rps"

// Outcome tags, one per scoring branch.
const (
	TagTiebreakResolved = "tiebreak-resolved"
	TagWinner           = "winner"
	TagTiebreakRetie    = "tiebreak-retie"
	TagTwoPlayerTie     = "two-player-tie"
	TagTiebreakNext     = "tiebreak-next"
	TagReplay           = "replay"
	TagImpasse          = "impasse"
	TagUnclear          = "unclear"
)

// PolicyInput is the slice of match state the scoring policy depends on.
type PolicyInput struct {
	PlayerCount      int
	Tiebreaker       []string
	TiebreakerActive bool
}

// Outcome is the effect of one resolved round. Deltas are applied after
// ResetScores.
type Outcome struct {
	Deltas           map[string]int
	ResetScores      bool
	Tiebreaker       []string
	TiebreakerActive bool
	Tag              string
}

// Score maps a verdict to score changes and the next tie-break state.
func Score(v rps.Verdict, in PolicyInput) Outcome {
	active := in.TiebreakerActive && len(in.Tiebreaker) == 2

	switch v.Kind {
	case rps.KindWinner:
		winner := v.Players[0]
		if active {
			deltas := map[string]int{winner: 2}
			for _, id := range in.Tiebreaker {
				if id != winner {
					deltas[id] = 1
				}
			}
			return Outcome{Deltas: deltas, Tag: TagTiebreakResolved}
		}
		return Outcome{Deltas: map[string]int{winner: 1}, Tag: TagWinner}

	case rps.KindTie:
		switch {
		case active:
			return Outcome{Tiebreaker: cloneStrings(in.Tiebreaker), Tag: TagTiebreakRetie}
		case in.PlayerCount == 2:
			return Outcome{ResetScores: true, Tag: TagTwoPlayerTie}
		case len(v.Players) == 2:
			return Outcome{Tiebreaker: cloneStrings(v.Players), Tag: TagTiebreakNext}
		default:
			return Outcome{Tag: TagReplay}
		}

	case rps.KindImpasse:
		return Outcome{ResetScores: true, Tag: TagImpasse}
	}

	return Outcome{
		Tiebreaker:       cloneStrings(in.Tiebreaker),
		TiebreakerActive: in.TiebreakerActive,
		Tag:              TagUnclear,
	}
}
