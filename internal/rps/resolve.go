package rps

import "sort"

type Kind string

const (
	KindWinner  = Kind("winner")
	KindTie     = Kind("tie")
	KindImpasse = Kind("impasse")
	KindUnclear = Kind("unclear")
)

// Verdict is the outcome of one round. Players holds the single winner for
// KindWinner, the tied players for KindTie, and is empty otherwise. It is
// always sorted.
type Verdict struct {
	Kind    Kind     `json:"type"`
	Players []string `json:"players,omitempty"`
}

// Resolve classifies a round. choices must hold exactly the players taking
// part in the round.
func Resolve(choices map[string]Choice) Verdict {
	if len(choices) < 2 {
		return Verdict{Kind: KindUnclear}
	}

	ids := make([]string, 0, len(choices))
	distinct := make(map[Choice]struct{}, 3)
	for id, c := range choices {
		ids = append(ids, id)
		distinct[c] = struct{}{}
	}
	sort.Strings(ids)

	if len(distinct) == 1 {
		return Verdict{Kind: KindTie, Players: ids}
	}
	if len(ids) == 3 && len(distinct) == 3 {
		return Verdict{Kind: KindImpasse}
	}

	var winners []string
	for _, id := range ids {
		wins, losses := 0, 0
		for _, other := range ids {
			if other == id {
				continue
			}
			switch {
			case Beats(choices[id], choices[other]):
				wins++
			case Beats(choices[other], choices[id]):
				losses++
			}
		}
		if wins > 0 && losses == 0 {
			winners = append(winners, id)
		}
	}

	switch len(winners) {
	case 0:
		return Verdict{Kind: KindUnclear}
	case 1:
		return Verdict{Kind: KindWinner, Players: winners}
	default:
		return Verdict{Kind: KindTie, Players: winners}
	}
}
