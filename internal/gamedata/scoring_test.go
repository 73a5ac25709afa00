package gamedata

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"rpsp/internal/rps"
)

func TestScore(t *testing.T) {
	pair := []string{"a", "b"}
	tests := []struct {
		name string
		v    rps.Verdict
		in   PolicyInput
		want Outcome
	}{
		{
			name: "tie-break winner",
			v:    rps.Verdict{Kind: rps.KindWinner, Players: []string{"b"}},
			in:   PolicyInput{PlayerCount: 3, Tiebreaker: pair, TiebreakerActive: true},
			want: Outcome{Deltas: map[string]int{"b": 2, "a": 1}, Tag: TagTiebreakResolved},
		},
		{
			name: "plain winner",
			v:    rps.Verdict{Kind: rps.KindWinner, Players: []string{"c"}},
			in:   PolicyInput{PlayerCount: 3},
			want: Outcome{Deltas: map[string]int{"c": 1}, Tag: TagWinner},
		},
		{
			name: "pending tie-break is not yet active",
			v:    rps.Verdict{Kind: rps.KindWinner, Players: []string{"a"}},
			in:   PolicyInput{PlayerCount: 3, Tiebreaker: pair},
			want: Outcome{Deltas: map[string]int{"a": 1}, Tag: TagWinner},
		},
		{
			name: "tie during tie-break",
			v:    rps.Verdict{Kind: rps.KindTie, Players: pair},
			in:   PolicyInput{PlayerCount: 3, Tiebreaker: pair, TiebreakerActive: true},
			want: Outcome{Tiebreaker: pair, Tag: TagTiebreakRetie},
		},
		{
			name: "two player tie",
			v:    rps.Verdict{Kind: rps.KindTie, Players: pair},
			in:   PolicyInput{PlayerCount: 2},
			want: Outcome{ResetScores: true, Tag: TagTwoPlayerTie},
		},
		{
			name: "three player tie between two",
			v:    rps.Verdict{Kind: rps.KindTie, Players: []string{"a", "c"}},
			in:   PolicyInput{PlayerCount: 3},
			want: Outcome{Tiebreaker: []string{"a", "c"}, Tag: TagTiebreakNext},
		},
		{
			name: "three player tie between all",
			v:    rps.Verdict{Kind: rps.KindTie, Players: []string{"a", "b", "c"}},
			in:   PolicyInput{PlayerCount: 3},
			want: Outcome{Tag: TagReplay},
		},
		{
			name: "impasse",
			v:    rps.Verdict{Kind: rps.KindImpasse},
			in:   PolicyInput{PlayerCount: 3, Tiebreaker: pair},
			want: Outcome{ResetScores: true, Tag: TagImpasse},
		},
		{
			name: "unclear keeps tie-break state",
			v:    rps.Verdict{Kind: rps.KindUnclear},
			in:   PolicyInput{PlayerCount: 3, Tiebreaker: pair, TiebreakerActive: true},
			want: Outcome{Tiebreaker: pair, TiebreakerActive: true, Tag: TagUnclear},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.v, tt.in)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Score() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
