package gamedata

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"rpsp/internal/rps"
)

// Join seats a player. Rejoining with a seated id is a no-op. The room
// starts playing in the same write that fills it.
func (r *Room) Join(id, name string, now time.Time) error {
	if r.Players.Get(id) != nil {
		r.touch(now)
		return nil
	}
	name, err := ValidateName(name)
	if err != nil {
		return err
	}
	if r.IsFull() {
		return ErrRoomFull
	}
	if r.Status != StatusWaiting {
		return ErrGameInProgress
	}

	r.Players.Add(id, name, now)
	if r.IsFull() {
		r.startMatch(now)
	}
	r.touch(now)
	return nil
}

// Submit records a participant's throw for the current round.
func (r *Room) Submit(id string, c rps.Choice, now time.Time) error {
	if !c.Valid() {
		return rps.ErrInvalidChoice
	}
	if r.Status != StatusPlaying {
		return ErrNotPlaying
	}
	if r.Results != nil {
		return ErrResultsPending
	}
	if !r.IsParticipant(id) {
		return ErrNotParticipant
	}
	if r.Players.Get(id).Ready {
		return ErrAlreadyChosen
	}
	r.Players.SetChoice(id, c)
	r.touch(now)
	return nil
}

// ReadyToResolve reports whether every active participant has chosen and
// the round has no results yet.
func (r *Room) ReadyToResolve() bool {
	return r.Status == StatusPlaying && r.Results == nil && r.Players.AllReady(r.ActiveParticipants())
}

// ResolveRound scores the current round. It succeeds at most once per round.
func (r *Room) ResolveRound(now time.Time) (*Results, error) {
	if r.Status != StatusPlaying {
		return nil, ErrNotPlaying
	}
	if r.Results != nil {
		return nil, ErrAlreadyResolved
	}
	active := r.ActiveParticipants()
	if !r.Players.AllReady(active) {
		return nil, ErrNotReady
	}

	choices := make(map[string]rps.Choice, len(active))
	for _, id := range active {
		choices[id] = r.Players.Get(id).Choice
	}
	verdict := rps.Resolve(choices)
	out := Score(verdict, PolicyInput{
		PlayerCount:      r.Players.Count(),
		Tiebreaker:       r.Tiebreaker,
		TiebreakerActive: r.TiebreakerActive,
	})

	if out.ResetScores {
		r.Players.ResetScores()
	}
	for id, d := range out.Deltas {
		r.Players.UpdateScore(id, d)
	}
	r.Tiebreaker = out.Tiebreaker
	r.TiebreakerActive = out.TiebreakerActive
	r.Players.ResetRound()
	if out.Tag == TagTiebreakResolved {
		if r.TiebreakWins == nil {
			r.TiebreakWins = map[string]int{}
		}
		r.TiebreakWins[verdict.Players[0]]++
	}

	res := &Results{
		Round:                  r.Round,
		Type:                   verdict.Kind,
		Choices:                choices,
		Winners:                cloneStrings(verdict.Players),
		Tag:                    out.Tag,
		TiebreakerParticipants: cloneStrings(out.Tiebreaker),
	}
	res.Message = r.describe(res)
	r.Results = res

	if w := r.leader(); w != nil {
		r.Status = StatusFinished
		r.Winner = w
		finished := now
		r.FinishedAt = &finished
	}
	r.touch(now)
	return res, nil
}

// leader returns the match winner once any score reaches the target. When
// several cross together the highest score wins, then the lowest id.
func (r *Room) leader() *Winner {
	var best *Winner
	bestScore := -1
	for _, id := range r.Players.SortedIDs() {
		p := r.Players.Get(id)
		if p.Score < r.PointsToWin {
			continue
		}
		if p.Score > bestScore {
			best = &Winner{ID: p.ID, Name: p.Name}
			bestScore = p.Score
		}
	}
	return best
}

// Advance moves past a displayed result. round must match the resolved
// round so that duplicate timers are harmless.
func (r *Room) Advance(round int, now time.Time) error {
	if r.Status != StatusPlaying {
		return ErrNotPlaying
	}
	if r.Results == nil {
		return ErrNoResults
	}
	if r.Round != round {
		return ErrStaleRound
	}
	r.Round++
	r.Results = nil
	r.TiebreakerActive = len(r.Tiebreaker) == 2
	if !r.TiebreakerActive {
		r.Tiebreaker = nil
	}
	r.touch(now)
	return nil
}

// Restart begins a new match with the same roster.
func (r *Room) Restart(now time.Time) error {
	if r.Status != StatusFinished {
		return ErrNotFinished
	}
	r.resetMatch()
	if r.IsFull() {
		r.startMatch(now)
	} else {
		r.Status = StatusWaiting
	}
	r.touch(now)
	return nil
}

// Leave removes a player and reports whether the room is now empty. A match
// in progress cannot continue with a changed roster, so it returns to the
// waiting room.
func (r *Room) Leave(id string, now time.Time) (bool, error) {
	if !r.Players.Remove(id) {
		return false, ErrUnknownPlayer
	}
	if r.Players.Count() == 0 {
		return true, nil
	}
	if r.HostID == id {
		r.HostID = r.Players.GetList()[0].ID
	}
	if r.Status == StatusPlaying {
		r.resetMatch()
		r.Status = StatusWaiting
	}
	r.touch(now)
	return false, nil
}

func (r *Room) resetMatch() {
	r.Round = 1
	r.Players.ResetAll()
	r.Results = nil
	r.Tiebreaker = nil
	r.TiebreakerActive = false
	r.Winner = nil
	r.TiebreakWins = nil
	r.FinishedAt = nil
	r.MatchID = ""
	r.StartedAt = nil
}

func (r *Room) names(ids []string) string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if p := r.Players.Get(id); p != nil {
			names = append(names, p.Name)
		} else {
			names = append(names, id)
		}
	}
	sort.Strings(names)
	return strings.Join(names, " and ")
}

func (r *Room) describe(res *Results) string {
	switch res.Tag {
	case TagTiebreakResolved:
		return fmt.Sprintf("%s wins the tie-break! +2 points, +1 to the runner-up.", r.names(res.Winners))
	case TagWinner:
		return fmt.Sprintf("%s wins the round!", r.names(res.Winners))
	case TagTiebreakRetie:
		return "Tie-break tied again. Go again!"
	case TagTwoPlayerTie:
		return "It's a tie! Scores reset to 0."
	case TagTiebreakNext:
		return fmt.Sprintf("%s tied. Tie-break next round!", r.names(res.TiebreakerParticipants))
	case TagReplay:
		return "Everyone threw the same. Replay the round!"
	case TagImpasse:
		return "Three different throws. Impasse! Scores reset to 0."
	}
	return "No clear result. Replay the round."
}
