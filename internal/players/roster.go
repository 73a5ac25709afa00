package players

import (
	"sort"
	"time"

	"rpsp/internal/rps"
)

type Player struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Score    int        `json:"score"`
	Ready    bool       `json:"ready"`
	Choice   rps.Choice `json:"choice,omitempty"`
	JoinedAt time.Time  `json:"joinedAt"`
}

// Roster is the set of players seated in a room, keyed by player id.
// It is part of the room document and is not safe for concurrent use;
// callers mutate private copies obtained through Clone.
type Roster map[string]*Player

func (r Roster) Add(id, name string, now time.Time) *Player {
	p := &Player{ID: id, Name: name, JoinedAt: now}
	r[id] = p
	return p
}

func (r Roster) Get(id string) *Player {
	return r[id]
}

func (r Roster) Remove(id string) bool {
	if _, ok := r[id]; !ok {
		return false
	}
	delete(r, id)
	return true
}

func (r Roster) Count() int {
	return len(r)
}

// GetList returns players in seating order: join time, then id.
func (r Roster) GetList() []*Player {
	list := make([]*Player, 0, len(r))
	for _, p := range r {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].JoinedAt.Equal(list[j].JoinedAt) {
			return list[i].JoinedAt.Before(list[j].JoinedAt)
		}
		return list[i].ID < list[j].ID
	})
	return list
}

func (r Roster) SortedIDs() []string {
	ids := make([]string, 0, len(r))
	for id := range r {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r Roster) UpdateScore(id string, points int) *Player {
	if p, ok := r[id]; ok {
		p.Score += points
		return p
	}
	return nil
}

// SetChoice records a throw and marks the player ready.
func (r Roster) SetChoice(id string, c rps.Choice) *Player {
	if p, ok := r[id]; ok {
		p.Choice = c
		p.Ready = true
		return p
	}
	return nil
}

// AllReady reports whether every listed player is seated and ready.
func (r Roster) AllReady(ids []string) bool {
	if len(ids) == 0 {
		return false
	}
	for _, id := range ids {
		p, ok := r[id]
		if !ok || !p.Ready {
			return false
		}
	}
	return true
}

// ResetRound clears every player's choice and ready flag.
func (r Roster) ResetRound() {
	for _, p := range r {
		p.Ready = false
		p.Choice = rps.None
	}
}

// ResetScores zeroes every score.
func (r Roster) ResetScores() {
	for _, p := range r {
		p.Score = 0
	}
}

func (r Roster) ResetAll() {
	r.ResetRound()
	r.ResetScores()
}

func (r Roster) Clone() Roster {
	out := make(Roster, len(r))
	for id, p := range r {
		cp := *p
		out[id] = &cp
	}
	return out
}
