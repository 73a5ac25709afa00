package gamedata

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"rpsp/internal/players"
	"rpsp/internal/rps"
)

type Status string

const (
	StatusWaiting  = Status("waiting")
	StatusPlaying  = Status("playing")
	StatusFinished = Status("finished")
)

const (
	MinPlayers     = 2
	MaxPlayers     = 3
	MinPointsToWin = 1
	MaxPointsToWin = 20
	MaxNameLength  = 32
)

var (
	ErrInvalidName        = errors.New("name is required")
	ErrInvalidPointsToWin = fmt.Errorf("points to win must be between %d and %d", MinPointsToWin, MaxPointsToWin)
	ErrInvalidMaxPlayers  = fmt.Errorf("max players must be %d or %d", MinPlayers, MaxPlayers)
	ErrRoomFull           = errors.New("room is full")
	ErrGameInProgress     = errors.New("game already in progress")
	ErrNotPlaying         = errors.New("game is not in progress")
	ErrNotFinished        = errors.New("game is not finished")
	ErrNotParticipant     = errors.New("player is not part of this round")
	ErrAlreadyChosen      = errors.New("choice already submitted")
	ErrResultsPending     = errors.New("round results are still showing")
	ErrAlreadyResolved    = errors.New("round already resolved")
	ErrNotReady           = errors.New("not every participant has chosen")
	ErrNoResults          = errors.New("round has not been resolved")
	ErrStaleRound         = errors.New("round already advanced")
	ErrUnknownPlayer      = errors.New("player not in room")
)

// Results describes the last resolved round until the room advances.
type Results struct {
	Round                  int                   `json:"round"`
	Type                   rps.Kind              `json:"type"`
	Choices                map[string]rps.Choice `json:"choices"`
	Winners                []string              `json:"winners,omitempty"`
	Tag                    string                `json:"tag"`
	Message                string                `json:"message"`
	TiebreakerParticipants []string              `json:"tiebreakerParticipants,omitempty"`
}

type Winner struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Room is the shared document every participant reads and writes.
type Room struct {
	Code             string         `json:"code"`
	HostID           string         `json:"hostId"`
	MaxPlayers       int            `json:"maxPlayers"`
	PointsToWin      int            `json:"pointsToWin"`
	Status           Status         `json:"status"`
	Round            int            `json:"round"`
	Players          players.Roster `json:"players"`
	Results          *Results       `json:"results"`
	Tiebreaker       []string       `json:"tiebreaker"`
	TiebreakerActive bool           `json:"tiebreakerActive"`
	Winner           *Winner        `json:"winner"`
	TiebreakWins     map[string]int `json:"tiebreakWins,omitempty"`
	MatchID          string         `json:"matchId,omitempty"`
	StartedAt        *time.Time     `json:"startedAt,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
	LastActivity     time.Time      `json:"lastActivity"`
	FinishedAt       *time.Time     `json:"finishedAt,omitempty"`
	Version          int64          `json:"version"`
}

// ValidateName trims a display name and checks its length.
func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > MaxNameLength {
		return "", ErrInvalidName
	}
	return name, nil
}

// NewRoom builds a waiting room with the host seated.
func NewRoom(code, hostID, hostName string, maxPlayers, pointsToWin int, now time.Time) (*Room, error) {
	name, err := ValidateName(hostName)
	if err != nil {
		return nil, err
	}
	if pointsToWin < MinPointsToWin || pointsToWin > MaxPointsToWin {
		return nil, ErrInvalidPointsToWin
	}
	if maxPlayers < MinPlayers || maxPlayers > MaxPlayers {
		return nil, ErrInvalidMaxPlayers
	}

	r := &Room{
		Code:         code,
		HostID:       hostID,
		MaxPlayers:   maxPlayers,
		PointsToWin:  pointsToWin,
		Status:       StatusWaiting,
		Round:        1,
		Players:      players.Roster{},
		CreatedAt:    now,
		LastActivity: now,
	}
	r.Players.Add(hostID, name, now)
	return r, nil
}

// Clone returns a deep copy safe to mutate.
func (r *Room) Clone() *Room {
	cp := *r
	cp.Players = r.Players.Clone()
	cp.Tiebreaker = cloneStrings(r.Tiebreaker)
	if r.Results != nil {
		res := *r.Results
		res.Choices = make(map[string]rps.Choice, len(r.Results.Choices))
		for id, c := range r.Results.Choices {
			res.Choices[id] = c
		}
		res.Winners = cloneStrings(r.Results.Winners)
		res.TiebreakerParticipants = cloneStrings(r.Results.TiebreakerParticipants)
		cp.Results = &res
	}
	if r.TiebreakWins != nil {
		cp.TiebreakWins = make(map[string]int, len(r.TiebreakWins))
		for id, n := range r.TiebreakWins {
			cp.TiebreakWins[id] = n
		}
	}
	if r.Winner != nil {
		w := *r.Winner
		cp.Winner = &w
	}
	if r.FinishedAt != nil {
		f := *r.FinishedAt
		cp.FinishedAt = &f
	}
	if r.StartedAt != nil {
		st := *r.StartedAt
		cp.StartedAt = &st
	}
	return &cp
}

// Public returns a copy safe to send to clients: pending choices are
// blanked and only each player's ready flag shows. Resolved choices stay
// visible through Results.
func (r *Room) Public() *Room {
	cp := r.Clone()
	for _, p := range cp.Players {
		p.Choice = rps.None
	}
	return cp
}

// ActiveParticipants returns the players taking part in the current round:
// the tie-break pair while a tie-break is active, everyone otherwise.
func (r *Room) ActiveParticipants() []string {
	if r.TiebreakerActive && len(r.Tiebreaker) == 2 {
		return cloneStrings(r.Tiebreaker)
	}
	return r.Players.SortedIDs()
}

func (r *Room) IsParticipant(id string) bool {
	for _, p := range r.ActiveParticipants() {
		if p == id {
			return true
		}
	}
	return false
}

func (r *Room) IsFull() bool {
	return r.Players.Count() >= r.MaxPlayers
}

// startMatch opens a new match on a full roster.
func (r *Room) startMatch(now time.Time) {
	r.Status = StatusPlaying
	r.Round = 1
	r.MatchID = uuid.NewString()
	started := now
	r.StartedAt = &started
}

func (r *Room) touch(now time.Time) {
	r.LastActivity = now
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
