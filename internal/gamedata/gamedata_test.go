package gamedata

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rpsp/internal/rps"
)

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestRoom(t *testing.T, maxPlayers, pointsToWin int, ids ...string) *Room {
	t.Helper()
	r, err := NewRoom("RPSR", ids[0], "name-"+ids[0], maxPlayers, pointsToWin, t0)
	require.NoError(t, err)
	for i, id := range ids[1:] {
		require.NoError(t, r.Join(id, "name-"+id, t0.Add(time.Duration(i+1)*time.Second)))
	}
	return r
}

// play submits every listed choice, resolves, and returns the results.
func play(t *testing.T, r *Room, choices map[string]rps.Choice) *Results {
	t.Helper()
	for id, c := range choices {
		require.NoError(t, r.Submit(id, c, t0), "submit %s", id)
	}
	require.True(t, r.ReadyToResolve())
	res, err := r.ResolveRound(t0)
	require.NoError(t, err)
	return res
}

func advance(t *testing.T, r *Room) {
	t.Helper()
	require.NoError(t, r.Advance(r.Round, t0))
}

func scores(r *Room) map[string]int {
	out := map[string]int{}
	for id, p := range r.Players {
		out[id] = p.Score
	}
	return out
}

func TestNewRoom_Validation(t *testing.T) {
	_, err := NewRoom("RPSR", "h", "  ", 2, 3, t0)
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = NewRoom("RPSR", "h", "Host", 2, 0, t0)
	assert.ErrorIs(t, err, ErrInvalidPointsToWin)

	_, err = NewRoom("RPSR", "h", "Host", 2, 21, t0)
	assert.ErrorIs(t, err, ErrInvalidPointsToWin)

	_, err = NewRoom("RPSR", "h", "Host", 4, 3, t0)
	assert.ErrorIs(t, err, ErrInvalidMaxPlayers)

	r, err := NewRoom("RPSR", "h", " Host ", 3, 20, t0)
	require.NoError(t, err)
	assert.Equal(t, StatusWaiting, r.Status)
	assert.Equal(t, 1, r.Round)
	assert.Equal(t, "Host", r.Players.Get("h").Name)
}

func TestJoin_StartsWhenFull(t *testing.T) {
	r := newTestRoom(t, 3, 3, "a", "b")
	assert.Equal(t, StatusWaiting, r.Status)

	require.NoError(t, r.Join("c", "Carol", t0))
	assert.Equal(t, StatusPlaying, r.Status)

	assert.ErrorIs(t, r.Join("d", "Dave", t0), ErrRoomFull)
	assert.NoError(t, r.Join("a", "ignored", t0), "rejoin should be a no-op")
}

func TestJoin_InProgress(t *testing.T) {
	r := newTestRoom(t, 3, 3, "a", "b", "c")
	_, err := r.Leave("c", t0)
	require.NoError(t, err)
	r.Status = StatusFinished

	assert.ErrorIs(t, r.Join("d", "Dave", t0), ErrGameInProgress)
}

func TestSubmit_Preconditions(t *testing.T) {
	r := newTestRoom(t, 2, 3, "a")
	assert.ErrorIs(t, r.Submit("a", rps.Rock, t0), ErrNotPlaying)

	require.NoError(t, r.Join("b", "Bob", t0))
	assert.ErrorIs(t, r.Submit("a", rps.None, t0), rps.ErrInvalidChoice)
	assert.ErrorIs(t, r.Submit("ghost", rps.Rock, t0), ErrNotParticipant)

	require.NoError(t, r.Submit("a", rps.Rock, t0))
	assert.ErrorIs(t, r.Submit("a", rps.Paper, t0), ErrAlreadyChosen)
	assert.False(t, r.ReadyToResolve())

	_, err := r.ResolveRound(t0)
	assert.ErrorIs(t, err, ErrNotReady)

	require.NoError(t, r.Submit("b", rps.Rock, t0))
	_, err = r.ResolveRound(t0)
	require.NoError(t, err)
	assert.ErrorIs(t, r.Submit("a", rps.Rock, t0), ErrResultsPending)
}

func TestResolveRound_AtMostOncePerRound(t *testing.T) {
	r := newTestRoom(t, 2, 3, "a", "b")
	play(t, r, map[string]rps.Choice{"a": rps.Rock, "b": rps.Scissors})

	_, err := r.ResolveRound(t0)
	assert.ErrorIs(t, err, ErrAlreadyResolved)
	assert.Equal(t, 1, r.Players.Get("a").Score)
}

func TestResolveRound_ResetsChoices(t *testing.T) {
	r := newTestRoom(t, 2, 3, "a", "b")
	res := play(t, r, map[string]rps.Choice{"a": rps.Paper, "b": rps.Scissors})

	for _, p := range r.Players {
		assert.False(t, p.Ready)
		assert.Equal(t, rps.None, p.Choice)
	}
	assert.Equal(t, map[string]rps.Choice{"a": rps.Paper, "b": rps.Scissors}, res.Choices)
	assert.Equal(t, TagWinner, res.Tag)
	assert.Equal(t, "name-b wins the round!", res.Message)
}

func TestTwoPlayerTie_ResetsScores(t *testing.T) {
	r := newTestRoom(t, 2, 5, "a", "b")
	play(t, r, map[string]rps.Choice{"a": rps.Rock, "b": rps.Scissors})
	advance(t, r)
	play(t, r, map[string]rps.Choice{"a": rps.Rock, "b": rps.Scissors})
	advance(t, r)
	require.Equal(t, 2, r.Players.Get("a").Score)

	res := play(t, r, map[string]rps.Choice{"a": rps.Paper, "b": rps.Paper})
	assert.Equal(t, TagTwoPlayerTie, res.Tag)
	assert.Equal(t, map[string]int{"a": 0, "b": 0}, scores(r))
}

func TestImpasse_ResetsScoresAndTiebreak(t *testing.T) {
	r := newTestRoom(t, 3, 5, "a", "b", "c")
	play(t, r, map[string]rps.Choice{"a": rps.Paper, "b": rps.Rock, "c": rps.Rock})
	advance(t, r)
	require.Equal(t, 1, r.Players.Get("a").Score)

	res := play(t, r, map[string]rps.Choice{"a": rps.Rock, "b": rps.Paper, "c": rps.Scissors})
	assert.Equal(t, rps.KindImpasse, res.Type)
	assert.Equal(t, map[string]int{"a": 0, "b": 0, "c": 0}, scores(r))
	assert.Nil(t, r.Tiebreaker)
	assert.False(t, r.TiebreakerActive)
}

func TestThreeWaySameThrow_Replays(t *testing.T) {
	r := newTestRoom(t, 3, 5, "a", "b", "c")
	play(t, r, map[string]rps.Choice{"a": rps.Paper, "b": rps.Rock, "c": rps.Rock})
	advance(t, r)

	res := play(t, r, map[string]rps.Choice{"a": rps.Rock, "b": rps.Rock, "c": rps.Rock})
	assert.Equal(t, TagReplay, res.Tag)
	assert.Equal(t, map[string]int{"a": 1, "b": 0, "c": 0}, scores(r))
	assert.Nil(t, r.Tiebreaker)
}

func TestAdvance_Preconditions(t *testing.T) {
	r := newTestRoom(t, 2, 3, "a", "b")
	assert.ErrorIs(t, r.Advance(1, t0), ErrNoResults)

	play(t, r, map[string]rps.Choice{"a": rps.Rock, "b": rps.Rock})
	assert.ErrorIs(t, r.Advance(2, t0), ErrStaleRound)
	require.NoError(t, r.Advance(1, t0))
	assert.Equal(t, 2, r.Round)
	assert.Nil(t, r.Results)

	assert.ErrorIs(t, r.Advance(1, t0), ErrNoResults, "duplicate advance must not move the round")
	assert.Equal(t, 2, r.Round)
}

func TestScenario_TwoPlayerMatch(t *testing.T) {
	r := newTestRoom(t, 2, 3, "p1", "p2")

	res := play(t, r, map[string]rps.Choice{"p1": rps.Rock, "p2": rps.Rock})
	assert.Equal(t, rps.KindTie, res.Type)
	assert.Equal(t, map[string]int{"p1": 0, "p2": 0}, scores(r))
	advance(t, r)

	for i := 0; i < 3; i++ {
		res = play(t, r, map[string]rps.Choice{"p1": rps.Rock, "p2": rps.Scissors})
		assert.Equal(t, []string{"p1"}, res.Winners)
		if i < 2 {
			advance(t, r)
		}
	}

	assert.Equal(t, 3, r.Players.Get("p1").Score)
	assert.Equal(t, StatusFinished, r.Status)
	require.NotNil(t, r.Winner)
	assert.Equal(t, "p1", r.Winner.ID)
	assert.ErrorIs(t, r.Advance(r.Round, t0), ErrNotPlaying)
}

func TestScenario_ThreePlayerTiebreak(t *testing.T) {
	r := newTestRoom(t, 3, 5, "p1", "p2", "p3")

	res := play(t, r, map[string]rps.Choice{"p1": rps.Rock, "p2": rps.Rock, "p3": rps.Scissors})
	assert.Equal(t, rps.Verdict{Kind: rps.KindTie, Players: []string{"p1", "p2"}}, rps.Verdict{Kind: res.Type, Players: res.Winners})
	assert.Equal(t, []string{"p1", "p2"}, r.Tiebreaker)
	assert.False(t, r.TiebreakerActive, "tie-break activates on the next round")

	advance(t, r)
	assert.True(t, r.TiebreakerActive)
	assert.Equal(t, []string{"p1", "p2"}, r.ActiveParticipants())
	assert.ErrorIs(t, r.Submit("p3", rps.Paper, t0), ErrNotParticipant)

	res = play(t, r, map[string]rps.Choice{"p1": rps.Paper, "p2": rps.Rock})
	assert.Equal(t, TagTiebreakResolved, res.Tag)
	assert.Equal(t, map[string]int{"p1": 2, "p2": 1, "p3": 0}, scores(r))
	assert.Equal(t, map[string]int{"p1": 1}, r.TiebreakWins)
	assert.Nil(t, r.Tiebreaker)
	assert.False(t, r.TiebreakerActive)

	advance(t, r)
	assert.Equal(t, []string{"p1", "p2", "p3"}, r.ActiveParticipants())
}

func TestTiebreak_RetieKeepsPair(t *testing.T) {
	r := newTestRoom(t, 3, 5, "p1", "p2", "p3")
	play(t, r, map[string]rps.Choice{"p1": rps.Rock, "p2": rps.Rock, "p3": rps.Scissors})
	advance(t, r)

	res := play(t, r, map[string]rps.Choice{"p1": rps.Paper, "p2": rps.Paper})
	assert.Equal(t, TagTiebreakRetie, res.Tag)
	assert.Equal(t, map[string]int{"p1": 0, "p2": 0, "p3": 0}, scores(r))

	advance(t, r)
	assert.True(t, r.TiebreakerActive)
	assert.Equal(t, []string{"p1", "p2"}, r.ActiveParticipants())
}

func TestSimultaneousThreshold_SingleWinner(t *testing.T) {
	r := newTestRoom(t, 3, 2, "p1", "p2", "p3")
	r.Players.Get("p1").Score = 1
	r.Players.Get("p2").Score = 1
	r.Tiebreaker = []string{"p1", "p2"}
	r.TiebreakerActive = true

	// p2 wins the tie-break: p2 reaches 3, p1 reaches 2. Both cross the target.
	play(t, r, map[string]rps.Choice{"p1": rps.Scissors, "p2": rps.Rock})

	assert.Equal(t, StatusFinished, r.Status)
	assert.Equal(t, &Winner{ID: "p2", Name: "name-p2"}, r.Winner)
}

func TestSimultaneousThreshold_EqualScoresLowestID(t *testing.T) {
	r := newTestRoom(t, 2, 1, "b", "a")
	r.Players.Get("a").Score = 1
	r.Players.Get("b").Score = 1

	assert.Equal(t, "a", r.leader().ID)
}

func TestRestart(t *testing.T) {
	r := newTestRoom(t, 2, 1, "a", "b")
	assert.ErrorIs(t, r.Restart(t0), ErrNotFinished)

	play(t, r, map[string]rps.Choice{"a": rps.Rock, "b": rps.Scissors})
	require.Equal(t, StatusFinished, r.Status)
	firstMatch := r.MatchID
	require.NotEmpty(t, firstMatch)

	require.NoError(t, r.Restart(t0))
	assert.NotEqual(t, firstMatch, r.MatchID, "restart opens a new match")
	assert.Equal(t, StatusPlaying, r.Status)
	assert.Equal(t, 1, r.Round)
	assert.Nil(t, r.Winner)
	assert.Nil(t, r.Results)
	assert.Equal(t, map[string]int{"a": 0, "b": 0}, scores(r))
}

func TestLeave(t *testing.T) {
	r := newTestRoom(t, 3, 3, "a", "b", "c")
	play(t, r, map[string]rps.Choice{"a": rps.Paper, "b": rps.Rock, "c": rps.Rock})

	empty, err := r.Leave("a", t0)
	require.NoError(t, err)
	assert.False(t, empty)
	assert.Equal(t, StatusWaiting, r.Status)
	assert.Equal(t, "b", r.HostID, "host passes to the next seated player")
	assert.Equal(t, map[string]int{"b": 0, "c": 0}, scores(r))

	_, err = r.Leave("a", t0)
	assert.ErrorIs(t, err, ErrUnknownPlayer)

	_, _ = r.Leave("b", t0)
	empty, err = r.Leave("c", t0)
	require.NoError(t, err)
	assert.True(t, empty)
}

func TestClone_Independent(t *testing.T) {
	r := newTestRoom(t, 3, 3, "a", "b", "c")
	play(t, r, map[string]rps.Choice{"a": rps.Rock, "b": rps.Rock, "c": rps.Scissors})

	cp := r.Clone()
	if diff := cmp.Diff(r, cp); diff != "" {
		t.Fatalf("Clone() mismatch (-orig +clone):\n%s", diff)
	}

	cp.Players.Get("a").Score = 9
	cp.Tiebreaker[0] = "z"
	cp.Results.Choices["a"] = rps.Paper

	assert.Equal(t, 0, r.Players.Get("a").Score)
	assert.Equal(t, "a", r.Tiebreaker[0])
	assert.Equal(t, rps.Rock, r.Results.Choices["a"])
}

func TestPublic_HidesPendingChoices(t *testing.T) {
	r := newTestRoom(t, 2, 3, "a", "b")
	require.NoError(t, r.Submit("a", rps.Rock, t0))

	pub := r.Public()
	assert.Equal(t, rps.None, pub.Players.Get("a").Choice)
	assert.True(t, pub.Players.Get("a").Ready)
	assert.False(t, pub.Players.Get("b").Ready)
	assert.Equal(t, rps.Rock, r.Players.Get("a").Choice, "the stored room keeps the choice")

	require.NoError(t, r.Submit("b", rps.Scissors, t0))
	_, err := r.ResolveRound(t0)
	require.NoError(t, err)
	pub = r.Public()
	assert.Equal(t, rps.Rock, pub.Results.Choices["a"], "resolved choices are revealed")
}
