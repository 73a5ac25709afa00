package rps

import (
	"errors"
	"strings"
)

// Choice is a throw. The zero value means no choice has been made.
type Choice string

const (
	None     = Choice("")
	Rock     = Choice("rock")
	Paper    = Choice("paper")
	Scissors = Choice("scissors")
)

var ErrInvalidChoice = errors.New("invalid choice")

var defeats = map[Choice]Choice{
	Rock:     Scissors,
	Scissors: Paper,
	Paper:    Rock,
}

// Beats reports whether a defeats b.
func Beats(a, b Choice) bool {
	loser, ok := defeats[a]
	return ok && loser == b
}

func (c Choice) Valid() bool {
	_, ok := defeats[c]
	return ok
}

// ParseChoice accepts the lowercase names and the single-letter codes R, P, S.
func ParseChoice(s string) (Choice, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rock", "r":
		return Rock, nil
	case "paper", "p":
		return Paper, nil
	case "scissors", "s":
		return Scissors, nil
	}
	return None, ErrInvalidChoice
}
