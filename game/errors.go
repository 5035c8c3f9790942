package game

import "errors"

var (
	ErrAlreadyQueued    = errors.New("player is already in the matchmaking queue")
	ErrAlreadyInSession = errors.New("player is already in a session")
	ErrSessionNotFound  = errors.New("no active session for player")
)
