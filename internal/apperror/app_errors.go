package apperror

import "errors"

var (
	ErrCellOccupied = errors.New("cell is already occupied")
	ErrOutOfBounds  = errors.New("cell is out of bounds")
	ErrInvalidBoard = errors.New("invalid board configuration")

	ErrSpawn             = errors.New("agent process failed to launch")
	ErrAgentDisconnected = errors.New("agent disconnected")
	ErrAgentTimeout      = errors.New("agent did not answer in time")
	ErrMalformedMove     = errors.New("move does not address a board cell")

	ErrGameAlreadyRunning = errors.New("game is already running")
	ErrRoundLeft          = errors.New("round was left before it started")
)

// IsAgentFatal reports whether err ends the round: the relay protocol has no
// way to resynchronize after a lost or silent agent.
func IsAgentFatal(err error) bool {
	return errors.Is(err, ErrAgentDisconnected) || errors.Is(err, ErrAgentTimeout)
}
