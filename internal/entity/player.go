package entity

type Symbol string

const (
	PlayerX Symbol = "X"
	PlayerO Symbol = "O"

	EmptyCell Symbol = ""
)

type Player struct {
	Symbol      Symbol `json:"symbol"`
	DisplayName string `json:"display_name"`
	Active      bool   `json:"active"`
	Score       int    `json:"score"`
	IsWinner    bool   `json:"is_winner"`
}

func NewPlayer(symbol Symbol, displayName string) *Player {
	return &Player{
		Symbol:      symbol,
		DisplayName: displayName,
	}
}

// MarkWinner flags the player as the round winner and credits the score.
// It returns false when the player was already credited for this round.
func (that *Player) MarkWinner() bool {
	if that.IsWinner {
		return false
	}

	that.IsWinner = true
	that.Score++

	return true
}

// ResetRound clears the round-scoped flags; the score survives.
func (that *Player) ResetRound() {
	that.IsWinner = false
}
