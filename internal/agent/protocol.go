package agent

import (
	"strconv"

	"github.com/rocketscienceinc/kinarow/internal/entity"
)

// handshakeLines returns the setup lines in wire order.
func handshakeLines(size int, symbol entity.Symbol, active bool) []string {
	return []string{
		strconv.Itoa(size),
		string(symbol),
		activeFlag(active),
	}
}

// activeFlag renders the flag the way the reference clients expect it.
func activeFlag(active bool) string {
	if active {
		return "True"
	}
	return "False"
}
