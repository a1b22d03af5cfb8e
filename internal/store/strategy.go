package store

import (
	"fmt"

	"github.com/i474232898/quake-monitor/internal/quake"
)

// Insert strategies selectable by configuration.
const (
	StrategySession = "session"
	StrategyDirect  = "direct"
)

// NewInserter returns the insert strategy named by strategy.
func NewInserter(strategy string, d *DB) (quake.Inserter, error) {
	switch strategy {
	case StrategySession:
		return NewSessionInserter(d), nil
	case StrategyDirect:
		return NewDirectInserter(d), nil
	default:
		return nil, fmt.Errorf("store: unknown insert strategy %q", strategy)
	}
}
