package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/i474232898/quake-monitor/internal/quake"
)

// SessionInserter commits each candidate in its own gorm transaction. A unique
// constraint violation rolls that transaction back and counts as a duplicate.
type SessionInserter struct {
	db *gorm.DB
}

// NewSessionInserter creates an inserter on the shared gorm session.
func NewSessionInserter(d *DB) *SessionInserter {
	return &SessionInserter{db: d.gorm}
}

func (s *SessionInserter) InsertIfAbsent(ctx context.Context, e quake.Event) (quake.Outcome, error) {
	row := newEventRow(e)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&row).Error
	})
	switch {
	case err == nil:
		return quake.OutcomeNew, nil
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return quake.OutcomeDuplicate, nil
	default:
		return 0, unavailable("insert event", err)
	}
}
