package session

import (
	"context"

	"github.com/nerrad567/gray-logic-sqlbridge/internal/value"
)

// Transaction control statements issued around a transactional batch.
const (
	beginSQL    = "BEGIN TRANSACTION"
	commitSQL   = "COMMIT"
	rollbackSQL = "ROLLBACK"
)

// BatchItem is one statement of a batch with its positional parameters.
type BatchItem struct {
	SQL    string
	Params []value.Value
}

// ExecuteSet runs every item in order and returns the summed changes.
//
// With useTransaction the batch is all-or-nothing: the first failure rolls
// back every earlier item and no total is returned. Without it, items that
// succeeded before a failure stay committed.
//
// The Session is locked for the whole batch.
func (s *Session) ExecuteSet(ctx context.Context, batch []BatchItem, useTransaction bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return 0, ErrNotOpen
	}

	if useTransaction {
		if err := s.exec.exec(ctx, beginSQL, nil, bindNone); err != nil {
			return 0, &BatchError{Index: -1, SQL: beginSQL, Err: err}
		}
	}

	var total int64
	for i, item := range batch {
		res, err := s.runLocked(ctx, item.SQL, item.Params)
		if err != nil {
			if useTransaction {
				s.rollback(ctx)
			}
			return 0, &BatchError{Index: i, SQL: item.SQL, Err: err}
		}
		total += res.Changes
	}

	if useTransaction {
		if err := s.exec.exec(ctx, commitSQL, nil, bindNone); err != nil {
			s.rollback(ctx)
			return 0, &BatchError{Index: -1, SQL: commitSQL, Err: err}
		}
	}

	s.logger.Debug("batch executed",
		"database", s.name,
		"items", len(batch),
		"transaction", useTransaction,
		"changes", total,
	)
	return total, nil
}

// rollback aborts the open transaction. Its own failure is logged only, so
// the caller reports the error that caused the rollback.
func (s *Session) rollback(ctx context.Context) {
	// The caller's context may be the reason the batch failed.
	if err := s.exec.exec(context.WithoutCancel(ctx), rollbackSQL, nil, bindNone); err != nil {
		s.logger.Warn("rolling back batch", "database", s.name, "error", err)
	}
}
