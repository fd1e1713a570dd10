package episode

import (
	"context"
	"errors"

	domain "github.com/oshokin/cry-relay/internal/domain/episode"
	"github.com/oshokin/cry-relay/internal/logger"
)

// Store defines persistence operations for episode records.
type Store interface {
	// Append writes one record.
	Append(ctx context.Context, record domain.Record) error
	// ByDate returns the records of date ("2006-01-02") in insertion order.
	ByDate(ctx context.Context, date string) ([]domain.Record, error)
	// Last returns the most recent record, or false when there is none.
	Last(ctx context.Context) (domain.Record, bool, error)
}

// ErrStoreDisabled is returned by Nop so callers can tell "not configured" from "empty".
var ErrStoreDisabled = errors.New("episode store is not configured")

// Nop stands in for a store whose data source is missing.
type Nop struct{}

// Append logs the record locally and drops it.
func (Nop) Append(ctx context.Context, record domain.Record) error {
	logger.WarnKV(ctx, "Episode store disabled, record not persisted", "date", record.Date, "time", record.Time)

	return ErrStoreDisabled
}

// ByDate reports the store as disabled.
func (Nop) ByDate(context.Context, string) ([]domain.Record, error) {
	return nil, ErrStoreDisabled
}

// Last reports the store as disabled.
func (Nop) Last(context.Context) (domain.Record, bool, error) {
	return domain.Record{}, false, ErrStoreDisabled
}
