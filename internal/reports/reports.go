// Package reports builds daily and period summaries over the loaded ledger.
package reports

import (
	"errors"
	"time"

	"shopledger/internal/cache"
	"shopledger/internal/core"
	"shopledger/internal/ledger"
)

// MaxPeriod bounds a period report.
const MaxPeriod = 366 * 24 * time.Hour

type Source interface {
	Filter(f core.TransactionFilter) []core.Transaction
	Subscribe(fn func(ledger.Change)) (cancel func())
}

type Service struct {
	src    Source
	cache  cache.Cache[core.Summary]
	loc    *time.Location
	cancel func()
}

// New returns a report service whose cache is dropped on every ledger change.
func New(src Source, c cache.Cache[core.Summary], loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	s := &Service{src: src, cache: c, loc: loc}
	s.cancel = src.Subscribe(func(ledger.Change) { s.cache.Purge() })
	return s
}

func (s *Service) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Daily summarises the calendar day containing day, in the service location.
func (s *Service) Daily(day time.Time) core.Summary {
	d := day.In(s.loc)
	from := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, s.loc)
	return s.summary(from, from.AddDate(0, 0, 1))
}

// Period summarises [from, to).
func (s *Service) Period(from, to time.Time) (core.Summary, error) {
	if !to.After(from) {
		return core.Summary{}, core.Validation(errors.New("period end must be after its start"))
	}
	if to.Sub(from) > MaxPeriod {
		return core.Summary{}, core.Validation(errors.New("period longer than one year"))
	}
	return s.summary(from, to), nil
}

func (s *Service) summary(from, to time.Time) core.Summary {
	key := from.UTC().Format(time.RFC3339) + "|" + to.UTC().Format(time.RFC3339)
	if sum, ok := s.cache.Get(key); ok {
		return sum
	}
	rows := s.src.Filter(core.TransactionFilter{From: from, To: to})
	sum := ledger.Summarize(rows, from, to, s.loc)
	s.cache.Set(key, sum)
	return sum
}
