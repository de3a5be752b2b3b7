package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/course-ops-api/pkg/errors"
	"github.com/noah-isme/course-ops-api/pkg/tabular"
)

type stubSource struct {
	tables []*tabular.Table
	errs   []error
	calls  int
}

func (s *stubSource) Read(context.Context) (*tabular.Table, error) {
	idx := s.calls
	s.calls++
	if idx < len(s.errs) && s.errs[idx] != nil {
		return nil, s.errs[idx]
	}
	if idx < len(s.tables) {
		return s.tables[idx], nil
	}
	return &tabular.Table{}, nil
}

func TestRosterServiceMergesSources(t *testing.T) {
	register := &stubSource{tables: []*tabular.Table{{
		Headers: []string{"Email Address", "Add Payment Screenshot"},
		Rows:    []map[string]string{{"Email Address": "a@x.com", "Add Payment Screenshot": "img"}},
	}}}
	survey := &stubSource{tables: []*tabular.Table{{
		Headers: []string{"Email Address", "Full Name"},
		Rows:    []map[string]string{{"Email Address": "A@X.com ", "Full Name": "Alice"}},
	}}}

	svc := NewRosterService(RosterServiceParams{Register: register, Survey: survey})
	rows, cached, err := svc.Merged(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, cached)
	require.Len(t, rows, 1)
	assert.Equal(t, "a@x.com", rows[0].Email)
	assert.Equal(t, PaymentPaid, rows[0].Fields[FieldPaymentStatus])
}

func TestRosterServiceRetriesOnRateLimit(t *testing.T) {
	register := &stubSource{
		errs: []error{appErrors.ErrRateLimited, appErrors.ErrRateLimited},
		tables: []*tabular.Table{nil, nil, {
			Headers: []string{"Email Address"},
			Rows:    []map[string]string{{"Email Address": "a@x.com"}},
		}},
	}

	var delays []time.Duration
	svc := NewRosterService(RosterServiceParams{
		Register: register,
		Survey:   &stubSource{},
		Config:   RosterServiceConfig{RetryAttempts: 3, RetryBaseDelay: 10 * time.Millisecond},
	})
	svc.sleep = func(d time.Duration) { delays = append(delays, d) }

	table, err := svc.Register(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 3, register.calls)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, delays)
	assert.Len(t, table.Rows, 1)
}

func TestRosterServiceExhaustedRetriesSurfaceRateLimit(t *testing.T) {
	register := &stubSource{
		errs: []error{appErrors.ErrRateLimited, appErrors.ErrRateLimited, appErrors.ErrRateLimited},
	}
	svc := NewRosterService(RosterServiceParams{
		Register: register,
		Survey:   &stubSource{},
		Config:   RosterServiceConfig{RetryAttempts: 3, RetryBaseDelay: time.Millisecond},
	})
	svc.sleep = func(time.Duration) {}

	_, err := svc.Register(context.Background(), true)
	assert.ErrorIs(t, err, appErrors.ErrRateLimited)
	assert.Equal(t, 3, register.calls)
}

func TestRosterServiceNonRateLimitErrorNotRetried(t *testing.T) {
	register := &stubSource{errs: []error{assert.AnError}}
	svc := NewRosterService(RosterServiceParams{Register: register, Survey: &stubSource{}})
	svc.sleep = func(time.Duration) { t.Fatal("should not sleep") }

	_, err := svc.Register(context.Background(), true)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, register.calls)
}

func TestRosterServiceMissingSource(t *testing.T) {
	svc := NewRosterService(RosterServiceParams{})
	_, err := svc.Register(context.Background(), false)
	assert.ErrorIs(t, err, appErrors.ErrNotConfigured)
}
