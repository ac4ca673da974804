package auditlog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/a2a-registry/internal/domain"
)

type fakeAuditStore struct {
	inserted  []*domain.AuditEntry
	insertErr error

	queried  []domain.AuditEntry
	queryErr error

	lastFilter domain.AuditFilter
	lastPage   int
	lastLimit  int
}

func (f *fakeAuditStore) Insert(_ context.Context, entry *domain.AuditEntry) (int64, error) {
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	f.inserted = append(f.inserted, entry)
	return int64(len(f.inserted)), nil
}

func (f *fakeAuditStore) Query(_ context.Context, filter domain.AuditFilter, page, limit int) ([]domain.AuditEntry, error) {
	f.lastFilter, f.lastPage, f.lastLimit = filter, page, limit
	return f.queried, f.queryErr
}

func TestRecordStampsEntry(t *testing.T) {
	store := &fakeAuditStore{}
	r := NewRecorder(store, zap.NewNop())
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return fixed }

	entry := &domain.AuditEntry{
		FromAgent: "did:web:a",
		ToAgent:   "did:web:b",
		Action:    "analyze",
		Result:    domain.ResultAllowed,
	}
	require.NoError(t, r.Record(context.Background(), entry))

	// Таймстемп и ID проставляет рекордер, metadata не остается nil
	assert.Equal(t, fixed, entry.Timestamp)
	assert.Equal(t, int64(1), entry.ID)
	assert.NotNil(t, entry.Metadata)
}

func TestRecordWrapsStoreFailure(t *testing.T) {
	store := &fakeAuditStore{insertErr: errors.New("disk full")}
	r := NewRecorder(store, zap.NewNop())

	err := r.Record(context.Background(), &domain.AuditEntry{})
	require.Error(t, err)
	assert.True(t, domain.IsAuditWrite(err))

	var awe *domain.AuditWriteError
	require.ErrorAs(t, err, &awe)
	assert.ErrorContains(t, awe.Err, "disk full")
}

func TestQueryValidation(t *testing.T) {
	r := NewRecorder(&fakeAuditStore{}, zap.NewNop())

	_, err := r.Query(context.Background(), domain.AuditFilter{}, 0, 100)
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))

	_, err = r.Query(context.Background(), domain.AuditFilter{}, 1, 0)
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
}

func TestQueryPassesFilterThrough(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeAuditStore{queried: []domain.AuditEntry{{ID: 7}}}
	r := NewRecorder(store, zap.NewNop())

	filter := domain.AuditFilter{From: "did:web:a", Action: "analyze", StartDate: &start}
	entries, err := r.Query(context.Background(), filter, 2, 50)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(7), entries[0].ID)

	assert.Equal(t, filter, store.lastFilter)
	assert.Equal(t, 2, store.lastPage)
	assert.Equal(t, 50, store.lastLimit)
}

func TestQueryWrapsStoreFailure(t *testing.T) {
	store := &fakeAuditStore{queryErr: errors.New("connection refused")}
	r := NewRecorder(store, zap.NewNop())

	_, err := r.Query(context.Background(), domain.AuditFilter{}, 1, 100)
	require.Error(t, err)
	assert.True(t, domain.IsStoreUnavailable(err))
}
