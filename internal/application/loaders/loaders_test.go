package loaders

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/carepoint/internal/domain/entities"
	"github.com/zatekoja/carepoint/internal/domain/repositories"
	apperrors "github.com/zatekoja/carepoint/pkg/errors"
)

// stubRepository only implements GetByIDs; other methods panic through the nil interface
type stubRepository struct {
	repositories.EntityRepository

	mu        sync.Mutex
	records   map[string]*entities.Record
	requested []string
	err       error
}

func (r *stubRepository) GetByIDs(ctx context.Context, entity string, ids []string) ([]*entities.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requested = append(r.requested, ids...)
	if r.err != nil {
		return nil, r.err
	}
	out := make([]*entities.Record, 0, len(ids))
	for _, id := range ids {
		if rec, ok := r.records[id]; ok && rec.Entity == entity {
			out = append(out, rec)
		}
	}
	return out, nil
}

func doctorRecord(id, name string) *entities.Record {
	rec := entities.NewRecord(entities.EntityDoctor, "doc@example.com", map[string]any{
		"full_name":      name,
		"specialization": "Cardiology",
	})
	rec.ID = id
	return rec
}

func TestDoctorLoader(t *testing.T) {
	ctx := context.Background()
	repo := &stubRepository{records: map[string]*entities.Record{
		"d1": doctorRecord("d1", "Dr. One"),
		"d2": doctorRecord("d2", "Dr. Two"),
	}}
	l := NewLoaders(repo)

	first := l.DoctorLoader.Load(ctx, "d1")
	second := l.DoctorLoader.Load(ctx, "d2")
	again := l.DoctorLoader.Load(ctx, "d1")
	missing := l.DoctorLoader.Load(ctx, "d3")

	d1, err := first()
	require.NoError(t, err)
	assert.Equal(t, "Dr. One", d1.FullName)
	assert.Equal(t, "d1", d1.ID)

	d2, err := second()
	require.NoError(t, err)
	assert.Equal(t, "Dr. Two", d2.FullName)

	d1Again, err := again()
	require.NoError(t, err)
	assert.Same(t, d1, d1Again)

	_, err = missing()
	assert.True(t, apperrors.IsNotFound(err))

	assert.ElementsMatch(t, []string{"d1", "d2", "d3"}, repo.requested)
}

func TestDoctorLoader_RepositoryError(t *testing.T) {
	repo := &stubRepository{err: errors.New("connection refused")}
	l := NewLoaders(repo)

	_, err := l.DoctorLoader.Load(context.Background(), "d1")()
	assert.EqualError(t, err, "connection refused")
}

func TestLabTestLoader_SkipsOtherEntities(t *testing.T) {
	repo := &stubRepository{records: map[string]*entities.Record{
		"d1": doctorRecord("d1", "Dr. One"),
	}}
	l := NewLoaders(repo)

	_, err := l.LabTestLoader.Load(context.Background(), "d1")()
	assert.True(t, apperrors.IsNotFound(err))
}

func TestFor(t *testing.T) {
	assert.Nil(t, For(context.Background()))

	l := NewLoaders(&stubRepository{})
	ctx := WithLoaders(context.Background(), l)
	assert.Same(t, l, For(ctx))
}
