package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/carepoint/internal/application/services"
	"github.com/zatekoja/carepoint/internal/domain/entities"
	"github.com/zatekoja/carepoint/internal/domain/repositories"
	apperrors "github.com/zatekoja/carepoint/pkg/errors"
)

func newEntityService(t *testing.T) (*services.EntityService, *memoryEntityRepository, *recordingEventBus) {
	t.Helper()
	repo := newMemoryEntityRepository()
	bus := newRecordingEventBus()
	return services.NewEntityService(repo, nil, bus, nil), repo, bus
}

func TestEntityService_RequiresPrincipal(t *testing.T) {
	svc, _, _ := newEntityService(t)

	_, err := svc.Filter(context.Background(), nil, entities.EntityArticle, repositories.EntityQuery{})
	assert.Equal(t, apperrors.ErrorTypeUnauthorized, apperrors.TypeOf(err))
}

func TestEntityService_UnknownEntity(t *testing.T) {
	svc, _, _ := newEntityService(t)
	p := principal("a@example.com", entities.RoleUser)

	_, err := svc.Create(context.Background(), p, "Spaceship", map[string]any{"name": "x"})
	assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(err))
}

func TestEntityService_Create(t *testing.T) {
	t.Run("stamps creator and strips reserved keys", func(t *testing.T) {
		svc, _, bus := newEntityService(t)
		p := principal("Ada@Example.com", entities.RoleUser)

		rec, err := svc.Create(context.Background(), p, entities.EntityHealthRecord, map[string]any{
			"record_type": "lab_result",
			"created_by":  "someone-else@example.com",
			"id":          "forged",
		})

		require.NoError(t, err)
		assert.Equal(t, "ada@example.com", rec.CreatedBy)
		assert.NotEqual(t, "forged", rec.ID)
		assert.NotContains(t, rec.Data, "created_by")

		events := bus.entityEvents(t)
		require.Len(t, events, 1)
		assert.Equal(t, entities.EntityActionCreate, events[0].Action)
		assert.Equal(t, rec.ID, events[0].RecordID)
		assert.Equal(t, svc.InstanceID(), events[0].Origin)
	})

	t.Run("missing required fields", func(t *testing.T) {
		svc, _, _ := newEntityService(t)
		p := principal("a@example.com", entities.RoleUser)

		_, err := svc.Create(context.Background(), p, entities.EntityForumPost, map[string]any{"title": "Hi"})
		assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(err))
		assert.Contains(t, err.Error(), "content")
	})

	t.Run("system entities need admin", func(t *testing.T) {
		svc, _, _ := newEntityService(t)
		data := map[string]any{"user_email": "a@example.com", "title": "x"}

		_, err := svc.Create(context.Background(), principal("a@example.com", entities.RoleUser), entities.EntityNotification, data)
		assert.Equal(t, apperrors.ErrorTypeForbidden, apperrors.TypeOf(err))

		_, err = svc.Create(context.Background(), principal("root@example.com", entities.RoleAdmin), entities.EntityNotification, data)
		assert.NoError(t, err)
	})

	t.Run("event bus failure does not fail the write", func(t *testing.T) {
		svc, repo, bus := newEntityService(t)
		bus.err = errors.New("redis down")

		_, err := svc.Create(context.Background(), principal("a@example.com", entities.RoleUser), entities.EntityHealthRecord, map[string]any{"record_type": "x"})
		require.NoError(t, err)
		assert.Len(t, repo.all(entities.EntityHealthRecord), 1)
	})
}

func TestEntityService_OwnerScope(t *testing.T) {
	svc, repo, _ := newEntityService(t)
	ctx := context.Background()
	alice := principal("alice@example.com", entities.RoleUser)
	bob := principal("bob@example.com", entities.RoleUser)

	mine, err := svc.Create(ctx, alice, entities.EntityHealthRecord, map[string]any{"record_type": "bp"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, bob, entities.EntityHealthRecord, map[string]any{"record_type": "bp"})
	require.NoError(t, err)

	t.Run("filter only returns own records", func(t *testing.T) {
		recs, err := svc.Filter(ctx, alice, entities.EntityHealthRecord, repositories.EntityQuery{})
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, mine.ID, recs[0].ID)
	})

	t.Run("filter cannot be widened by a forged created_by", func(t *testing.T) {
		recs, err := svc.Filter(ctx, alice, entities.EntityHealthRecord, repositories.EntityQuery{
			Match: map[string]any{"created_by": "bob@example.com"},
		})
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, mine.ID, recs[0].ID)
	})

	t.Run("admins see everything", func(t *testing.T) {
		recs, err := svc.Filter(ctx, principal("root@example.com", entities.RoleAdmin), entities.EntityHealthRecord, repositories.EntityQuery{})
		require.NoError(t, err)
		assert.Len(t, recs, 2)
	})

	t.Run("other users get not found", func(t *testing.T) {
		_, err := svc.Get(ctx, bob, entities.EntityHealthRecord, mine.ID)
		assert.True(t, apperrors.IsNotFound(err))

		_, err = svc.Update(ctx, bob, entities.EntityHealthRecord, mine.ID, map[string]any{"notes": "x"})
		assert.True(t, apperrors.IsNotFound(err))

		err = svc.Delete(ctx, bob, entities.EntityHealthRecord, mine.ID)
		assert.True(t, apperrors.IsNotFound(err))
		assert.Len(t, repo.all(entities.EntityHealthRecord), 2)
	})

	t.Run("owner updates and deletes", func(t *testing.T) {
		rec, err := svc.Update(ctx, alice, entities.EntityHealthRecord, mine.ID, map[string]any{"notes": "fine", "created_by": "bob@example.com"})
		require.NoError(t, err)
		assert.Equal(t, "fine", rec.String("notes"))
		assert.Equal(t, "alice@example.com", rec.CreatedBy)

		require.NoError(t, svc.Delete(ctx, alice, entities.EntityHealthRecord, mine.ID))
		assert.Len(t, repo.all(entities.EntityHealthRecord), 1)
	})
}

func TestEntityService_PublicScope(t *testing.T) {
	svc, _, _ := newEntityService(t)
	ctx := context.Background()
	author := principal("author@example.com", entities.RoleUser)
	reader := principal("reader@example.com", entities.RoleUser)

	post, err := svc.Create(ctx, author, entities.EntityForumPost, map[string]any{"title": "Sleep", "content": "tips"})
	require.NoError(t, err)

	got, err := svc.Get(ctx, reader, entities.EntityForumPost, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sleep", got.String("title"))

	_, err = svc.Update(ctx, reader, entities.EntityForumPost, post.ID, map[string]any{"title": "Mine now"})
	assert.Equal(t, apperrors.ErrorTypeForbidden, apperrors.TypeOf(err))

	err = svc.Delete(ctx, reader, entities.EntityForumPost, post.ID)
	assert.Equal(t, apperrors.ErrorTypeForbidden, apperrors.TypeOf(err))

	_, err = svc.Update(ctx, principal("root@example.com", entities.RoleAdmin), entities.EntityForumPost, post.ID, map[string]any{"title": "Edited"})
	assert.NoError(t, err)
}

func TestEntityService_SystemScopeOwnerUpdates(t *testing.T) {
	svc, _, _ := newEntityService(t)
	ctx := context.Background()
	user := principal("pat@example.com", entities.RoleUser)

	n, err := svc.CreateAs(ctx, services.SystemActor, entities.EntityNotification, map[string]any{
		"user_email": "pat@example.com",
		"title":      "Booked",
		"is_read":    false,
	})
	require.NoError(t, err)

	got, err := svc.Get(ctx, user, entities.EntityNotification, n.ID)
	require.NoError(t, err)
	assert.Equal(t, "Booked", got.String("title"))

	updated, err := svc.Update(ctx, user, entities.EntityNotification, n.ID, map[string]any{"is_read": true})
	require.NoError(t, err)
	assert.True(t, updated.Bool("is_read"))

	_, err = svc.Update(ctx, user, entities.EntityNotification, n.ID, map[string]any{"title": "Changed"})
	assert.Equal(t, apperrors.ErrorTypeForbidden, apperrors.TypeOf(err))

	err = svc.Delete(ctx, user, entities.EntityNotification, n.ID)
	assert.Equal(t, apperrors.ErrorTypeForbidden, apperrors.TypeOf(err))
}

func TestEntityService_IndexesSearchableEntities(t *testing.T) {
	repo := newMemoryEntityRepository()
	search := new(MockSearchRepository)
	svc := services.NewEntityService(repo, search, nil, nil)
	ctx := context.Background()
	admin := principal("root@example.com", entities.RoleAdmin)

	search.On("Index", mock.Anything, mock.MatchedBy(func(r *entities.Record) bool {
		return r.Entity == entities.EntityArticle
	})).Return(nil).Once()
	search.On("Remove", mock.Anything, entities.EntityArticle, mock.AnythingOfType("string")).Return(nil).Once()

	rec, err := svc.Create(ctx, admin, entities.EntityArticle, map[string]any{"title": "Hydration", "content": "drink water"})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, admin, entities.EntityArticle, rec.ID))

	// not searchable, so never indexed
	_, err = svc.Create(ctx, admin, entities.EntityHealthRecord, map[string]any{"record_type": "x"})
	require.NoError(t, err)

	search.AssertExpectations(t)
}

func TestEntityService_Search(t *testing.T) {
	ctx := context.Background()
	reader := principal("reader@example.com", entities.RoleUser)

	t.Run("uses search engine hits", func(t *testing.T) {
		repo := newMemoryEntityRepository()
		search := new(MockSearchRepository)
		svc := services.NewEntityService(repo, search, nil, nil)
		a := repo.seed(t, entities.EntityArticle, "x@example.com", map[string]any{"title": "Heart health", "content": "..."})

		search.On("Search", mock.Anything, entities.EntityArticle, "heart", 20).
			Return([]string{a.ID, "00000000-0000-0000-0000-000000000000"}, nil)

		recs, err := svc.Search(ctx, reader, entities.EntityArticle, "heart", 0)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, a.ID, recs[0].ID)
	})

	t.Run("falls back to scanning", func(t *testing.T) {
		repo := newMemoryEntityRepository()
		search := new(MockSearchRepository)
		svc := services.NewEntityService(repo, search, nil, nil)
		repo.seed(t, entities.EntityArticle, "x@example.com", map[string]any{"title": "Heart health", "content": "cardio"})
		repo.seed(t, entities.EntityArticle, "x@example.com", map[string]any{"title": "Sleep", "content": "rest well"})

		search.On("Search", mock.Anything, entities.EntityArticle, "HEART", 20).Return(nil, errors.New("typesense down"))

		recs, err := svc.Search(ctx, reader, entities.EntityArticle, "HEART", 0)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, "Heart health", recs[0].String("title"))
	})

	t.Run("rejects entities without searchable fields", func(t *testing.T) {
		svc, _, _ := newEntityService(t)
		_, err := svc.Search(ctx, reader, entities.EntityHealthRecord, "x", 10)
		assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(err))
	})
}

func TestEntityService_AdminFields(t *testing.T) {
	svc, _, _ := newEntityService(t)
	ctx := context.Background()
	doc := principal("doc@example.com", entities.RoleUser)

	_, err := svc.Create(ctx, doc, entities.EntityDoctor, map[string]any{
		"full_name":           "Dr. Self",
		"specialization":      "Cardiology",
		"verification_status": "verified",
	})
	assert.Equal(t, apperrors.ErrorTypeForbidden, apperrors.TypeOf(err))

	rec, err := svc.Create(ctx, doc, entities.EntityDoctor, map[string]any{"full_name": "Dr. Self", "specialization": "Cardiology"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, doc, entities.EntityDoctor, rec.ID, map[string]any{"verification_status": "verified"})
	assert.Equal(t, apperrors.ErrorTypeForbidden, apperrors.TypeOf(err))

	_, err = svc.Update(ctx, doc, entities.EntityDoctor, rec.ID, map[string]any{"city": "Lagos"})
	assert.NoError(t, err)
}
