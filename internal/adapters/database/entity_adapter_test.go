package database

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/carepoint/internal/domain/entities"
	"github.com/zatekoja/carepoint/internal/domain/repositories"
	"github.com/zatekoja/carepoint/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/carepoint/pkg/errors"
)

const testRecordID = "7d5c8a53-2f7e-4a4e-9b0e-2c6a1f0c9b11"

func setupEntityAdapter(t *testing.T) (repositories.EntityRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewEntityAdapter(postgres.NewClientFromDB(db), nil), mock
}

func recordRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "entity", "created_by", "created_date", "updated_date", "data"})
}

func TestEntityAdapter_Filter(t *testing.T) {
	adapter, mock := setupEntityAdapter(t)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT .* FROM "entity_records" WHERE .*data @> \$\d+::jsonb.*ORDER BY "created_date" DESC`).
		WillReturnRows(recordRows().
			AddRow(testRecordID, "Doctor", "admin@example.com", now, now, []byte(`{"full_name":"Dr. Ada","specialization":"Cardiology"}`)))

	records, err := adapter.Filter(context.Background(), "Doctor", repositories.EntityQuery{
		Match: map[string]any{"specialization": "Cardiology"},
	})

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, testRecordID, records[0].ID)
	assert.Equal(t, "Dr. Ada", records[0].String("full_name"))
	assert.True(t, now.Equal(records[0].CreatedDate))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntityAdapter_Filter_SortsOnDataField(t *testing.T) {
	adapter, mock := setupEntityAdapter(t)

	mock.ExpectQuery(`ORDER BY data->\$\d+ ASC`).WillReturnRows(recordRows())

	records, err := adapter.Filter(context.Background(), "Medicine", repositories.EntityQuery{Sort: "price"})

	require.NoError(t, err)
	assert.Empty(t, records)
	assert.NotNil(t, records)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntityAdapter_Filter_RejectsBadFieldNames(t *testing.T) {
	adapter, mock := setupEntityAdapter(t)

	_, err := adapter.Filter(context.Background(), "Doctor", repositories.EntityQuery{Sort: "-name; drop table"})
	assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(err))

	_, err = adapter.Filter(context.Background(), "Doctor", repositories.EntityQuery{
		Match: map[string]any{"a'b": 1},
	})
	assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntityAdapter_IDFilterMustBeUUID(t *testing.T) {
	adapter, mock := setupEntityAdapter(t)

	_, err := adapter.Filter(context.Background(), "Doctor", repositories.EntityQuery{
		Match: map[string]any{"id": "not-a-uuid"},
	})
	assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(err))
	assert.Equal(t, http.StatusBadRequest, apperrors.HTTPStatus(err))

	_, err = adapter.Filter(context.Background(), "Doctor", repositories.EntityQuery{
		Match: map[string]any{"id": []any{testRecordID, "x"}},
	})
	assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(err))

	_, err = adapter.Count(context.Background(), "Doctor", map[string]any{"id": 42})
	assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(err))

	mock.ExpectQuery(`"id" = \$\d+`).WillReturnRows(recordRows())
	_, err = adapter.Filter(context.Background(), "Doctor", repositories.EntityQuery{
		Match: map[string]any{"id": testRecordID},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntityAdapter_Get_NotFound(t *testing.T) {
	adapter, mock := setupEntityAdapter(t)

	mock.ExpectQuery(`SELECT .* FROM "entity_records"`).WillReturnRows(recordRows())

	_, err := adapter.Get(context.Background(), "Doctor", testRecordID)
	assert.True(t, apperrors.IsNotFound(err))

	_, err = adapter.Get(context.Background(), "Doctor", "not-a-uuid")
	assert.True(t, apperrors.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntityAdapter_Create(t *testing.T) {
	adapter, mock := setupEntityAdapter(t)

	mock.ExpectExec(`INSERT INTO "entity_records"`).WillReturnResult(sqlmock.NewResult(0, 1))

	rec := entities.NewRecord("Article", "a@example.com", map[string]any{"title": "Sleep"})
	require.NoError(t, adapter.Create(context.Background(), rec))

	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.CreatedDate.IsZero())
	assert.Equal(t, rec.CreatedDate, rec.UpdatedDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntityAdapter_Update_MergesAndReturnsRow(t *testing.T) {
	adapter, mock := setupEntityAdapter(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`UPDATE "entity_records" SET .*\(data \|\| \$\d+::jsonb\) - \$\d+::text\[\].*RETURNING`).
		WillReturnRows(recordRows().
			AddRow(testRecordID, "Appointment", "p@example.com", now, now, []byte(`{"status":"cancelled"}`)))

	rec, err := adapter.Update(context.Background(), "Appointment", testRecordID, map[string]any{
		"status": "cancelled",
		"notes":  nil,
	})

	require.NoError(t, err)
	assert.Equal(t, "cancelled", rec.String("status"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntityAdapter_Delete_NotFound(t *testing.T) {
	adapter, mock := setupEntityAdapter(t)

	mock.ExpectExec(`DELETE FROM "entity_records"`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := adapter.Delete(context.Background(), "Article", testRecordID)
	assert.True(t, apperrors.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntityAdapter_Count(t *testing.T) {
	adapter, mock := setupEntityAdapter(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM "entity_records"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	count, err := adapter.Count(context.Background(), "Appointment", map[string]any{"status": "pending"})

	require.NoError(t, err)
	assert.Equal(t, 7, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntityAdapter_Filter_CreatedByUsesColumn(t *testing.T) {
	adapter, mock := setupEntityAdapter(t)

	mock.ExpectQuery(`"created_by" = \$\d+`).WillReturnRows(recordRows())

	_, err := adapter.Filter(context.Background(), "HealthRecord", repositories.EntityQuery{
		Match: map[string]any{"created_by": "p@example.com"},
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntityAdapter_GetByIDs(t *testing.T) {
	adapter, mock := setupEntityAdapter(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT .* FROM "entity_records" WHERE .*"id" IN \(\$\d+\)`).
		WillReturnRows(recordRows().
			AddRow(testRecordID, "Doctor", "admin@example.com", now, now, []byte(`{"full_name":"Dr. Ada"}`)))

	records, err := adapter.GetByIDs(context.Background(), "Doctor", []string{testRecordID, "not-a-uuid"})

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Dr. Ada", records[0].String("full_name"))

	empty, err := adapter.GetByIDs(context.Background(), "Doctor", []string{"bad"})
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.NoError(t, mock.ExpectationsWereMet())
}
