package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/zatekoja/carepoint/internal/domain/entities"
	"github.com/zatekoja/carepoint/internal/domain/repositories"
	"github.com/zatekoja/carepoint/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/carepoint/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/carepoint/pkg/errors"
)

const entityTable = "entity_records"

var (
	entityColumns = []any{"id", "entity", "created_by", "created_date", "updated_date", "data"}
	fieldNameRe   = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// EntityAdapter implements the EntityRepository interface on a single JSONB table
type EntityAdapter struct {
	client  *postgres.Client
	db      *goqu.Database
	metrics *observability.Metrics
}

// NewEntityAdapter creates a new entity adapter
func NewEntityAdapter(client *postgres.Client, metrics *observability.Metrics) repositories.EntityRepository {
	return &EntityAdapter{
		client:  client,
		db:      goqu.New("postgres", client.DB()),
		metrics: metrics,
	}
}

// Filter returns records of entity matching query
func (a *EntityAdapter) Filter(ctx context.Context, entity string, query repositories.EntityQuery) ([]*entities.Record, error) {
	query = query.Normalized()

	ds := a.db.From(entityTable).Prepared(true).Select(entityColumns...)
	ds, err := whereMatch(ds, entity, query.Match)
	if err != nil {
		return nil, err
	}

	order, err := sortExpression(query.Sort)
	if err != nil {
		return nil, err
	}
	ds = ds.Order(order, goqu.I("id").Asc()).Limit(uint(query.Limit))
	if query.Offset > 0 {
		ds = ds.Offset(uint(query.Offset))
	}

	sqlQuery, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build filter query", err)
	}

	start := time.Now()
	rows, err := a.client.DB().QueryContext(ctx, sqlQuery, args...)
	observability.RecordDBMetric(ctx, a.metrics, "entity_filter", time.Since(start))
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Sprintf("failed to filter %s records", entity), err)
	}
	defer rows.Close()

	records := make([]*entities.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan record", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate records", err)
	}

	return records, nil
}

// Get retrieves a record by ID
func (a *EntityAdapter) Get(ctx context.Context, entity, id string) (*entities.Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, notFound(entity, id)
	}

	sqlQuery, args, err := a.db.From(entityTable).Prepared(true).
		Select(entityColumns...).
		Where(goqu.Ex{"entity": entity, "id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	start := time.Now()
	rec, err := scanRecord(a.client.DB().QueryRowContext(ctx, sqlQuery, args...))
	observability.RecordDBMetric(ctx, a.metrics, "entity_get", time.Since(start))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(entity, id)
	}
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Sprintf("failed to get %s record", entity), err)
	}

	return rec, nil
}

// GetByIDs retrieves several records in one query
func (a *EntityAdapter) GetByIDs(ctx context.Context, entity string, ids []string) ([]*entities.Record, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return []*entities.Record{}, nil
	}

	sqlQuery, args, err := a.db.From(entityTable).Prepared(true).
		Select(entityColumns...).
		Where(goqu.Ex{"entity": entity, "id": valid}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	start := time.Now()
	rows, err := a.client.DB().QueryContext(ctx, sqlQuery, args...)
	observability.RecordDBMetric(ctx, a.metrics, "entity_get_many", time.Since(start))
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Sprintf("failed to get %s records", entity), err)
	}
	defer rows.Close()

	records := make([]*entities.Record, 0, len(valid))
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan record", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate records", err)
	}

	return records, nil
}

// Create persists a new record, assigning ID and timestamps
func (a *EntityAdapter) Create(ctx context.Context, record *entities.Record) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	record.CreatedDate = now
	record.UpdatedDate = now
	if record.Data == nil {
		record.Data = map[string]any{}
	}

	data, err := json.Marshal(record.Data)
	if err != nil {
		return apperrors.NewValidationError("record data is not valid JSON")
	}

	sqlQuery, args, err := a.db.Insert(entityTable).Prepared(true).Rows(goqu.Record{
		"id":           record.ID,
		"entity":       record.Entity,
		"created_by":   record.CreatedBy,
		"created_date": record.CreatedDate,
		"updated_date": record.UpdatedDate,
		"data":         string(data),
	}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	start := time.Now()
	_, err = a.client.DB().ExecContext(ctx, sqlQuery, args...)
	observability.RecordDBMetric(ctx, a.metrics, "entity_create", time.Since(start))
	if err != nil {
		return apperrors.NewInternalError(fmt.Sprintf("failed to create %s record", record.Entity), err)
	}

	return nil
}

// Update shallow-merges partial into the stored data in one statement.
// Keys whose value is nil are removed from the document.
func (a *EntityAdapter) Update(ctx context.Context, entity, id string, partial map[string]any) (*entities.Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, notFound(entity, id)
	}

	patch := make(map[string]any, len(partial))
	removed := pq.StringArray{}
	for k, v := range partial {
		if v == nil {
			removed = append(removed, k)
			continue
		}
		patch[k] = v
	}
	patchJSON, err := json.Marshal(patch)
	if err != nil {
		return nil, apperrors.NewValidationError("update data is not valid JSON")
	}
	removedKeys, err := removed.Value()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode removed keys", err)
	}

	sqlQuery, args, err := a.db.Update(entityTable).Prepared(true).
		Set(goqu.Record{
			"data":         goqu.L("(data || ?::jsonb) - ?::text[]", string(patchJSON), removedKeys),
			"updated_date": time.Now().UTC(),
		}).
		Where(goqu.Ex{"entity": entity, "id": id}).
		Returning(entityColumns...).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build update query", err)
	}

	start := time.Now()
	rec, err := scanRecord(a.client.DB().QueryRowContext(ctx, sqlQuery, args...))
	observability.RecordDBMetric(ctx, a.metrics, "entity_update", time.Since(start))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(entity, id)
	}
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Sprintf("failed to update %s record", entity), err)
	}

	return rec, nil
}

// Delete removes a record
func (a *EntityAdapter) Delete(ctx context.Context, entity, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return notFound(entity, id)
	}

	sqlQuery, args, err := a.db.Delete(entityTable).Prepared(true).
		Where(goqu.Ex{"entity": entity, "id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build delete query", err)
	}

	start := time.Now()
	result, err := a.client.DB().ExecContext(ctx, sqlQuery, args...)
	observability.RecordDBMetric(ctx, a.metrics, "entity_delete", time.Since(start))
	if err != nil {
		return apperrors.NewInternalError(fmt.Sprintf("failed to delete %s record", entity), err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return notFound(entity, id)
	}

	return nil
}

// Count returns the number of records matching match
func (a *EntityAdapter) Count(ctx context.Context, entity string, match map[string]any) (int, error) {
	ds := a.db.From(entityTable).Prepared(true).Select(goqu.COUNT("*"))
	ds, err := whereMatch(ds, entity, match)
	if err != nil {
		return 0, err
	}

	sqlQuery, args, err := ds.ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build count query", err)
	}

	var count int
	start := time.Now()
	err = a.client.DB().QueryRowContext(ctx, sqlQuery, args...).Scan(&count)
	observability.RecordDBMetric(ctx, a.metrics, "entity_count", time.Since(start))
	if err != nil {
		return 0, apperrors.NewInternalError(fmt.Sprintf("failed to count %s records", entity), err)
	}

	return count, nil
}

func whereMatch(ds *goqu.SelectDataset, entity string, match map[string]any) (*goqu.SelectDataset, error) {
	ds = ds.Where(goqu.Ex{"entity": entity})
	if len(match) == 0 {
		return ds, nil
	}

	data := make(map[string]any, len(match))
	for field, value := range match {
		if !fieldNameRe.MatchString(field) {
			return nil, apperrors.NewValidationError(fmt.Sprintf("invalid filter field %q", field))
		}
		if field == "id" && !validIDs(value) {
			return nil, apperrors.NewValidationError("id filter must be a UUID")
		}
		if entities.IsReservedKey(field) {
			ds = ds.Where(goqu.Ex{field: value})
			continue
		}
		data[field] = value
	}
	if len(data) == 0 {
		return ds, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, apperrors.NewValidationError("filter is not valid JSON")
	}
	return ds.Where(goqu.L("data @> ?::jsonb", string(b))), nil
}

// validIDs reports whether an id filter value, or every element of a list of
// them, parses as a UUID
func validIDs(value any) bool {
	switch v := value.(type) {
	case string:
		_, err := uuid.Parse(v)
		return err == nil
	case []string:
		for _, id := range v {
			if !validIDs(id) {
				return false
			}
		}
		return len(v) > 0
	case []any:
		for _, id := range v {
			if !validIDs(id) {
				return false
			}
		}
		return len(v) > 0
	default:
		return false
	}
}

// sortExpression turns "field" or "-field" into an ORDER BY term. Platform
// dates sort on their columns, everything else on the JSONB value (data->field)
// so numbers order numerically rather than as text.
func sortExpression(sort string) (exp.OrderedExpression, error) {
	desc := strings.HasPrefix(sort, "-")
	field := strings.TrimPrefix(sort, "-")
	if !fieldNameRe.MatchString(field) {
		return nil, apperrors.NewValidationError(fmt.Sprintf("invalid sort field %q", field))
	}

	var col exp.Orderable
	switch field {
	case "created_date", "updated_date", "created_by", "id":
		col = goqu.I(field)
	default:
		col = goqu.L("data->?", field)
	}
	if desc {
		return col.Desc(), nil
	}
	return col.Asc(), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*entities.Record, error) {
	rec := &entities.Record{}
	var raw []byte
	if err := row.Scan(&rec.ID, &rec.Entity, &rec.CreatedBy, &rec.CreatedDate, &rec.UpdatedDate, &raw); err != nil {
		return nil, err
	}
	rec.Data = map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &rec.Data); err != nil {
			return nil, fmt.Errorf("failed to decode record data: %w", err)
		}
	}
	rec.CreatedDate = rec.CreatedDate.UTC()
	rec.UpdatedDate = rec.UpdatedDate.UTC()
	return rec, nil
}

func notFound(entity, id string) error {
	return apperrors.NewNotFoundError(fmt.Sprintf("%s with id %s not found", entity, id))
}
