package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/zatekoja/carepoint/internal/domain/entities"
	"github.com/zatekoja/carepoint/internal/domain/repositories"
	"github.com/zatekoja/carepoint/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/carepoint/pkg/errors"
)

// FileAdapter stores uploaded files in Postgres
type FileAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewFileAdapter creates a new file adapter
func NewFileAdapter(client *postgres.Client) repositories.FileRepository {
	return &FileAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Save persists file, assigning its ID
func (a *FileAdapter) Save(ctx context.Context, file *entities.StoredFile) error {
	if file.ID == "" {
		file.ID = uuid.NewString()
	}
	file.CreatedAt = time.Now().UTC()
	file.Size = int64(len(file.Content))

	query, args, err := a.db.Insert("stored_files").Prepared(true).Rows(goqu.Record{
		"id":           file.ID,
		"filename":     file.Filename,
		"content_type": file.ContentType,
		"size":         file.Size,
		"uploaded_by":  file.UploadedBy,
		"content":      file.Content,
		"created_at":   file.CreatedAt,
	}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to store file", err)
	}
	return nil
}

// Get retrieves a stored file with its content
func (a *FileAdapter) Get(ctx context.Context, id string) (*entities.StoredFile, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("file %s not found", id))
	}

	query, args, err := a.db.From("stored_files").Prepared(true).
		Select("id", "filename", "content_type", "size", "uploaded_by", "content", "created_at").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	file := &entities.StoredFile{}
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&file.ID, &file.Filename, &file.ContentType, &file.Size, &file.UploadedBy, &file.Content, &file.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("file %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get file", err)
	}
	return file, nil
}
