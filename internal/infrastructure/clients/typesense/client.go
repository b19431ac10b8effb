package typesense

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/typesense/typesense-go/v2/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"
	"github.com/zatekoja/carepoint/pkg/config"
	"github.com/zatekoja/carepoint/pkg/retry"
)

const (
	// EntitiesCollection holds one document per searchable entity record
	EntitiesCollection = "entity_records"
)

// Client represents a Typesense client
type Client struct {
	client *typesense.Client
}

// NewClient creates a new Typesense client with exponential backoff retry
func NewClient(cfg *config.TypesenseConfig) (*Client, error) {
	client := typesense.NewClient(
		typesense.WithServer(cfg.URL),
		typesense.WithAPIKey(cfg.APIKey),
		typesense.WithConnectionTimeout(5*time.Second),
	)

	err := retry.DoWithLog(
		context.Background(),
		retry.DefaultConfig(),
		"Typesense",
		func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, err := client.Health(ctx, 2*time.Second)
			return err
		},
		func(attempt int, err error, nextDelay time.Duration) {
			log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", nextDelay).Msg("Typesense connection attempt failed")
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Typesense after retries: %w", err)
	}

	log.Info().Str("url", cfg.URL).Msg("connected to Typesense")
	return &Client{client: client}, nil
}

// Wrap returns a Client around an existing typesense client
func Wrap(client *typesense.Client) *Client {
	return &Client{client: client}
}

// Client returns the underlying Typesense client
func (c *Client) Client() *typesense.Client {
	return c.client
}

// InitSchema ensures the entity records collection exists
func (c *Client) InitSchema(ctx context.Context) error {
	_, err := c.client.Collection(EntitiesCollection).Retrieve(ctx)
	if err == nil {
		log.Debug().Str("collection", EntitiesCollection).Msg("Typesense collection already exists")
		return nil
	}
	if !IsNotFound(err) {
		return fmt.Errorf("failed to retrieve collection: %w", err)
	}

	schema := &api.CollectionSchema{
		Name: EntitiesCollection,
		Fields: []api.Field{
			{Name: "id", Type: "string"},
			{Name: "entity", Type: "string", Facet: pointer.True()},
			{Name: "title", Type: "string"},
			{Name: "body", Type: "string", Optional: pointer.True()},
			{Name: "tags", Type: "string[]", Facet: pointer.True(), Optional: pointer.True()},
			{Name: "created_date", Type: "int64"},
		},
		DefaultSortingField: pointer.String("created_date"),
	}

	if _, err := c.client.Collections().Create(ctx, schema); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	log.Info().Str("collection", EntitiesCollection).Msg("created Typesense collection")
	return nil
}

// IsNotFound reports whether err is a Typesense 404
func IsNotFound(err error) bool {
	var httpErr *typesense.HTTPError
	return errors.As(err, &httpErr) && httpErr.Status == http.StatusNotFound
}
