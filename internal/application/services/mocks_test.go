package services_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/carepoint/internal/domain/entities"
	"github.com/zatekoja/carepoint/internal/domain/providers"
	"github.com/zatekoja/carepoint/internal/domain/repositories"
	apperrors "github.com/zatekoja/carepoint/pkg/errors"
)

// memoryEntityRepository is an in-memory EntityRepository with the same
// match, sort and merge rules as the Postgres adapter
type memoryEntityRepository struct {
	mu      sync.Mutex
	records map[string]*entities.Record
	seq     int
	batches int
}

func newMemoryEntityRepository() *memoryEntityRepository {
	return &memoryEntityRepository{records: make(map[string]*entities.Record)}
}

func cloneRecord(rec *entities.Record) *entities.Record {
	b, _ := json.Marshal(rec.Data)
	data := map[string]any{}
	_ = json.Unmarshal(b, &data)
	out := *rec
	out.Data = data
	return &out
}

func matches(rec *entities.Record, match map[string]any) bool {
	for k, want := range match {
		var got any
		switch k {
		case "id":
			got = rec.ID
		case "created_by":
			got = rec.CreatedBy
		default:
			got = rec.Data[k]
		}
		gb, _ := json.Marshal(got)
		wb, _ := json.Marshal(want)
		if string(gb) != string(wb) {
			return false
		}
	}
	return true
}

func sortValue(rec *entities.Record, field string) string {
	switch field {
	case "created_date":
		return rec.CreatedDate.Format(time.RFC3339Nano)
	case "updated_date":
		return rec.UpdatedDate.Format(time.RFC3339Nano)
	}
	return fmt.Sprint(rec.Data[field])
}

func (r *memoryEntityRepository) Filter(ctx context.Context, entity string, query repositories.EntityQuery) ([]*entities.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	query = query.Normalized()

	out := make([]*entities.Record, 0)
	for _, rec := range r.records {
		if rec.Entity == entity && matches(rec, query.Match) {
			out = append(out, cloneRecord(rec))
		}
	}

	desc := strings.HasPrefix(query.Sort, "-")
	field := strings.TrimPrefix(query.Sort, "-")
	sort.SliceStable(out, func(i, j int) bool {
		a, b := sortValue(out[i], field), sortValue(out[j], field)
		if a == b {
			return out[i].ID < out[j].ID
		}
		if desc {
			return a > b
		}
		return a < b
	})

	if query.Offset >= len(out) {
		return []*entities.Record{}, nil
	}
	out = out[query.Offset:]
	if len(out) > query.Limit {
		out = out[:query.Limit]
	}
	return out, nil
}

func (r *memoryEntityRepository) Get(ctx context.Context, entity, id string) (*entities.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok || rec.Entity != entity {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("%s with id %s not found", entity, id))
	}
	return cloneRecord(rec), nil
}

func (r *memoryEntityRepository) GetByIDs(ctx context.Context, entity string, ids []string) ([]*entities.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches++
	out := make([]*entities.Record, 0, len(ids))
	for _, id := range ids {
		if rec, ok := r.records[id]; ok && rec.Entity == entity {
			out = append(out, cloneRecord(rec))
		}
	}
	return out, nil
}

func (r *memoryEntityRepository) Create(ctx context.Context, record *entities.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	// monotonically increasing timestamps keep default ordering deterministic
	r.seq++
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(r.seq) * time.Second)
	record.CreatedDate = now
	record.UpdatedDate = now
	if record.Data == nil {
		record.Data = map[string]any{}
	}
	r.records[record.ID] = cloneRecord(record)
	return nil
}

func (r *memoryEntityRepository) Update(ctx context.Context, entity, id string, partial map[string]any) (*entities.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok || rec.Entity != entity {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("%s with id %s not found", entity, id))
	}
	patch := cloneRecord(&entities.Record{Data: partial}).Data
	for k := range partial {
		if partial[k] == nil {
			delete(rec.Data, k)
			continue
		}
		rec.Data[k] = patch[k]
	}
	rec.UpdatedDate = rec.UpdatedDate.Add(time.Second)
	return cloneRecord(rec), nil
}

func (r *memoryEntityRepository) Delete(ctx context.Context, entity, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok || rec.Entity != entity {
		return apperrors.NewNotFoundError(fmt.Sprintf("%s with id %s not found", entity, id))
	}
	delete(r.records, id)
	return nil
}

func (r *memoryEntityRepository) Count(ctx context.Context, entity string, match map[string]any) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, rec := range r.records {
		if rec.Entity == entity && matches(rec, match) {
			n++
		}
	}
	return n, nil
}

// seed stores a typed view directly, bypassing access rules
func (r *memoryEntityRepository) seed(t *testing.T, entity, createdBy string, v any) *entities.Record {
	t.Helper()
	data, err := entities.ToData(v)
	require.NoError(t, err)
	rec := entities.NewRecord(entity, createdBy, data)
	require.NoError(t, r.Create(context.Background(), rec))
	return rec
}

func (r *memoryEntityRepository) all(entity string) []*entities.Record {
	recs, _ := r.Filter(context.Background(), entity, repositories.EntityQuery{Limit: repositories.MaxEntityLimit})
	return recs
}

// recordingEventBus captures published events
type recordingEventBus struct {
	mu        sync.Mutex
	published map[string][][]byte
	err       error
}

func newRecordingEventBus() *recordingEventBus {
	return &recordingEventBus{published: make(map[string][][]byte)}
}

var _ providers.EventBus = (*recordingEventBus)(nil)

func (b *recordingEventBus) Publish(ctx context.Context, channel string, event any) error {
	if b.err != nil {
		return b.err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published[channel] = append(b.published[channel], data)
	return nil
}

func (b *recordingEventBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (b *recordingEventBus) Unsubscribe(ctx context.Context, channel string) error { return nil }
func (b *recordingEventBus) Close() error                                          { return nil }

func (b *recordingEventBus) count(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published[channel])
}

func (b *recordingEventBus) entityEvents(t *testing.T) []entities.EntityEvent {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	events := make([]entities.EntityEvent, 0, len(b.published[providers.EventChannelEntities]))
	for _, raw := range b.published[providers.EventChannelEntities] {
		var ev entities.EntityEvent
		require.NoError(t, json.Unmarshal(raw, &ev))
		events = append(events, ev)
	}
	return events
}

// MockSearchRepository mocks the search index
type MockSearchRepository struct {
	mock.Mock
}

func (m *MockSearchRepository) Index(ctx context.Context, rec *entities.Record) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockSearchRepository) Remove(ctx context.Context, entity, id string) error {
	args := m.Called(ctx, entity, id)
	return args.Error(0)
}

func (m *MockSearchRepository) Search(ctx context.Context, entity, q string, limit int) ([]string, error) {
	args := m.Called(ctx, entity, q, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockLLMProvider mocks the language model
type MockLLMProvider struct {
	mock.Mock
}

func (m *MockLLMProvider) Complete(ctx context.Context, req providers.CompletionRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// memoryUserRepository keeps users in a map keyed by id
type memoryUserRepository struct {
	mu    sync.Mutex
	users map[string]*entities.User
}

func newMemoryUserRepository() *memoryUserRepository {
	return &memoryUserRepository{users: make(map[string]*entities.User)}
}

func (r *memoryUserRepository) Create(ctx context.Context, user *entities.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user.Email = strings.ToLower(user.Email)
	for _, u := range r.users {
		if u.Email == user.Email {
			return apperrors.NewConflictError("an account with this email already exists")
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *memoryUserRepository) GetByID(ctx context.Context, id string) (*entities.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("user not found")
	}
	cp := *u
	return &cp, nil
}

func (r *memoryUserRepository) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == strings.ToLower(email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperrors.NewNotFoundError("user not found")
}

func (r *memoryUserRepository) UpdateFullName(ctx context.Context, id, fullName string) (*entities.User, error) {
	r.mu.Lock()
	u, ok := r.users[id]
	if ok {
		u.FullName = fullName
	}
	r.mu.Unlock()
	if !ok {
		return nil, apperrors.NewNotFoundError("user not found")
	}
	return r.GetByID(ctx, id)
}

func (r *memoryUserRepository) UpdateRole(ctx context.Context, id string, role entities.Role) (*entities.User, error) {
	r.mu.Lock()
	u, ok := r.users[id]
	if ok {
		u.Role = role
	}
	r.mu.Unlock()
	if !ok {
		return nil, apperrors.NewNotFoundError("user not found")
	}
	return r.GetByID(ctx, id)
}

func (r *memoryUserRepository) UpdateRoleByEmail(ctx context.Context, email string, role entities.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == strings.ToLower(email) {
			u.Role = role
			return nil
		}
	}
	return apperrors.NewNotFoundError("user not found")
}

// memoryFileRepository keeps uploaded files in a map
type memoryFileRepository struct {
	mu    sync.Mutex
	files map[string]*entities.StoredFile
}

func newMemoryFileRepository() *memoryFileRepository {
	return &memoryFileRepository{files: make(map[string]*entities.StoredFile)}
}

func (r *memoryFileRepository) Save(ctx context.Context, file *entities.StoredFile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if file.ID == "" {
		file.ID = uuid.NewString()
	}
	file.Size = int64(len(file.Content))
	cp := *file
	r.files[file.ID] = &cp
	return nil
}

func (r *memoryFileRepository) Get(ctx context.Context, id string) (*entities.StoredFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("file not found")
	}
	cp := *f
	return &cp, nil
}

// memoryCache is a map-backed CacheProvider
type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte), ttls: make(map[string]int)}
}

func (c *memoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, providers.ErrCacheMiss
	}
	return v, nil
}

func (c *memoryCache) Set(ctx context.Context, key string, value []byte, expirationSeconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.ttls[key] = expirationSeconds
	return nil
}

func (c *memoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *memoryCache) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok, nil
}

func (c *memoryCache) Incr(ctx context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	fmt.Sscan(string(c.data[key]), &n)
	n++
	c.data[key] = []byte(fmt.Sprint(n))
	return n, nil
}

func principal(email string, role entities.Role) *entities.Principal {
	return &entities.Principal{UserID: uuid.NewString(), Email: email, Role: role}
}
