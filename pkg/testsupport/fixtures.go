// Package testsupport provides the database, cache and seeding helpers the
// repository tests share.
package testsupport

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/hnatiak/photoshare/cache"
	"github.com/hnatiak/photoshare/internal/storage"
	"github.com/hnatiak/photoshare/model"
)

// OpenTestDB opens a fresh in-memory SQLite database with the full schema.
// Each call gets its own database; the handle closes with the test.
func OpenTestDB(t *testing.T) *bun.DB {
	t.Helper()

	// A named shared-cache DSN keeps the database alive for the whole
	// test while staying private to it.
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := storage.OpenSQLite(dsn)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := storage.ResetSchema(context.Background(), db); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return db
}

// SeedUser inserts an account and returns it.
func SeedUser(t *testing.T, db *bun.DB, username string, role model.Role) *model.User {
	t.Helper()

	user := &model.User{
		Username:  username,
		Email:     username + "@example.com",
		Password:  "hashed-password",
		Role:      role,
		Confirmed: true,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if _, err := db.NewInsert().Model(user).Exec(context.Background()); err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return user
}

// SeedPhoto inserts a photo owned by the user and returns it.
func SeedPhoto(t *testing.T, db *bun.DB, owner *model.User, description string) *model.Photo {
	t.Helper()

	photo := &model.Photo{
		ID:          uuid.New(),
		UserID:      owner.ID,
		Description: description,
		URL:         "https://photos.example.com/" + uuid.NewString() + ".jpg",
		AssetType:   model.AssetOrigin,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	if _, err := db.NewInsert().Model(photo).Exec(context.Background()); err != nil {
		t.Fatalf("seed photo: %v", err)
	}
	return photo
}

// MemoryKV is an in-process cache.KeyValue for tests.
type MemoryKV struct {
	mu      sync.Mutex
	entries map[string][]byte
}

// NewMemoryKV returns an empty store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{entries: make(map[string][]byte)}
}

func (m *MemoryKV) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[key]
	return ok, nil
}

func (m *MemoryKV) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.entries[key]
	if !ok {
		return nil, cache.ErrNoEntry
	}
	return data, nil
}

func (m *MemoryKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	return nil
}

func (m *MemoryKV) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *MemoryKV) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var keys []string
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Len reports how many entries the store holds.
func (m *MemoryKV) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

var _ cache.KeyValue = (*MemoryKV)(nil)

// QueryCounter is a bun query hook counting SELECT statements, used to
// assert whether a read was served from cache or from the database.
type QueryCounter struct {
	mu      sync.Mutex
	selects int
}

// NewQueryCounter registers a counter on the database handle.
func NewQueryCounter(db *bun.DB) *QueryCounter {
	counter := &QueryCounter{}
	db.AddQueryHook(counter)
	return counter
}

func (c *QueryCounter) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	if strings.HasPrefix(strings.TrimSpace(strings.ToUpper(event.Query)), "SELECT") {
		c.mu.Lock()
		c.selects++
		c.mu.Unlock()
	}
	return ctx
}

func (c *QueryCounter) AfterQuery(ctx context.Context, event *bun.QueryEvent) {}

// Selects returns the number of SELECT statements seen so far.
func (c *QueryCounter) Selects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selects
}

// Reset zeroes the counter.
func (c *QueryCounter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selects = 0
}

var _ bun.QueryHook = (*QueryCounter)(nil)
