package cachequery

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hnatiak/photoshare/cache"
)

type testRecord struct {
	ID   int64
	Name string
}

// fakeQuery is a call-count spy standing in for a database-backed query.
type fakeQuery struct {
	identity    string
	identityErr error

	records []testRecord
	first   *testRecord
	scalar  int64

	allCalls    int
	firstCalls  int
	scalarCalls int
	relations   []string
}

func (q *fakeQuery) Identity() (string, error) { return q.identity, q.identityErr }

func (q *fakeQuery) EagerLoad(relations ...string) Query[testRecord] {
	q.relations = append(q.relations, relations...)
	return q
}

func (q *fakeQuery) All(ctx context.Context) ([]testRecord, error) {
	q.allCalls++
	return q.records, nil
}

func (q *fakeQuery) First(ctx context.Context) (*testRecord, error) {
	q.firstCalls++
	return q.first, nil
}

func (q *fakeQuery) Scalar(ctx context.Context) (int64, error) {
	q.scalarCalls++
	return q.scalar, nil
}

// memKV is a minimal in-process cache.KeyValue for exercising the executor
// without a backend.
type memKV struct {
	entries  map[string][]byte
	lastTTL  time.Duration
	setCalls int
}

func newMemKV() *memKV {
	return &memKV{entries: make(map[string][]byte)}
}

func (m *memKV) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := m.entries[key]
	return ok, nil
}

func (m *memKV) Get(ctx context.Context, key string) ([]byte, error) {
	data, ok := m.entries[key]
	if !ok {
		return nil, cache.ErrNoEntry
	}
	return data, nil
}

func (m *memKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.entries[key] = value
	m.lastTTL = ttl
	m.setCalls++
	return nil
}

func (m *memKV) Delete(ctx context.Context, key string) error {
	delete(m.entries, key)
	return nil
}

func (m *memKV) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	prefix := strings.TrimSuffix(pattern, "*")
	var keys []string
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func newTestExecutor(kv cache.KeyValue, bus *Bus, relations ...string) *Cacheable[testRecord] {
	return NewCacheable[testRecord](Config{
		Name:      "widget",
		KV:        kv,
		Bus:       bus,
		Prefixes:  []string{"widget", "part"},
		Relations: relations,
		Logger:    zerolog.Nop(),
	})
}

func TestCacheable_GetAllCachesResults(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	exec := newTestExecutor(kv, nil)

	seed := &fakeQuery{identity: "SELECT * FROM widgets", records: []testRecord{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}}}
	got, err := exec.GetAll(ctx, seed)
	if err != nil {
		t.Fatalf("GetAll() error = %v", err)
	}
	if len(got) != 2 || seed.allCalls != 1 {
		t.Fatalf("first GetAll() = %d records, %d executions; want 2, 1", len(got), seed.allCalls)
	}

	// Same identity, fresh query object: must be served without execution.
	repeat := &fakeQuery{identity: "SELECT * FROM widgets", records: []testRecord{{ID: 99}}}
	got, err = exec.GetAll(ctx, repeat)
	if err != nil {
		t.Fatalf("GetAll() error = %v", err)
	}
	if repeat.allCalls != 0 {
		t.Errorf("cached GetAll() executed the query %d times, want 0", repeat.allCalls)
	}
	if len(got) != 2 || got[0].Name != "a" {
		t.Errorf("cached GetAll() = %v, want the originally stored records", got)
	}
}

func TestCacheable_GetAllNeverStoresEmptyResults(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	exec := newTestExecutor(kv, nil)

	q := &fakeQuery{identity: "SELECT * FROM widgets WHERE 1=0"}
	if _, err := exec.GetAll(ctx, q); err != nil {
		t.Fatalf("GetAll() error = %v", err)
	}
	if kv.setCalls != 0 {
		t.Errorf("empty result was written to the cache (%d writes)", kv.setCalls)
	}

	// Rows appear later; the earlier empty run must not pin a miss.
	q2 := &fakeQuery{identity: "SELECT * FROM widgets WHERE 1=0", records: []testRecord{{ID: 5}}}
	got, err := exec.GetAll(ctx, q2)
	if err != nil {
		t.Fatalf("GetAll() error = %v", err)
	}
	if q2.allCalls != 1 || len(got) != 1 {
		t.Errorf("re-query after empty result: %d executions, %d records; want 1, 1", q2.allCalls, len(got))
	}
}

func TestCacheable_GetAllEagerLoadsOnMissOnly(t *testing.T) {
	ctx := context.Background()
	exec := newTestExecutor(newMemKV(), nil, "Owner", "Parts")

	q := &fakeQuery{identity: "q", records: []testRecord{{ID: 1}}}
	if _, err := exec.GetAll(ctx, q); err != nil {
		t.Fatalf("GetAll() error = %v", err)
	}
	if len(q.relations) != 2 || q.relations[0] != "Owner" || q.relations[1] != "Parts" {
		t.Errorf("miss attached relations %v, want [Owner Parts]", q.relations)
	}

	q2 := &fakeQuery{identity: "q"}
	if _, err := exec.GetAll(ctx, q2); err != nil {
		t.Fatalf("GetAll() error = %v", err)
	}
	if len(q2.relations) != 0 {
		t.Errorf("hit attached relations %v, want none", q2.relations)
	}
}

func TestCacheable_IdentityFailureFallsBackToDirectQuery(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	exec := newTestExecutor(kv, nil)

	q := &fakeQuery{identityErr: cache.ErrUnhashableKey, records: []testRecord{{ID: 1}}}
	got, err := exec.GetAll(ctx, q)
	if err != nil {
		t.Fatalf("GetAll() error = %v", err)
	}
	if q.allCalls != 1 || len(got) != 1 {
		t.Errorf("fallback executed %d times with %d records, want 1 and 1", q.allCalls, len(got))
	}
	if kv.setCalls != 0 {
		t.Error("result with unusable identity was cached")
	}
}

func TestCacheable_UnhashableLookupFallsBackToDirectQuery(t *testing.T) {
	ctx := context.Background()
	exec := newTestExecutor(newMemKV(), nil)

	q := &fakeQuery{first: &testRecord{ID: 1}}
	got, err := exec.GetFirst(ctx, func() {}, q)
	if err != nil {
		t.Fatalf("GetFirst() error = %v", err)
	}
	if got == nil || q.firstCalls != 1 {
		t.Errorf("GetFirst() = %v after %d executions, want record after 1", got, q.firstCalls)
	}
}

func TestCacheable_NilBackendAlwaysQueriesDirectly(t *testing.T) {
	ctx := context.Background()
	exec := newTestExecutor(nil, nil)

	q := &fakeQuery{identity: "q", records: []testRecord{{ID: 1}}}
	for i := 0; i < 3; i++ {
		if _, err := exec.GetAll(ctx, q); err != nil {
			t.Fatalf("GetAll() error = %v", err)
		}
	}
	if q.allCalls != 3 {
		t.Errorf("query executed %d times without a backend, want 3", q.allCalls)
	}
	if len(q.relations) != 0 {
		t.Errorf("direct path attached relations %v, want none", q.relations)
	}
}

func TestCacheable_WithoutCacheBypassesWarmEntries(t *testing.T) {
	ctx := context.Background()
	exec := newTestExecutor(newMemKV(), nil)

	warm := &fakeQuery{identity: "q", records: []testRecord{{ID: 1, Name: "stale"}}}
	if _, err := exec.GetAll(ctx, warm); err != nil {
		t.Fatalf("GetAll() error = %v", err)
	}

	fresh := &fakeQuery{identity: "q", records: []testRecord{{ID: 1, Name: "fresh"}}}
	got, err := exec.GetAll(WithoutCache(ctx), fresh)
	if err != nil {
		t.Fatalf("GetAll() error = %v", err)
	}
	if fresh.allCalls != 1 || got[0].Name != "fresh" {
		t.Errorf("bypassed read served %q after %d executions, want fresh after 1", got[0].Name, fresh.allCalls)
	}
}

func TestCacheable_GetFirstCachesByLookupKey(t *testing.T) {
	ctx := context.Background()
	exec := newTestExecutor(newMemKV(), nil)

	q := &fakeQuery{first: &testRecord{ID: 7, Name: "seven"}}
	got, err := exec.GetFirst(ctx, int64(7), q)
	if err != nil {
		t.Fatalf("GetFirst() error = %v", err)
	}
	if got == nil || got.Name != "seven" {
		t.Fatalf("GetFirst() = %v, want the queried record", got)
	}

	repeat := &fakeQuery{first: &testRecord{ID: 7, Name: "changed"}}
	got, err = exec.GetFirst(ctx, int64(7), repeat)
	if err != nil {
		t.Fatalf("GetFirst() error = %v", err)
	}
	if repeat.firstCalls != 0 || got.Name != "seven" {
		t.Errorf("cached GetFirst() = %q after %d executions, want seven after 0", got.Name, repeat.firstCalls)
	}

	other := &fakeQuery{first: &testRecord{ID: 8, Name: "eight"}}
	if _, err := exec.GetFirst(ctx, int64(8), other); err != nil {
		t.Fatalf("GetFirst() error = %v", err)
	}
	if other.firstCalls != 1 {
		t.Errorf("distinct lookup keys shared an entry (%d executions)", other.firstCalls)
	}
}

func TestCacheable_GetFirstNeverStoresMissingRecords(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	exec := newTestExecutor(kv, nil)

	q := &fakeQuery{}
	got, err := exec.GetFirst(ctx, int64(404), q)
	if err != nil {
		t.Fatalf("GetFirst() error = %v", err)
	}
	if got != nil {
		t.Fatalf("GetFirst() = %v, want nil", got)
	}
	if kv.setCalls != 0 {
		t.Error("absent record was written to the cache")
	}
}

func TestCacheable_GetScalarCachesNonZeroValues(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	exec := newTestExecutor(kv, nil, "Owner")

	q := &fakeQuery{scalar: 42}
	got, err := exec.GetScalar(ctx, int64(1), q)
	if err != nil {
		t.Fatalf("GetScalar() error = %v", err)
	}
	if got != 42 {
		t.Fatalf("GetScalar() = %d, want 42", got)
	}
	if len(q.relations) != 0 {
		t.Errorf("scalar read attached relations %v, want none", q.relations)
	}

	repeat := &fakeQuery{scalar: 100}
	got, err = exec.GetScalar(ctx, int64(1), repeat)
	if err != nil {
		t.Fatalf("GetScalar() error = %v", err)
	}
	if repeat.scalarCalls != 0 || got != 42 {
		t.Errorf("cached GetScalar() = %d after %d executions, want 42 after 0", got, repeat.scalarCalls)
	}
}

func TestCacheable_GetScalarTreatsZeroAsMiss(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	exec := newTestExecutor(kv, nil)

	q := &fakeQuery{scalar: 0}
	if got, err := exec.GetScalar(ctx, int64(1), q); err != nil || got != 0 {
		t.Fatalf("GetScalar() = %d, %v; want 0, nil", got, err)
	}
	if kv.setCalls != 0 {
		t.Error("zero scalar was written to the cache")
	}

	q2 := &fakeQuery{scalar: 3}
	got, err := exec.GetScalar(ctx, int64(1), q2)
	if err != nil {
		t.Fatalf("GetScalar() error = %v", err)
	}
	if q2.scalarCalls != 1 || got != 3 {
		t.Errorf("re-query after zero: %d executions, value %d; want 1, 3", q2.scalarCalls, got)
	}
}

func TestCacheable_CreatedEventInvalidatesListsAndRecords(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	bus := NewBus(zerolog.Nop())
	exec := newTestExecutor(kv, bus)

	list := &fakeQuery{identity: "list", records: []testRecord{{ID: 1}}}
	if _, err := exec.GetAll(ctx, list); err != nil {
		t.Fatalf("GetAll() error = %v", err)
	}
	rec := &fakeQuery{first: &testRecord{ID: 1}}
	if _, err := exec.GetFirst(ctx, int64(1), rec); err != nil {
		t.Fatalf("GetFirst() error = %v", err)
	}

	bus.Trigger(ctx, "widget", EventCreated, int64(2))

	list2 := &fakeQuery{identity: "list", records: []testRecord{{ID: 1}, {ID: 2}}}
	got, err := exec.GetAll(ctx, list2)
	if err != nil {
		t.Fatalf("GetAll() error = %v", err)
	}
	if list2.allCalls != 1 || len(got) != 2 {
		t.Errorf("list after created event: %d executions, %d records; want 1, 2", list2.allCalls, len(got))
	}

	// Record entries are keyed; the event only named id 2, so the entry
	// for id 1 stands until an event carries its id.
	rec2 := &fakeQuery{first: &testRecord{ID: 1}}
	if _, err := exec.GetFirst(ctx, int64(1), rec2); err != nil {
		t.Fatalf("GetFirst() error = %v", err)
	}
	if rec2.firstCalls != 0 {
		t.Errorf("record keyed 1 fell on an event naming id 2 (%d executions)", rec2.firstCalls)
	}

	bus.Trigger(ctx, "widget", EventCreated, int64(1))

	rec3 := &fakeQuery{first: &testRecord{ID: 1}}
	if _, err := exec.GetFirst(ctx, int64(1), rec3); err != nil {
		t.Fatalf("GetFirst() error = %v", err)
	}
	if rec3.firstCalls != 1 {
		t.Errorf("record after matching created event: %d executions, want 1", rec3.firstCalls)
	}
}

func TestCacheable_ScalarEntriesSurviveCreatedEvents(t *testing.T) {
	ctx := context.Background()
	bus := NewBus(zerolog.Nop())
	exec := newTestExecutor(newMemKV(), bus)

	q := &fakeQuery{scalar: 5}
	if _, err := exec.GetScalar(ctx, int64(1), q); err != nil {
		t.Fatalf("GetScalar() error = %v", err)
	}

	bus.Trigger(ctx, "widget", EventCreated, int64(1))

	repeat := &fakeQuery{scalar: 6}
	got, err := exec.GetScalar(ctx, int64(1), repeat)
	if err != nil {
		t.Fatalf("GetScalar() error = %v", err)
	}
	if repeat.scalarCalls != 0 || got != 5 {
		t.Errorf("scalar after created event: %d executions, value %d; want 0, 5", repeat.scalarCalls, got)
	}

	bus.Trigger(ctx, "widget", EventUpdated, int64(1))

	refresh := &fakeQuery{scalar: 6}
	got, err = exec.GetScalar(ctx, int64(1), refresh)
	if err != nil {
		t.Fatalf("GetScalar() error = %v", err)
	}
	if refresh.scalarCalls != 1 || got != 6 {
		t.Errorf("scalar after updated event: %d executions, value %d; want 1, 6", refresh.scalarCalls, got)
	}
}

func TestCacheable_ForeignPrefixEventInvalidatesByCarriedID(t *testing.T) {
	ctx := context.Background()
	bus := NewBus(zerolog.Nop())
	exec := newTestExecutor(newMemKV(), bus)

	rec := &fakeQuery{first: &testRecord{ID: 10, Name: "widget-10"}}
	if _, err := exec.GetFirst(ctx, int64(10), rec); err != nil {
		t.Fatalf("GetFirst() error = %v", err)
	}

	// A write on a related aggregate carries its own id plus the widget id;
	// the widget-keyed entry must fall even though the prefix is foreign.
	bus.Trigger(ctx, "part", EventCreated, int64(3), int64(10))

	rec2 := &fakeQuery{first: &testRecord{ID: 10, Name: "widget-10"}}
	if _, err := exec.GetFirst(ctx, int64(10), rec2); err != nil {
		t.Fatalf("GetFirst() error = %v", err)
	}
	if rec2.firstCalls != 1 {
		t.Errorf("record after foreign-prefix event: %d executions, want 1", rec2.firstCalls)
	}
}

func TestCacheable_ConfiguredTTLReachesBackend(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	exec := NewCacheable[testRecord](Config{
		Name:   "widget",
		KV:     kv,
		TTL:    90 * time.Second,
		Logger: zerolog.Nop(),
	})

	q := &fakeQuery{identity: "q", records: []testRecord{{ID: 1}}}
	if _, err := exec.GetAll(ctx, q); err != nil {
		t.Fatalf("GetAll() error = %v", err)
	}
	if kv.lastTTL != 90*time.Second {
		t.Errorf("backend received TTL %v, want 90s", kv.lastTTL)
	}
}

func TestCacheable_DefaultsApplyWhenUnset(t *testing.T) {
	kv := newMemKV()
	exec := NewCacheable[testRecord](Config{Name: "widget", KV: kv, Logger: zerolog.Nop()})

	q := &fakeQuery{identity: "q", records: []testRecord{{ID: 1}}}
	if _, err := exec.GetAll(context.Background(), q); err != nil {
		t.Fatalf("GetAll() error = %v", err)
	}
	if kv.lastTTL != DefaultTTL {
		t.Errorf("backend received TTL %v, want the default %v", kv.lastTTL, DefaultTTL)
	}
	for key := range kv.entries {
		if !strings.HasPrefix(key, "widget:all:") {
			t.Errorf("stored key %q lacks the widget:all: keyspace prefix", key)
		}
	}
}
