package store

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	appconfig "depthflow/config"
	"depthflow/internal/errs"
	"depthflow/internal/partition"
	"depthflow/models"
)

type fakeRecord struct {
	Asks    []models.AggregatedLevel `json:"asks"`
	Bids    []models.AggregatedLevel `json:"bids"`
	Created int64                    `json:"created"`
	Source  string                   `json:"source"`
}

// fakeStore emulates the partition store: classes keyed by path, paged
// loads, range deletes with a where clause on created.
type fakeStore struct {
	mu       sync.Mutex
	classes  map[string][]fakeRecord
	fails    int // number of 500s to serve before succeeding
	requests int
}

func newFakeStore() *fakeStore {
	return &fakeStore{classes: make(map[string][]fakeRecord)}
}

func (f *fakeStore) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.requests++

		if r.Header.Get("X-LC-Id") != "test-id" || r.Header.Get("X-LC-Key") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if f.fails > 0 {
			f.fails--
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		class := strings.TrimPrefix(r.URL.Path, "/1.1/classes/")
		switch r.Method {
		case http.MethodPost:
			var rec fakeRecord
			if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			f.classes[class] = append(f.classes[class], rec)
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"objectId":"x"}`))
		case http.MethodGet:
			limit := 1000
			if v := r.URL.Query().Get("limit"); v != "" {
				limit, _ = strconv.Atoi(v)
			}
			skip := 0
			if v := r.URL.Query().Get("skip"); v != "" {
				skip, _ = strconv.Atoi(v)
			}
			all := f.classes[class]
			if skip > len(all) {
				skip = len(all)
			}
			page := all[skip:]
			if len(page) > limit {
				page = page[:limit]
			}
			results := make([]map[string]interface{}, 0, len(page))
			for _, rec := range page {
				results = append(results, map[string]interface{}{
					"asks":    rec.Asks,
					"bids":    rec.Bids,
					"created": rec.Created,
					"from":    rec.Source,
				})
			}
			json.NewEncoder(w).Encode(map[string]interface{}{"results": results})
		case http.MethodDelete:
			var where struct {
				Created struct {
					GTE int64 `json:"$gte"`
					LT  int64 `json:"$lt"`
				} `json:"created"`
			}
			if err := json.Unmarshal([]byte(r.URL.Query().Get("where")), &where); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			var kept []fakeRecord
			deleted := 0
			for _, rec := range f.classes[class] {
				if rec.Created >= where.Created.GTE && rec.Created < where.Created.LT {
					deleted++
					continue
				}
				kept = append(kept, rec)
			}
			f.classes[class] = kept
			json.NewEncoder(w).Encode(map[string]int{"count": deleted})
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}
}

func testConfig(baseURI string) *appconfig.Config {
	return &appconfig.Config{
		Store: appconfig.StoreConfig{
			BaseURI:  baseURI,
			AppID:    "test-id",
			AppKey:   "test-key",
			Timeout:  2 * time.Second,
			PageSize: 2,
			Retry: appconfig.RetryConfig{
				MaxAttempts:       3,
				BaseDelay:         time.Millisecond,
				MaxDelay:          5 * time.Millisecond,
				BackoffMultiplier: 2,
			},
			RateLimit: appconfig.RateLimitConfig{RequestsPerSecond: 1000, BurstSize: 1000},
			ConnectionPool: appconfig.ConnectionPoolConfig{
				MaxIdleConns:    2,
				MaxConnsPerHost: 2,
				IdleConnTimeout: time.Second,
			},
		},
	}
}

func testKey(t *testing.T) partition.Key {
	t.Helper()
	key, err := partition.NewKey("BTCUSDT", time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	return key
}

func record(created int64, price float64) models.StoredRecord {
	return models.StoredRecord{
		Bids:    []models.AggregatedLevel{{Price: price, Volume: price}},
		Asks:    []models.AggregatedLevel{{Price: price + 100, Volume: price}},
		Created: created,
		Source:  "binance",
	}
}

func TestPushLoadRoundTrip(t *testing.T) {
	fake := newFakeStore()
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	key := testKey(t)
	ctx := context.Background()

	pushed := []models.StoredRecord{record(100, 30000), record(200, 30100), record(300, 30200)}
	for _, rec := range pushed {
		if err := c.Push(ctx, key, rec); err != nil {
			t.Fatalf("push: %v", err)
		}
	}

	loaded, err := c.Load(ctx, key)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != len(pushed) {
		t.Fatalf("expected %d records, got %d", len(pushed), len(loaded))
	}

	// Multiset equality on created timestamps and provenance.
	seen := make(map[int64]models.StoredRecord)
	for _, rec := range loaded {
		seen[rec.Created] = rec
	}
	for _, want := range pushed {
		got, ok := seen[want.Created]
		if !ok {
			t.Fatalf("record created=%d missing from load", want.Created)
		}
		if got.Source != want.Source {
			t.Fatalf("source lost on round trip: %+v", got)
		}
		if len(got.Bids) != len(want.Bids) || len(got.Asks) != len(want.Asks) {
			t.Fatalf("levels lost on round trip: %+v", got)
		}
	}
}

func TestLoadFollowsPages(t *testing.T) {
	fake := newFakeStore()
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL)) // page size 2
	key := testKey(t)
	ctx := context.Background()

	for i := int64(0); i < 5; i++ {
		if err := c.Push(ctx, key, record(i, 30000)); err != nil {
			t.Fatalf("push: %v", err)
		}
	}

	loaded, err := c.Load(ctx, key)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 5 {
		t.Fatalf("expected 5 records across pages, got %d", len(loaded))
	}
}

func TestDeleteRangeScope(t *testing.T) {
	fake := newFakeStore()
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	key := testKey(t)
	ctx := context.Background()

	for _, created := range []int64{100, 200, 300, 400} {
		if err := c.Push(ctx, key, record(created, 30000)); err != nil {
			t.Fatalf("push: %v", err)
		}
	}

	// [200, 400) removes 200 and 300, keeps 100 and 400.
	deleted, err := c.DeleteRange(ctx, key, 200, 400)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 deleted, got %d", deleted)
	}

	loaded, err := c.Load(ctx, key)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 survivors, got %d", len(loaded))
	}
	for _, rec := range loaded {
		if rec.Created >= 200 && rec.Created < 400 {
			t.Fatalf("record created=%d should have been deleted", rec.Created)
		}
	}
}

func TestPushRetriesTransientFailures(t *testing.T) {
	fake := newFakeStore()
	fake.fails = 2 // two 500s, then success; within the 3-attempt budget
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	if err := c.Push(context.Background(), testKey(t), record(100, 30000)); err != nil {
		t.Fatalf("push should have recovered: %v", err)
	}
}

func TestPushExhaustsRetries(t *testing.T) {
	fake := newFakeStore()
	fake.fails = 10
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	err := c.Push(context.Background(), testKey(t), record(100, 30000))
	if err == nil {
		t.Fatalf("expected transient failure")
	}
	if !errs.IsTransient(err) {
		t.Fatalf("expected TransientError, got %v", err)
	}
	if fake.requests != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", fake.requests)
	}
}

func TestAuthErrorIsNotRetried(t *testing.T) {
	fake := newFakeStore()
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Store.AppKey = "wrong"
	c := NewClient(cfg)

	err := c.Push(context.Background(), testKey(t), record(100, 30000))
	if err == nil {
		t.Fatalf("expected auth failure")
	}
	if !errs.IsAuth(err) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if fake.requests != 1 {
		t.Fatalf("auth failure must not be retried, saw %d requests", fake.requests)
	}
}
