package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/wowseoweb3/dashboard-indexer/internal/application/services"
	"github.com/wowseoweb3/dashboard-indexer/internal/config"
	"github.com/wowseoweb3/dashboard-indexer/internal/domain/entities"
	"github.com/wowseoweb3/dashboard-indexer/internal/infrastructure/cache"
	"github.com/wowseoweb3/dashboard-indexer/internal/testutil"
)

type indexerHandlerFixture struct {
	router   chi.Router
	indexers *testutil.MockIndexerRepository
	chain    *testutil.MockChainSource
	locker   *cache.KeyedMutex
}

func setupIndexerHandlerTest() *indexerHandlerFixture {
	f := &indexerHandlerFixture{
		indexers: testutil.NewMockIndexerRepository(),
		chain:    testutil.NewMockChainSource("ethereum", 105),
		locker:   cache.NewKeyedMutex(),
	}
	jobs := testutil.NewMockJobRepository()
	logger := zap.NewNop()

	service := services.NewIndexerService(
		f.indexers,
		testutil.NewMockChainDataRepository(f.indexers, jobs),
		jobs,
		map[string]services.ChainSource{"ethereum": f.chain},
		f.locker,
		cache.NewMemoryCache(time.Minute),
		nil,
		config.IndexerConfig{LockTTL: time.Minute},
		logger,
	)

	f.router = chi.NewRouter()
	NewIndexerHandler(service, logger).RegisterRoutes(f.router)
	return f
}

func (f *indexerHandlerFixture) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestIndexerHandler_Create(t *testing.T) {
	f := setupIndexerHandlerTest()

	rec := f.do(http.MethodPost, "/indexers", `{
		"name": "mainnet usdc",
		"config": {"network": "ethereum", "startBlock": "100", "batchSize": "10"}
	}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var created IndexerResponse
	decodeEnvelope(t, rec, &created)
	if created.Indexer == nil || created.ID == "" || created.Status != entities.IndexerStatusInactive {
		t.Errorf("unexpected indexer: %+v", created.Indexer)
	}
	if created.Config[entities.ConfigNetwork] != "ethereum" {
		t.Errorf("expected config in response, got %v", created.Config)
	}
}

func TestIndexerHandler_Create_Invalid(t *testing.T) {
	f := setupIndexerHandlerTest()

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"name":`},
		{"unknown field", `{"name":"x","cfg":{}}`},
		{"missing name", `{"config": {"network": "ethereum", "startBlock": "1", "batchSize": "10"}}`},
		{"missing batch size", `{"name": "x", "config": {"network": "ethereum", "startBlock": "1"}}`},
		{"unknown network", `{"name": "x", "config": {"network": "solana", "startBlock": "1", "batchSize": "10"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodPost, "/indexers", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestIndexerHandler_ListAndGet(t *testing.T) {
	f := setupIndexerHandlerTest()
	f.indexers.AddIndexer(testutil.CreateTestIndexer(), testutil.IndexerConfig("ethereum", 1, 10, 50))
	f.indexers.AddIndexer(testutil.CreateTestIndexer(testutil.WithIndexerID(testutil.OtherIndexerID), testutil.WithStatus(entities.IndexerStatusError)), nil)

	rec := f.do(http.MethodGet, "/indexers?status=error", "")
	var list []entities.Indexer
	decodeEnvelope(t, rec, &list)
	if rec.Code != http.StatusOK || len(list) != 1 || list[0].ID != testutil.OtherIndexerID {
		t.Errorf("unexpected list: %d %+v", rec.Code, list)
	}

	rec = f.do(http.MethodGet, "/indexers?status=running", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for an invalid status, got %d", rec.Code)
	}

	rec = f.do(http.MethodGet, "/indexers/"+testutil.IndexerID, "")
	var got IndexerResponse
	decodeEnvelope(t, rec, &got)
	if rec.Code != http.StatusOK || got.Config[entities.ConfigLastProcessedBlock] != "50" {
		t.Errorf("unexpected indexer: %d %+v", rec.Code, got)
	}

	for _, id := range []string{"9a8b7c6d-5e4f-4a3b-8c2d-1e0f9a8b7c6d", "foo"} {
		rec = f.do(http.MethodGet, "/indexers/"+id, "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected status 404, got %d", id, rec.Code)
		}
	}
}

func TestIndexerHandler_Run(t *testing.T) {
	f := setupIndexerHandlerTest()
	f.indexers.AddIndexer(testutil.CreateTestIndexer(), testutil.IndexerConfig("ethereum", 1, 10, 100))

	rec := f.do(http.MethodPost, "/indexers/"+testutil.IndexerID+"/run", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result services.BatchResult
	decodeEnvelope(t, rec, &result)
	if result.Outcome != services.BatchCommitted || result.Blocks != 5 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestIndexerHandler_Run_Failures(t *testing.T) {
	t.Run("fetch failure", func(t *testing.T) {
		f := setupIndexerHandlerTest()
		f.indexers.AddIndexer(testutil.CreateTestIndexer(), testutil.IndexerConfig("ethereum", 1, 10, 100))
		f.chain.FetchRangeFunc = func(ctx context.Context, r entities.BlockRange, s *entities.IndexerSettings) (*entities.BatchData, error) {
			return nil, errors.New("429 too many requests")
		}

		rec := f.do(http.MethodPost, "/indexers/"+testutil.IndexerID+"/run", "")
		if rec.Code != http.StatusBadGateway {
			t.Errorf("expected status 502, got %d", rec.Code)
		}
		env := decodeEnvelope(t, rec, nil)
		if env.Success || env.Error == "" || len(env.Details) == 0 {
			t.Errorf("expected error with batch details, got %+v", env)
		}
		if f.indexers.Status(testutil.IndexerID) != entities.IndexerStatusError {
			t.Errorf("expected status error, got %s", f.indexers.Status(testutil.IndexerID))
		}
	})

	t.Run("batch in progress", func(t *testing.T) {
		f := setupIndexerHandlerTest()
		f.indexers.AddIndexer(testutil.CreateTestIndexer(), testutil.IndexerConfig("ethereum", 1, 10, 100))
		release, ok, _ := f.locker.TryLock(context.Background(), "indexer:"+testutil.IndexerID, time.Minute)
		if !ok {
			t.Fatal("failed to take the lock")
		}
		defer release()

		rec := f.do(http.MethodPost, "/indexers/"+testutil.IndexerID+"/run", "")
		if rec.Code != http.StatusConflict {
			t.Errorf("expected status 409, got %d", rec.Code)
		}
	})

	t.Run("unknown indexer", func(t *testing.T) {
		f := setupIndexerHandlerTest()

		rec := f.do(http.MethodPost, "/indexers/missing/run", "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rec.Code)
		}
	})
}

func TestIndexerHandler_StartStop(t *testing.T) {
	f := setupIndexerHandlerTest()
	f.indexers.AddIndexer(testutil.CreateTestIndexer(testutil.WithStatus(entities.IndexerStatusInactive)), testutil.IndexerConfig("ethereum", 1, 10, -1))

	rec := f.do(http.MethodPost, "/indexers/"+testutil.IndexerID+"/start", "")
	var indexer entities.Indexer
	decodeEnvelope(t, rec, &indexer)
	if rec.Code != http.StatusOK || indexer.Status != entities.IndexerStatusPending {
		t.Errorf("expected pending after start, got %d %s", rec.Code, indexer.Status)
	}

	rec = f.do(http.MethodPost, "/indexers/"+testutil.IndexerID+"/stop", "")
	decodeEnvelope(t, rec, &indexer)
	if rec.Code != http.StatusOK || indexer.Status != entities.IndexerStatusInactive {
		t.Errorf("expected inactive after stop, got %d %s", rec.Code, indexer.Status)
	}

	rec = f.do(http.MethodPost, "/indexers/missing/start", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}
}

func TestIndexerHandler_UpdateConfig(t *testing.T) {
	f := setupIndexerHandlerTest()
	f.indexers.AddIndexer(testutil.CreateTestIndexer(), testutil.IndexerConfig("ethereum", 1, 10, 50))

	rec := f.do(http.MethodPut, "/indexers/"+testutil.IndexerID+"/config", `{"key":"batchSize","value":"25"}`)
	var config map[string]string
	decodeEnvelope(t, rec, &config)
	if rec.Code != http.StatusOK || config[entities.ConfigBatchSize] != "25" {
		t.Errorf("unexpected response: %d %v", rec.Code, config)
	}

	rec = f.do(http.MethodPut, "/indexers/"+testutil.IndexerID+"/config", `{"key":"lastProcessedBlock","value":"0"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for a cursor write, got %d", rec.Code)
	}
	if cursor, _ := f.indexers.Cursor(testutil.IndexerID); cursor != 50 {
		t.Errorf("cursor must not move, got %d", cursor)
	}

	rec = f.do(http.MethodPut, "/indexers/"+testutil.IndexerID+"/config", `{"value":"1"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 without a key, got %d", rec.Code)
	}
}
