package service

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olapsync/olap_syncer/pkg/lock"
	"github.com/olapsync/olap_syncer/pkg/storage"
	"github.com/olapsync/olap_syncer/pkg/syncer"
	"github.com/olapsync/olap_syncer/pkg/target"
)

func newTestService(t *testing.T) (*HttpService, storage.DB) {
	db := storage.NewMemoryDB()
	pool := target.NewPool("default")
	pool.Add("default", target.NewMemoryClient())

	registry := syncer.NewRegistry(db)
	require.NoError(t, registry.Add(&syncer.Entity{
		ImportKey:   "visits",
		SourceKind:  "visits",
		BatchSize:   100,
		LockTimeout: time.Minute,
	}))

	s := syncer.New(db, lock.NewManager(db), syncer.NewFetcher(nil), pool)
	svc := NewHttpServer(0, db, registry, s)
	svc.RegisterHandlers()
	return svc, db
}

func (s *HttpService) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func TestVersionHandler(t *testing.T) {
	svc, _ := newTestService(t)
	rec := svc.do(http.MethodGet, "/version", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Body.String())
}

func TestEntitiesHandler(t *testing.T) {
	svc, db := newTestService(t)
	_, err := db.RegisterOperations("visits", storage.OpInsert, "default.1")
	require.NoError(t, err)

	rec := svc.do(http.MethodGet, "/entities", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"import_key":"visits"`)
	assert.Contains(t, rec.Body.String(), `"queue_length":1`)
}

func TestQueueLengthHandler(t *testing.T) {
	svc, db := newTestService(t)
	_, err := db.RegisterOperations("visits", storage.OpInsert, "default.1", "default.2")
	require.NoError(t, err)

	rec := svc.do(http.MethodPost, "/queue_length", `{"entity": "visits"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "queue_length: 2", rec.Body.String())

	rec = svc.do(http.MethodPost, "/queue_length", `{"entity": "missing"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = svc.do(http.MethodPost, "/queue_length", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFlushHandler(t *testing.T) {
	svc, db := newTestService(t)
	_, err := db.RegisterOperations("visits", storage.OpInsert, "default.1")
	require.NoError(t, err)

	rec := svc.do(http.MethodPost, "/flush", `{"entity": "visits"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "flush success", rec.Body.String())

	count, err := db.OperationsCount("visits")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestSyncHandler(t *testing.T) {
	svc, db := newTestService(t)

	// empty queue, trivially successful cycle
	rec := svc.do(http.MethodPost, "/sync", `{"entity": "visits"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sync success", rec.Body.String())

	last, err := db.GetLastSyncTime("visits")
	require.NoError(t, err)
	assert.NotNil(t, last)
}
