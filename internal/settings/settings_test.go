package settings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todo-relevance-backend/internal/analytics"
	"todo-relevance-backend/internal/auth"
	"todo-relevance-backend/internal/ranking"
	"todo-relevance-backend/internal/testutil"
)

func newService(t *testing.T) (*Service, *SQLStore, int) {
	t.Helper()
	database := testutil.NewTestDB(t)
	uid := testutil.CreateUser(t, database)
	store := NewSQLStore(database)
	return NewService(store), store, uid
}

func ptr(v float64) *float64 { return &v }

func TestService_GetReturnsDefaultsWithoutWriting(t *testing.T) {
	svc, store, uid := newService(t)
	ctx := context.Background()

	s, err := svc.Get(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, ranking.DefaultSortSettings(), s)

	_, ok, err := store.Get(ctx, uid)
	require.NoError(t, err)
	assert.False(t, ok, "reading settings must not create a row")
}

func TestService_SetThenGet(t *testing.T) {
	svc, _, uid := newService(t)
	ctx := context.Background()

	_, err := svc.Set(ctx, uid, ranking.SortSettings{AgeWeight: 0.2, PriorityWeight: 0.9})
	require.NoError(t, err)

	s, err := svc.Get(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, ranking.SortSettings{AgeWeight: 0.2, PriorityWeight: 0.9}, s)

	_, err = svc.Set(ctx, uid, ranking.SortSettings{AgeWeight: 1, PriorityWeight: 0})
	require.NoError(t, err)

	s, err = svc.Get(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, ranking.SortSettings{AgeWeight: 1, PriorityWeight: 0}, s)
}

func TestService_SetRejectsInvalidAndKeepsStoredRow(t *testing.T) {
	svc, _, uid := newService(t)
	ctx := context.Background()

	_, err := svc.Set(ctx, uid, ranking.SortSettings{AgeWeight: 0.3, PriorityWeight: 0.4})
	require.NoError(t, err)

	_, err = svc.Set(ctx, uid, ranking.SortSettings{AgeWeight: 1.5, PriorityWeight: 0.4})
	var verr *ranking.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "ageWeight", verr.Field)

	s, err := svc.Get(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, ranking.SortSettings{AgeWeight: 0.3, PriorityWeight: 0.4}, s)
}

func TestService_UpdateMergesOverEffective(t *testing.T) {
	svc, _, uid := newService(t)
	ctx := context.Background()

	s, err := svc.Update(ctx, uid, Patch{PriorityWeight: ptr(0.8)})
	require.NoError(t, err)
	assert.Equal(t, ranking.SortSettings{AgeWeight: 0.5, PriorityWeight: 0.8}, s)

	s, err = svc.Update(ctx, uid, Patch{AgeWeight: ptr(0.1)})
	require.NoError(t, err)
	assert.Equal(t, ranking.SortSettings{AgeWeight: 0.1, PriorityWeight: 0.8}, s)

	_, err = svc.Update(ctx, uid, Patch{AgeWeight: ptr(-1)})
	assert.Error(t, err)
}

func TestService_Reset(t *testing.T) {
	svc, store, uid := newService(t)
	ctx := context.Background()

	_, err := svc.Set(ctx, uid, ranking.SortSettings{AgeWeight: 0.9, PriorityWeight: 0.9})
	require.NoError(t, err)

	s, err := svc.Reset(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, ranking.DefaultSortSettings(), s)

	_, ok, err := store.Get(ctx, uid)
	require.NoError(t, err)
	assert.False(t, ok)

	// Reset without a row is fine.
	_, err = svc.Reset(ctx, uid)
	assert.NoError(t, err)
}

func TestSQLStore_ConcurrentUpsertsKeepOneRow(t *testing.T) {
	svc, _, uid := newService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w := float64(i) / 10
			_, err := svc.Set(ctx, uid, ranking.SortSettings{AgeWeight: w, PriorityWeight: w})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	s, err := svc.Get(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, s.AgeWeight, s.PriorityWeight, "weights from different writes must never mix")
}

func do(t *testing.T, h http.HandlerFunc, method, body string, uid int) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, "/settings", strings.NewReader(body))
	if uid != 0 {
		req = req.WithContext(auth.ContextWithUserID(req.Context(), uid))
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decodeSettings(t *testing.T, rec *httptest.ResponseRecorder) ranking.SortSettings {
	t.Helper()
	var s ranking.SortSettings
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
	return s
}

func TestHandlers(t *testing.T) {
	svc, _, uid := newService(t)
	events := analytics.Discard{}

	rec := do(t, GetHandler(svc), http.MethodGet, "", 0)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, GetHandler(svc), http.MethodGet, "", uid)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ranking.DefaultSortSettings(), decodeSettings(t, rec))

	rec = do(t, PutHandler(svc, events), http.MethodPut, `{"ageWeight":0.25,"priorityWeight":0.75}`, uid)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ranking.SortSettings{AgeWeight: 0.25, PriorityWeight: 0.75}, decodeSettings(t, rec))

	rec = do(t, PutHandler(svc, events), http.MethodPut, `{"ageWeight":1.5,"priorityWeight":0.5}`, uid)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid settings values")

	rec = do(t, PutHandler(svc, events), http.MethodPut, `{"ageWeight":0.5}`, uid)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, PutHandler(svc, events), http.MethodPut, `not json`, uid)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, GetHandler(svc), http.MethodGet, "", uid)
	assert.Equal(t, ranking.SortSettings{AgeWeight: 0.25, PriorityWeight: 0.75}, decodeSettings(t, rec))

	rec = do(t, PatchHandler(svc, events), http.MethodPatch, `{"ageWeight":0}`, uid)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ranking.SortSettings{AgeWeight: 0, PriorityWeight: 0.75}, decodeSettings(t, rec))

	rec = do(t, DeleteHandler(svc, events), http.MethodDelete, "", uid)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ranking.DefaultSortSettings(), decodeSettings(t, rec))
}
