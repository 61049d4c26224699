package profile

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/devalgupta404/IntegrityInspect/internal/auth"
	"github.com/devalgupta404/IntegrityInspect/internal/logger"
	"github.com/devalgupta404/IntegrityInspect/internal/repo"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHandler(t *testing.T) (*ProfileHandler, *repo.MemoryAssessmentStore, *clockwork.FakeClock) {
	t.Helper()
	fc := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	store := repo.NewMemoryAssessmentStore(time.Hour, fc)
	t.Cleanup(store.Close)
	return &ProfileHandler{Store: store, Log: logger.Nop()}, store, fc
}

func get(h *ProfileHandler, ctx context.Context, query string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodGet, "/api/user/profile"+query, nil).WithContext(ctx)
	w := httptest.NewRecorder()
	h.GetProfile(w, r)
	return w
}

func TestGetProfile(t *testing.T) {
	h, store, fc := newHandler(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Create(ctx, id, 9))
		fc.Advance(time.Second)
	}
	require.NoError(t, store.Create(ctx, "foreign", 10))

	w := get(h, auth.WithUser(ctx, 9, "inspector"), "?limit=2")
	require.Equal(t, http.StatusOK, w.Code)

	var p Profile
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Equal(t, 9, p.UserID)
	assert.Equal(t, "inspector", p.Login)
	require.Len(t, p.Assessments, 2)
	assert.Equal(t, "c", p.Assessments[0].ID)
	assert.Equal(t, "b", p.Assessments[1].ID)
}

func TestGetProfile_Errors(t *testing.T) {
	h, _, _ := newHandler(t)

	assert.Equal(t, http.StatusUnauthorized, get(h, context.Background(), "").Code)

	ctx := auth.WithUser(context.Background(), 1, "u")
	for _, q := range []string{"?limit=0", "?limit=101", "?limit=x"} {
		assert.Equal(t, http.StatusBadRequest, get(h, ctx, q).Code, q)
	}

	w := get(h, ctx, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"assessments":[]`)
}
