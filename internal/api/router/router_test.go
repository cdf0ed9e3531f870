package router

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digitallabhq/voiceagent-platform/internal/stats"
	"github.com/digitallabhq/voiceagent-platform/internal/tenancy"
)

type stubVerifier struct{}

func (stubVerifier) VerifyToken(token string) (tenancy.Identity, error) {
	switch token {
	case "user-token":
		return tenancy.Identity{UserID: "user-1", Email: "user@example.com"}, nil
	case "admin-token":
		return tenancy.Identity{UserID: "admin-1", Email: "admin@example.com"}, nil
	default:
		return tenancy.Identity{}, errors.New("invalid token")
	}
}

func newTestRouter(t *testing.T) (http.Handler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return New(&Config{
		TokenVerifier: stubVerifier{},
		AdminEmail:    "admin@example.com",
		StatsHandler:  stats.NewHandler(stats.NewRepository(db), nil),
	}), mock
}

func TestHealthEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAuthenticatedRouteRejectsMissingToken(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/statistics", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticatedRouteRejectsBadToken(t *testing.T) {
	r, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/statistics", nil)
	req.Header.Set("Authorization", "Bearer forged")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStatisticsWithValidToken(t *testing.T) {
	r, mock := newTestRouter(t)
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count", "avg", "sum", "leads"}).AddRow(1, 30.0, 4, 0))

	req := httptest.NewRequest(http.MethodGet, "/api/statistics", nil)
	req.Header.Set("Authorization", "Bearer user-token")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_calls":1`)
}

func TestAdminRoutesGatedByEmail(t *testing.T) {
	r, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
	req.Header.Set("Authorization", "Bearer user-token")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminRoutesAllowAdmin(t *testing.T) {
	r, mock := newTestRouter(t)
	mock.ExpectQuery("SELECT \\(SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"users", "agents", "calls", "leads"}).AddRow(2, 3, 4, 1))

	req := httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_users":2`)
}

func TestUnknownRoute(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
