package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"user-doc-service/internal/adapter/db/sqlstore"
	"user-doc-service/internal/adapter/gin/handler"
	"user-doc-service/internal/usecase/user"
	"user-doc-service/pkg/metrics"
)

type apiClient struct {
	t      *testing.T
	router *gin.Engine
}

func newAPI(t *testing.T) *apiClient {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zaptest.NewLogger(t)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, sqlstore.Migrate(db))

	uc := user.New(sqlstore.NewUserRepoSQL(db, log), log)
	r := SetupRouter(handler.NewUserHandler(uc, log), Options{
		ServiceName: "user-doc-service",
		Metrics:     metrics.NewManager(),
	}, log)

	return &apiClient{t: t, router: r}
}

func (a *apiClient) do(method, path string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *apiClient) create(body map[string]any) handler.UserResponse {
	a.t.Helper()
	w := a.do(http.MethodPost, "/users", body)
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	var u handler.UserResponse
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &u))
	return u
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestUsers_CreateAndUniqueEmail(t *testing.T) {
	api := newAPI(t)

	created := api.create(map[string]any{
		"name":  "Aparna Ghose",
		"email": "aparna@example.com",
		"age":   30,
		"address": map[string]any{
			"street":      "123 Main St",
			"city":        "Metropolis",
			"coordinates": []float64{77.1234, 28.7041},
		},
	})
	assert.Len(t, created.ID, 24)
	assert.Equal(t, []float64{77.1234, 28.7041}, created.Address.Coordinates)

	w := api.do(http.MethodPost, "/users", map[string]any{"name": "Someone Else", "email": "aparna@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "already_exists", decode[handler.ErrorResponse](t, w).Error)

	w = api.do(http.MethodPost, "/users", map[string]any{"name": "No Email"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", decode[handler.ErrorResponse](t, w).Error)
}

func TestUsers_List(t *testing.T) {
	api := newAPI(t)

	w := api.do(http.MethodGet, "/users", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", w.Body.String())

	api.create(map[string]any{"name": "John Doe", "email": "john@example.com"})

	users := decode[[]handler.UserResponse](t, api.do(http.MethodGet, "/users", nil))
	require.Len(t, users, 1)
	assert.Equal(t, "John Doe", users[0].Name)

	api.create(map[string]any{"name": "Jane Doe", "email": "jane@example.com"})
	users = decode[[]handler.UserResponse](t, api.do(http.MethodGet, "/users", nil))
	assert.Len(t, users, 2)
}

func TestUsers_GetUpdateDelete(t *testing.T) {
	api := newAPI(t)
	created := api.create(map[string]any{
		"name":    "Jane Doe",
		"email":   "jane@example.com",
		"age":     28,
		"address": map[string]any{"street": "123 Main St", "city": "Metropolis"},
	})
	path := "/users/" + created.ID

	got := decode[handler.UserResponse](t, api.do(http.MethodGet, path, nil))
	assert.Equal(t, created, got)

	// Same patch twice yields the same state.
	for range 2 {
		w := api.do(http.MethodPut, path, map[string]any{"age": 29})
		require.Equal(t, http.StatusOK, w.Code)
		updated := decode[handler.UserResponse](t, w)
		assert.Equal(t, 29, *updated.Age)
		assert.Equal(t, "Jane Doe", updated.Name)
		assert.Equal(t, "jane@example.com", updated.Email)
		assert.Equal(t, "Metropolis", updated.Address.City)
	}

	w := api.do(http.MethodPut, path, map[string]any{"address": map[string]any{"city": "Gotham"}})
	require.Equal(t, http.StatusOK, w.Code)
	updated := decode[handler.UserResponse](t, w)
	assert.Equal(t, "123 Main St", updated.Address.Street)
	assert.Equal(t, "Gotham", updated.Address.City)

	w = api.do(http.MethodPut, path, map[string]any{})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, updated, decode[handler.UserResponse](t, w))

	w = api.do(http.MethodPut, path, map[string]any{"name": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"User deleted successfully"}`, w.Body.String())

	w = api.do(http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "User not found", decode[handler.ErrorResponse](t, w).Message)

	w = api.do(http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUsers_UnknownAndMalformedIDs(t *testing.T) {
	api := newAPI(t)
	unknown := "/users/64b7f0c2a1b2c3d4e5f60718"

	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, unknown, nil).Code)
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodPut, unknown, map[string]any{"age": 1}).Code)
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodDelete, unknown, nil).Code)

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		w := api.do(method, "/users/not-an-id", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, method)
		assert.Contains(t, decode[handler.ErrorResponse](t, w).Message, "invalid user id")
	}
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPut, "/users/not-an-id", map[string]any{"age": 1}).Code)
}

func TestUsers_AverageAge(t *testing.T) {
	api := newAPI(t)

	assert.JSONEq(t, `{"users":0,"averageAge":null}`, api.do(http.MethodGet, "/users/stats/age", nil).Body.String())

	api.create(map[string]any{"name": "a", "email": "a@example.com", "age": 25})
	api.create(map[string]any{"name": "b", "email": "b@example.com", "age": 30})

	w := api.do(http.MethodGet, "/users/stats/age", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"users":2,"averageAge":27.5}`, w.Body.String())
}

func TestUsers_Near(t *testing.T) {
	api := newAPI(t)
	geo := api.create(map[string]any{
		"name":    "Geo User",
		"email":   "geo@example.com",
		"address": map[string]any{"coordinates": []float64{77.1234, 28.7041}},
	})
	api.create(map[string]any{
		"name":    "Far User",
		"email":   "far@example.com",
		"address": map[string]any{"coordinates": []float64{2.3522, 48.8566}},
	})
	api.create(map[string]any{"name": "No Address", "email": "none@example.com"})

	w := api.do(http.MethodGet, "/users/near?lng=77.1234&lat=28.7041&maxDistance=1000", nil)
	require.Equal(t, http.StatusOK, w.Code)
	users := decode[[]handler.UserResponse](t, w)
	require.Len(t, users, 1)
	assert.Equal(t, geo.ID, users[0].ID)

	w = api.do(http.MethodGet, "/users/near?lng=0&lat=0", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", w.Body.String())

	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/users/near?lng=181&lat=0", nil).Code)
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/users/near?lng=0&lat=0&maxDistance=-1", nil).Code)
}

func TestServiceEndpoints(t *testing.T) {
	api := newAPI(t)

	w := api.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","service":"user-doc-service"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	api.do(http.MethodGet, "/users", nil)
	w = api.do(http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `route="/users"`)

	w = api.do(http.MethodGet, "/openapi/users.json", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	doc := decode[map[string]any](t, w)
	assert.Equal(t, "2.0", doc["swagger"])
}

func TestCORSPreflight(t *testing.T) {
	api := newAPI(t)

	req := httptest.NewRequest(http.MethodOptions, "/users", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSConfig_ExplicitOrigins(t *testing.T) {
	cfg := corsConfig([]string{"https://app.example.com"})
	assert.False(t, cfg.AllowAllOrigins)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.AllowOrigins)

	assert.True(t, corsConfig([]string{"*"}).AllowAllOrigins)
	assert.True(t, corsConfig(nil).AllowAllOrigins)
}
