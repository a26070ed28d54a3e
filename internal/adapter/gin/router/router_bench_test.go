package router

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"user-doc-service/internal/adapter/db/sqlstore"
	"user-doc-service/internal/adapter/gin/handler"
	"user-doc-service/internal/usecase/user"
	"user-doc-service/pkg/metrics"
)

func setupBenchmarkRouter(b *testing.B) *gin.Engine {
	b.Helper()
	gin.SetMode(gin.ReleaseMode)
	log := zap.NewNop()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		b.Fatal(err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		b.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	b.Cleanup(func() { _ = sqlDB.Close() })
	if err := sqlstore.Migrate(db); err != nil {
		b.Fatal(err)
	}

	uc := user.New(sqlstore.NewUserRepoSQL(db, log), log)
	return SetupRouter(handler.NewUserHandler(uc, log), Options{
		ServiceName: "user-doc-service",
		Metrics:     metrics.NewManager(),
	}, log)
}

func BenchmarkCreateUser(b *testing.B) {
	r := setupBenchmarkRouter(b)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		body := fmt.Sprintf(`{"name":"bench","email":"bench%d@example.com","age":30}`, i)
		req := httptest.NewRequest(http.MethodPost, "/users", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusCreated {
			b.Fatalf("unexpected status %d: %s", w.Code, w.Body.String())
		}
	}
}

func BenchmarkListUsers(b *testing.B) {
	r := setupBenchmarkRouter(b)
	for i := 0; i < 100; i++ {
		body := fmt.Sprintf(`{"name":"seed","email":"seed%d@example.com","age":%d}`, i, 20+i%40)
		req := httptest.NewRequest(http.MethodPost, "/users", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users", nil))
		if w.Code != http.StatusOK {
			b.Fatalf("unexpected status %d", w.Code)
		}
	}
}

func BenchmarkHealth(b *testing.B) {
	r := setupBenchmarkRouter(b)

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		}
	})
}
