package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sahilchouksey/gradgrid/model"
	"github.com/sahilchouksey/gradgrid/services/events"
	"github.com/sahilchouksey/gradgrid/services/retrieval"
	"github.com/sahilchouksey/gradgrid/utils/cache"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Requires a reachable Postgres (TEST_DATABASE_DSN) and Redis
// (TEST_REDIS_URL, default localhost). Run with:
//
//	RUN_INTEGRATION_TESTS=true TEST_DATABASE_DSN=... go test ./services/
func setupIntegration(t *testing.T) (*gorm.DB, *events.Broker) {
	t.Helper()
	if os.Getenv("RUN_INTEGRATION_TESTS") != "true" {
		t.Skip("Skipping integration test. Set RUN_INTEGRATION_TESTS=true to run.")
	}

	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	if err := db.AutoMigrate(&model.University{}, &model.Column{}, &model.CellValue{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	redisURL := os.Getenv("TEST_REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379/1"
	}
	redisCache, err := cache.NewRedisCache(redisURL)
	if err != nil {
		t.Skipf("redis not reachable at %s: %v", redisURL, err)
	}
	t.Cleanup(func() { redisCache.Close() })

	return db, events.NewBroker(redisCache)
}

// fakeRetrievalServer answers every question with a fixed string.
func fakeRetrievalServer(t *testing.T, answer string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/answers" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"answer": answer})
	}))
	t.Cleanup(srv.Close)
	return srv
}

// A freshly created global column must get values computed for every
// user's universities, not just the creating admin's.
func TestBackfillGlobalColumnCoversAllOwners(t *testing.T) {
	db, broker := setupIntegration(t)
	srv := fakeRetrievalServer(t, "deadline: Dec 15")

	client := retrieval.NewClient(retrieval.Config{
		BaseURL: srv.URL,
		APIKey:  "test",
	})
	svc := NewEnrichmentService(db, client, broker)

	owners := []string{"alice@backfill.test", "bob@backfill.test"}
	var universities []model.University
	for _, email := range owners {
		uni := model.University{
			ID:          uuid.New().String(),
			UserEmail:   email,
			Name:        "Test University " + email,
			Status:      model.StatusCompleted,
			LastUpdated: time.Now(),
		}
		if err := db.Create(&uni).Error; err != nil {
			t.Fatalf("failed to seed university: %v", err)
		}
		universities = append(universities, uni)
	}
	column := model.Column{
		ID:    uuid.New().String(),
		Title: "Application Deadline",
		Scope: model.ScopeGlobal,
	}
	if err := db.Create(&column).Error; err != nil {
		t.Fatalf("failed to seed column: %v", err)
	}
	t.Cleanup(func() {
		db.Where("column_id = ?", column.ID).Delete(&model.CellValue{})
		db.Unscoped().Delete(&column)
		for i := range universities {
			db.Unscoped().Delete(&universities[i])
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	svc.BackfillGlobalColumn(ctx, column)

	for _, uni := range universities {
		var cell model.CellValue
		err := db.First(&cell, "university_id = ? AND column_id = ?", uni.ID, column.ID).Error
		if err != nil {
			t.Fatalf("no cell computed for %s: %v", uni.UserEmail, err)
		}
		if cell.Value != "deadline: Dec 15" {
			t.Fatalf("expected computed value, got %q", cell.Value)
		}
	}
}
