package httpapi

import (
	"context"
	"net/http"
	"os"
	"strings"
	"testing"

	"github.com/joho/godotenv"
	"github.com/tidwall/gjson"

	app "github.com/R3E-Network/person_service/internal/app"
	"github.com/R3E-Network/person_service/internal/app/storage/postgres"
	"github.com/R3E-Network/person_service/internal/platform/migrations"
	"github.com/R3E-Network/person_service/pkg/logger"
)

// Runs the HTTP flow against Postgres so migrations and persistence are exercised together.
func TestIntegrationPostgres(t *testing.T) {
	_ = godotenv.Load() // allow .env for local runs
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping Postgres integration")
	}

	ctx := context.Background()
	db, err := postgres.Open(ctx, "pgx", dsn, postgres.PoolOptions{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := migrations.Apply(ctx, db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM persons WHERE id BETWEEN 910000 AND 910010`); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	application, err := app.New(app.Stores{Persons: postgres.New(db)}, logger.NewNop())
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	h := NewHandler(application, Options{Log: logger.NewNop()})

	resp := do(t, h, http.MethodPost, "/person", `{"id":910001,"name":"Mosche","birthDate":"2018-07-05","address":{"city":"it-city"},"hobby":"kites"}`)
	expectStatus(t, resp, http.StatusOK)
	if strings.TrimSpace(resp.Body.String()) != "true" {
		t.Fatalf("expected true, got %s", resp.Body.String())
	}

	resp = do(t, h, http.MethodPut, "/person/910001/name/Moshe", "")
	expectStatus(t, resp, http.StatusOK)
	if gjson.Get(resp.Body.String(), "hobby").String() != "kites" {
		t.Fatalf("expected hobby preserved, got %s", resp.Body.String())
	}

	resp = do(t, h, http.MethodGet, "/person/city/it-city", "")
	expectStatus(t, resp, http.StatusOK)
	if gjson.Get(resp.Body.String(), "#").Int() != 1 {
		t.Fatalf("unexpected city result %s", resp.Body.String())
	}

	expectStatus(t, do(t, h, http.MethodDelete, "/person/910001", ""), http.StatusOK)
	expectStatus(t, do(t, h, http.MethodGet, "/person/910001", ""), http.StatusNotFound)
	expectStatus(t, do(t, h, http.MethodGet, "/healthz", ""), http.StatusOK)
}
