package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/opsline/runbookd/internal/models"
)

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	content := `debug: true
server:
  port: 9999
storage:
  database_path: ./db.sqlite
source:
  runbooks_path: ./runbooks.json
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig_ExplicitPath(t *testing.T) {
	path := writeConfig(t, t.TempDir())
	cfg, resolved, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != path {
		t.Errorf("resolved=%s", resolved)
	}
	if cfg.Server.Port != 9999 || !cfg.Debug {
		t.Errorf("cfg=%+v", cfg)
	}
}

func TestLoadConfig_CwdFallback(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir)
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(cwd) })

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(resolved) != "config.yaml" || filepath.Dir(resolved) == filepath.Dir(defaultConfigPath) {
		t.Errorf("resolved=%s", resolved)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("port=%d", cfg.Server.Port)
	}
}

func TestQueryViaHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/query" {
			t.Errorf("path=%s", r.URL.Path)
		}
		var req models.QueryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		_ = json.NewEncoder(w).Encode(models.Answer{Answer: "restart it", Query: req.Query})
	}))
	defer srv.Close()

	got, err := queryViaHTTP(srv.URL, &models.QueryRequest{Query: "jenkins stuck"})
	if err != nil {
		t.Fatal(err)
	}
	if got.Answer != "restart it" || got.Query != "jenkins stuck" {
		t.Errorf("got %+v", got)
	}
}

func TestQueryViaHTTP_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	if _, err := queryViaHTTP(srv.URL, &models.QueryRequest{Query: "q"}); err == nil {
		t.Fatal("expected an error")
	}
}
