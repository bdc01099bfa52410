package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

const pageHTML = `<html><head><title>%s</title></head><body>
<nav><a href="/">Home</a></nav>
<main><h1>%s</h1><p>This paragraph is long enough to be kept by the cleaner.</p></main>
</body></html>`

// fakeService is an in-memory firecrawl-simple service.
//
// Crawl jobs are named after the last path segment of their seed URL:
// "stuck" never finishes, "broken" fails and any other seed yields "job-1",
// which reports scraping once and then completes with two pages split across
// a next cursor.
type fakeService struct {
	*httptest.Server

	mu          sync.Mutex
	statusCalls map[string]int
	requests    map[string][]map[string]any
	cancelled   []string
}

func newFakeService(t *testing.T) *fakeService {
	t.Helper()

	f := &fakeService{
		statusCalls: make(map[string]int),
		requests:    make(map[string][]map[string]any),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/scrape", f.handleScrape)
	mux.HandleFunc("POST /v1/crawl", f.handleCrawl)
	mux.HandleFunc("GET /v1/crawl/{id}", f.handleStatus)
	mux.HandleFunc("DELETE /v1/crawl/{id}", f.handleCancel)
	mux.HandleFunc("POST /v1/map", f.handleMap)

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

// lastRequest returns the decoded body of the last request to endpoint.
func (f *fakeService) lastRequest(t *testing.T, endpoint string) map[string]any {
	t.Helper()

	f.mu.Lock()
	defer f.mu.Unlock()
	reqs := f.requests[endpoint]
	if len(reqs) == 0 {
		t.Fatalf("no %s request was received", endpoint)
	}
	return reqs[len(reqs)-1]
}

func (f *fakeService) record(w http.ResponseWriter, r *http.Request, endpoint string) (map[string]any, bool) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"success":false,"error":"bad request"}`, http.StatusBadRequest)
		return nil, false
	}
	f.mu.Lock()
	f.requests[endpoint] = append(f.requests[endpoint], body)
	f.mu.Unlock()
	return body, true
}

func page(sourceURL, title string) map[string]any {
	return map[string]any{
		"markdown": "# " + title,
		"html":     fmt.Sprintf(pageHTML, title, title),
		"metadata": map[string]any{
			"title":      title,
			"sourceURL":  sourceURL,
			"statusCode": 200,
		},
	}
}

func writeBody(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeService) handleScrape(w http.ResponseWriter, r *http.Request) {
	body, ok := f.record(w, r, "scrape")
	if !ok {
		return
	}
	target, _ := body["url"].(string)
	if strings.Contains(target, "/fail") {
		writeBody(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "scrape failed"})
		return
	}
	writeBody(w, http.StatusOK, map[string]any{"success": true, "data": page(target, "Scraped")})
}

func (f *fakeService) handleCrawl(w http.ResponseWriter, r *http.Request) {
	body, ok := f.record(w, r, "crawl")
	if !ok {
		return
	}
	target, _ := body["url"].(string)
	id := "job-1"
	switch {
	case strings.HasSuffix(target, "/stuck"):
		id = "stuck"
	case strings.HasSuffix(target, "/broken"):
		id = "broken"
	}
	writeBody(w, http.StatusOK, map[string]any{"success": true, "id": id, "url": target})
}

func (f *fakeService) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	f.mu.Lock()
	f.statusCalls[id]++
	calls := f.statusCalls[id]
	f.mu.Unlock()

	switch id {
	case "stuck":
		writeBody(w, http.StatusOK, map[string]any{"status": "scraping", "total": 10, "completed": 1, "data": []any{}})
	case "broken":
		writeBody(w, http.StatusOK, map[string]any{
			"status": "failed", "total": 3, "completed": 1,
			"data": []any{page("https://example.com/broken", "Broken")},
		})
	case "job-1":
		switch {
		case r.URL.Query().Get("skip") == "1":
			writeBody(w, http.StatusOK, map[string]any{
				"status": "completed", "total": 2, "completed": 2,
				"data": []any{page("https://example.com/b", "Page B")},
			})
		case calls == 1:
			writeBody(w, http.StatusOK, map[string]any{"status": "scraping", "total": 2, "completed": 1, "data": []any{}})
		default:
			writeBody(w, http.StatusOK, map[string]any{
				"status": "completed", "total": 2, "completed": 2,
				"expiresAt": "2030-01-01T00:00:00Z",
				"next":      f.URL + "/v1/crawl/job-1?skip=1",
				"data":      []any{page("https://example.com/a", "Page A")},
			})
		}
	default:
		writeBody(w, http.StatusNotFound, map[string]any{"success": false, "error": "job not found"})
	}
}

func (f *fakeService) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "finished" {
		writeBody(w, http.StatusOK, map[string]any{"success": false, "status": "completed"})
		return
	}
	f.mu.Lock()
	f.cancelled = append(f.cancelled, id)
	f.mu.Unlock()
	writeBody(w, http.StatusOK, map[string]any{"success": true, "status": "cancelled"})
}

func (f *fakeService) handleMap(w http.ResponseWriter, r *http.Request) {
	if _, ok := f.record(w, r, "map"); !ok {
		return
	}
	writeBody(w, http.StatusOK, map[string]any{
		"success": true,
		"links":   []string{"https://example.com/a", "https://example.com/b"},
	})
}

// cliEnv holds the directories used by one CLI invocation.
type cliEnv struct {
	service    *fakeService
	dataDir    string
	configPath string
}

// newCLIEnv creates an isolated data directory and an empty configuration
// file so that no user configuration leaks into tests.
func newCLIEnv(t *testing.T, configYAML string) *cliEnv {
	t.Helper()

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(configYAML), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return &cliEnv{
		service:    newFakeService(t),
		dataDir:    filepath.Join(dir, "data"),
		configPath: configPath,
	}
}

// run executes the root command with args followed by the isolation flags.
func (e *cliEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	all := append([]string{}, args...)
	all = append(all,
		"--config", e.configPath,
		"--api-url", e.service.URL+"/v1",
		"--data-dir", e.dataDir,
	)

	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(all)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// outputDir is the default output directory below the data directory.
func (e *cliEnv) outputDir() string {
	return filepath.Join(e.dataDir, "output")
}
