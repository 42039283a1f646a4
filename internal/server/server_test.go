package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joseph-ayodele/reviews-extractor/internal/blob"
	"github.com/joseph-ayodele/reviews-extractor/internal/common"
	"github.com/joseph-ayodele/reviews-extractor/internal/credential"
	"github.com/joseph-ayodele/reviews-extractor/internal/export"
	"github.com/joseph-ayodele/reviews-extractor/internal/extract"
	"github.com/joseph-ayodele/reviews-extractor/internal/pleper"
	"github.com/joseph-ayodele/reviews-extractor/internal/repository"
)

const finishedBody = `{
	"status": "Finished",
	"results": {"google/by-profile/reviews": [{"results": [
		{"review_link": "https://g.co/r/1", "time": "1 week ago", "rating": 5, "content": "Lovely"},
		{"review_link": "https://g.co/r/2", "time": "2 weeks ago", "rating": 2, "content": "Meh"}
	]}]}
}`

type fakeUpstream struct {
	polls    atomic.Int32
	lastKey  atomic.Value
	rejected bool
}

func (u *fakeUpstream) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v3/google/by-profile/reviews":
			if err := r.ParseForm(); err != nil {
				t.Errorf("parse form: %v", err)
			}
			u.lastKey.Store(r.PostForm.Get("api-key"))
			if u.rejected {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = io.WriteString(w, `{"success": false, "message": "Invalid API key"}`)
				return
			}
			_, _ = io.WriteString(w, `{"success": true, "batch_id": "xyz", "job_id": 7, "queries_left": 93}`)
		case "/v3/batch_get_results":
			u.lastKey.Store(r.URL.Query().Get("api_key"))
			if u.rejected {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = io.WriteString(w, `{"status": "error", "message": "Invalid API key"}`)
				return
			}
			if u.polls.Add(1) == 1 {
				_, _ = io.WriteString(w, `{"status": "Processing"}`)
				return
			}
			_, _ = io.WriteString(w, finishedBody)
		default:
			http.NotFound(w, r)
		}
	}
}

type fixture struct {
	server   *httptest.Server
	upstream *fakeUpstream
	store    blob.LocalFS
	creds    *credential.Store
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T, uiDir string) *fixture {
	t.Helper()
	t.Setenv(credential.EnvVar, "")

	up := &fakeUpstream{}
	upstream := httptest.NewServer(up.handler(t))
	t.Cleanup(upstream.Close)

	dir := t.TempDir()
	creds, err := credential.NewStore(filepath.Join(dir, "config", "config.json"), "fallback-key-123", quietLogger())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	store, err := blob.NewLocalFS(filepath.Join(dir, "uploads"))
	if err != nil {
		t.Fatalf("NewLocalFS: %v", err)
	}

	client := pleper.NewClient(pleper.Config{BaseURL: upstream.URL, Timeout: 5 * time.Second}, creds, quietLogger())
	svc := extract.NewService(client,
		repository.NewBatchBindingRepository(100, time.Hour, quietLogger()),
		export.NewService(store, quietLogger()),
		quietLogger(),
	)
	srv := httptest.NewServer(Server{
		Extract:     svc,
		Artifacts:   store,
		Credentials: creds,
		UIDir:       uiDir,
		Logger:      quietLogger(),
	}.Router())
	t.Cleanup(srv.Close)

	return &fixture{server: srv, upstream: up, store: store, creds: creds}
}

func (f *fixture) do(t *testing.T, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, _ := http.NewRequest(method, f.server.URL+path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	var out map[string]any
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
	} else {
		out = map[string]any{"_raw": string(raw)}
	}
	return resp, out
}

func TestExtractPollDownloadFlow(t *testing.T) {
	f := newFixture(t, "")

	resp, body := f.do(t, http.MethodPost, "/extract-reviews", `{"locationId":"2311597048265282150"}`)
	if resp.StatusCode != http.StatusOK || body["success"] != true {
		t.Fatalf("extract: %d %v", resp.StatusCode, body)
	}
	data := body["data"].(map[string]any)
	if data["batchId"] != "xyz" || data["jobId"] != "7" || data["queriesRemaining"] != "93" {
		t.Fatalf("unexpected submission %v", data)
	}
	if f.upstream.lastKey.Load() != "fallback-key-123" {
		t.Fatalf("upstream saw key %v", f.upstream.lastKey.Load())
	}

	resp, body = f.do(t, http.MethodGet, "/get-results/xyz", "")
	if resp.StatusCode != http.StatusOK || body["ready"] != false || body["status"] != "Processing" {
		t.Fatalf("pending poll: %d %v", resp.StatusCode, body)
	}
	if f.store.Exists("reviews_2311597048265282150.xlsx") {
		t.Fatal("artifact must not exist before completion")
	}

	resp, body = f.do(t, http.MethodGet, "/api/get-results/xyz", "")
	if resp.StatusCode != http.StatusOK || body["ready"] != true {
		t.Fatalf("ready poll: %d %v", resp.StatusCode, body)
	}
	if body["fileName"] != "reviews_2311597048265282150.xlsx" || body["reviewCount"] != float64(2) {
		t.Fatalf("unexpected ready body %v", body)
	}

	onDisk, err := os.ReadFile(filepath.Join(f.store.Root, "reviews_2311597048265282150.xlsx"))
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	resp, body = f.do(t, http.MethodGet, "/download/reviews_2311597048265282150.xlsx", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("download: %d", resp.StatusCode)
	}
	if !strings.Contains(resp.Header.Get("Content-Disposition"), "attachment") ||
		!strings.Contains(resp.Header.Get("Content-Disposition"), "reviews_2311597048265282150.xlsx") {
		t.Fatalf("content disposition %q", resp.Header.Get("Content-Disposition"))
	}
	downloaded := []byte(body["_raw"].(string))
	if !bytes.Equal(downloaded, onDisk) {
		t.Fatal("downloaded bytes differ from the generated artifact")
	}
	rows, err := export.ReadReviews(bytes.NewReader(downloaded))
	if err != nil {
		t.Fatalf("ReadReviews: %v", err)
	}
	if len(rows) != 2 || rows[0].Content != "Lovely" || rows[1].Rating != "2" {
		t.Fatalf("unexpected rows %+v", rows)
	}
}

func TestExtractErrors(t *testing.T) {
	f := newFixture(t, "")

	cases := []struct {
		name, body string
		status     int
	}{
		{"missing", `{}`, http.StatusBadRequest},
		{"blank", `{"locationId":"  "}`, http.StatusBadRequest},
		{"traversal", `{"locationId":"../../etc"}`, http.StatusBadRequest},
		{"not json", `locationId=1`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		resp, body := f.do(t, http.MethodPost, "/extract-reviews", tc.body)
		if resp.StatusCode != tc.status || body["success"] != false || body["message"] == "" {
			t.Fatalf("%s: %d %v", tc.name, resp.StatusCode, body)
		}
	}
	if f.upstream.lastKey.Load() != nil {
		t.Fatal("invalid input must not reach upstream")
	}

	// legacy field name is still honored
	resp, body := f.do(t, http.MethodPost, "/api/extract-reviews", `{"cid":"42"}`)
	if resp.StatusCode != http.StatusOK || body["success"] != true {
		t.Fatalf("legacy cid: %d %v", resp.StatusCode, body)
	}
}

func TestExtractUpstreamRejected(t *testing.T) {
	f := newFixture(t, "")
	f.upstream.rejected = true
	resp, body := f.do(t, http.MethodPost, "/extract-reviews", `{"locationId":"1"}`)
	if resp.StatusCode != http.StatusBadRequest || body["message"] != "Invalid API key" || body["code"] != common.CodeUpstreamRejected {
		t.Fatalf("rejected: %d %v", resp.StatusCode, body)
	}

	// a rejected key on the results endpoint is a failure, not a pending batch
	resp, body = f.do(t, http.MethodGet, "/get-results/xyz", "")
	if resp.StatusCode != http.StatusInternalServerError || body["success"] != false || body["code"] != common.CodeUpstreamUnavailable {
		t.Fatalf("results with rejected key: %d %v", resp.StatusCode, body)
	}
}

func TestDownloadNotFound(t *testing.T) {
	f := newFixture(t, "")
	for _, path := range []string{"/download/nope.xlsx", "/download/..%2Fconfig%2Fconfig.json", "/api/download/nope.xlsx"} {
		resp, body := f.do(t, http.MethodGet, path, "")
		if resp.StatusCode != http.StatusNotFound || body["success"] != false {
			t.Fatalf("%s: %d %v", path, resp.StatusCode, body)
		}
	}
	entries, _ := os.ReadDir(f.store.Root)
	if len(entries) != 0 {
		t.Fatalf("downloads must not create files: %v", entries)
	}
}

func TestCredentialRoutes(t *testing.T) {
	f := newFixture(t, "")

	resp, body := f.do(t, http.MethodGet, "/config/credential", "")
	if resp.StatusCode != http.StatusOK || body["credential"] != "fall...-123" || body["source"] != "fallback" {
		t.Fatalf("get: %d %v", resp.StatusCode, body)
	}
	if !strings.Contains(resp.Header.Get("Cache-Control"), "no-store") {
		t.Fatalf("cache headers %q", resp.Header.Get("Cache-Control"))
	}
	if _, ok := body["timestamp"].(float64); !ok {
		t.Fatalf("timestamp missing: %v", body)
	}

	resp, body = f.do(t, http.MethodPost, "/config/credential", `{"credential":""}`)
	if resp.StatusCode != http.StatusBadRequest || body["success"] != false {
		t.Fatalf("empty update: %d %v", resp.StatusCode, body)
	}

	resp, body = f.do(t, http.MethodPost, "/api/config/credential", `{"credential":"abcd1234wxyz"}`)
	if resp.StatusCode != http.StatusOK || body["success"] != true {
		t.Fatalf("update: %d %v", resp.StatusCode, body)
	}
	_, body = f.do(t, http.MethodGet, "/config/credential", "")
	if body["credential"] != "abcd...wxyz" || body["source"] != "file" {
		t.Fatalf("after update: %v", body)
	}

	// next upstream call uses the new value without a restart
	f.do(t, http.MethodPost, "/extract-reviews", `{"locationId":"5"}`)
	if f.upstream.lastKey.Load() != "abcd1234wxyz" {
		t.Fatalf("upstream saw key %v", f.upstream.lastKey.Load())
	}

	// legacy body key
	f.do(t, http.MethodPost, "/config/credential", `{"apiKey":"short"}`)
	_, body = f.do(t, http.MethodGet, "/config/credential", "")
	if body["credential"] != "****" {
		t.Fatalf("short key mask: %v", body)
	}
}

func TestHealthAndUI(t *testing.T) {
	ui := t.TempDir()
	if err := os.WriteFile(filepath.Join(ui, "index.html"), []byte("<html>app</html>"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(ui, "app.js"), []byte("console.log(1)"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	f := newFixture(t, ui)

	resp, body := f.do(t, http.MethodGet, "/health", "")
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("health: %d %v", resp.StatusCode, body)
	}
	_, body = f.do(t, http.MethodGet, "/app.js", "")
	if body["_raw"] != "console.log(1)" {
		t.Fatalf("static asset: %v", body)
	}
	_, body = f.do(t, http.MethodGet, "/some/client/route", "")
	if body["_raw"] != "<html>app</html>" {
		t.Fatalf("spa fallback: %v", body)
	}
	resp, _ = f.do(t, http.MethodGet, "/api/unknown", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("api paths must not fall back: %d", resp.StatusCode)
	}
}
