package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"mediafetch/internal/job"
	"mediafetch/internal/store"
)

// stubSuccess mimics the external tool: it resolves the -o template and
// writes the output file after printing progress.
const stubSuccess = `#!/bin/sh
out=""
prev=""
for a in "$@"; do
  if [ "$prev" = "-o" ]; then out="$a"; fi
  prev="$a"
done
out=$(printf '%s' "$out" | sed 's/%(ext)s/mp4/')
echo "[download] 100.0% of 1.00MiB"
printf 'media-bytes' > "$out"
exit 0
`

const stubFailure = `#!/bin/sh
echo "ERROR: unsupported URL" >&2
exit 1
`

func setupRouter(t *testing.T, script string) (*gin.Engine, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dataDir := t.TempDir()
	binary := filepath.Join(t.TempDir(), "ytdlp-stub")
	if err := os.WriteFile(binary, []byte(script), 0o700); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	runner := job.NewRunner(job.Options{
		DataDir:           dataDir,
		Binary:            binary,
		MaxConcurrentJobs: 2,
		Timeout:           30 * time.Second,
	})
	fileStore := store.New(dataDir, time.Hour)

	router := gin.New()
	NewAPI(runner, fileStore).RegisterRoutes(router)
	return router, dataDir
}

func postJSON(t *testing.T, router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestDownloadEmptyURLRejectedWithoutJobID(t *testing.T) {
	router, _ := setupRouter(t, stubFailure)

	w := postJSON(t, router, "/api/download", `{"url":""}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["error"] == nil || resp["error"] == "" || resp["job_id"] != nil {
		t.Fatalf("expected error without job id, got %v", resp)
	}
}

func TestDownloadThenRetrieveFile(t *testing.T) {
	router, _ := setupRouter(t, stubSuccess)

	w := postJSON(t, router, "/api/download", `{"url":"https://example.org/v"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	var resp struct {
		JobID       string `json:"job_id"`
		Filename    string `json:"filename"`
		DownloadURL string `json:"download_url"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.JobID == "" || !strings.HasPrefix(resp.Filename, resp.JobID+".") {
		t.Fatalf("unexpected response: %+v", resp)
	}

	req := httptest.NewRequest(http.MethodGet, resp.DownloadURL, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if w.Body.String() != "media-bytes" {
		t.Fatalf("expected stored file bytes, got %q", w.Body.String())
	}
}

func TestDownloadToolFailure(t *testing.T) {
	router, _ := setupRouter(t, stubFailure)

	w := postJSON(t, router, "/api/download", `{"url":"https://example.org/v"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
	}
	if !strings.Contains(w.Body.String(), "unsupported URL") {
		t.Fatalf("expected diagnostic in body, got %s", w.Body.String())
	}
}

func TestDownloadStreamTerminalEvents(t *testing.T) {
	router, _ := setupRouter(t, stubSuccess)

	w := postJSON(t, router, "/api/download-stream", `{"url":"https://example.org/v"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	body := w.Body.String()
	if strings.Count(body, "event:complete") != 1 {
		t.Fatalf("expected exactly one complete event, got: %s", body)
	}
	if !strings.Contains(body, "event:progress") {
		t.Fatalf("expected progress events, got: %s", body)
	}
	if strings.Contains(body, "event:error") {
		t.Fatalf("unexpected error event: %s", body)
	}
}

func TestDownloadStreamFailureEmitsErrorEvent(t *testing.T) {
	router, _ := setupRouter(t, stubFailure)

	w := postJSON(t, router, "/api/download-stream", `{"url":"https://example.org/v"}`)
	body := w.Body.String()
	if strings.Count(body, "event:error") != 1 || strings.Contains(body, "event:complete") {
		t.Fatalf("expected a single error event and no complete, got: %s", body)
	}
	if !strings.Contains(body, "unsupported URL") {
		t.Fatalf("expected diagnostic text in event, got: %s", body)
	}
}

func TestInfoEndpoint(t *testing.T) {
	router, _ := setupRouter(t, `#!/bin/sh
echo '{"title":"clip","uploader":"someone","formats":[{"format_id":"22","ext":"mp4"}]}'
`)

	w := postJSON(t, router, "/api/info", `{"url":"https://example.org/v"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["title"] != "clip" {
		t.Fatalf("unexpected info: %v", resp)
	}
}

func TestHealth(t *testing.T) {
	router, _ := setupRouter(t, "#!/bin/sh\necho '2025.08.01'\n")

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if !strings.Contains(w.Body.String(), "2025.08.01") {
		t.Fatalf("expected version in body, got %s", w.Body.String())
	}
}

func TestHealthToolUnavailable(t *testing.T) {
	gin.SetMode(gin.TestMode)
	runner := job.NewRunner(job.Options{
		DataDir: t.TempDir(),
		Binary:  filepath.Join(t.TempDir(), "no-such-binary"),
	})
	router := gin.New()
	NewAPI(runner, store.New(t.TempDir(), time.Hour)).RegisterRoutes(router)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}
}

func TestListAndDeleteFiles(t *testing.T) {
	router, dataDir := setupRouter(t, stubSuccess)
	if err := os.WriteFile(filepath.Join(dataDir, "keep.mp4"), []byte("x"), 0o600); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/files", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "keep.mp4") {
		t.Fatalf("expected listing with keep.mp4, got %d: %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/file/keep.mp4", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/file/keep.mp4", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status %d after delete, got %d", http.StatusNotFound, w.Code)
	}
}

func TestGetFileNeverCreated(t *testing.T) {
	router, _ := setupRouter(t, stubSuccess)

	req := httptest.NewRequest(http.MethodGet, "/api/file/ghost.mp4", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}
