package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var conllSample = strings.Join([]string{
	"#begin document (novel); part 000",
	"novel\t0\t0\tDer\tART\t(S(NP*\tder",
	"novel\t0\t1\tHund\tNN\t*)\t-",
	"novel\t0\t2\tbellt\tVVFIN\t(VP*))\tbellen",
	"",
	"#end document",
	"",
}, "\n")

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
	Meta    *APIMeta        `json:"meta"`
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := New(Config{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decoding response: %v\nbody: %s", err, rec.Body.String())
	}
	return env
}

func decodeData(t *testing.T, env envelope, target any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, target); err != nil {
		t.Fatalf("decoding data: %v", err)
	}
}

// multipartUpload builds a multipart request body with the given form
// fields and file contents.
func multipartUpload(t *testing.T, fields map[string]string, files map[string][2]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			t.Fatalf("WriteField(%q): %v", name, err)
		}
	}
	for name, file := range files {
		part, err := writer.CreateFormFile(name, file[0])
		if err != nil {
			t.Fatalf("CreateFormFile(%q): %v", name, err)
		}
		part.Write([]byte(file[1]))
	}
	writer.Close()
	return body, writer.FormDataContentType()
}

func TestRootEndpoint(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if !env.Success {
		t.Error("success = false")
	}
	var info map[string]any
	decodeData(t, env, &info)
	if info["name"] != "CATMA Annotation API" {
		t.Errorf("name = %v", info["name"])
	}
}

func TestUnknownEndpoint(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/nonexistent", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var health HealthInfo
	decodeData(t, decodeEnvelope(t, rec), &health)
	if health.Status != "healthy" || health.Formats == 0 {
		t.Errorf("health = %+v", health)
	}
}

func TestSecurityHeadersApplied(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
}

func TestFormatsEndpoint(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/formats", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var infos []FormatInfo
	decodeData(t, decodeEnvelope(t, rec), &infos)

	byID := make(map[string]FormatInfo)
	for _, info := range infos {
		byID[info.ID] = info
	}
	for _, id := range []string{"conll", "hotcoref", "tei"} {
		if _, ok := byID[id]; !ok {
			t.Errorf("format %q missing", id)
		}
	}
	if !byID["tei"].CanEncode {
		t.Error("tei cannot encode")
	}
	if !byID["conll"].CanDecode || byID["conll"].CanEncode {
		t.Errorf("conll = %+v", byID["conll"])
	}
}

func TestConvertEndpoint(t *testing.T) {
	s := newTestServer(t)

	body, contentType := multipartUpload(t,
		map[string]string{"author": "annotator", "title": "Novel"},
		map[string][2]string{"file": {"novel.conll", conllSample}})

	req := httptest.NewRequest(http.MethodPost, "/convert", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp ConvertResponse
	decodeData(t, decodeEnvelope(t, rec), &resp)
	if resp.Format != "conll" {
		t.Errorf("format = %q", resp.Format)
	}
	if resp.Annotations == 0 {
		t.Error("annotations = 0")
	}
	if !strings.Contains(resp.Document, "<TEI") {
		t.Error("document is not TEI")
	}
	if resp.SHA256 == "" {
		t.Error("sha256 empty")
	}
}

func TestConvertRaw(t *testing.T) {
	s := newTestServer(t)

	body, contentType := multipartUpload(t, nil,
		map[string][2]string{"file": {"novel.conll", conllSample}})

	req := httptest.NewRequest(http.MethodPost, "/convert?raw=1", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/xml") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "<TEI") {
		t.Error("body is not a TEI document")
	}
}

func TestConvertMissingFile(t *testing.T) {
	s := newTestServer(t)

	body, contentType := multipartUpload(t, map[string]string{"author": "x"}, nil)
	req := httptest.NewRequest(http.MethodPost, "/convert", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Error == nil || env.Error.Code != "MISSING_FILE" {
		t.Errorf("error = %+v", env.Error)
	}
}

func TestConvertUndetectableFormat(t *testing.T) {
	s := newTestServer(t)

	body, contentType := multipartUpload(t, nil,
		map[string][2]string{"file": {"notes.txt", "just some prose"}})
	req := httptest.NewRequest(http.MethodPost, "/convert", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d, want 415", rec.Code)
	}
}

func importSample(t *testing.T, s *Server) string {
	t.Helper()
	body, contentType := multipartUpload(t,
		map[string]string{"author": "annotator", "title": "Novel"},
		map[string][2]string{"file": {"novel.conll", conllSample}})

	req := httptest.NewRequest(http.MethodPost, "/collections", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("import status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var info struct {
		ID string `json:"id"`
	}
	decodeData(t, decodeEnvelope(t, rec), &info)
	if info.ID == "" {
		t.Fatal("collection ID empty")
	}
	return info.ID
}

func TestImportAndListCollections(t *testing.T) {
	s := newTestServer(t)
	id := importSample(t, s)

	req := httptest.NewRequest(http.MethodGet, "/collections", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	env := decodeEnvelope(t, rec)
	var infos []struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}
	decodeData(t, env, &infos)
	if len(infos) != 1 || infos[0].ID != id || infos[0].Title != "Novel" {
		t.Errorf("collections = %+v", infos)
	}
	if env.Meta == nil || env.Meta.Total != 1 {
		t.Errorf("meta = %+v", env.Meta)
	}
}

func TestGetCollection(t *testing.T) {
	s := newTestServer(t)
	id := importSample(t, s)

	req := httptest.NewRequest(http.MethodGet, "/collections/"+id, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var info struct {
		Title       string `json:"title"`
		Author      string `json:"author"`
		Annotations int    `json:"annotations"`
	}
	decodeData(t, decodeEnvelope(t, rec), &info)
	if info.Title != "Novel" || info.Author != "annotator" || info.Annotations == 0 {
		t.Errorf("info = %+v", info)
	}
}

func TestGetCollectionNotFound(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/collections/no-such-id", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestCollectionTags(t *testing.T) {
	s := newTestServer(t)
	id := importSample(t, s)

	req := httptest.NewRequest(http.MethodGet, "/collections/"+id+"/tags", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var counts []struct {
		TagPath string `json:"tag_path"`
		Count   int    `json:"count"`
	}
	decodeData(t, decodeEnvelope(t, rec), &counts)
	found := false
	for _, tc := range counts {
		if tc.TagPath == "/Token" && tc.Count == 3 {
			found = true
		}
	}
	if !found {
		t.Errorf("token count missing: %+v", counts)
	}
}

func TestCollectionAnnotationsByTag(t *testing.T) {
	s := newTestServer(t)
	id := importSample(t, s)

	req := httptest.NewRequest(http.MethodGet, "/collections/"+id+"/annotations?tag=/Token", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var annos []struct {
		TagName string `json:"tag_name"`
	}
	decodeData(t, decodeEnvelope(t, rec), &annos)
	if len(annos) != 3 {
		t.Fatalf("annotations = %d, want 3", len(annos))
	}
	if annos[0].TagName != "Token" {
		t.Errorf("tag = %q", annos[0].TagName)
	}
}

func TestCollectionAnnotationsInRange(t *testing.T) {
	s := newTestServer(t)
	id := importSample(t, s)

	req := httptest.NewRequest(http.MethodGet, "/collections/"+id+"/annotations?start=0&end=3", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var annos []struct {
		TagName string `json:"tag_name"`
	}
	decodeData(t, decodeEnvelope(t, rec), &annos)
	if len(annos) == 0 {
		t.Error("no annotations in range covering the first token")
	}
}

func TestCollectionAnnotationsBadParams(t *testing.T) {
	s := newTestServer(t)
	id := importSample(t, s)

	for _, query := range []string{"", "start=5", "start=x&end=9", "start=9&end=5"} {
		req := httptest.NewRequest(http.MethodGet, "/collections/"+id+"/annotations?"+query, nil)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("query %q: status = %d, want 400", query, rec.Code)
		}
	}
}

func waitForJob(t *testing.T, s *Server, id string) Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		req := httptest.NewRequest(http.MethodGet, "/jobs/"+id, nil)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)

		var job Job
		decodeData(t, decodeEnvelope(t, rec), &job)
		switch job.Status {
		case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
			return job
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("job did not finish in time")
	return Job{}
}

func TestJobLifecycle(t *testing.T) {
	s := newTestServer(t)

	if err := os.WriteFile(filepath.Join(s.cfg.DataDir, "sample.conll"), []byte(conllSample), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	body := strings.NewReader(`{"source":"sample.conll","author":"annotator","title":"Novel","import":true}`)
	req := httptest.NewRequest(http.MethodPost, "/jobs", body)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var created Job
	decodeData(t, decodeEnvelope(t, rec), &created)

	job := waitForJob(t, s, created.ID)
	if job.Status != JobStatusCompleted {
		t.Fatalf("status = %s, error = %s", job.Status, job.Error)
	}
	if job.Result == nil || job.Result.CollectionID == "" {
		t.Fatalf("result = %+v", job.Result)
	}
	if job.Result.Output != "sample.xml" {
		t.Errorf("output = %q", job.Result.Output)
	}

	output, err := os.ReadFile(filepath.Join(s.cfg.DataDir, job.Result.Output))
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if !bytes.Contains(output, []byte("<TEI")) {
		t.Error("output is not a TEI document")
	}
}

func TestJobMissingSource(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestJobPathTraversal(t *testing.T) {
	s := newTestServer(t)

	body := strings.NewReader(`{"source":"../../etc/passwd"}`)
	req := httptest.NewRequest(http.MethodPost, "/jobs", body)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestJobNotFound(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/jobs/missing", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestCancelFinishedJob(t *testing.T) {
	s := newTestServer(t)

	if err := os.WriteFile(filepath.Join(s.cfg.DataDir, "sample.conll"), []byte(conllSample), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(`{"source":"sample.conll"}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	var created Job
	decodeData(t, decodeEnvelope(t, rec), &created)
	waitForJob(t, s, created.ID)

	req = httptest.NewRequest(http.MethodDelete, "/jobs/"+created.ID, nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	s, err := New(Config{
		DataDir: t.TempDir(),
		Auth:    AuthConfig{Enabled: true, APIKey: "0123456789abcdef0123456789abcdef"},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()
	handler := s.Handler()

	// health stays public
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/formats", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/formats", nil)
	req.Header.Set("X-API-Key", "0123456789abcdef0123456789abcdef")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("authenticated status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/formats", nil)
	req.Header.Set("X-API-Key", "wrong-key-wrong-key")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong key status = %d, want 401", rec.Code)
	}
}

func TestValidateAuthConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     AuthConfig
		wantErr bool
	}{
		{"disabled", AuthConfig{}, false},
		{"enabled with key", AuthConfig{Enabled: true, APIKey: "0123456789abcdef"}, false},
		{"enabled without key", AuthConfig{Enabled: true}, true},
		{"short key", AuthConfig{Enabled: true, APIKey: "short"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateAuthConfig(tt.cfg); (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	s, err := New(Config{
		DataDir:           t.TempDir(),
		RateLimitRequests: 60,
		RateLimitBurst:    2,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()
	handler := s.Handler()

	statuses := make([]int, 3)
	for i := range statuses {
		req := httptest.NewRequest(http.MethodGet, "/formats", nil)
		req.RemoteAddr = "10.0.0.1:12345"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		statuses[i] = rec.Code
	}

	if statuses[0] != http.StatusOK || statuses[1] != http.StatusOK {
		t.Errorf("burst requests = %v", statuses)
	}
	if statuses[2] != http.StatusTooManyRequests {
		t.Errorf("third request = %d, want 429", statuses[2])
	}
}

func TestRateLimiterPerIP(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerMinute: 60, BurstSize: 1})

	if !rl.Allow("10.0.0.1") {
		t.Error("first request denied")
	}
	if rl.Allow("10.0.0.1") {
		t.Error("second request allowed within burst 1")
	}
	if !rl.Allow("10.0.0.2") {
		t.Error("other client denied")
	}
}

func TestValidateID(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{"b2c1aa8c-3edf-4929-9e32-8bcd3166c0f4", false},
		{"simple", false},
		{"", true},
		{"..", true},
		{"a/b", true},
		{"a\\b", true},
		{"-leading", true},
	}
	for _, tt := range tests {
		if err := ValidateID(tt.id); (err != nil) != tt.wantErr {
			t.Errorf("ValidateID(%q) err = %v, wantErr %v", tt.id, err, tt.wantErr)
		}
	}
}

func TestValidatePathTraversal(t *testing.T) {
	base := t.TempDir()
	tests := []struct {
		path    string
		wantErr bool
	}{
		{"file.conll", false},
		{"sub/file.conll", false},
		{"../escape", true},
		{"sub/../../escape", true},
		{"/absolute", true},
		{"", true},
	}
	for _, tt := range tests {
		if _, err := ValidatePath(base, tt.path); (err != nil) != tt.wantErr {
			t.Errorf("ValidatePath(%q) err = %v, wantErr %v", tt.path, err, tt.wantErr)
		}
	}
}

func TestWebSocketBroadcast(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for s.hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if s.hub.ClientCount() == 0 {
		t.Fatal("client never registered")
	}

	s.hub.Progress("convert", "decoding", "Decoding input", 25)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var msg ProgressMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Type != "progress" || msg.Operation != "convert" || msg.Progress != 25 {
		t.Errorf("msg = %+v", msg)
	}
	if msg.Timestamp == "" {
		t.Error("timestamp empty")
	}
}

func TestWebSocketOriginRejected(t *testing.T) {
	s, err := New(Config{
		DataDir:        t.TempDir(),
		AllowedOrigins: []string{"https://app.example.com"},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err == nil {
		t.Fatal("dial succeeded for rejected origin")
	}
	if resp != nil && resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}
}

func TestOutputName(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{"sample.conll", "sample.xml"},
		{"sub/dir/input.hotcoref", "input.xml"},
		{"archive.conll.gz", "archive.xml"},
	}
	for _, tt := range tests {
		if got := outputName(tt.source); got != tt.want {
			t.Errorf("outputName(%q) = %q, want %q", tt.source, got, tt.want)
		}
	}
}

func TestNewRejectsBadAuth(t *testing.T) {
	_, err := New(Config{DataDir: t.TempDir(), Auth: AuthConfig{Enabled: true}})
	if err == nil {
		t.Fatal("expected error for enabled auth without key")
	}
}

func TestNewRejectsMissingTLSFiles(t *testing.T) {
	_, err := New(Config{
		DataDir: t.TempDir(),
		TLS: TLSConfig{
			Enabled:  true,
			CertFile: filepath.Join(t.TempDir(), "missing.crt"),
			KeyFile:  filepath.Join(t.TempDir(), "missing.key"),
		},
	})
	if err == nil {
		t.Fatal("expected error for missing TLS files")
	}
}

func TestJobStoreGetReturnsSnapshot(t *testing.T) {
	store := NewJobStore()
	job := store.Create(JobRequest{Source: "a.conll"})
	store.Update(job.ID, JobStatusRunning, 10, nil, "")

	snap, ok := store.Get(job.ID)
	if !ok {
		t.Fatal("job not found")
	}

	store.Update(job.ID, JobStatusCompleted, 100, &JobResult{Output: "a.xml"}, "")

	if snap.Status != JobStatusRunning || snap.Progress != 10 {
		t.Errorf("snapshot mutated after Update: %s/%d", snap.Status, snap.Progress)
	}
	if snap.Result != nil {
		t.Error("snapshot picked up a result written after Get")
	}

	done, _ := store.Get(job.ID)
	if done.Status != JobStatusCompleted || done.Result == nil {
		t.Errorf("fresh snapshot = %s, result %v", done.Status, done.Result)
	}
}

func TestJobMarshalDuringUpdates(t *testing.T) {
	store := NewJobStore()
	job := store.Create(JobRequest{Source: "a.conll"})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			store.Update(job.ID, JobStatusRunning, i%100, &JobResult{Output: "a.xml"}, "")
		}
	}()

	for i := 0; i < 500; i++ {
		snap, ok := store.Get(job.ID)
		if !ok {
			t.Fatal("job disappeared")
		}
		if _, err := json.Marshal(snap); err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		for _, listed := range store.List() {
			if _, err := json.Marshal(listed); err != nil {
				t.Fatalf("Marshal list: %v", err)
			}
		}
	}
	<-done
}
