package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"visiond/internal/artifact"
	"visiond/internal/imagegen"
	"visiond/pkg/types"
)

type mockImageService struct {
	submitErr error
	gotPrompt string
	gotMode   string
	status    map[string]types.TaskStatus
	result    string
	resultErr error
	admin     types.ServerStatus
	unloadErr error
	ready     bool
}

func (m *mockImageService) Submit(prompt, mode string) (string, error) {
	m.gotPrompt, m.gotMode = prompt, mode
	if m.submitErr != nil {
		return "", m.submitErr
	}
	return "t-1", nil
}

func (m *mockImageService) Query(id string) (types.TaskStatus, error) {
	st, ok := m.status[id]
	if !ok {
		return types.TaskStatus{}, imagegen.ErrTaskNotFound(id)
	}
	return st, nil
}

func (m *mockImageService) FetchResult(id string) (*artifact.File, error) {
	if m.resultErr != nil {
		return nil, m.resultErr
	}
	f, err := os.Open(m.result)
	if err != nil {
		return nil, err
	}
	fi, _ := f.Stat()
	return &artifact.File{File: f, Name: id + ".png", Size: fi.Size(), ModTime: fi.ModTime()}, nil
}

func (m *mockImageService) AdminStatus(context.Context) types.ServerStatus { return m.admin }
func (m *mockImageService) AdminUnload(context.Context) error             { return m.unloadErr }
func (m *mockImageService) Ready() bool                                   { return m.ready }

type mockHTTPError struct{ msg string; code int }
func (e mockHTTPError) Error() string { return e.msg }
func (e mockHTTPError) StatusCode() int { return e.code }

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) types.ErrorResponse {
	t.Helper()
	var e types.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil { t.Fatalf("json: %v body=%q", err, w.Body.String()) }
	return e
}

func TestGenerate_Accepted(t *testing.T) {
	svc := &mockImageService{}
	w := do(NewImageMux(svc), http.MethodPost, "/generate", `{"prompt":"a red cube","mode":"slow"}`)
	if w.Code != http.StatusAccepted { t.Fatalf("status=%d body=%s", w.Code, w.Body.String()) }
	var body types.GenerateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil { t.Fatalf("json: %v", err) }
	if body.TaskID != "t-1" || body.Status != "accepted" { t.Fatalf("body=%+v", body) }
	if svc.gotPrompt != "a red cube" || svc.gotMode != "slow" { t.Fatalf("got %q %q", svc.gotPrompt, svc.gotMode) }
}

func TestGenerate_ModeDefaultsOnlyWhenAbsent(t *testing.T) {
	svc := &mockImageService{}
	h := NewImageMux(svc)
	if w := do(h, http.MethodPost, "/generate", `{"prompt":"x"}`); w.Code != http.StatusAccepted || svc.gotMode != "fast" { t.Fatalf("status=%d mode=%q", w.Code, svc.gotMode) }
	do(h, http.MethodPost, "/generate", `{"prompt":"x","mode":""}`)
	if svc.gotMode != "" { t.Fatalf("explicit empty mode replaced with %q", svc.gotMode) }
	for _, body := range []string{`{"prompt":"x","mode":null}`, `{"prompt":"x","mode":7}`} {
		svc.gotMode = "unset"
		do(h, http.MethodPost, "/generate", body)
		if svc.gotMode != "" { t.Fatalf("%s: mode=%q, want empty", body, svc.gotMode) }
	}
}

func TestGenerate_BadRequests(t *testing.T) {
	h := NewImageMux(&mockImageService{submitErr: imagegen.ErrValidation("Invalid mode")})
	if w := do(h, http.MethodPost, "/generate", `{"prompt":"x","mode":"bogus"}`); w.Code != http.StatusBadRequest || decodeError(t, w).Error != "Invalid mode" { t.Fatalf("status=%d body=%s", w.Code, w.Body.String()) }
	if w := do(h, http.MethodPost, "/generate", `{not json`); w.Code != http.StatusBadRequest { t.Fatalf("bad json status=%d", w.Code) }
	req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(`{"prompt":"x"}`))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType { t.Fatalf("content-type status=%d", w.Code) }
}

func TestGenerate_BodyTooLarge(t *testing.T) {
	SetMaxBodyBytes(16)
	defer SetMaxBodyBytes(0)
	w := do(NewImageMux(&mockImageService{}), http.MethodPost, "/generate", `{"prompt":"`+strings.Repeat("a", 64)+`"}`)
	if w.Code != http.StatusBadRequest { t.Fatalf("status=%d", w.Code) }
}

func TestGenerate_ServiceErrorCodes(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{mockHTTPError{"busy", http.StatusServiceUnavailable}, http.StatusServiceUnavailable},
		{errors.New("plain"), http.StatusInternalServerError},
		{imagegen.ErrDependencyUnavailable("no runtime"), http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		w := do(NewImageMux(&mockImageService{submitErr: tc.err}), http.MethodPost, "/generate", `{"prompt":"x"}`)
		if w.Code != tc.want { t.Fatalf("%v: status=%d want %d", tc.err, w.Code, tc.want) }
	}
}

func TestTaskStatus(t *testing.T) {
	msg := "boom"
	svc := &mockImageService{status: map[string]types.TaskStatus{
		"run":  {TaskID: "run", Status: "running", Progress: 0.5},
		"fail": {TaskID: "fail", Status: "failed", Progress: 0, Error: &msg},
	}}
	h := NewImageMux(svc)
	w := do(h, http.MethodGet, "/status/run", "")
	if w.Code != http.StatusOK { t.Fatalf("status=%d", w.Code) }
	var raw map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &raw)
	if v, ok := raw["error"]; !ok || v != nil { t.Fatalf("error field=%v present=%v", v, ok) }
	if v, ok := raw["result_url"]; !ok || v != nil { t.Fatalf("result_url field=%v present=%v", v, ok) }
	if raw["progress"] != 0.5 { t.Fatalf("body=%s", w.Body.String()) }

	w = do(h, http.MethodGet, "/status/fail", "")
	if !strings.Contains(w.Body.String(), `"error":"boom"`) { t.Fatalf("body=%s", w.Body.String()) }
	w = do(h, http.MethodGet, "/status/nope", "")
	if w.Code != http.StatusNotFound || decodeError(t, w).Error != "Task not found" { t.Fatalf("status=%d body=%s", w.Code, w.Body.String()) }
}

func TestResult_Attachment(t *testing.T) {
	p := filepath.Join(t.TempDir(), "t-9.png")
	if err := os.WriteFile(p, []byte("\x89PNGdata"), 0o644); err != nil { t.Fatalf("write: %v", err) }
	w := do(NewImageMux(&mockImageService{result: p}), http.MethodGet, "/result/t-9", "")
	if w.Code != http.StatusOK { t.Fatalf("status=%d", w.Code) }
	if ct := w.Header().Get("Content-Type"); ct != "image/png" { t.Fatalf("content-type=%s", ct) }
	if cd := w.Header().Get("Content-Disposition"); cd != `attachment; filename="t-9.png"` { t.Fatalf("disposition=%s", cd) }
	if w.Body.String() != "\x89PNGdata" { t.Fatalf("body=%q", w.Body.String()) }
}

func TestResult_ErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
		msg  string
	}{
		{imagegen.ErrTaskNotFound("x"), http.StatusNotFound, "Task not found"},
		{imagegen.ErrArtifactMissing("x"), http.StatusNotFound, "Result file not found"},
		{&imagegen.TaskFailedError{ID: "x", Message: "cuda died"}, http.StatusInternalServerError, "cuda died"},
	}
	for _, tc := range cases {
		w := do(NewImageMux(&mockImageService{resultErr: tc.err}), http.MethodGet, "/result/x", "")
		if w.Code != tc.code || decodeError(t, w).Error != tc.msg { t.Fatalf("%v: status=%d body=%s", tc.err, w.Code, w.Body.String()) }
	}
}

func TestServerStatus(t *testing.T) {
	cur := "fast"
	svc := &mockImageService{admin: types.ServerStatus{
		CurrentModelLoaded:   &cur,
		LoadedModels:         []string{"fast"},
		ActiveTasks:          []string{},
		RecentCompletedTasks: []string{"a"},
		RecentFailedTasks:    []string{},
		TotalTasksTracked:    1,
	}}
	w := do(NewImageMux(svc), http.MethodGet, "/status", "")
	if w.Code != http.StatusOK { t.Fatalf("status=%d", w.Code) }
	var raw map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil { t.Fatalf("json: %v", err) }
	if raw["current_model_loaded"] != "fast" || raw["gpu_memory"] != nil || raw["total_tasks_tracked"] != float64(1) { t.Fatalf("body=%s", w.Body.String()) }
}

func TestUnload(t *testing.T) {
	w := do(NewImageMux(&mockImageService{}), http.MethodPost, "/unload", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "All models unloaded") { t.Fatalf("status=%d body=%s", w.Code, w.Body.String()) }
	w = do(NewImageMux(&mockImageService{unloadErr: errors.New("device busy")}), http.MethodPost, "/unload", "")
	e := decodeError(t, w)
	if w.Code != http.StatusInternalServerError || e.Error != "Failed to unload models" || e.Details != "device busy" { t.Fatalf("status=%d body=%s", w.Code, w.Body.String()) }
}

func TestReadyzAndHealthz(t *testing.T) {
	if w := do(NewImageMux(&mockImageService{ready: true}), http.MethodGet, "/readyz", ""); w.Code != http.StatusOK { t.Fatalf("ready status=%d", w.Code) }
	if w := do(NewImageMux(&mockImageService{}), http.MethodGet, "/readyz", ""); w.Code != http.StatusServiceUnavailable { t.Fatalf("not ready status=%d", w.Code) }
	w := do(NewImageMux(&mockImageService{}), http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK || w.Body.String() != "ok" { t.Fatalf("healthz=%d %q", w.Code, w.Body.String()) }
	if w.Header().Get("X-Content-Type-Options") != "nosniff" { t.Fatalf("missing nosniff") }
}

func TestCORS_Preflight(t *testing.T) {
	SetCORSOptions(true, []string{"*"}, []string{"GET", "POST"}, []string{"Content-Type"})
	defer SetCORSOptions(false, nil, nil, nil)
	h := NewImageMux(&mockImageService{})
	req := httptest.NewRequest(http.MethodOptions, "/generate", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Header().Get("Access-Control-Allow-Origin") != "*" { t.Fatalf("headers=%v", w.Header()) }
}
