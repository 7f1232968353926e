package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"visiond/internal/artifact"
	"visiond/internal/imagegen"
	"visiond/pkg/types"
)

// ImageService defines the methods the image generation API requires.
type ImageService interface {
	Submit(prompt, mode string) (string, error)
	Query(id string) (types.TaskStatus, error)
	FetchResult(id string) (*artifact.File, error)
	AdminStatus(ctx context.Context) types.ServerStatus
	AdminUnload(ctx context.Context) error
	Ready() bool
}

const (
	msgUnloadFailed = "Failed to unload models"
	msgUnloaded     = "All models unloaded"
)

// generateBody is types.GenerateRequest with mode kept raw, so an explicit
// null can be told apart from an absent key.
type generateBody struct {
	Prompt string          `json:"prompt"`
	Mode   json.RawMessage `json:"mode"`
}

// mode returns the default tier only when the key is absent. Null and
// non-string values yield "", which Submit rejects as an invalid mode.
func (b generateBody) mode() string {
	if len(b.Mode) == 0 {
		return imagegen.DefaultMode
	}
	var m string
	if err := json.Unmarshal(b.Mode, &m); err != nil {
		return ""
	}
	return m
}

// NewImageMux builds the imagegend router.
func NewImageMux(svc ImageService) http.Handler {
	r := newRouter()

	r.Post("/generate", func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lvl := requestLogLevel(r)
		ct := r.Header.Get("Content-Type")
		if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
			writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var req generateBody
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		mode := req.mode()
		id, err := svc.Submit(req.Prompt, mode)
		if err != nil {
			status := statusFor(err)
			writeJSONError(w, status, err.Error())
			logEnd(r, lvl, "generate rejected", status, start, err)
			return
		}
		logDebug(r, lvl, "generate accepted", map[string]any{"task_id": id, "mode": mode})
		writeJSON(w, http.StatusAccepted, types.GenerateResponse{TaskID: id, Status: "accepted"})
	})

	r.Get("/status/{task_id}", func(w http.ResponseWriter, r *http.Request) {
		st, err := svc.Query(chi.URLParam(r, "task_id"))
		if err != nil {
			writeJSONError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, st)
	})

	r.Get("/result/{task_id}", func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := chi.URLParam(r, "task_id")
		f, err := svc.FetchResult(id)
		if err != nil {
			status := statusFor(err)
			writeJSONError(w, status, err.Error())
			if status >= http.StatusInternalServerError {
				logEnd(r, requestLogLevel(r), "result unavailable", status, start, err)
			}
			return
		}
		defer f.Close()
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Disposition", `attachment; filename="`+f.Name+`"`)
		http.ServeContent(w, r, f.Name, f.ModTime, f)
		logEnd(r, requestLogLevel(r), "result sent", http.StatusOK, start, nil)
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.AdminStatus(r.Context()))
	})

	r.Post("/unload", func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		if err := svc.AdminUnload(r.Context()); err != nil {
			writeJSONErrorDetails(w, http.StatusInternalServerError, msgUnloadFailed, err.Error())
			logEnd(r, requestLogLevel(r), "unload failed", http.StatusInternalServerError, start, err)
			return
		}
		writeJSON(w, http.StatusOK, types.UnloadResponse{Status: msgUnloaded})
		logEnd(r, requestLogLevel(r), "unload", http.StatusOK, start, nil)
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("shutting down"))
	})

	return r
}
