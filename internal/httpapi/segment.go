package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"visiond/internal/artifact"
	"visiond/internal/segment"
	"visiond/pkg/types"
)

// SegmentService defines the methods the segmentation API requires.
type SegmentService interface {
	Process(ctx context.Context, up segment.Upload, boxes []segment.Box) ([]string, error)
	Open(name string) (*artifact.File, error)
}

const msgFileNotFound = "File not found"

// NewSegmentMux builds the segmentd router.
func NewSegmentMux(svc SegmentService) http.Handler {
	r := newRouter()

	r.Post("/process", func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lvl := requestLogLevel(r)
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			writeJSONError(w, http.StatusBadRequest, segment.MsgFieldsRequired)
			logEnd(r, lvl, "process rejected", http.StatusBadRequest, start, err)
			return
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()
		up, ok, err := readUpload(r)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		coords, hasCoords := r.MultipartForm.Value["coordinates"]
		if !ok || !hasCoords || len(coords) == 0 {
			writeJSONError(w, http.StatusBadRequest, segment.MsgFieldsRequired)
			return
		}
		boxes, err := segment.ParseBoxes(coords[0])
		if err != nil {
			writeJSONError(w, statusFor(err), err.Error())
			return
		}
		// Shutdown cancels in-flight predictions too.
		ctx, cancel := requestContext(r)
		defer cancel()
		names, err := svc.Process(ctx, up, boxes)
		if err != nil {
			status := statusFor(err)
			writeJSONError(w, status, err.Error())
			logEnd(r, lvl, "process failed", status, start, err)
			return
		}
		writeJSON(w, http.StatusOK, types.ProcessResponse{Images: names})
		logEnd(r, lvl, "process", http.StatusOK, start, nil)
	})

	r.Get("/processed/{filename}", func(w http.ResponseWriter, r *http.Request) {
		f, err := svc.Open(chi.URLParam(r, "filename"))
		if err != nil {
			if errors.Is(err, artifact.ErrNotFound) {
				writeJSONError(w, http.StatusNotFound, msgFileNotFound)
				return
			}
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		defer f.Close()
		h := w.Header()
		h.Set("Cache-Control", "no-store, no-cache, must-revalidate, post-check=0, pre-check=0, max-age=0")
		h.Set("Pragma", "no-cache")
		h.Set("Expires", "-1")
		http.ServeContent(w, r, f.Name, time.Time{}, f)
	})

	return r
}

// readUpload extracts the image part. A part sent with an empty filename is
// parsed as a plain value; it is returned with an empty Filename so the
// service can reject it.
func readUpload(r *http.Request) (segment.Upload, bool, error) {
	file, hdr, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		if v, ok := r.MultipartForm.Value["image"]; ok && len(v) > 0 {
			return segment.Upload{}, true, nil
		}
		return segment.Upload{}, false, nil
	}
	if err != nil {
		return segment.Upload{}, false, err
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return segment.Upload{}, false, err
	}
	return segment.Upload{Filename: hdr.Filename, Data: data}, true, nil
}
