package handler

import (
	"errors"
	"io"
	"log"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"labsite/internal/media"
)

const (
	maxUploadBytes = 10 << 20
	uploadPrefix   = "uploads"
)

var imageExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// MediaHandler stores images inserted by the content editor.
type MediaHandler struct {
	store media.Store
}

func NewMediaHandler(store media.Store) *MediaHandler {
	return &MediaHandler{store: store}
}

// Upload expects a multipart form with a single image in "file" and
// answers with the public URL to embed.
func (h *MediaHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid multipart body")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "failed to read file")
		return
	}
	if len(data) == 0 {
		writeError(w, r, http.StatusBadRequest, "file is empty")
		return
	}
	if len(data) > maxUploadBytes {
		writeError(w, r, http.StatusRequestEntityTooLarge, "file is too large")
		return
	}
	contentType := http.DetectContentType(data)
	ext, ok := imageExtensions[contentType]
	if !ok {
		writeError(w, r, http.StatusUnsupportedMediaType, "only png, jpeg, gif and webp images are accepted")
		return
	}

	key := path.Join(uploadPrefix, uuid.NewString()+ext)
	url, err := h.store.Put(r.Context(), key, contentType, data)
	if err != nil {
		var serr *media.StorageError
		if errors.As(err, &serr) {
			log.Printf("media handler: upload failed key=%s op=%s err=%v", key, serr.Op, serr.Err)
		} else {
			log.Printf("media handler: upload failed key=%s err=%v", key, err)
		}
		writeError(w, r, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"url": url, "key": key})
}

type objectReader interface {
	Object(key string) ([]byte, string, bool)
}

// Serve returns objects kept by an in-process store. Remote stores serve
// their own URLs, so this answers 404 for them.
func (h *MediaHandler) Serve(w http.ResponseWriter, r *http.Request) {
	reader, ok := h.store.(objectReader)
	if !ok {
		http.NotFound(w, r)
		return
	}
	key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	data, contentType, ok := reader.Object(key)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	_, _ = w.Write(data)
}
