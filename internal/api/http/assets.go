package http

import (
	"io"
	"mime"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-clab/internal/course"
	"github.com/mind-engage/mindengage-clab/internal/storage"
)

const maxAssetBytes = 10 << 20

// MountLessonAssets serves files attached to a lesson (diagrams, starter .c
// files). Authoring routes are wrapped by the caller.
//
//	GET  /                 list asset keys
//	GET  /{name}           download
//	PUT  /{name}           upload (raw body)
//	DELETE /{name}
func MountLessonAssets(r chi.Router, bs storage.BlobStore, st course.Store, author func(http.Handler) http.Handler) {
	lessonOK := func(w http.ResponseWriter, req *http.Request) (string, bool) {
		id := chi.URLParam(req, "lessonID")
		if _, err := st.GetLesson(req.Context(), id); err != nil {
			writeErr(w, req, err)
			return "", false
		}
		return id, true
	}

	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		id, ok := lessonOK(w, req)
		if !ok {
			return
		}
		keys, err := bs.List(req.Context(), "lessons/"+id)
		if err != nil {
			writeErr(w, req, err)
			return
		}
		names := make([]string, 0, len(keys))
		for _, k := range keys {
			names = append(names, path.Base(k))
		}
		respondJSON(w, http.StatusOK, names)
	})

	r.Get("/{name}", func(w http.ResponseWriter, req *http.Request) {
		key, err := storage.LessonAssetKey(chi.URLParam(req, "lessonID"), chi.URLParam(req, "name"))
		if err != nil {
			writeErr(w, req, err)
			return
		}
		rc, err := bs.Get(req.Context(), key)
		if err != nil {
			writeErr(w, req, err)
			return
		}
		defer rc.Close()
		ct := mime.TypeByExtension(path.Ext(key))
		if ct == "" {
			ct = "application/octet-stream"
		}
		w.Header().Set("Content-Type", ct)
		_, _ = io.Copy(w, rc)
	})

	r.With(author).Put("/{name}", func(w http.ResponseWriter, req *http.Request) {
		id, ok := lessonOK(w, req)
		if !ok {
			return
		}
		key, err := storage.LessonAssetKey(id, chi.URLParam(req, "name"))
		if err != nil {
			writeErr(w, req, err)
			return
		}
		stored, err := bs.Put(req.Context(), key, http.MaxBytesReader(w, req.Body, maxAssetBytes))
		if err != nil {
			writeErr(w, req, err)
			return
		}
		respondJSON(w, http.StatusCreated, map[string]string{"key": stored})
	})

	r.With(author).Delete("/{name}", func(w http.ResponseWriter, req *http.Request) {
		key, err := storage.LessonAssetKey(chi.URLParam(req, "lessonID"), chi.URLParam(req, "name"))
		if err != nil {
			writeErr(w, req, err)
			return
		}
		if err := bs.Delete(req.Context(), key); err != nil {
			writeErr(w, req, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}
