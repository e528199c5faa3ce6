package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"fitroom/internal/imagestore"
)

// handleImage serves stored renders. Renders never change once written,
// so clients may cache them aggressively.
func (s *apiServer) handleImage(w http.ResponseWriter, r *http.Request) {
	sid := chi.URLParam(r, "session")
	name := chi.URLParam(r, "name")

	if url, err := s.store.GetURL(r.Context(), sid, name); err == nil && url != "" {
		http.Redirect(w, r, url, http.StatusFound)
		return
	}

	data, err := s.store.Get(r.Context(), sid, name)
	if errors.Is(err, imagestore.ErrNotFound) {
		http.Error(w, "image not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Cache-Control", "private, max-age=86400, immutable")
	_, _ = w.Write(data)
}

func (s *apiServer) handleStoreMetrics(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		http.Error(w, "store cache disabled", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.metrics())
}
