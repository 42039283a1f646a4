package server

import (
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/joseph-ayodele/reviews-extractor/constants"
)

// handleDownload streams an artifact by bare file name. Lookups never create files.
func (s Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "fileName")
	f, info, err := s.Artifacts.Open(name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", constants.XLSXContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	http.ServeContent(w, r, name, info.ModTime(), f)
}
