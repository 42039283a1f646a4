package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/joseph-ayodele/reviews-extractor/internal/pleper"
)

type extractRequest struct {
	LocationID string `json:"locationId"`
	CID        string `json:"cid"` // older clients
}

type extractResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    pleper.Submission `json:"data"`
}

type resultsResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	Ready       bool   `json:"ready"`
	Status      string `json:"status,omitempty"`
	FileName    string `json:"fileName,omitempty"`
	ReviewCount *int   `json:"reviewCount,omitempty"`
}

func (s Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	locationID := strings.TrimSpace(req.LocationID)
	if locationID == "" {
		locationID = strings.TrimSpace(req.CID)
	}

	sub, err := s.Extract.Submit(r.Context(), locationID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, extractResponse{
		Success: true,
		Message: "Review extraction initiated",
		Data:    sub,
	})
}

func (s Server) handleResults(w http.ResponseWriter, r *http.Request) {
	res, err := s.Extract.Poll(r.Context(), chi.URLParam(r, "batchId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !res.Ready {
		writeJSON(w, http.StatusOK, resultsResponse{
			Success: true,
			Message: "Results not ready yet",
			Status:  res.Status,
		})
		return
	}
	count := res.Artifact.ReviewCount
	writeJSON(w, http.StatusOK, resultsResponse{
		Success:     true,
		Message:     "Results processed successfully",
		Ready:       true,
		FileName:    res.Artifact.FileName,
		ReviewCount: &count,
	})
}
