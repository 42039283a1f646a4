package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/joseph-ayodele/reviews-extractor/internal/common"
	"github.com/joseph-ayodele/reviews-extractor/internal/credential"
)

type credentialRequest struct {
	Credential string `json:"credential"`
	APIKey     string `json:"apiKey"` // older clients
}

type credentialResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message,omitempty"`
	Credential string `json:"credential,omitempty"`
	APIKey     string `json:"apiKey,omitempty"`
	Source     string `json:"source,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

func noStore(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
}

// handleGetCredential reports the active credential, masked.
func (s Server) handleGetCredential(w http.ResponseWriter, r *http.Request) {
	value, source := s.Credentials.Resolve()
	masked := credential.Mask(value)
	noStore(w)
	writeJSON(w, http.StatusOK, credentialResponse{
		Success:    true,
		Credential: masked,
		APIKey:     masked,
		Source:     string(source),
		Timestamp:  time.Now().UnixMilli(),
	})
}

func (s Server) handleUpdateCredential(w http.ResponseWriter, r *http.Request) {
	var req credentialRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	value := strings.TrimSpace(req.Credential)
	if value == "" {
		value = strings.TrimSpace(req.APIKey)
	}
	if value == "" {
		writeError(w, r, common.InvalidInput("credential is required"))
		return
	}
	if err := s.Credentials.Update(value); err != nil {
		writeError(w, r, err)
		return
	}
	noStore(w)
	writeJSON(w, http.StatusOK, credentialResponse{
		Success:   true,
		Message:   "Credential updated successfully",
		Timestamp: time.Now().UnixMilli(),
	})
}
