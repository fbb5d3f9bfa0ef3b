package api

import (
	"net/http"

	"a2z-marketplace/internal/usecase"
)

type uploadURLRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	me, err := s.profiles.Me(r.Context(), UserID(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, me)
}

func (s *Server) handleStartTrial(w http.ResponseWriter, r *http.Request) {
	p, err := s.profiles.StartTrial(r.Context(), UserID(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUploadURL(w http.ResponseWriter, r *http.Request) {
	var req uploadURLRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	up, err := s.storage.UploadURL(r.Context(), usecase.UploadURLInput{
		UserID:      UserID(r.Context()),
		Filename:    req.Filename,
		ContentType: req.ContentType,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, up)
}
