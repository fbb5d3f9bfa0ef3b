package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"a2z-marketplace/internal/domain"
	"a2z-marketplace/internal/domain/model"
	"a2z-marketplace/internal/usecase"
)

type createPostRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	PriceCents  int64    `json:"price_cents"`
	Currency    string   `json:"currency"`
	MediaURLs   []string `json:"media_urls"`
}

// patchPostRequest carries either an analytics increment or an owner edit,
// never both.
type patchPostRequest struct {
	Increment   *model.AnalyticsKind `json:"increment"`
	Title       *string              `json:"title"`
	Description *string              `json:"description"`
	PriceCents  *int64               `json:"price_cents"`
	MediaURLs   *[]string            `json:"media_urls"`
	IsActive    *bool                `json:"is_active"`
}

func (p patchPostRequest) hasEdits() bool {
	return p.Title != nil || p.Description != nil || p.PriceCents != nil || p.MediaURLs != nil || p.IsActive != nil
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var req createPostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	post, err := s.posts.Create(r.Context(), usecase.CreatePostInput{
		UserID:      UserID(r.Context()),
		Title:       req.Title,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Currency:    req.Currency,
		MediaURLs:   req.MediaURLs,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := s.posts.ListMine(r.Context(), UserID(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"posts": posts})
}

// postIDParam returns ErrNotFound for ids that cannot name a listing.
func postIDParam(r *http.Request) (string, error) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		return "", fmt.Errorf("%w: listing %q", domain.ErrNotFound, id)
	}
	return id, nil
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	postID, err := postIDParam(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.posts.Delete(r.Context(), UserID(r.Context()), postID); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePatchPost serves two callers. Anonymous visitors send
// {"increment":"view"|"click"}; owners send edit fields with a session.
func (s *Server) handlePatchPost(w http.ResponseWriter, r *http.Request) {
	postID, err := postIDParam(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.fail(w, r, domain.Invalid("body", "body too large"))
		return
	}
	var req patchPostRequest
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.fail(w, r, domain.Invalid("body", "must be a valid JSON object: "+jsonProblem(err)))
		return
	}

	if req.Increment != nil {
		if req.hasEdits() {
			s.fail(w, r, domain.Invalid("increment", "cannot be combined with edits"))
			return
		}
		if err := s.analytics.Record(r.Context(), postID, *req.Increment, s.clientIP(r)); err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
		return
	}

	ctx, err := s.authenticate(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	post, err := s.posts.Update(ctx, usecase.UpdatePostInput{
		UserID:      UserID(ctx),
		PostID:      postID,
		Title:       req.Title,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		MediaURLs:   req.MediaURLs,
		IsActive:    req.IsActive,
	})
	if err != nil {
		s.fail(w, r.WithContext(ctx), err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (s *Server) handlePublicPost(w http.ResponseWriter, r *http.Request) {
	pub, err := s.posts.GetPublic(r.Context(), chi.URLParam(r, "username"), chi.URLParam(r, "slug"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pub)
}
