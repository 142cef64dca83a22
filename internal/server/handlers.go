package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/imnotsalty/mlschatproto/internal/chat"
	"github.com/imnotsalty/mlschatproto/internal/events"
	"github.com/imnotsalty/mlschatproto/internal/media"
	"github.com/imnotsalty/mlschatproto/internal/prompts"
	"github.com/imnotsalty/mlschatproto/internal/storage"
	"github.com/imnotsalty/mlschatproto/internal/vision"
)

const maxImageBytes = 5 * 1024 * 1024 // 5 MB

// Handler bundles dependencies for the chat endpoints.
type Handler struct {
	Sessions  *chat.Registry
	Assistant *chat.Assistant
	Uploader  media.Uploader
	Retoucher vision.Retoucher
	Events    *events.Broker
	Store     storage.Store
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
	Greeting  string `json:"greeting"`
}

// CreateSession handles POST /api/sessions.
func (h Handler) CreateSession(w http.ResponseWriter, _ *http.Request) {
	session := h.Sessions.Create()
	writeJSON(w, http.StatusCreated, sessionResponse{
		SessionID: session.ID,
		Greeting:  prompts.Greeting,
	})
}

// GetSession handles GET /api/sessions/{id}: transcript plus design context.
func (h Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.Sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	payload := map[string]any{
		"session_id":     session.ID,
		"messages":       session.Transcript(),
		"design_context": session.DesignSnapshot(),
	}
	if h.Store != nil {
		if renders, err := h.Store.ListRenders(r.Context(), session.ID); err == nil {
			payload["renders"] = renders
		}
	}
	writeJSON(w, http.StatusOK, payload)
}

type messageRequest struct {
	Text string `json:"text"`
}

// GetRender handles GET /api/renders/{id}: one record from render history.
func (h Handler) GetRender(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		http.Error(w, "render history not configured", http.StatusNotFound)
		return
	}

	record, err := h.Store.GetRender(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "render not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("server: load render: %v", err)
		http.Error(w, "could not load render", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// PostMessage handles POST /api/sessions/{id}/messages: one full turn.
func (h Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	session, ok := h.Sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}

	reply := h.Assistant.HandleMessage(r.Context(), session, req.Text)
	writeJSON(w, http.StatusOK, map[string]any{
		"reply":          reply,
		"design_context": session.DesignSnapshot(),
	})
}

// Upload handles POST /api/sessions/{id}/uploads: hosts a user-attached image
// and stages its URL for the next message. When the retoucher is configured
// the photo is enhanced first; retouch failure falls back to the original.
func (h Handler) Upload(w http.ResponseWriter, r *http.Request) {
	session, ok := h.Sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	if h.Uploader == nil {
		http.Error(w, "image upload not configured", http.StatusInternalServerError)
		return
	}

	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		http.Error(w, "invalid multipart payload", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		http.Error(w, "image file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImageBytes+1))
	if err != nil {
		http.Error(w, "could not read image", http.StatusBadRequest)
		return
	}
	if len(data) > maxImageBytes {
		http.Error(w, "image too large", http.StatusRequestEntityTooLarge)
		return
	}

	retouched := false
	var result media.UploadResult
	if h.Retoucher != nil {
		if enhanced, err := h.Retoucher.Retouch(r.Context(), data); err == nil {
			result, retouched = enhanced, true
		} else {
			log.Printf("server: retouch failed, using original photo: %v", err)
		}
	}
	if !retouched {
		result, err = h.Uploader.Upload(r.Context(), media.UploadInput{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Body:        bytes.NewReader(data),
			Size:        int64(len(data)),
		})
		if err != nil {
			log.Printf("server: image upload failed: %v", err)
			http.Error(w, "could not store image", http.StatusInternalServerError)
			return
		}
	}

	session.StageImage(result.URL)
	writeJSON(w, http.StatusOK, map[string]any{
		"url":       result.URL,
		"retouched": retouched,
	})
}

// StreamEvents handles GET /api/events: an SSE stream of render status
// updates, optionally filtered by session_id.
func (h Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sessionID := r.URL.Query().Get("session_id")

	ch := h.Events.Subscribe()
	defer h.Events.Unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case evt := <-ch:
			if sessionID != "" && evt.SessionID != sessionID {
				continue
			}
			payload, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("server: write response: %v", err)
	}
}
