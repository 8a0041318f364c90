package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"notely/internal/models"
	"notely/internal/notes"
)

type NoteHandler struct {
	notes *notes.Service
}

func NewNoteHandler(service *notes.Service) *NoteHandler {
	return &NoteHandler{notes: service}
}

type NoteResponse struct {
	Message string       `json:"message"`
	Note    *models.Note `json:"note"`
}

type SummaryResponse struct {
	Message string `json:"message"`
	Summary string `json:"summary"`
}

// POST /notes
func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	session := GetSession(r)

	var req notes.CreateInput
	if err := decodeJSON(r.Body, &req); err != nil {
		writeAppError(w, r, err)
		return
	}

	note, err := h.notes.Create(r.Context(), session.User.ID, req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, NoteResponse{
		Message: "Note created successfully",
		Note:    note,
	})
}

// DELETE /notes/{noteID}
func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	session := GetSession(r)
	noteID := strings.TrimSpace(chi.URLParam(r, "noteID"))

	note, err := h.notes.Delete(r.Context(), noteID, session.User.ID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, NoteResponse{
		Message: "Note deleted successfully",
		Note:    note,
	})
}

// POST /notes/{noteID}/summarize
func (h *NoteHandler) Summarize(w http.ResponseWriter, r *http.Request) {
	noteID := strings.TrimSpace(chi.URLParam(r, "noteID"))

	summary, err := h.notes.Summarize(r.Context(), noteID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, SummaryResponse{
		Message: "Note Summarized successfully",
		Summary: summary,
	})
}
