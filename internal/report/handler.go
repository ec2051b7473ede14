package report

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Masudi2022/Shifaa-fyp/internal/dialogue"
)

// Handler serves diagnosis report downloads.
type Handler struct {
	svc      *Service
	dialogue dialogue.Service
}

func NewHandler(svc *Service, dlg dialogue.Service) *Handler {
	return &Handler{svc: svc, dialogue: dlg}
}

func (h *Handler) DownloadReport(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid session ID", http.StatusBadRequest)
		return
	}
	sess, err := h.dialogue.Session(r.Context(), id)
	if err != nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	preds, enriched := h.dialogue.Diagnose(r.Context(), sess, 0)
	data, err := h.svc.DiagnosisPDF(sess, preds, enriched)
	if err != nil {
		http.Error(w, "Report generation failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="report_%s.pdf"`, sess.ID))
	w.Write(data)
}

// RegisterRoutes mounts the report endpoints.
func RegisterRoutes(r chi.Router, h *Handler) {
	r.Get("/session/{id}/report", h.DownloadReport)
}
