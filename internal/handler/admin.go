package handler

import (
	"log/slog"
	"net/http"

	"github.com/Shivanand-hulikatti/library-management/internal/service"
)

// AdminHandler exposes maintenance operations.
type AdminHandler struct {
	reconciler *service.Reconciler
	log        *slog.Logger
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(reconciler *service.Reconciler, log *slog.Logger) *AdminHandler {
	return &AdminHandler{reconciler: reconciler, log: log}
}

// Reconcile handles POST /api/admin/reconcile
// Runs one inventory reconciliation pass and returns its report.
func (h *AdminHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.reconciler.Run(r.Context())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	msg := "Inventory is consistent"
	if !report.Clean() {
		msg = "Inventory reconciled"
	}
	writeOK(w, http.StatusOK, msg, report)
}
