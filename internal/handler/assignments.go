package handler

import (
	"log/slog"
	"net/http"

	"github.com/Shivanand-hulikatti/library-management/internal/model"
	"github.com/Shivanand-hulikatti/library-management/internal/service"
)

// AssignmentHandler holds the HTTP handlers for issuing and returning books.
type AssignmentHandler struct {
	svc *service.LoanService
	log *slog.Logger
}

// NewAssignmentHandler constructs an AssignmentHandler.
func NewAssignmentHandler(svc *service.LoanService, log *slog.Logger) *AssignmentHandler {
	return &AssignmentHandler{svc: svc, log: log}
}

// AssignmentList is the data of a paginated loan history.
type AssignmentList struct {
	Assignments []model.LoanView `json:"assignments"`
	Pagination  model.Pagination `json:"pagination"`
}

// Issue handles POST /api/assignments/issue
// Lends one copy of a book; 409 when no copy is available or the borrower
// already holds it.
func (h *AssignmentHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var req model.IssueLoanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badBody(w, err)
		return
	}
	loan, err := h.svc.IssueLoan(r.Context(), req.BookID, req.UserID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeOK(w, http.StatusCreated, "Book issued successfully", loan)
}

// Return handles PUT /api/assignments/return/{id}
func (h *AssignmentHandler) Return(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	loan, err := h.svc.ReturnLoan(r.Context(), id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeOK(w, http.StatusOK, "Book returned successfully", loan)
}

// All handles GET /api/assignments
func (h *AssignmentHandler) All(w http.ResponseWriter, r *http.Request) {
	loans, err := h.svc.AllLoans(r.Context())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeOK(w, http.StatusOK, "All assignments retrieved successfully", loans)
}

// Active handles GET /api/assignments/active
func (h *AssignmentHandler) Active(w http.ResponseWriter, r *http.Request) {
	loans, err := h.svc.ActiveLoans(r.Context())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeOK(w, http.StatusOK, "Active assignments retrieved successfully", loans)
}

// History handles GET /api/assignments/history
func (h *AssignmentHandler) History(w http.ResponseWriter, r *http.Request) {
	loans, pagination, err := h.svc.LoanHistory(r.Context(), pageParam(r))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeOK(w, http.StatusOK, "Assignment history retrieved successfully",
		AssignmentList{Assignments: loans, Pagination: pagination})
}

// Overdue handles GET /api/assignments/overdue
func (h *AssignmentHandler) Overdue(w http.ResponseWriter, r *http.Request) {
	loans, err := h.svc.OverdueLoans(r.Context())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeOK(w, http.StatusOK, "Overdue assignments retrieved successfully", loans)
}
