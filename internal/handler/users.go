package handler

import (
	"log/slog"
	"net/http"

	"github.com/Shivanand-hulikatti/library-management/internal/model"
	"github.com/Shivanand-hulikatti/library-management/internal/service"
)

// UserHandler holds the HTTP handlers for borrowers.
type UserHandler struct {
	svc   *service.BorrowerService
	loans *service.LoanService
	log   *slog.Logger
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(svc *service.BorrowerService, loans *service.LoanService, log *slog.Logger) *UserHandler {
	return &UserHandler{svc: svc, loans: loans, log: log}
}

// UserList is the data of a paginated borrower listing.
type UserList struct {
	Users      []model.BorrowerView `json:"users"`
	Pagination model.Pagination     `json:"pagination"`
}

// List handles GET /api/users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, pagination, err := h.svc.List(r.Context(), pageParam(r))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeOK(w, http.StatusOK, "Users retrieved successfully", UserList{Users: users, Pagination: pagination})
}

// Get handles GET /api/users/{id}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	user, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeOK(w, http.StatusOK, "User retrieved successfully", user)
}

// Assignments handles GET /api/users/{id}/assignments
func (h *UserHandler) Assignments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	loans, err := h.loans.BorrowerLoans(r.Context(), id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeOK(w, http.StatusOK, "User assignments retrieved successfully", loans)
}

// Create handles POST /api/users
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateBorrowerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badBody(w, err)
		return
	}
	user, err := h.svc.Create(r.Context(), req)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeOK(w, http.StatusCreated, "User created successfully", user)
}

// Update handles PUT /api/users/{id}
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req model.UpdateBorrowerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badBody(w, err)
		return
	}
	user, err := h.svc.Update(r.Context(), id, req)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeOK(w, http.StatusOK, "User updated successfully", user)
}

// Delete handles DELETE /api/users/{id}
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeOK(w, http.StatusOK, "User deleted successfully", nil)
}
