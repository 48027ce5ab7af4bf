package handler

import (
	"log/slog"
	"net/http"

	"github.com/Shivanand-hulikatti/library-management/internal/model"
	"github.com/Shivanand-hulikatti/library-management/internal/service"
)

// BookHandler holds the HTTP handlers for the catalog.
type BookHandler struct {
	svc *service.BookService
	log *slog.Logger
}

// NewBookHandler constructs a BookHandler.
func NewBookHandler(svc *service.BookService, log *slog.Logger) *BookHandler {
	return &BookHandler{svc: svc, log: log}
}

// BookList is the data of a paginated book listing.
type BookList struct {
	Books      []model.BookView `json:"books"`
	Pagination model.Pagination `json:"pagination"`
}

// List handles GET /api/books
func (h *BookHandler) List(w http.ResponseWriter, r *http.Request) {
	page := pageParam(r)
	books, pagination, err := h.svc.List(r.Context(), page)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeOK(w, http.StatusOK, "Books retrieved successfully", BookList{Books: books, Pagination: pagination})
}

// Available handles GET /api/books/available
func (h *BookHandler) Available(w http.ResponseWriter, r *http.Request) {
	books, err := h.svc.Available(r.Context())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeOK(w, http.StatusOK, "Available books retrieved successfully", books)
}

// Get handles GET /api/books/{id}
func (h *BookHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	book, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeOK(w, http.StatusOK, "Book retrieved successfully", book)
}

// Create handles POST /api/books
func (h *BookHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateBookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badBody(w, err)
		return
	}
	book, err := h.svc.Create(r.Context(), req)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeOK(w, http.StatusCreated, "Book created successfully", book)
}

// Update handles PUT /api/books/{id}
func (h *BookHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req model.UpdateBookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badBody(w, err)
		return
	}
	book, err := h.svc.Update(r.Context(), id, req)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeOK(w, http.StatusOK, "Book updated successfully", book)
}

// Delete handles DELETE /api/books/{id}
func (h *BookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeOK(w, http.StatusOK, "Book deleted successfully", nil)
}
