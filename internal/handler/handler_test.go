package handler_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/library-management/internal/database"
	"github.com/Shivanand-hulikatti/library-management/internal/handler"
	"github.com/Shivanand-hulikatti/library-management/internal/logger"
	"github.com/Shivanand-hulikatti/library-management/internal/ratelimit"
	"github.com/Shivanand-hulikatti/library-management/internal/repository/sqlite"
	"github.com/Shivanand-hulikatti/library-management/internal/service"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type response struct {
	Success bool                 `json:"success"`
	Message string               `json:"message"`
	Data    jsoniter.RawMessage  `json:"data"`
	Errors  []handler.FieldError `json:"errors"`
}

type server struct {
	t      *testing.T
	router http.Handler
	stores service.Stores
	now    time.Time
}

func newServer(t *testing.T, limiter *ratelimit.KeyedRateLimiter) *server {
	t.Helper()
	ctx := context.Background()

	conn, err := database.OpenSQLite(ctx, filepath.Join(t.TempDir(), "library.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	db := sqlite.New(conn)
	require.NoError(t, db.Migrate(ctx))

	s := &server{t: t, stores: db.Stores(), now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	log := logger.Discard()
	opts := []service.Option{service.WithClock(func() time.Time { return s.now })}
	st := db.Stores()
	s.router = handler.NewRouter(handler.Services{
		Books:      service.NewBookService(st, log, opts...),
		Borrowers:  service.NewBorrowerService(st, log, opts...),
		Loans:      service.NewLoanService(st, log, opts...),
		Reconciler: service.NewReconciler(st, log, opts...),
	}, handler.RouterConfig{AllowedOrigins: []string{"*"}, Limiter: limiter}, log)
	return s
}

func (s *server) do(method, path, body string) (int, response) {
	s.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(s.t, "application/json", rec.Header().Get("Content-Type"))
	var resp response
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec.Code, resp
}

func decode[T any](t *testing.T, raw jsoniter.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

type idData struct {
	ID              string `json:"id"`
	AvailableCopies int    `json:"availableCopies"`
	Status          string `json:"status"`
	DaysOverdue     int    `json:"daysOverdue"`
	IsOverdue       bool   `json:"isOverdue"`
}

func (s *server) createBook(isbn string, copies int) string {
	s.t.Helper()
	code, resp := s.do(http.MethodPost, "/api/books", `{"title":"Dune","author":"Frank Herbert","isbn":"`+isbn+`","totalCopies":`+itoa(copies)+`,"category":"Fiction"}`)
	require.Equal(s.t, http.StatusCreated, code, resp.Message)
	return decode[idData](s.t, resp.Data).ID
}

func (s *server) createUser(email, studentID string) string {
	s.t.Helper()
	code, resp := s.do(http.MethodPost, "/api/users", `{"name":"Ada Lovelace","email":"`+email+`","studentId":"`+studentID+`","phone":"+15551234567"}`)
	require.Equal(s.t, http.StatusCreated, code, resp.Message)
	return decode[idData](s.t, resp.Data).ID
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestAPIInfoAndHealth(t *testing.T) {
	s := newServer(t, nil)

	code, resp := s.do(http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Success)
	assert.Equal(t, "Library Management System API is running!", resp.Message)

	code, resp = s.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Success)
}

func TestUnknownRoute(t *testing.T) {
	s := newServer(t, nil)

	code, resp := s.do(http.MethodGet, "/api/nothing?x=1", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.False(t, resp.Success)
	assert.Equal(t, "Route /api/nothing?x=1 not found", resp.Message)
}

func TestInvalidID(t *testing.T) {
	s := newServer(t, nil)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/books/123"},
		{http.MethodDelete, "/api/users/abc"},
		{http.MethodPut, "/api/assignments/return/xyz"},
	} {
		code, resp := s.do(tc.method, tc.path, "")
		assert.Equal(t, http.StatusBadRequest, code, tc.path)
		assert.Equal(t, "Invalid ID format", resp.Message, tc.path)
	}
}

func TestBooksAPI(t *testing.T) {
	s := newServer(t, nil)
	id := s.createBook("9780441013593", 2)

	code, resp := s.do(http.MethodPost, "/api/books", `{"title":"Dune","author":"Frank Herbert","isbn":"9780441013593","totalCopies":1,"category":"Fiction"}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "Book with this ISBN already exists", resp.Message)

	code, resp = s.do(http.MethodPost, "/api/books", `{"title":"","isbn":"nope","totalCopies":0,"category":"Cooking"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Validation failed", resp.Message)
	fields := make([]string, 0, len(resp.Errors))
	for _, e := range resp.Errors {
		fields = append(fields, e.Field)
	}
	assert.Equal(t, []string{"author", "category", "isbn", "title", "totalCopies"}, fields)

	code, resp = s.do(http.MethodPost, "/api/books", `{"title":"Dune","extra":true}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid request body", resp.Message)

	code, resp = s.do(http.MethodGet, "/api/books/"+id, "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2, decode[idData](t, resp.Data).AvailableCopies)

	code, _ = s.do(http.MethodGet, "/api/books/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, code)

	code, resp = s.do(http.MethodPut, "/api/books/"+id, `{"totalCopies":5}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 5, decode[idData](t, resp.Data).AvailableCopies)

	code, resp = s.do(http.MethodGet, "/api/books?page=1&limit=1", "")
	require.Equal(t, http.StatusOK, code)
	list := decode[struct {
		Books      []idData `json:"books"`
		Pagination struct {
			TotalItems  int  `json:"totalItems"`
			HasNextPage bool `json:"hasNextPage"`
		} `json:"pagination"`
	}](t, resp.Data)
	assert.Len(t, list.Books, 1)
	assert.Equal(t, 1, list.Pagination.TotalItems)
	assert.False(t, list.Pagination.HasNextPage)

	code, resp = s.do(http.MethodDelete, "/api/books/"+id, "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Book deleted successfully", resp.Message)
}

func TestIssueAndReturnAPI(t *testing.T) {
	s := newServer(t, nil)
	bookID := s.createBook("9780441013593", 1)
	ada := s.createUser("ada@example.com", "S1001")
	grace := s.createUser("grace@example.com", "S1002")

	issue := func(userID string) (int, response) {
		return s.do(http.MethodPost, "/api/assignments/issue", `{"bookId":"`+bookID+`","userId":"`+userID+`"}`)
	}

	code, resp := issue(ada)
	require.Equal(t, http.StatusCreated, code, resp.Message)
	assert.Equal(t, "Book issued successfully", resp.Message)
	loan := decode[idData](t, resp.Data)
	assert.Equal(t, "issued", loan.Status)

	code, resp = issue(grace)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "Book is not available for issue", resp.Message)

	code, resp = issue(uuid.NewString())
	assert.Equal(t, http.StatusConflict, code, "availability is checked before the borrower")

	code, resp = s.do(http.MethodDelete, "/api/books/"+bookID, "")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "Cannot delete book with active assignments", resp.Message)

	code, resp = s.do(http.MethodDelete, "/api/users/"+ada, "")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "Cannot delete user with active book assignments", resp.Message)

	s.now = s.now.Add(24 * 24 * time.Hour)
	code, resp = s.do(http.MethodGet, "/api/assignments/overdue", "")
	require.Equal(t, http.StatusOK, code)
	overdue := decode[[]idData](t, resp.Data)
	require.Len(t, overdue, 1)
	assert.True(t, overdue[0].IsOverdue)
	assert.Equal(t, 10, overdue[0].DaysOverdue)

	code, resp = s.do(http.MethodPut, "/api/assignments/return/"+loan.ID, "")
	require.Equal(t, http.StatusOK, code, resp.Message)
	assert.Equal(t, "returned", decode[idData](t, resp.Data).Status)

	code, resp = s.do(http.MethodPut, "/api/assignments/return/"+loan.ID, "")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "Book has already been returned", resp.Message)

	code, resp = s.do(http.MethodGet, "/api/users/"+ada+"/assignments", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]idData](t, resp.Data), 1)

	code, resp = s.do(http.MethodGet, "/api/assignments/history?limit=5", "")
	require.Equal(t, http.StatusOK, code)
	history := decode[struct {
		Assignments []idData `json:"assignments"`
	}](t, resp.Data)
	assert.Len(t, history.Assignments, 1)

	code, resp = s.do(http.MethodGet, "/api/assignments/active", "")
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, decode[[]idData](t, resp.Data))
}

func TestUsersAPI(t *testing.T) {
	s := newServer(t, nil)
	id := s.createUser("ada@example.com", "S1001")

	code, resp := s.do(http.MethodPost, "/api/users", `{"name":"Other","email":"ADA@example.com","studentId":"S9","phone":"+15551234567"}`)
	assert.Equal(t, http.StatusBadRequest, code, "studentId too short")

	code, resp = s.do(http.MethodPost, "/api/users", `{"name":"Other","email":"ADA@example.com","studentId":"S999","phone":"+15551234567"}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "User with this email or student ID already exists", resp.Message)

	code, resp = s.do(http.MethodPut, "/api/users/"+id, `{"phone":"+15550000000"}`)
	require.Equal(t, http.StatusOK, code)

	code, resp = s.do(http.MethodGet, "/api/users", "")
	require.Equal(t, http.StatusOK, code)
	users := decode[struct {
		Users []struct {
			Phone       string `json:"phone"`
			FullContact string `json:"fullContact"`
		} `json:"users"`
	}](t, resp.Data)
	require.Len(t, users.Users, 1)
	assert.Equal(t, "Ada Lovelace (ada@example.com, +15550000000)", users.Users[0].FullContact)
}

func TestReconcileAPI(t *testing.T) {
	s := newServer(t, nil)
	bookID := s.createBook("9780441013593", 2)
	require.NoError(t, s.stores.Books.SetAvailable(context.Background(), bookID, 0, s.now))

	code, resp := s.do(http.MethodPost, "/api/admin/reconcile", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Inventory reconciled", resp.Message)
	report := decode[service.ReconcileReport](t, resp.Data)
	assert.Equal(t, []service.InventoryRepair{{BookID: bookID, Was: 0, Now: 2}}, report.Repaired)

	code, resp = s.do(http.MethodPost, "/api/admin/reconcile", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Inventory is consistent", resp.Message)
}

func TestRateLimit(t *testing.T) {
	limiter := ratelimit.New(0.001, 1)
	t.Cleanup(limiter.Stop)
	s := newServer(t, limiter)

	s.createUser("ada@example.com", "S1001")

	code, resp := s.do(http.MethodPost, "/api/users", `{}`)
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.False(t, resp.Success)

	code, _ = s.do(http.MethodGet, "/api/users", "")
	assert.Equal(t, http.StatusOK, code, "reads are not limited")
}

func TestBodyTooLarge(t *testing.T) {
	s := newServer(t, nil)
	big := `{"title":"` + string(bytes.Repeat([]byte("a"), 2<<20)) + `"}`

	code, resp := s.do(http.MethodPost, "/api/books", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, code)
	assert.Equal(t, "Request body too large", resp.Message)
}
