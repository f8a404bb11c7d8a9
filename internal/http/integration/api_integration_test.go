package integration_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/booknest/booknest/internal/auth"
	"github.com/booknest/booknest/internal/config"
	"github.com/booknest/booknest/internal/db"
	apphttp "github.com/booknest/booknest/internal/http"
	"github.com/booknest/booknest/internal/notifications"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// These tests need a migrated Postgres database. Point TEST_DB_DSN at one
// to run them; they are skipped otherwise.

var integrationJWTSecret = base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))

func testConfig() config.Config {
	return config.Config{
		Env:                  "test",
		JWTSecret:            integrationJWTSecret,
		JWTTTLMinutes:        60,
		ActivationTTLMinutes: 15,
		ActivationURL:        "http://localhost:4200/activate-account",
		MailMode:             config.MailModeOutbox,
	}
}

func setupRouter(t *testing.T) (*gin.Engine, *pgxpool.Pool) {
	t.Helper()

	dsn := os.Getenv("TEST_DB_DSN")

	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}

	gin.SetMode(gin.TestMode)

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)

	if err != nil {
		t.Fatalf("pgxpool.New: %v", err)
	}

	t.Cleanup(pool.Close)

	if err := db.EnsureRoles(ctx, pool); err != nil {
		t.Fatalf("EnsureRoles: %v", err)
	}

	cfg := testConfig()

	jwtManager, err := auth.NewManager(cfg.JWTSecret, cfg.JWTTTL())

	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	router := apphttp.NewRouter(apphttp.Deps{
		Cfg:      cfg,
		Log:      logger,
		Pool:     pool,
		JWT:      jwtManager,
		Notifier: notifications.NewLogNotifier(),
	})

	return router, pool
}

func resetDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	_, err := pool.Exec(context.Background(), `
		TRUNCATE email_deliveries, jobs, book_transaction_history, books,
		         activation_tokens, user_roles, users
		RESTART IDENTITY CASCADE
	`)
	if err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}
}

func doRequest(router http.Handler, method, path, body, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	return w
}

func mustReadJSON[T any](t *testing.T, w *httptest.ResponseRecorder, out *T) {
	t.Helper()

	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("failed to unmarshal json: %v, body=%s", err, w.Body.String())
	}
}

func activationCode(t *testing.T, pool *pgxpool.Pool, email string) string {
	t.Helper()

	var code string

	err := pool.QueryRow(context.Background(), `
		SELECT t.code
		FROM activation_tokens t
		JOIN users u ON u.id = t.user_id
		WHERE u.email = $1
		ORDER BY t.created_at DESC
		LIMIT 1
	`, email).Scan(&code)

	if err != nil {
		t.Fatalf("reading activation code for %s: %v", email, err)
	}

	return code
}

// registerAndActivate walks a fresh account through the whole onboarding
// and returns its bearer token.
func registerAndActivate(t *testing.T, router http.Handler, pool *pgxpool.Pool, email string) string {
	t.Helper()

	body := `{"firstname":"Test","lastname":"User","email":"` + email + `","password":"s3cretpass"}`

	w := doRequest(router, http.MethodPost, "/auth/register", body, "")

	if w.Code != http.StatusAccepted {
		t.Fatalf("register got %d, body=%s", w.Code, w.Body.String())
	}

	code := activationCode(t, pool, email)

	w = doRequest(router, http.MethodGet, "/auth/activate-account?token="+code, "", "")

	if w.Code != http.StatusOK {
		t.Fatalf("activate got %d, body=%s", w.Code, w.Body.String())
	}

	w = doRequest(router, http.MethodPost, "/auth/authenticate",
		`{"email":"`+email+`","password":"s3cretpass"}`, "")

	if w.Code != http.StatusOK {
		t.Fatalf("authenticate got %d, body=%s", w.Code, w.Body.String())
	}

	var resp struct {
		Token string `json:"token"`
	}

	mustReadJSON(t, w, &resp)

	if resp.Token == "" {
		t.Fatal("authenticate returned an empty token")
	}

	return resp.Token
}

func TestOnboardingFlow(t *testing.T) {
	router, pool := setupRouter(t)
	resetDB(t, pool)
	defer resetDB(t, pool)

	email := "sam@example.com"

	// authenticate before activation must be rejected as disabled
	body := `{"firstname":"Sam","lastname":"Reader","email":"` + email + `","password":"s3cretpass"}`

	w := doRequest(router, http.MethodPost, "/auth/register", body, "")

	if w.Code != http.StatusAccepted {
		t.Fatalf("register got %d, body=%s", w.Code, w.Body.String())
	}

	w = doRequest(router, http.MethodPost, "/auth/authenticate",
		`{"email":"`+email+`","password":"s3cretpass"}`, "")

	if w.Code != http.StatusForbidden {
		t.Fatalf("pre-activation authenticate got %d, want 403", w.Code)
	}

	// an activation email job must be waiting in the outbox
	var jobCount int

	err := pool.QueryRow(context.Background(),
		`SELECT COUNT(*) FROM jobs WHERE type = 'send_activation_email'`).Scan(&jobCount)

	if err != nil || jobCount != 1 {
		t.Fatalf("outbox jobs = %d (err %v), want 1", jobCount, err)
	}

	code := activationCode(t, pool, email)

	w = doRequest(router, http.MethodGet, "/auth/activate-account?token="+code, "", "")

	if w.Code != http.StatusOK {
		t.Fatalf("activate got %d, body=%s", w.Code, w.Body.String())
	}

	// activating twice stays 200
	w = doRequest(router, http.MethodGet, "/auth/activate-account?token="+code, "", "")

	if w.Code != http.StatusOK {
		t.Fatalf("second activate got %d, body=%s", w.Code, w.Body.String())
	}

	w = doRequest(router, http.MethodPost, "/auth/authenticate",
		`{"email":"`+email+`","password":"s3cretpass"}`, "")

	if w.Code != http.StatusOK {
		t.Fatalf("authenticate got %d, body=%s", w.Code, w.Body.String())
	}

	// duplicate registration is a conflict
	w = doRequest(router, http.MethodPost, "/auth/register", body, "")

	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate register got %d, want 409", w.Code)
	}
}

func TestLendingFlow(t *testing.T) {
	router, pool := setupRouter(t)
	resetDB(t, pool)
	defer resetDB(t, pool)

	ownerToken := registerAndActivate(t, router, pool, "owner@example.com")
	borrowerToken := registerAndActivate(t, router, pool, "borrower@example.com")

	// owner shelves a shareable book
	w := doRequest(router, http.MethodPost, "/books",
		`{"title":"Dune","authorName":"Frank Herbert","shareable":true}`, ownerToken)

	if w.Code != http.StatusCreated {
		t.Fatalf("create book got %d, body=%s", w.Code, w.Body.String())
	}

	var created struct {
		ID string `json:"id"`
	}

	mustReadJSON(t, w, &created)

	// owners cannot borrow their own book
	w = doRequest(router, http.MethodPost, "/books/"+created.ID+"/borrow", "", ownerToken)

	if w.Code != http.StatusForbidden {
		t.Fatalf("self borrow got %d, want 403", w.Code)
	}

	w = doRequest(router, http.MethodPost, "/books/"+created.ID+"/borrow", "", borrowerToken)

	if w.Code != http.StatusOK {
		t.Fatalf("borrow got %d, body=%s", w.Code, w.Body.String())
	}

	// double borrow by the same user conflicts
	w = doRequest(router, http.MethodPost, "/books/"+created.ID+"/borrow", "", borrowerToken)

	if w.Code != http.StatusConflict {
		t.Fatalf("double borrow got %d, want 409", w.Code)
	}

	// the conflict is per borrower, another reader may take the book too
	secondToken := registerAndActivate(t, router, pool, "second@example.com")

	w = doRequest(router, http.MethodPost, "/books/"+created.ID+"/borrow", "", secondToken)

	if w.Code != http.StatusOK {
		t.Fatalf("second borrower got %d, want 200, body=%s", w.Code, w.Body.String())
	}

	// approval before the borrower returns is premature
	w = doRequest(router, http.MethodPatch, "/books/"+created.ID+"/borrow/return/approve", "", ownerToken)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("early approve got %d, want 400", w.Code)
	}

	w = doRequest(router, http.MethodPatch, "/books/"+created.ID+"/borrow/return", "", borrowerToken)

	if w.Code != http.StatusOK {
		t.Fatalf("return got %d, body=%s", w.Code, w.Body.String())
	}

	// a pending return still counts as an open borrow for this user
	w = doRequest(router, http.MethodPost, "/books/"+created.ID+"/borrow", "", borrowerToken)

	if w.Code != http.StatusConflict {
		t.Fatalf("borrow with pending return got %d, want 409", w.Code)
	}

	// only the owner may approve
	w = doRequest(router, http.MethodPatch, "/books/"+created.ID+"/borrow/return/approve", "", borrowerToken)

	if w.Code != http.StatusForbidden {
		t.Fatalf("borrower approve got %d, want 403", w.Code)
	}

	w = doRequest(router, http.MethodPatch, "/books/"+created.ID+"/borrow/return/approve", "", ownerToken)

	if w.Code != http.StatusOK {
		t.Fatalf("owner approve got %d, body=%s", w.Code, w.Body.String())
	}

	// the book is back in circulation
	w = doRequest(router, http.MethodPost, "/books/"+created.ID+"/borrow", "", borrowerToken)

	if w.Code != http.StatusOK {
		t.Fatalf("re-borrow got %d, body=%s", w.Code, w.Body.String())
	}

	// borrower sees it on their shelf
	w = doRequest(router, http.MethodGet, "/books/borrowed", "", borrowerToken)

	if w.Code != http.StatusOK {
		t.Fatalf("list borrowed got %d, body=%s", w.Code, w.Body.String())
	}

	var page struct {
		TotalElements int64 `json:"totalElements"`
	}

	mustReadJSON(t, w, &page)

	if page.TotalElements != 2 {
		t.Errorf("borrowed totalElements = %d, want 2", page.TotalElements)
	}
}

func TestFeedHidesOwnAndUnshareableBooks(t *testing.T) {
	router, pool := setupRouter(t)
	resetDB(t, pool)
	defer resetDB(t, pool)

	ownerToken := registerAndActivate(t, router, pool, "owner@example.com")
	readerToken := registerAndActivate(t, router, pool, "reader@example.com")

	for _, body := range []string{
		`{"title":"Dune","authorName":"Frank Herbert","shareable":true}`,
		`{"title":"Private Notes","authorName":"Frank Herbert","shareable":false}`,
	} {
		w := doRequest(router, http.MethodPost, "/books", body, ownerToken)

		if w.Code != http.StatusCreated {
			t.Fatalf("create book got %d, body=%s", w.Code, w.Body.String())
		}
	}

	// the owner's feed excludes their own books entirely
	w := doRequest(router, http.MethodGet, "/books", "", ownerToken)

	var ownerPage struct {
		TotalElements int64 `json:"totalElements"`
	}

	mustReadJSON(t, w, &ownerPage)

	if ownerPage.TotalElements != 0 {
		t.Errorf("owner feed totalElements = %d, want 0", ownerPage.TotalElements)
	}

	// another reader only sees the shareable one
	w = doRequest(router, http.MethodGet, "/books", "", readerToken)

	var readerPage struct {
		TotalElements int64 `json:"totalElements"`
		Content       []struct {
			Title string `json:"title"`
		} `json:"content"`
	}

	mustReadJSON(t, w, &readerPage)

	if readerPage.TotalElements != 1 || len(readerPage.Content) != 1 {
		t.Fatalf("reader feed totalElements = %d, want 1", readerPage.TotalElements)
	}

	if readerPage.Content[0].Title != "Dune" {
		t.Errorf("feed title = %q, want Dune", readerPage.Content[0].Title)
	}

	// the owner still sees both under /books/owner
	w = doRequest(router, http.MethodGet, "/books/owner", "", ownerToken)

	var ownedPage struct {
		TotalElements int64 `json:"totalElements"`
	}

	mustReadJSON(t, w, &ownedPage)

	if ownedPage.TotalElements != 2 {
		t.Errorf("owned totalElements = %d, want 2", ownedPage.TotalElements)
	}
}
