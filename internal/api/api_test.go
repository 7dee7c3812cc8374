package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"PulseOutreach/internal/auth"
	"PulseOutreach/internal/config"
	"PulseOutreach/internal/content"
	"PulseOutreach/internal/email"
	"PulseOutreach/internal/ledger"
	"PulseOutreach/internal/models"
	"PulseOutreach/internal/worker"
)

type stubSender struct {
	mu    sync.Mutex
	sent  []email.Message
	err   error
	block bool
}

func (s *stubSender) Send(ctx context.Context, msg email.Message) error {
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *stubSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type stubGenerator struct {
	failFor string
}

func (g *stubGenerator) GenerateSubject(_ context.Context, p content.SubjectParams) (string, error) {
	if p.Company == g.failFor {
		return "", content.ErrGenerationFailed
	}
	return "Subject for " + p.Company, nil
}

func (g *stubGenerator) GenerateEmail(_ context.Context, p content.EmailParams) (string, error) {
	return "Dear " + p.Name, nil
}

type testEnv struct {
	handler *Handler
	router  http.Handler
	sender  *stubSender
	store   *ledger.MemoryStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		UploadDir:      t.TempDir(),
		MaxUploadBytes: 1 << 20,
		SendTimeout:    time.Second,
		FrontendURL:    "http://localhost:3000",
		CORSOrigins:    []string{"http://localhost:3000"},
	}

	store := ledger.NewMemoryStore()
	l := ledger.New(store, zap.NewNop())
	sender := &stubSender{}

	h := &Handler{
		Campaigns: worker.NewManager(l, nil, worker.Options{RatePerHour: 3_600_000}, zap.NewNop()),
		Ledger:    l,
		Senders: func(context.Context) (email.Sender, error) {
			return sender, nil
		},
		Checks: map[string]func(context.Context) error{
			"ledger": func(context.Context) error { return nil },
		},
		Cfg: cfg,
		Log: zap.NewNop(),
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.Campaigns.Shutdown(ctx)
	})

	return &testEnv{handler: h, router: NewRouter(h), sender: sender, store: store}
}

func (e *testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func (e *testEnv) wait(t *testing.T) models.ProgressState {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.handler.Campaigns.Wait(ctx))
	return e.handler.Campaigns.Progress()
}

func TestIndexAndHealth(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "running", decode(t, rec)["status"])

	rec = env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, map[string]any{"ledger": "ok"}, body["checks"])

	env.handler.Checks["redis"] = func(context.Context) error { return errors.New("connection refused") }
	rec = env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", decode(t, rec)["status"])
}

func TestProgress_Idle(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/progress", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var p models.ProgressState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, models.StatusIdle, p.Status)
}

func TestCancelEmails_NoActiveCampaign(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/cancel_emails", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No active campaign to cancel", decode(t, rec)["error"])
}

func TestSendEmails_InlineRecipients(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/send_emails", map[string]any{
		"recipients": []map[string]string{
			{"email": "a@x.com", "name": "Ada", "company": "Acme"},
			{"email": "bad-email"},
			{"email": "b@y.com"},
		},
		"subject":    "Hello {{.Name}}",
		"body":       "Body",
		"max_emails": 10,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["campaign_id"])

	p := env.wait(t)
	assert.Equal(t, models.StatusCompleted, p.Status)
	assert.Equal(t, 2, p.Total)
	assert.Equal(t, 2, p.Sent)
	assert.Equal(t, 2, env.sender.count())

	rec = env.do(t, http.MethodGet, "/ledger/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, decode(t, rec)["total_unique_sent"])
}

func TestSendEmails_FromUploadedCSV(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	path := filepath.Join(env.handler.Cfg.UploadDir, "list.csv")
	require.NoError(t, os.WriteFile(path, []byte("email,name\nada@acme.io,Ada\n"), 0o600))

	rec := env.do(t, http.MethodPost, "/send_emails", map[string]any{"csv_file": "list.csv"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	p := env.wait(t)
	assert.Equal(t, models.StatusCompleted, p.Status)
	assert.Equal(t, 1, p.Sent)
}

func TestSendEmails_Rejections(t *testing.T) {
	t.Parallel()

	t.Run("missing csv", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		rec := env.do(t, http.MethodPost, "/send_emails", map[string]any{"csv_file": "nope.csv"})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "CSV file not found", decode(t, rec)["error"])
	})

	t.Run("csv outside upload dir", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		outside := filepath.Join(t.TempDir(), "list.csv")
		require.NoError(t, os.WriteFile(outside, []byte("email\na@x.com\n"), 0o600))

		rec := env.do(t, http.MethodPost, "/send_emails", map[string]any{"csv_file": outside})
		require.Equal(t, http.StatusBadRequest, rec.Code)

		rec = env.do(t, http.MethodPost, "/send_emails", map[string]any{"csv_file": "../list.csv"})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("gmail not connected", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		env.handler.Senders = func(context.Context) (email.Sender, error) {
			return nil, auth.ErrNotAuthenticated
		}
		rec := env.do(t, http.MethodPost, "/send_emails", map[string]any{
			"recipients": []map[string]string{{"email": "a@x.com"}},
		})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Not authenticated", decode(t, rec)["error"])
	})

	t.Run("malformed body", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		req := httptest.NewRequest(http.MethodPost, "/send_emails", strings.NewReader("{"))
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSendEmails_ConflictThenCancel(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.sender.block = true
	body := map[string]any{"recipients": []map[string]string{{"email": "a@x.com"}, {"email": "b@y.com"}}}

	rec := env.do(t, http.MethodPost, "/send_emails", body)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/send_emails", body)
	require.Equal(t, http.StatusConflict, rec.Code)

	// a running campaign wins over a bad file path
	rec = env.do(t, http.MethodPost, "/send_emails", map[string]any{"csv_file": "missing.csv"})
	require.Equal(t, http.StatusConflict, rec.Code)
	rec = env.do(t, http.MethodPost, "/send_emails", map[string]any{
		"recipients":  []map[string]string{{"email": "c@z.com"}},
		"resume_file": "missing.pdf",
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/cancel_emails", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	p := env.wait(t)
	assert.Equal(t, models.StatusCancelled, p.Status)
	assert.True(t, p.Cancelled)
	assert.Zero(t, p.Current)
	assert.Empty(t, env.store.Entries())
}

func TestSendTestEmail(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/send_test_email", map[string]any{"test_email": ""})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/send_test_email", map[string]any{"test_email": "me@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, env.sender.count())
	assert.Equal(t, "Test Email", env.sender.sent[0].Subject)

	env.sender.err = email.ErrSendFailed
	rec = env.do(t, http.MethodPost, "/send_test_email", map[string]any{"test_email": "me@example.com"})
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func uploadRequest(t *testing.T, filename, body string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUpload(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, uploadRequest(t, "../../My Contacts.csv", "email,name\na@x.com,A\nbad,B\n"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	name, _ := body["filename"].(string)
	assert.True(t, strings.HasPrefix(name, "My_Contacts_"), name)
	assert.True(t, strings.HasSuffix(name, ".csv"), name)
	assert.EqualValues(t, 1, body["recipient_count"])

	path, _ := body["path"].(string)
	assert.Equal(t, env.handler.Cfg.UploadDir, filepath.Dir(path))
	_, err := os.Stat(path)
	require.NoError(t, err)

	// the returned path is accepted by /send_emails
	resolved, ok := env.handler.uploadedFile(path)
	require.True(t, ok)
	assert.Equal(t, path, resolved)

	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, uploadRequest(t, "payload.exe", "MZ"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid file type", decode(t, rec)["error"])

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(""))
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSecureFilename(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000000, 0)
	tests := map[string]string{
		"resume.pdf":            "resume_1700000000.pdf",
		"My Resume (final).PDF": "My_Resume_final_1700000000.pdf",
		"../../etc/passwd.csv":  "passwd_1700000000.csv",
		`C:\Users\me\list.csv`:  "list_1700000000.csv",
		".csv":                  "upload_1700000000.csv",
	}
	for in, want := range tests {
		assert.Equal(t, want, secureFilename(in, now), in)
	}
}

func TestGenerateEmail(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/ai/generate_email", map[string]any{"company": "Acme"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, content.ErrNotConfigured.Error(), decode(t, rec)["error"])

	env.handler.Generator = &stubGenerator{failFor: "Broken"}

	rec = env.do(t, http.MethodPost, "/api/ai/generate_email", map[string]any{"company": "Acme"})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Subject for Acme", body["subject"])
	assert.Equal(t, "Dear Hiring Manager", body["body"])

	rec = env.do(t, http.MethodPost, "/api/ai/generate_email", map[string]any{"company": "Broken"})
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGenerateBatchEmails(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.handler.Generator = &stubGenerator{failFor: "Broken"}

	rec := env.do(t, http.MethodPost, "/api/ai/generate_batch_emails", map[string]any{"recipients": []any{}})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	recipients := make([]map[string]string, 0, 12)
	recipients = append(recipients, map[string]string{"name": "Bo", "company": "Broken"})
	for i := 0; i < 11; i++ {
		recipients = append(recipients, map[string]string{"name": "Ada", "company": "Acme"})
	}

	rec = env.do(t, http.MethodPost, "/api/ai/generate_batch_emails", map[string]any{"recipients": recipients})
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Emails []batchResult `json:"emails"`
		Count  int           `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, 10, out.Count)
	require.Len(t, out.Emails, 10)
	assert.False(t, out.Emails[0].Success)
	assert.NotEmpty(t, out.Emails[0].Error)
	assert.True(t, out.Emails[1].Success)
	assert.Equal(t, "Dear Ada", out.Emails[1].Body)
}

func TestOAuthRoutes(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/auth/gmail/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["authenticated"])

	rec = env.do(t, http.MethodGet, "/api/auth/gmail/authorize", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	g, err := auth.NewGmail("id", "secret", "http://localhost:5000/oauth2callback", auth.NewMemoryTokenStore(), zap.NewNop())
	require.NoError(t, err)
	env.handler.Auth = g

	rec = env.do(t, http.MethodGet, "/api/auth/gmail/authorize", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	authURL, _ := decode(t, rec)["auth_url"].(string)
	assert.Contains(t, authURL, "accounts.google.com")

	rec = env.do(t, http.MethodGet, "/login", nil)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "access_type=offline")

	rec = env.do(t, http.MethodGet, "/oauth2callback?state=forged&code=abc", nil)
	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "error", loc.Query().Get("auth"))
	assert.Equal(t, "invalid_state", loc.Query().Get("message"))

	rec = env.do(t, http.MethodGet, "/oauth2callback?error=access_denied", nil)
	require.Equal(t, http.StatusFound, rec.Code)
	loc, _ = url.Parse(rec.Header().Get("Location"))
	assert.Equal(t, "access_denied", loc.Query().Get("message"))

	rec = env.do(t, http.MethodPost, "/api/auth/gmail/disconnect", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCORS(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/send_emails", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)

	req = httptest.NewRequest(http.MethodGet, "/progress", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
