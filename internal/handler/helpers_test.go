package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tablemate/tablemate/internal/auth"
	"github.com/tablemate/tablemate/internal/handler/dto"
	"github.com/tablemate/tablemate/internal/media"
	"github.com/tablemate/tablemate/internal/metrics"
	"github.com/tablemate/tablemate/internal/middleware"
	"github.com/tablemate/tablemate/internal/model"
	"github.com/tablemate/tablemate/internal/repository"
	"github.com/tablemate/tablemate/internal/service"
)

const testAdminID = "01HADMIN0000000000000000AD"

// plainHasher keeps tests fast; argon2 is covered in internal/auth.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "plain:" + password, nil }

func (plainHasher) Verify(password, encoded string) (bool, error) {
	return encoded == "plain:"+password, nil
}

// memRevoker is an in-memory token revocation list.
type memRevoker struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func (m *memRevoker) RevokeToken(_ context.Context, tokenID string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[tokenID] = expiresAt
	return nil
}

func (m *memRevoker) IsTokenRevoked(_ context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.revoked[tokenID]
	return ok, nil
}

type testAPI struct {
	t        *testing.T
	router   http.Handler
	store    *repository.MemoryStore
	recorder *metrics.InMemoryRecorder
	issuer   *auth.TokenIssuer
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := repository.NewMemoryStore()
	recorder := metrics.NewInMemory()
	issuer := auth.NewTokenIssuer("handler-test-secret", "tablemate-test", time.Hour)
	revoker := &memRevoker{revoked: map[string]time.Time{}}

	mediaDir := t.TempDir()
	disk, err := media.NewDiskStore(mediaDir, "/media")
	require.NoError(t, err)
	uploader := media.NewUploader(disk)

	users, err := service.NewUserService(store, plainHasher{}, uploader, recorder)
	require.NoError(t, err)
	meals := service.NewMealService(store, store, nil, uploader, recorder, logger)
	events := service.NewEventService(service.EventServiceDeps{
		Events:   store,
		Meals:    store,
		Users:    store,
		Titles:   meals,
		Uploader: uploader,
		Metrics:  recorder,
		Logger:   logger,
	})
	participation := service.NewParticipationService(service.ParticipationServiceDeps{
		Ledger:  store,
		Events:  store,
		Users:   store,
		Titles:  meals,
		Metrics: recorder,
		Logger:  logger,
	})

	require.NoError(t, store.CreateUser(context.Background(), &model.User{
		ID:             testAdminID,
		Name:           "Admin",
		Email:          "admin@example.com",
		CredentialHash: "plain:admin-password",
		CreatedAt:      time.Now().UTC(),
	}))

	router := NewRouter(RouterConfig{
		Logger:  logger,
		Health:  NewHealthHandler(store, nil),
		Metrics: NewMetricsHandler(recorder),
		Auth:    NewAuthHandler(users, issuer, revoker, logger),
		Users:   NewUserHandler(users, meals, participation, logger),
		Meals:   NewMealHandler(meals, logger),
		Events:  NewEventHandler(events, participation, logger),
		Admin:   NewAdminHandler(participation, logger),
		AuthConfig: middleware.AuthConfig{
			Logger:      logger,
			Tokens:      issuer,
			Revocations: revoker,
		},
		CORSConfig:     middleware.DefaultCORSConfig(),
		SecurityConfig: middleware.SecurityConfig{IsDevelopment: true},
		AdminUserIDs:   []string{testAdminID},
		MaxBodySize:    10 << 20,
		MediaDir:       mediaDir,
	})

	return &testAPI{
		t:        t,
		router:   router,
		store:    store,
		recorder: recorder,
		issuer:   issuer,
	}
}

// do sends a JSON request. body may be nil, a string (sent verbatim) or
// any value to encode.
func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

// upload sends a multipart form. image may be nil.
func (a *testAPI) upload(method, path, token string, fields map[string]string, image []byte, imageType string) *httptest.ResponseRecorder {
	a.t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(a.t, mw.WriteField(k, v))
	}
	if image != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="image"; filename="photo"`)
		h.Set("Content-Type", imageType)
		part, err := mw.CreatePart(h)
		require.NoError(a.t, err)
		_, err = part.Write(image)
		require.NoError(a.t, err)
	}
	require.NoError(a.t, mw.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

type session struct {
	token string
	user  *model.User
}

func (a *testAPI) register(name string) session {
	a.t.Helper()

	email := strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com"
	rec := a.do(http.MethodPost, "/api/v1/auth/register", "", map[string]any{
		"name":     name,
		"email":    email,
		"password": "correct horse",
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decode[dto.TokenResponse](a.t, rec)
	return session{token: resp.AccessToken, user: resp.User}
}

func (a *testAPI) adminToken() string {
	a.t.Helper()
	tok, err := a.issuer.Issue(testAdminID)
	require.NoError(a.t, err)
	return tok.Token
}

func (a *testAPI) createMeal(s session, title string) *model.Meal {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/api/v1/meals", s.token, map[string]any{
		"title":       title,
		"description": "Family recipe",
		"ingredients": "flour, water",
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	m := decode[model.Meal](a.t, rec)
	return &m
}

func (a *testAPI) createEvent(s session, mealID string, max int) *service.EventView {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/api/v1/events", s.token, map[string]any{
		"meal_id":          mealID,
		"title":            "Dumpling night",
		"description":      "Fold and steam",
		"max_participants": max,
		"location":         "Kitchen A",
		"scheduled_at":     time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339),
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	e := decode[service.EventView](a.t, rec)
	return &e
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[dto.ErrorResponse](t, rec).Error.Code
}

// pngBytes returns a tiny payload that sniffs as image/png.
func pngBytes() []byte {
	return append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), bytes.Repeat([]byte{0}, 32)...)
}

func eventPath(id string, suffix ...string) string {
	return fmt.Sprintf("/api/v1/events/%s%s", id, strings.Join(suffix, ""))
}
