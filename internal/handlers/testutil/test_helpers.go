package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/kiddies/internal/api"
	"github.com/charlesng35/kiddies/internal/app"
	iauth "github.com/charlesng35/kiddies/internal/auth"
	"github.com/charlesng35/kiddies/internal/cache"
	"github.com/charlesng35/kiddies/internal/auth/providers"
	sharedtestutil "github.com/charlesng35/kiddies/internal/database/testutil"
	"github.com/charlesng35/kiddies/internal/middleware"
	"github.com/charlesng35/kiddies/internal/models"
	"github.com/charlesng35/kiddies/internal/services"
	"github.com/charlesng35/kiddies/pkg/mail"
	"github.com/charlesng35/kiddies/pkg/response"
)

// FrontendURL is the base of invite links issued by the test environment.
const FrontendURL = "https://kiddies.example.org"

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T        *testing.T
	DB       *gorm.DB
	Router   *gin.Engine
	JWT      *iauth.JWTService
	Mailer   *RecordingMailer
	Services api.Services
}

// NewEnv provisions a fresh handler test environment with migrations and seed data applied.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithSeedData())

	cfg := &app.Config{
		Server: app.ServerConfig{
			Port:        5000,
			FrontendURL: FrontendURL,
		},
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{
				Secret: "test-suite-super-secret-key-32-bytes!!",
				Issuer: "test-suite",
				TTL:    time.Hour,
			},
			RateLimit: app.RateLimitSettings{
				Requests: 50,
				Window:   time.Minute,
			},
		},
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	require.NoError(t, err)

	mailer := &RecordingMailer{}
	svc := buildServices(t, db, jwtSvc, mailer, cfg)

	router, err := api.NewRouter(db, jwtSvc, cfg, svc, middleware.NewMemoryRateStore())
	require.NoError(t, err)

	return &Env{
		T:        t,
		DB:       db,
		Router:   router,
		JWT:      jwtSvc,
		Mailer:   mailer,
		Services: svc,
	}
}

func buildServices(t *testing.T, db *gorm.DB, jwtSvc *iauth.JWTService, mailer mail.Mailer, cfg *app.Config) api.Services {
	t.Helper()

	credentials, err := providers.NewLocalProvider(db)
	require.NoError(t, err)

	invites, err := services.NewInviteService(db, mailer, cfg.Invites.InviteOptions(cfg.Server.FrontendURL)...)
	require.NoError(t, err)

	identity, err := services.NewIdentityService(credentials, jwtSvc, invites)
	require.NoError(t, err)

	users, err := services.NewUserService(db)
	require.NoError(t, err)

	settings, err := services.NewSettingsService(db)
	require.NoError(t, err)

	census, err := services.NewCensusService(db,
		services.WithCensusSettings(settings),
		services.WithCensusCache(cache.NewDatabaseStore(db), time.Minute),
	)
	require.NoError(t, err)

	return api.Services{
		Identity: identity,
		Invites:  invites,
		Users:    users,
		Census:   census,
		Settings: settings,
	}
}

// CreateUser inserts an active account with the given role and returns the record.
func (e *Env) CreateUser(role, password string) *models.User {
	e.T.Helper()

	return sharedtestutil.MustCreateUser(e.T, e.DB, sharedtestutil.UserFixture{
		Email:    role + "-" + uuid.NewString()[:8] + "@church.org",
		Password: password,
		LastName: role,
		Role:     role,
	})
}

// CreateAdmin inserts an active administrator.
func (e *Env) CreateAdmin(password string) *models.User {
	e.T.Helper()
	return e.CreateUser(models.RoleAdmin, password)
}

// Login authenticates through the API and returns the issued session.
func (e *Env) Login(email, password string) services.Session {
	e.T.Helper()

	payload := map[string]string{
		"email":    email,
		"password": password,
	}

	w := e.Request(http.MethodPost, "/api/auth/login", payload, "")
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())

	resp := DecodeResponse(e.T, w)
	require.True(e.T, resp.Success, w.Body.String())

	var session services.Session
	DecodeInto(e.T, resp.Data, &session)
	require.NotEmpty(e.T, session.Token)
	require.Equal(e.T, models.NormaliseEmail(email), session.User.Email)

	return session
}

// CreateAndLogin creates an account with role and returns a bearer token for it.
func (e *Env) CreateAndLogin(role string) (*models.User, string) {
	e.T.Helper()

	const password = "Passw0rd!"
	user := e.CreateUser(role, password)
	return user, e.Login(user.Email, password).Token
}

// InviteToken returns the token of the newest invite for email.
func (e *Env) InviteToken(email string) string {
	e.T.Helper()

	var invite models.Invite
	require.NoError(e.T, e.DB.
		Where("email = ?", models.NormaliseEmail(email)).
		Order("created_at DESC").
		First(&invite).Error)
	return invite.Token
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}

// RecordingMailer keeps sent messages in memory.
type RecordingMailer struct {
	mu       sync.Mutex
	err      error
	messages []mail.Message
}

func (m *RecordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, msg)
	return nil
}

// Sent returns a copy of the delivered messages.
func (m *RecordingMailer) Sent() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]mail.Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// FailWith makes subsequent sends return err.
func (m *RecordingMailer) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}
