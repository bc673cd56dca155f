package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	iauth "github.com/inkpost/inkpost/internal/auth"
	"github.com/inkpost/inkpost/internal/database/testutil"
	"github.com/inkpost/inkpost/internal/middleware"
	"github.com/inkpost/inkpost/internal/services"
	"github.com/inkpost/inkpost/pkg/mail"
)

type stubMailer struct {
	mu       sync.Mutex
	messages []mail.Message
}

func (m *stubMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

func (m *stubMailer) sent() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]mail.Message, len(m.messages))
	copy(out, m.messages)
	return out
}

type testEnv struct {
	db       *gorm.DB
	router   *gin.Engine
	users    *services.UserService
	sessions *iauth.SessionService
	mailer   *stubMailer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t)

	users, err := services.NewUserService(db)
	require.NoError(t, err)

	sessions, err := iauth.NewSessionService(db, iauth.SessionConfig{})
	require.NoError(t, err)

	limiter, err := services.NewResetLimiter(db, services.ResetLimiterConfig{})
	require.NoError(t, err)

	mailer := &stubMailer{}
	resets, err := services.NewPasswordResetService(db, users, limiter, mailer,
		services.WithResetBaseURL("http://localhost:3000"),
		services.WithSyncDispatch(),
		services.WithSessionRevoker(sessions),
	)
	require.NoError(t, err)

	posts, err := services.NewPostService(db)
	require.NoError(t, err)

	authHandler := NewAuthHandler(users, sessions)
	resetHandler := NewPasswordResetHandler(resets)
	postHandler := NewPostHandler(posts)

	r := gin.New()
	api := r.Group("/api")
	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/forgot-password", resetHandler.Request)
	auth.PUT("/forgot-password", resetHandler.Confirm)

	protected := auth.Group("")
	protected.Use(middleware.Auth(sessions))
	protected.POST("/logout", authHandler.Logout)
	protected.GET("/me", authHandler.Me)

	api.GET("/posts", postHandler.List)
	api.GET("/posts/:slug", postHandler.Get)
	authed := api.Group("")
	authed.Use(middleware.Auth(sessions))
	authed.GET("/posts/mine", postHandler.Mine)
	authed.POST("/posts", postHandler.Create)
	authed.PATCH("/posts/:id", postHandler.Update)
	authed.DELETE("/posts/:id", postHandler.Delete)

	return &testEnv{db: db, router: r, users: users, sessions: sessions, mailer: mailer}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	return e.doFrom(t, "192.0.2.1", method, path, body, cookies...)
}

// doFrom issues a request from a specific client IP. The reset throttle keys
// on the source address, so tests that must not trip it pick distinct IPs.
func (e *testEnv) doFrom(t *testing.T, ip, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = ip + ":51234"
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		if c != nil {
			req.AddCookie(c)
		}
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	resp := w.Result()
	defer resp.Body.Close()
	for _, c := range resp.Cookies() {
		if c.Name == middleware.SessionCookieName {
			return c
		}
	}
	return nil
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func (e *testEnv) register(t *testing.T, name, email, password string) *http.Cookie {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/auth/register", gin.H{
		"name":                  name,
		"email":                 email,
		"password":              password,
		"password_confirmation": password,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	cookie := sessionCookie(t, w)
	require.NotNil(t, cookie)
	return cookie
}
