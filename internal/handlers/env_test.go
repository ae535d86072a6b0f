package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Brunomssil/design_platform/internal/audit"
	"github.com/Brunomssil/design_platform/internal/auth"
	"github.com/Brunomssil/design_platform/internal/handlers"
	"github.com/Brunomssil/design_platform/internal/hash"
	"github.com/Brunomssil/design_platform/internal/models"
	authmw "github.com/Brunomssil/design_platform/internal/middleware/auth"
	"github.com/Brunomssil/design_platform/internal/repo"
	"github.com/Brunomssil/design_platform/internal/tokens"
	httpserver "github.com/Brunomssil/design_platform/internal/transport/http"
)

type publishedEvent struct {
	Topic   string
	Key     string
	Payload interface{}
}

type stubPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (s *stubPublisher) PublishEvent(_ context.Context, topic, key string, event interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, publishedEvent{Topic: topic, Key: key, Payload: event})
	return nil
}

func (s *stubPublisher) byTopic(topic string) []publishedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []publishedEvent
	for _, e := range s.events {
		if e.Topic == topic {
			out = append(out, e)
		}
	}
	return out
}

type testEnv struct {
	T      *testing.T
	E      *echo.Echo
	A      *handlers.AuthHandler
	D      *handlers.DesignHandler
	DB     *gorm.DB
	Events *stubPublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	// each connection to :memory: is its own database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.RefreshToken{}, &models.Design{}))

	jwtSecret := []byte("test-jwt-secret")
	events := &stubPublisher{}

	engine := auth.NewEngine(
		&repo.UserRepo{DB: db},
		&repo.RefreshTokenRepo{DB: db},
		hash.Argon2Hasher{},
		tokens.NewIssuer(jwtSecret),
	)

	env := &testEnv{
		T:      t,
		E:      echo.New(),
		DB:     db,
		Events: events,
	}

	env.A = &handlers.AuthHandler{
		Engine:    engine,
		JWTSecret: jwtSecret,
		Producer:  events,
		Audit:     &audit.Publisher{Events: events},
	}
	env.D = &handlers.DesignHandler{
		DB:       db,
		Producer: events,
	}

	httpserver.Register(env.E, &httpserver.Deps{
		AuthHandler:   env.A,
		DesignHandler: env.D,
		SearchHandler: &handlers.SearchHandler{},
		AuthMW:        &authmw.Middleware{JWTSecret: jwtSecret},
	})

	return env
}

func (env *testEnv) doJSONRequest(method, path string, body interface{}, cookies ...*http.Cookie) (*httptest.ResponseRecorder, echo.Context) {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(env.T, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)
	return rec, c
}

func (env *testEnv) serve(method, path string, body interface{}, header http.Header) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(env.T, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, vals := range header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	env.E.ServeHTTP(rec, req)
	return rec
}

func registerAndLogin(t *testing.T, env *testEnv, email, password string) (string, string) {
	t.Helper()

	load := map[string]string{"email": email, "password": password}

	recReg, cReg := env.doJSONRequest(http.MethodPost, "/register", load)
	require.NoError(t, env.A.Register(cReg))
	require.Equal(t, http.StatusCreated, recReg.Code)

	recLogin, cLogin := env.doJSONRequest(http.MethodPost, "/login", load)
	require.NoError(t, env.A.Login(cLogin))
	require.Equal(t, http.StatusOK, recLogin.Code)

	var resp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	require.NoError(t, json.Unmarshal(recLogin.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	require.NotEmpty(t, resp.RefreshToken)

	return resp.AccessToken, resp.RefreshToken
}
