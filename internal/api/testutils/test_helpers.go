package testutils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devcircle/devcircle-server/internal/activity"
	"github.com/devcircle/devcircle-server/internal/api"
	"github.com/devcircle/devcircle-server/internal/auth"
	"github.com/devcircle/devcircle-server/internal/config"
	"github.com/devcircle/devcircle-server/internal/models"
	"github.com/devcircle/devcircle-server/internal/repository"
	"github.com/devcircle/devcircle-server/internal/service"
)

// TestCollege is the college assigned to users created by the test helpers.
const TestCollege = "test_college"

// FakeIdentityProvider stands in for the GitHub OAuth exchange.
type FakeIdentityProvider struct {
	Identity *auth.Identity
	Err      error
}

func (f *FakeIdentityProvider) AuthURL() string {
	return "https://github.com/login/oauth/authorize?client_id=test"
}

func (f *FakeIdentityProvider) Exchange(_ context.Context, _ string) (*auth.Identity, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	if f.Identity == nil {
		return nil, fmt.Errorf("no identity configured")
	}
	return f.Identity, nil
}

// TestContext holds all dependencies for tests
type TestContext struct {
	Router     *gin.Engine
	Repository repository.Repository
	Service    service.Service
	Recorder   *activity.Recorder
	Identity   *FakeIdentityProvider
	JWTSecret  []byte
	DB         *sqlx.DB
}

// SetupTestContext creates a new test context with initialized dependencies.
// Tests are skipped when no test database is reachable.
func SetupTestContext(t *testing.T) *TestContext {
	// Load configuration from environment
	cfg := config.LoadConfig()

	// Override with test-specific config
	if cfg.Database.TestDBName != "" {
		cfg.Database.DBName = cfg.Database.TestDBName
	}

	// Use a test JWT secret
	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = "test-secret-key"
	}

	// Set up database
	db, err := config.SetupDatabase(cfg)
	if err != nil {
		t.Skipf("Test database unavailable: %v", err)
	}

	// Create repository and clean any leftover data
	repo := repository.NewPostgresRepository(db)
	cleanupTestDatabase(t, db)

	// Create the activity recorder and a fake identity provider
	recorder := activity.NewRecorder(repo, 64)
	identity := &FakeIdentityProvider{}

	// Create service
	svc := service.NewDefaultService(repo, recorder, identity, nil,
		cfg.Auth.JWTSecret, TestCollege, 10)

	// Create API handler
	handler := api.NewHandler(svc, "http://localhost:3000")

	// Set up Gin router
	gin.SetMode(gin.TestMode)
	router := gin.Default()

	// Add middleware for JWT secret
	router.Use(func(c *gin.Context) {
		c.Set("jwtSecret", []byte(cfg.Auth.JWTSecret))
		c.Next()
	})

	// Set up routes
	handler.SetupRoutes(router)

	return &TestContext{
		Router:     router,
		Repository: repo,
		Service:    svc,
		Recorder:   recorder,
		Identity:   identity,
		JWTSecret:  []byte(cfg.Auth.JWTSecret),
		DB:         db,
	}
}

// CleanupTestContext cleans up test resources
func CleanupTestContext(tc *TestContext) {
	if tc.Recorder != nil {
		tc.Recorder.Close()
	}
	if tc.DB != nil {
		tc.DB.Close()
	}
}

// cleanupTestDatabase removes any existing test data
func cleanupTestDatabase(t *testing.T, db *sqlx.DB) {
	// Children first, due to foreign key constraints
	for _, table := range []string{"activities", "requests", "users"} {
		if _, err := db.Exec("DELETE FROM " + table); err != nil {
			t.Logf("Warning: Failed to clean %s: %v", table, err)
		}
	}
}

// CreateUser inserts a user with the given karma balance and returns it along
// with a signed JWT for it.
func (tc *TestContext) CreateUser(t *testing.T, username string, karma int) (*models.User, string) {
	t.Helper()

	user := &models.User{
		ID:          uuid.New().String(),
		GithubID:    "gh-" + username,
		Username:    username,
		Email:       username + "@example.com",
		College:     TestCollege,
		KarmaPoints: karma,
	}

	err := tc.Repository.CreateUser(context.Background(), user)
	require.NoError(t, err, "Failed to create test user")

	// Generate JWT token signed with the test secret
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": user.ID,
		"exp": time.Now().Add(24 * time.Hour).Unix(),
		"iat": time.Now().Unix(),
	})

	tokenString, err := token.SignedString(tc.JWTSecret)
	assert.NoError(t, err, "Failed to generate JWT token")

	return user, tokenString
}

// PerformRequest executes an HTTP request against the router
func PerformRequest(r http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer

	if body != nil {
		jsonBody, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBody)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// AuthHeaders returns headers with Authorization token
func AuthHeaders(token string) map[string]string {
	return map[string]string{
		"Authorization": fmt.Sprintf("Bearer %s", token),
	}
}
