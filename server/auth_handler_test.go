package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicewave/core/auth"
	"voicewave/model"
)

func TestRegister_Validation(t *testing.T) {
	d := newTestDeps()
	defer d.close()

	body := `{"username":"","email":"not-an-email","password":"short"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
	rec := httptest.NewRecorder()

	d.handler.RegisterHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp struct {
		Errors []FieldError `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	fields := make(map[string]bool)
	for _, fe := range resp.Errors {
		fields[fe.Field] = true
	}
	assert.True(t, fields["username"])
	assert.True(t, fields["email"])
	assert.True(t, fields["password"])
}

func TestRegister_Success(t *testing.T) {
	d := newTestDeps()
	defer d.close()

	d.users.createUser = func(ctx context.Context, user *model.User) (int64, error) {
		assert.Equal(t, "alice", user.Username)
		assert.NotEqual(t, "password123", user.PasswordHash)
		return 1, nil
	}
	d.users.getByID = func(ctx context.Context, id int64) (*model.User, error) {
		return &model.User{ID: id, Username: "alice", Email: "alice@example.com"}, nil
	}

	body := `{"username":"alice","email":"alice@example.com","password":"password123"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
	rec := httptest.NewRecorder()

	d.handler.RegisterHandler(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp authResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, int64(1), resp.User.ID)

	claims, err := d.tokens.ParseToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, int64(1), claims.UserID)
}

func TestLogin_WrongPassword(t *testing.T) {
	d := newTestDeps()
	defer d.close()

	hash, err := auth.HashPassword("the-real-password")
	require.NoError(t, err)
	d.users.getByEmail = func(ctx context.Context, email string) (*model.User, error) {
		return &model.User{ID: 1, Username: "alice", Email: email, PasswordHash: hash}, nil
	}

	body := `{"email":"alice@example.com","password":"wrong"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	rec := httptest.NewRecorder()

	d.handler.LoginHandler(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid email or password")
}

func TestLogin_UnknownEmail(t *testing.T) {
	d := newTestDeps()
	defer d.close()

	d.users.getByEmail = func(ctx context.Context, email string) (*model.User, error) {
		return nil, nil
	}

	body := `{"email":"ghost@example.com","password":"whatever"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	rec := httptest.NewRecorder()

	d.handler.LoginHandler(rec, req)

	// Same response as a wrong password.
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid email or password")
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	d := newTestDeps()
	defer d.close()

	called := false
	protected := d.handler.AuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	rec := httptest.NewRecorder()
	protected(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	d := newTestDeps()
	defer d.close()

	var gotUserID int64
	protected := d.handler.AuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = userIDFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+d.tokenFor(42, "alice"))
	rec := httptest.NewRecorder()
	protected(rec, req)

	assert.Equal(t, int64(42), gotUserID)
}
