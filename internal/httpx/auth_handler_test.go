package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cleanwash/cleanwash/internal/profiles"
)

type stubAccounts struct {
	profile *profiles.Profile
	token   string
	err     error
}

func (s *stubAccounts) Register(ctx context.Context, in profiles.RegisterInput) (*profiles.Profile, string, error) {
	if s.err != nil {
		return nil, "", s.err
	}
	return s.profile, s.token, nil
}

func (s *stubAccounts) Login(ctx context.Context, email, password string) (*profiles.Profile, string, error) {
	if s.err != nil {
		return nil, "", s.err
	}
	return s.profile, s.token, nil
}

func newAuthServer(svc *stubAccounts) http.Handler {
	h := &AuthHandler{Svc: svc, Log: zap.NewNop(), TokenTTL: time.Hour}
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func postJSON(t *testing.T, srv http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestSignup(t *testing.T) {
	svc := &stubAccounts{
		profile: &profiles.Profile{ID: "u1", Email: "ada@campus.edu", Role: "student"},
		token:   "tok-1",
	}
	srv := newAuthServer(svc)

	rec := postJSON(t, srv, "/api/signup", profiles.RegisterInput{Email: "ada@campus.edu"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp authResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "tok-1", resp.Token)
	assert.Equal(t, "u1", resp.Profile.ID)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "auth_token", cookies[0].Name)
	assert.Equal(t, "tok-1", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
}

func TestSignup_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid profile", profiles.ErrBadProfile, http.StatusUnprocessableEntity},
		{"duplicate email", profiles.ErrEmailTaken, http.StatusConflict},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := newAuthServer(&stubAccounts{err: tc.err})
			rec := postJSON(t, srv, "/api/signup", profiles.RegisterInput{})
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestLoginEndpoint(t *testing.T) {
	svc := &stubAccounts{
		profile: &profiles.Profile{ID: "u1", Role: "worker"},
		token:   "tok-2",
	}
	srv := newAuthServer(svc)

	rec := postJSON(t, srv, "/api/login", loginRequest{Email: "w@campus.edu", Password: "hunter2233"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp authResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "tok-2", resp.Token)
}

func TestLoginEndpoint_BadCredentials(t *testing.T) {
	srv := newAuthServer(&stubAccounts{err: profiles.ErrBadCredentials})
	rec := postJSON(t, srv, "/api/login", loginRequest{Email: "w@campus.edu", Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
