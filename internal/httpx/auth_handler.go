package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/cleanwash/cleanwash/internal/profiles"
)

// AccountService is the slice of profiles.Service the handler needs.
type AccountService interface {
	Register(ctx context.Context, in profiles.RegisterInput) (*profiles.Profile, string, error)
	Login(ctx context.Context, email, password string) (*profiles.Profile, string, error)
}

type AuthHandler struct {
	Svc      AccountService
	Log      *zap.Logger
	TokenTTL time.Duration
}

func (h *AuthHandler) Register(r chi.Router) {
	r.Post("/api/signup", h.signup)
	r.Post("/api/login", h.login)
}

type authResponse struct {
	Token   string            `json:"token"`
	Profile *profiles.Profile `json:"profile"`
}

func (h *AuthHandler) signup(w http.ResponseWriter, r *http.Request) {
	var in profiles.RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json"})
		return
	}
	p, token, err := h.Svc.Register(r.Context(), in)
	if err != nil {
		h.writeAuthErr(w, err)
		return
	}
	h.setTokenCookie(w, token)
	writeJSON(w, http.StatusCreated, authResponse{Token: token, Profile: p})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json"})
		return
	}
	p, token, err := h.Svc.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		h.writeAuthErr(w, err)
		return
	}
	h.setTokenCookie(w, token)
	writeJSON(w, http.StatusOK, authResponse{Token: token, Profile: p})
}

func (h *AuthHandler) setTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     "auth_token",
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.TokenTTL / time.Second),
	})
}

func (h *AuthHandler) writeAuthErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, profiles.ErrBadProfile):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.Is(err, profiles.ErrEmailTaken):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "email already registered"})
	case errors.Is(err, profiles.ErrBadCredentials):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
	default:
		h.Log.Error("auth request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
