package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/recipecost/internal/auth"
	"github.com/dukerupert/recipecost/internal/middleware"
	"github.com/dukerupert/recipecost/internal/model"
	"github.com/dukerupert/recipecost/internal/store"
	"github.com/dukerupert/recipecost/internal/validate"
	"github.com/dukerupert/recipecost/internal/websocket"
)

const invalidCredentials = "Invalid login credentials"

type AuthHandler struct {
	userStore    *store.UserStore
	profileStore *store.ProfileStore
	sessionStore *store.SessionStore
	hub          *websocket.Hub
	sessionTTL   time.Duration
	secureCookie bool
	logger       *slog.Logger
}

func NewAuthHandler(us *store.UserStore, ps *store.ProfileStore, ss *store.SessionStore, hub *websocket.Hub, sessionTTL time.Duration, secureCookie bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		userStore:    us,
		profileStore: ps,
		sessionStore: ss,
		hub:          hub,
		sessionTTL:   sessionTTL,
		secureCookie: secureCookie,
		logger:       logger,
	}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

type sessionResponse struct {
	User    *model.User    `json:"user"`
	Profile *model.Profile `json:"profile"`
}

func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	req.Username = strings.TrimSpace(req.Username)

	err := validate.Credentials(validate.CredentialsForm{
		Email: req.Email, Password: req.Password, Username: req.Username, SignUp: true,
	})
	if writeValidation(w, err) {
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to sign up")
		return
	}

	user, err := h.userStore.Create(req.Email, hash, req.Username)
	if errors.Is(err, store.ErrEmailTaken) {
		writeError(w, http.StatusConflict, "User already registered")
		return
	}
	if err != nil {
		h.logger.Error("create user", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to sign up")
		return
	}

	h.logger.Info("user signed up", "user_id", user.ID)
	h.startSession(w, user, http.StatusCreated)
}

func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)

	err := validate.Credentials(validate.CredentialsForm{Email: req.Email, Password: req.Password})
	if writeValidation(w, err) {
		return
	}

	user, err := h.userStore.GetByEmail(req.Email)
	if err != nil {
		h.logger.Error("get user by email", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to sign in")
		return
	}
	if user == nil {
		writeError(w, http.StatusUnauthorized, invalidCredentials)
		return
	}

	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			h.logger.Error("check password", "user_id", user.ID, "error", err)
		}
		writeError(w, http.StatusUnauthorized, invalidCredentials)
		return
	}

	h.startSession(w, user, http.StatusOK)
}

func (h *AuthHandler) startSession(w http.ResponseWriter, user *model.User, status int) {
	sess, err := h.sessionStore.Create(user.ID, h.sessionTTL)
	if err != nil {
		h.logger.Error("create session", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	profile, err := h.profileStore.Get(user.ID)
	if err != nil {
		h.logger.Error("get profile", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, status, sessionResponse{User: user, Profile: profile})
}

// SignOut ends the current session. Other sessions of the user stay valid.
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	if err := h.sessionStore.Delete(ac.SessionID); err != nil {
		h.logger.Error("delete session", "session_id", ac.SessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to sign out")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// SignOutEverywhere deletes every session of the user and tells their open
// tabs to drop local state.
func (h *AuthHandler) SignOutEverywhere(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	if err := h.sessionStore.DeleteByUserID(userID); err != nil {
		h.logger.Error("delete user sessions", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to sign out")
		return
	}
	h.hub.BroadcastTo(userID, websocket.Message{Type: websocket.TypeSignedOut})
	h.SignOut(w, r)
}

// Session returns the signed-in user and profile.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	user, err := h.userStore.GetByID(userID)
	if err != nil {
		h.logger.Error("get user", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	profile, err := h.profileStore.Get(userID)
	if err != nil {
		h.logger.Error("get profile", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{User: user, Profile: profile})
}
