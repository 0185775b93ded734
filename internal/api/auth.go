package api

import (
	"log/slog"
	"net/http"

	"schoolhub/internal/auth"
	"schoolhub/internal/models"
	"schoolhub/internal/ws"
)

type AuthHandler struct {
	users      *auth.Manager
	jwtService *auth.JWTService
	hub        *ws.Hub
}

func NewAuthHandler(users *auth.Manager, jwtService *auth.JWTService, hub *ws.Hub) *AuthHandler {
	return &AuthHandler{
		users:      users,
		jwtService: jwtService,
		hub:        hub,
	}
}

// RegisterRequest omits the role: accounts created over HTTP are always
// students.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Bio      string `json:"bio"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type SessionResponse struct {
	User *models.Profile `json:"user"`
	*auth.AccessToken
}

// POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	previous, err := h.users.CurrentUser(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	profile, err := h.users.Register(r.Context(), auth.RegisterParams{
		Username: req.Username,
		Password: req.Password,
		Name:     req.Name,
		Email:    req.Email,
		Bio:      req.Bio,
		Role:     models.RoleStudent,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	h.replaceSession(previous, profile)
	h.writeSession(w, http.StatusCreated, profile)
}

// POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	previous, err := h.users.CurrentUser(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	profile, err := h.users.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	h.replaceSession(previous, profile)
	h.writeSession(w, http.StatusOK, profile)
}

// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)
	if err := h.users.Logout(r.Context()); err != nil {
		writeAppError(w, r, err)
		return
	}
	h.hub.DisconnectUser(userID)
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/auth/session reports who is signed in on this device. The
// user is null when nobody is.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	profile, err := h.users.CurrentUser(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": profile})
}

// replaceSession ends the live connection of the user who was signed in
// before, if that was someone else. The device holds one session.
func (h *AuthHandler) replaceSession(previous, current *models.Profile) {
	if previous != nil && previous.ID != current.ID {
		h.hub.DisconnectUser(previous.ID)
	}
}

func (h *AuthHandler) writeSession(w http.ResponseWriter, status int, profile *models.Profile) {
	token, err := h.jwtService.IssueAccessToken(profile)
	if err != nil {
		slog.Error("error issuing access token", "component", "api", "user_id", profile.ID, "error", err)
		internalError(w)
		return
	}
	writeJSON(w, status, SessionResponse{User: profile, AccessToken: token})
}
