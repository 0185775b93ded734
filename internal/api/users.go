package api

import (
	"net/http"

	"schoolhub/internal/auth"
	"schoolhub/internal/ws"
)

type UserHandler struct {
	users *auth.Manager
	hub   *ws.Hub
}

func NewUserHandler(users *auth.Manager, hub *ws.Hub) *UserHandler {
	return &UserHandler{users: users, hub: hub}
}

// GET /api/v1/users
func (h *UserHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.users.ListUsers(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}

// GET /api/v1/users/me
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	profile, err := h.users.GetUser(r.Context(), GetUserID(r))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// PATCH /api/v1/users/me
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req auth.UpdateParams
	if err := decodeJSON(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	profile, err := h.users.UpdateProfile(r.Context(), GetUserID(r), req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// DELETE /api/v1/users/me
func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)
	if err := h.users.DeleteAccount(r.Context(), userID); err != nil {
		writeAppError(w, r, err)
		return
	}
	h.hub.DisconnectUser(userID)
	w.WriteHeader(http.StatusNoContent)
}
