package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"schoolhub/internal/content"
)

// ContentHandler serves the feed, clubs, events and chats for the
// authenticated user.
type ContentHandler struct {
	content *content.Manager
}

func NewContentHandler(content *content.Manager) *ContentHandler {
	return &ContentHandler{content: content}
}

type CreatePostRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type ContentRequest struct {
	Content string `json:"content"`
}

type CreateChatRequest struct {
	RecipientID string `json:"recipientId"`
}

// GET /api/v1/posts
func (h *ContentHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.content.Posts(r.Context(), GetUserID(r))
	respond(w, r, http.StatusOK, posts, err)
}

// POST /api/v1/posts
func (h *ContentHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req CreatePostRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	post, err := h.content.AddPost(r.Context(), GetUserID(r), req.Content, req.Title)
	respond(w, r, http.StatusCreated, post, err)
}

// POST /api/v1/posts/{postID}/like
func (h *ContentHandler) LikePost(w http.ResponseWriter, r *http.Request) {
	post, err := h.content.LikePost(r.Context(), GetUserID(r), chi.URLParam(r, "postID"))
	respond(w, r, http.StatusOK, post, err)
}

// POST /api/v1/posts/{postID}/comments
func (h *ContentHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	var req ContentRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	comment, err := h.content.AddComment(r.Context(), GetUserID(r), chi.URLParam(r, "postID"), req.Content)
	respond(w, r, http.StatusCreated, comment, err)
}

// GET /api/v1/clubs
func (h *ContentHandler) ListClubs(w http.ResponseWriter, r *http.Request) {
	clubs, err := h.content.Clubs(r.Context(), GetUserID(r))
	respond(w, r, http.StatusOK, clubs, err)
}

// POST /api/v1/clubs
func (h *ContentHandler) CreateClub(w http.ResponseWriter, r *http.Request) {
	var req content.ClubParams
	if err := decodeJSON(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	club, err := h.content.CreateClub(r.Context(), GetUserID(r), req)
	respond(w, r, http.StatusCreated, club, err)
}

// POST /api/v1/clubs/{clubID}/members
func (h *ContentHandler) JoinClub(w http.ResponseWriter, r *http.Request) {
	club, err := h.content.JoinClub(r.Context(), GetUserID(r), chi.URLParam(r, "clubID"))
	respond(w, r, http.StatusOK, club, err)
}

// DELETE /api/v1/clubs/{clubID}/members
func (h *ContentHandler) LeaveClub(w http.ResponseWriter, r *http.Request) {
	club, err := h.content.LeaveClub(r.Context(), GetUserID(r), chi.URLParam(r, "clubID"))
	respond(w, r, http.StatusOK, club, err)
}

// GET /api/v1/events
func (h *ContentHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.content.Events(r.Context(), GetUserID(r))
	respond(w, r, http.StatusOK, events, err)
}

// POST /api/v1/events
func (h *ContentHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req content.EventParams
	if err := decodeJSON(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	event, err := h.content.CreateEvent(r.Context(), GetUserID(r), req)
	respond(w, r, http.StatusCreated, event, err)
}

// POST /api/v1/events/{eventID}/rsvp
func (h *ContentHandler) RsvpEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.content.RsvpEvent(r.Context(), GetUserID(r), chi.URLParam(r, "eventID"))
	respond(w, r, http.StatusOK, event, err)
}

// DELETE /api/v1/events/{eventID}/rsvp
func (h *ContentHandler) CancelRsvp(w http.ResponseWriter, r *http.Request) {
	event, err := h.content.CancelRsvp(r.Context(), GetUserID(r), chi.URLParam(r, "eventID"))
	respond(w, r, http.StatusOK, event, err)
}

// GET /api/v1/chats
func (h *ContentHandler) ListChats(w http.ResponseWriter, r *http.Request) {
	chats, err := h.content.Chats(r.Context(), GetUserID(r))
	respond(w, r, http.StatusOK, chats, err)
}

// POST /api/v1/chats returns the existing chat with the recipient when
// there is one.
func (h *ContentHandler) CreateChat(w http.ResponseWriter, r *http.Request) {
	var req CreateChatRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	chat, err := h.content.CreateChat(r.Context(), GetUserID(r), req.RecipientID)
	respond(w, r, http.StatusOK, chat, err)
}

// GET /api/v1/chats/{chatID}
func (h *ContentHandler) GetChat(w http.ResponseWriter, r *http.Request) {
	chat, err := h.content.Chat(r.Context(), GetUserID(r), chi.URLParam(r, "chatID"))
	respond(w, r, http.StatusOK, chat, err)
}

// POST /api/v1/chats/{chatID}/messages
func (h *ContentHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req ContentRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	message, err := h.content.SendMessage(r.Context(), GetUserID(r), chi.URLParam(r, "chatID"), req.Content)
	respond(w, r, http.StatusCreated, message, err)
}

func respond(w http.ResponseWriter, r *http.Request, status int, data any, err error) {
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, status, data)
}
