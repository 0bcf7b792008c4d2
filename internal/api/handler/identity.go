package handler

import (
	"net/http"

	"github.com/mcoot/villefarm/internal/api/middleware"
	"github.com/mcoot/villefarm/internal/api/request"
	"github.com/mcoot/villefarm/internal/api/response"
	"github.com/mcoot/villefarm/internal/services/identity"
	"github.com/mcoot/villefarm/internal/storage"
)

// IdentityHandler handles identity and session endpoints
type IdentityHandler struct {
	identityService *identity.Service
	storage         storage.Storage
}

// NewIdentityHandler creates a new identity handler
func NewIdentityHandler(identityService *identity.Service, storage storage.Storage) *IdentityHandler {
	return &IdentityHandler{
		identityService: identityService,
		storage:         storage,
	}
}

// CreateGuest handles POST /api/v1/identities/guest
func (h *IdentityHandler) CreateGuest(w http.ResponseWriter, r *http.Request) {
	var req request.CreateGuestRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	if req.DisplayName == "" {
		WriteError(w, NewInvalidRequestError("display_name is required"))
		return
	}

	session, err := h.identityService.CreateGuest(r.Context(), req.DisplayName)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.Created(w, response.AuthResponseFromSession(session))
}

// Register handles POST /api/v1/identities/register
func (h *IdentityHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req request.RegisterRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	if req.Username == "" {
		WriteError(w, NewInvalidRequestError("username is required"))
		return
	}
	if req.Password == "" {
		WriteError(w, NewInvalidRequestError("password is required"))
		return
	}

	session, err := h.identityService.Register(r.Context(), req.Username, req.Password, req.DisplayName)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.Created(w, response.AuthResponseFromSession(session))
}

// Login handles POST /api/v1/identities/login
func (h *IdentityHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req request.LoginRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	if req.Username == "" || req.Password == "" {
		WriteError(w, NewInvalidRequestError("username and password are required"))
		return
	}

	session, err := h.identityService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.AuthResponseFromSession(session))
}

// GetMe handles GET /api/v1/identities/me
func (h *IdentityHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	session := middleware.MustGetSession(r.Context())
	response.JSON(w, http.StatusOK, response.IdentityFromModel(&session.Identity))
}

// GetIdentity handles GET /api/v1/identities/{id}
func (h *IdentityHandler) GetIdentity(w http.ResponseWriter, r *http.Request) {
	id, err := pathIdentity(r, "id")
	if err != nil {
		WriteError(w, err)
		return
	}

	ident, err := h.storage.GetIdentity(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.IdentityFromModel(ident))
}

// Logout handles POST /api/v1/identities/logout
func (h *IdentityHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session := middleware.MustGetSession(r.Context())
	h.identityService.InvalidateSession(session.Token)
	response.NoContent(w)
}
