package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/mcoot/villefarm/internal/api/middleware"
	"github.com/mcoot/villefarm/internal/api/request"
	"github.com/mcoot/villefarm/internal/api/response"
	"github.com/mcoot/villefarm/internal/model"
	"github.com/mcoot/villefarm/internal/services/delegation"
)

// DelegationHandler handles delegation token endpoints
type DelegationHandler struct {
	delegationService *delegation.Service
}

// NewDelegationHandler creates a new delegation handler
func NewDelegationHandler(delegationService *delegation.Service) *DelegationHandler {
	return &DelegationHandler{
		delegationService: delegationService,
	}
}

// Create handles POST /api/v1/delegations
func (h *DelegationHandler) Create(w http.ResponseWriter, r *http.Request) {
	authority := middleware.MustGetSession(r.Context()).IdentityID

	var req request.CreateDelegationRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if req.SignerID == "" {
		WriteError(w, NewInvalidRequestError("signer_id is required"))
		return
	}
	if req.DurationSeconds <= 0 {
		WriteError(w, NewInvalidRequestError("duration_seconds must be positive"))
		return
	}

	d, err := h.delegationService.Create(r.Context(), authority, model.IdentityID(req.SignerID),
		time.Duration(req.DurationSeconds)*time.Second)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.Created(w, response.DelegationFromModel(d))
}

// List handles GET /api/v1/delegations
func (h *DelegationHandler) List(w http.ResponseWriter, r *http.Request) {
	authority := middleware.MustGetSession(r.Context()).IdentityID

	ds, err := h.delegationService.List(r.Context(), authority)
	if err != nil {
		WriteError(w, err)
		return
	}

	out := response.DelegationsResponse{Delegations: make([]response.Delegation, 0, len(ds))}
	for _, d := range ds {
		out.Delegations = append(out.Delegations, response.DelegationFromModel(d))
	}
	response.JSON(w, http.StatusOK, out)
}

// Revoke handles DELETE /api/v1/delegations/{id}
func (h *DelegationHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	requester := middleware.MustGetSession(r.Context()).IdentityID
	id := model.DelegationID(mux.Vars(r)["id"])

	if err := h.delegationService.Revoke(r.Context(), id, requester); err != nil {
		WriteError(w, err)
		return
	}

	response.NoContent(w)
}
