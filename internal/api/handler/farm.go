package handler

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/mcoot/villefarm/internal/api/middleware"
	"github.com/mcoot/villefarm/internal/api/request"
	"github.com/mcoot/villefarm/internal/api/response"
	"github.com/mcoot/villefarm/internal/dependencies/clock"
	"github.com/mcoot/villefarm/internal/events/sse"
	"github.com/mcoot/villefarm/internal/model"
	"github.com/mcoot/villefarm/internal/services/bot"
	"github.com/mcoot/villefarm/internal/services/farm"
)

// DelegationHeader carries the delegation token ID on calls made by a delegate
const DelegationHeader = "X-Delegation-Token"

// FarmHandler handles farm endpoints
type FarmHandler struct {
	controller *farm.Controller
	botService *bot.Service
	hubManager *sse.HubManager
}

// NewFarmHandler creates a new farm handler
func NewFarmHandler(controller *farm.Controller, botService *bot.Service, hubManager *sse.HubManager) *FarmHandler {
	return &FarmHandler{
		controller: controller,
		botService: botService,
		hubManager: hubManager,
	}
}

// Init handles POST /api/v1/farm
func (h *FarmHandler) Init(w http.ResponseWriter, r *http.Request) {
	signer := middleware.MustGetSession(r.Context()).IdentityID

	res, err := h.controller.InitPlayer(r.Context(), signer)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.Created(w, h.operationResponse(res))
}

// Get handles GET /api/v1/farms/{owner}
func (h *FarmHandler) Get(w http.ResponseWriter, r *http.Request) {
	owner, err := pathIdentity(r, "owner")
	if err != nil {
		WriteError(w, err)
		return
	}

	view, err := h.controller.GetFarm(r.Context(), owner)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.FarmFromModel(view.Farm, view.Now, h.window()))
}

// Plant handles POST /api/v1/farms/{owner}/plant
func (h *FarmHandler) Plant(w http.ResponseWriter, r *http.Request) {
	req, err := h.farmRequest(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	var body request.PlantRequest
	if err := decodeBody(r, &body); err != nil {
		WriteError(w, err)
		return
	}
	if body.Kind == "" {
		WriteError(w, NewInvalidRequestError("kind is required"))
		return
	}

	// Unknown names pass through so the controller reports them in check order
	kind := model.Kind(strings.ToLower(strings.TrimSpace(body.Kind)))

	res, err := h.controller.Plant(r.Context(), req, kind)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, h.operationResponse(res))
}

// Harvest handles POST /api/v1/farms/{owner}/harvest
func (h *FarmHandler) Harvest(w http.ResponseWriter, r *http.Request) {
	req, err := h.farmRequest(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	res, err := h.controller.Harvest(r.Context(), req)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, h.operationResponse(res))
}

// Update handles POST /api/v1/farms/{owner}/update
func (h *FarmHandler) Update(w http.ResponseWriter, r *http.Request) {
	req, err := h.farmRequest(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	res, err := h.controller.Update(r.Context(), req)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, h.operationResponse(res))
}

// Tend handles POST /api/v1/farms/{owner}/tend. A bot harvests and replants
// the farm, signing as the caller.
func (h *FarmHandler) Tend(w http.ResponseWriter, r *http.Request) {
	req, err := h.farmRequest(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	var body request.TendRequest
	if err := decodeBody(r, &body); err != nil {
		WriteError(w, err)
		return
	}
	if body.Strategy == "" {
		body.Strategy = bot.StrategyGreedy
	}

	out, err := h.botService.Tend(r.Context(), req, body.Strategy)
	if err != nil {
		WriteError(w, err)
		return
	}

	now := clock.Unix(h.controller.Clock())
	response.JSON(w, http.StatusOK, response.TendResponseFromOutcome(out, now, h.window()))
}

// Events handles GET /api/v1/farms/{owner}/events as a server-sent event stream
func (h *FarmHandler) Events(w http.ResponseWriter, r *http.Request) {
	owner, err := pathIdentity(r, "owner")
	if err != nil {
		WriteError(w, err)
		return
	}

	// Only stream farms that exist
	if _, err := h.controller.GetFarm(r.Context(), owner); err != nil {
		WriteError(w, err)
		return
	}

	watcher := middleware.GetIdentityID(r.Context())
	if watcher == "" {
		watcher = "anonymous"
	}

	hub := h.hubManager.GetOrCreateHub(owner)
	sse.ServeSSE(w, r, hub, watcher)
}

// Kinds handles GET /api/v1/kinds
func (h *FarmHandler) Kinds(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, response.KindsFromModel(h.window()))
}

func (h *FarmHandler) farmRequest(r *http.Request) (farm.Request, error) {
	owner, err := pathIdentity(r, "owner")
	if err != nil {
		return farm.Request{}, err
	}
	return farm.Request{
		Signer:       middleware.MustGetSession(r.Context()).IdentityID,
		Owner:        owner,
		DelegationID: model.DelegationID(strings.TrimSpace(r.Header.Get(DelegationHeader))),
	}, nil
}

func (h *FarmHandler) operationResponse(res *farm.Result) response.OperationResponse {
	return response.OperationResponse{
		Farm:  response.FarmFromModel(res.Farm, res.Event.Timestamp.Unix(), h.window()),
		Event: response.EventFromModel(res.Event),
	}
}

func (h *FarmHandler) window() int64 {
	return h.controller.Rules().MaturationSeconds()
}

// pathIdentity reads an identity ID from the named route variable
func pathIdentity(r *http.Request, name string) (model.IdentityID, error) {
	id := mux.Vars(r)[name]
	if id == "" {
		return "", NewInvalidRequestError(name + " is required")
	}
	return model.IdentityID(id), nil
}
