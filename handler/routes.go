package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"menu-planner/internal/auth"
	"menu-planner/internal/domain"
	"menu-planner/internal/usecase"
)

const maxRequestBodySize = 1 << 20

type registerRequest struct {
	Username     string `json:"username"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	Household    string `json:"household"`
	HouseholdKey string `json:"householdKey"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type profileResponse struct {
	Username     string `json:"username"`
	Email        string `json:"email"`
	Household    string `json:"household"`
	HouseholdKey string `json:"householdKey"`
}

type planningStartRequest struct {
	Ingredients []string `json:"ingredients"`
}

type planningStartResponse struct {
	SessionKey    string          `json:"sessionKey"`
	MenuSelection json.RawMessage `json:"menuSelection"`
}

type selectionRequest struct {
	SessionKey   string   `json:"sessionKey"`
	MatchedMenus []string `json:"matchedMenus"`
}

type continueResponse struct {
	SessionKey    string          `json:"sessionKey"`
	MenuSelection json.RawMessage `json:"menuSelection"`
	MatchedMenus  []string        `json:"matchedMenus"`
}

type discussionStartRequest struct {
	SessionKey string `json:"sessionKey"`
}

type discussionResultResponse struct {
	Status string          `json:"status"`
	Result json.RawMessage `json:"result,omitempty"`
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	id, err := h.accounts.Register(r.Context(), usecase.RegisterInput{
		Username:     req.Username,
		Email:        req.Email,
		Password:     req.Password,
		Household:    req.Household,
		HouseholdKey: req.HouseholdKey,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProfile(id))
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	token, err := h.accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFrom(r.Context())
	profile, err := h.accounts.Profile(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfile(profile))
}

func (h *Handler) startPlanning(w http.ResponseWriter, r *http.Request) {
	var req planningStartRequest
	if !decodeBody(w, r, &req) {
		return
	}
	id, _ := auth.IdentityFrom(r.Context())
	out, err := h.planning.Start(r.Context(), id, req.Ingredients)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, planningStartResponse{SessionKey: out.SessionKey, MenuSelection: out.MenuSelection})
}

func (h *Handler) sampler(w http.ResponseWriter, r *http.Request) {
	topK := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("topK")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeErrorCode(w, http.StatusBadRequest, usecase.ErrorInvalidInput, "invalid_top_k", nil)
			return
		}
		topK = n
	}
	out, err := h.planning.Sampler(r.Context(), topK)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) recordSelection(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	id, _ := auth.IdentityFrom(r.Context())
	if err := h.planning.RecordSelection(r.Context(), id, req.SessionKey, req.MatchedMenus); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) continuePlanning(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFrom(r.Context())
	session, err := h.planning.Continue(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	matched := session.MatchedMenus
	if matched == nil {
		matched = []string{}
	}
	writeJSON(w, http.StatusOK, continueResponse{
		SessionKey:    session.SessionKey,
		MenuSelection: session.MenuSelection,
		MatchedMenus:  matched,
	})
}

func (h *Handler) startDiscussion(w http.ResponseWriter, r *http.Request) {
	var req discussionStartRequest
	if !decodeBody(w, r, &req) {
		return
	}
	id, _ := auth.IdentityFrom(r.Context())
	if err := h.discussion.Start(r.Context(), id, req.SessionKey); err != nil {
		h.observeDiscussion("start", errorCode(err))
		writeError(w, r, err)
		return
	}
	h.observeDiscussion("start", "accepted")
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) discussionResult(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFrom(r.Context())
	out, err := h.discussion.Result(r.Context(), id, r.URL.Query().Get("sessionKey"))
	if err != nil {
		h.observeDiscussion("result", errorCode(err))
		writeError(w, r, err)
		return
	}
	h.observeDiscussion("result", string(out.Status))
	writeJSON(w, http.StatusOK, discussionResultResponse{Status: string(out.Status), Result: out.Result})
}

func toProfile(id domain.Identity) profileResponse {
	return profileResponse{
		Username:     id.Username,
		Email:        id.Email,
		Household:    id.Household,
		HouseholdKey: id.HouseholdKey,
	}
}

// decodeBody reads a JSON request body into v, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErrorCode(w, http.StatusRequestEntityTooLarge, usecase.ErrorInvalidInput, "body_too_large", nil)
			return false
		}
		writeErrorCode(w, http.StatusBadRequest, usecase.ErrorInvalidInput, "invalid_body", nil)
		return false
	}
	return true
}
