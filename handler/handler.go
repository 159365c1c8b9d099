// Package handler exposes the menu planner use cases over HTTP, both as a
// plain http.Handler and as an API Gateway proxy Lambda handler.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/go-chi/chi/v5"

	"menu-planner/internal/domain"
	"menu-planner/internal/usecase"
)

type AccountUseCase interface {
	Register(ctx context.Context, in usecase.RegisterInput) (domain.Identity, error)
	Login(ctx context.Context, username, password string) (string, error)
	Profile(ctx context.Context, id domain.Identity) (domain.Identity, error)
}

type PlanningUseCase interface {
	Start(ctx context.Context, id domain.Identity, ingredients []string) (usecase.PlanningStart, error)
	Sampler(ctx context.Context, topK int) (json.RawMessage, error)
	RecordSelection(ctx context.Context, id domain.Identity, sessionKey string, matchedMenus []string) error
	Continue(ctx context.Context, id domain.Identity) (domain.Session, error)
}

type DiscussionUseCase interface {
	Start(ctx context.Context, id domain.Identity, sessionKey string) error
	Result(ctx context.Context, id domain.Identity, sessionKey string) (usecase.DiscussionResult, error)
}

type TokenValidator interface {
	Validate(ctx context.Context, token string) (domain.Identity, error)
}

// Metrics is the optional instrumentation hook.
type Metrics interface {
	Instrument(next http.Handler) http.Handler
	ObserveDiscussion(operation, outcome string)
}

type Deps struct {
	Accounts   AccountUseCase
	Planning   PlanningUseCase
	Discussion DiscussionUseCase
	Tokens     TokenValidator
	Metrics    Metrics
}

type Options struct {
	AllowedOrigins       []string
	DiscussionStartRPS   float64
	DiscussionStartBurst int
}

const (
	defaultDiscussionStartRPS   = 1
	defaultDiscussionStartBurst = 3
)

type Handler struct {
	accounts   AccountUseCase
	planning   PlanningUseCase
	discussion DiscussionUseCase
	tokens     TokenValidator
	metrics    Metrics
	limiter    *householdLimiter
	router     chi.Router
	adapter    *httpadapter.HandlerAdapter
}

func NewHandler(deps Deps, opts Options) (*Handler, error) {
	if deps.Accounts == nil {
		return nil, errors.New("handler: account use case must not be nil")
	}
	if deps.Planning == nil {
		return nil, errors.New("handler: planning use case must not be nil")
	}
	if deps.Discussion == nil {
		return nil, errors.New("handler: discussion use case must not be nil")
	}
	if deps.Tokens == nil {
		return nil, errors.New("handler: token validator must not be nil")
	}
	if opts.DiscussionStartRPS <= 0 {
		opts.DiscussionStartRPS = defaultDiscussionStartRPS
	}
	if opts.DiscussionStartBurst <= 0 {
		opts.DiscussionStartBurst = defaultDiscussionStartBurst
	}

	h := &Handler{
		accounts:   deps.Accounts,
		planning:   deps.Planning,
		discussion: deps.Discussion,
		tokens:     deps.Tokens,
		metrics:    deps.Metrics,
		limiter:    newHouseholdLimiter(opts.DiscussionStartRPS, opts.DiscussionStartBurst),
	}
	h.router = h.routes(opts.AllowedOrigins)
	h.adapter = httpadapter.New(h.router)
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) routes(allowedOrigins []string) chi.Router {
	r := chi.NewRouter()
	r.Use(correlationID)
	r.Use(requestLog)
	if h.metrics != nil {
		r.Use(h.metrics.Instrument)
	}
	r.Use(cors(allowedOrigins))

	r.Get("/health", h.health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", h.register)
		r.Post("/auth/login", h.login)

		r.Group(func(r chi.Router) {
			r.Use(h.authenticate)

			r.Get("/auth/me", h.me)

			r.Post("/planning/start", h.startPlanning)
			r.Get("/planning/sampler", h.sampler)
			r.Post("/planning/selection", h.recordSelection)
			r.Get("/planning/continue", h.continuePlanning)

			r.With(h.limiter.middleware).Post("/discussion/start", h.startDiscussion)
			r.Get("/discussion/result", h.discussionResult)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeErrorCode(w, http.StatusNotFound, usecase.ErrorNotFound, "route_not_found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeErrorCode(w, http.StatusMethodNotAllowed, usecase.ErrorInvalidInput, "method_not_allowed", nil)
	})
	return r
}

func (h *Handler) observeDiscussion(operation string, outcome string) {
	if h.metrics != nil {
		h.metrics.ObserveDiscussion(operation, outcome)
	}
}
