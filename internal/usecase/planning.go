package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"menu-planner/internal/domain"
	"menu-planner/internal/repository"
)

const (
	defaultPlanningTopK = 15
	defaultSamplerTopK  = 7
	maxSamplerTopK      = 50
)

type SessionStore interface {
	LatestSessionReader
	StartSession(ctx context.Context, householdKey string, startIngredients []string, menus json.RawMessage) (string, error)
	RecordSelection(ctx context.Context, householdKey, sessionKey string, matchedMenus []string) error
}

type PlanningService struct {
	sessions    SessionStore
	recommender Recommender
	topK        int
}

// PlanningStart is a freshly opened planning session.
type PlanningStart struct {
	SessionKey    string
	MenuSelection json.RawMessage
}

func NewPlanningService(s SessionStore, rec Recommender, topK int) (*PlanningService, error) {
	if s == nil {
		return nil, errors.New("usecase: session store must not be nil")
	}
	if rec == nil {
		return nil, errors.New("usecase: recommender must not be nil")
	}
	if topK <= 0 {
		topK = defaultPlanningTopK
	}
	return &PlanningService{sessions: s, recommender: rec, topK: topK}, nil
}

// Start asks the recommender for menus matching the ingredients and opens a
// new session holding them. The new session becomes the household's latest.
func (s *PlanningService) Start(ctx context.Context, id domain.Identity, ingredients []string) (PlanningStart, error) {
	if id.HouseholdKey == "" {
		return PlanningStart{}, newError(ErrorUnauthorized, "missing_household", nil)
	}
	ingredients = cleanList(ingredients)
	if len(ingredients) == 0 {
		return PlanningStart{}, newError(ErrorInvalidInput, "missing_ingredients", nil)
	}

	raw, err := s.recommender.Recommend(ctx, ingredients, s.topK)
	if err != nil {
		return PlanningStart{}, upstreamError("recommender_error", err)
	}
	menus, _, err := candidateMenus(raw)
	if err != nil {
		return PlanningStart{}, newError(ErrorUpstream, "recommender_malformed_response", err)
	}

	sessionKey, err := s.sessions.StartSession(ctx, id.HouseholdKey, ingredients, menus)
	if err != nil {
		return PlanningStart{}, newError(ErrorInternal, "dynamodb_write_error", err)
	}
	return PlanningStart{SessionKey: sessionKey, MenuSelection: menus}, nil
}

// Sampler returns a random sample of dishes. A topK of zero uses the default.
func (s *PlanningService) Sampler(ctx context.Context, topK int) (json.RawMessage, error) {
	if topK == 0 {
		topK = defaultSamplerTopK
	}
	if topK < 1 || topK > maxSamplerTopK {
		return nil, newError(ErrorInvalidInput, "invalid_top_k", nil)
	}
	raw, err := s.recommender.MenuSampler(ctx, topK)
	if err != nil {
		return nil, upstreamError("recommender_error", err)
	}
	return raw, nil
}

// RecordSelection stores the menus picked in the household's latest session.
func (s *PlanningService) RecordSelection(ctx context.Context, id domain.Identity, sessionKey string, matchedMenus []string) error {
	if id.HouseholdKey == "" {
		return newError(ErrorUnauthorized, "missing_household", nil)
	}
	sessionKey = strings.TrimSpace(sessionKey)
	if sessionKey == "" {
		return newError(ErrorInvalidInput, "missing_session_key", nil)
	}
	matchedMenus = cleanList(matchedMenus)
	if len(matchedMenus) == 0 {
		return newError(ErrorInvalidInput, "no_menus_selected", nil)
	}

	latest, err := s.latest(ctx, id.HouseholdKey)
	if err != nil {
		return err
	}
	if latest.SessionKey != sessionKey {
		return newError(ErrorNotFound, "session_not_found", nil)
	}

	if err := s.sessions.RecordSelection(ctx, id.HouseholdKey, sessionKey, matchedMenus); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return newError(ErrorNotFound, "session_not_found", err)
		}
		return newError(ErrorInternal, "dynamodb_write_error", err)
	}
	return nil
}

// Continue returns the household's latest session so a client can resume it.
func (s *PlanningService) Continue(ctx context.Context, id domain.Identity) (domain.Session, error) {
	if id.HouseholdKey == "" {
		return domain.Session{}, newError(ErrorUnauthorized, "missing_household", nil)
	}
	return s.latest(ctx, id.HouseholdKey)
}

func (s *PlanningService) latest(ctx context.Context, householdKey string) (domain.Session, error) {
	session, err := s.sessions.GetLatestSession(ctx, householdKey)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Session{}, newError(ErrorNotFound, "session_not_found", err)
		}
		return domain.Session{}, newError(ErrorInternal, "dynamodb_read_error", err)
	}
	return session, nil
}

// cleanList trims entries and drops blanks and duplicates, keeping order.
func cleanList(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
