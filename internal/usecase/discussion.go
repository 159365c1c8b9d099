package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"menu-planner/internal/domain"
	"menu-planner/internal/integrations/minglers"
	"menu-planner/internal/repository"
)

const (
	defaultSubmitTimeout    = 30 * time.Second
	defaultPollTimeout      = 5 * time.Second
	defaultRecommendTimeout = 10 * time.Second
	defaultBroadcastTimeout = 2 * time.Second
	defaultBroadcastName    = "menu-planner"
)

type HouseholdReader interface {
	GetHousehold(ctx context.Context, householdKey string) (domain.Household, error)
}

type LatestSessionReader interface {
	GetLatestSession(ctx context.Context, householdKey string) (domain.Session, error)
}

type MenuResultStore interface {
	CreatePending(ctx context.Context, householdKey, sessionKey, taskID string) error
	Complete(ctx context.Context, householdKey, sessionKey string, result json.RawMessage) error
	GetMenuResult(ctx context.Context, householdKey, sessionKey string) (domain.MenuResult, error)
}

type Recommender interface {
	Recommend(ctx context.Context, ingredients []string, topK int) (json.RawMessage, error)
	MenuSampler(ctx context.Context, topK int) (json.RawMessage, error)
}

type DiscussionEngine interface {
	Discuss(ctx context.Context, req minglers.DiscussRequest) (minglers.TaskAccepted, error)
	DiscussionStatus(ctx context.Context, taskID string) (minglers.TaskStatus, error)
	Broadcast(ctx context.Context, name, message string) error
}

// DiscussionConfig tunes the discussion workflow. Zero durations fall back to
// defaults; a RecommendTopK of zero discusses the selected menus unchanged.
type DiscussionConfig struct {
	RecommendTopK    int
	RecommendTimeout time.Duration
	SubmitTimeout    time.Duration
	PollTimeout      time.Duration
	BroadcastTimeout time.Duration
	BroadcastName    string
}

type DiscussionService struct {
	households  HouseholdReader
	sessions    LatestSessionReader
	results     MenuResultStore
	recommender Recommender
	engine      DiscussionEngine
	cfg         DiscussionConfig
}

// DiscussionResult is what a caller learns about a discussion. The engine's
// task id stays internal.
type DiscussionResult struct {
	Status domain.ResultStatus
	Result json.RawMessage
}

func NewDiscussionService(h HouseholdReader, s LatestSessionReader, r MenuResultStore, rec Recommender, e DiscussionEngine, cfg DiscussionConfig) (*DiscussionService, error) {
	if h == nil {
		return nil, errors.New("usecase: household store must not be nil")
	}
	if s == nil {
		return nil, errors.New("usecase: session store must not be nil")
	}
	if r == nil {
		return nil, errors.New("usecase: menu result store must not be nil")
	}
	if e == nil {
		return nil, errors.New("usecase: discussion engine must not be nil")
	}
	if cfg.RecommendTopK < 0 {
		return nil, errors.New("usecase: recommend top-k must not be negative")
	}
	if cfg.RecommendTopK > 0 && rec == nil {
		return nil, errors.New("usecase: recommender must not be nil when recommend top-k is set")
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = defaultSubmitTimeout
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = defaultPollTimeout
	}
	if cfg.RecommendTimeout <= 0 {
		cfg.RecommendTimeout = defaultRecommendTimeout
	}
	if cfg.BroadcastTimeout <= 0 {
		cfg.BroadcastTimeout = defaultBroadcastTimeout
	}
	if strings.TrimSpace(cfg.BroadcastName) == "" {
		cfg.BroadcastName = defaultBroadcastName
	}
	return &DiscussionService{
		households:  h,
		sessions:    s,
		results:     r,
		recommender: rec,
		engine:      e,
		cfg:         cfg,
	}, nil
}

// Start submits the household's selected menus for discussion and records a
// pending result for the session.
func (s *DiscussionService) Start(ctx context.Context, id domain.Identity, sessionKey string) error {
	if id.HouseholdKey == "" {
		return newError(ErrorUnauthorized, "missing_household", nil)
	}
	sessionKey = strings.TrimSpace(sessionKey)
	if sessionKey == "" {
		return newError(ErrorInvalidInput, "missing_session_key", nil)
	}

	var (
		household domain.Household
		session   domain.Session
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		h, err := s.households.GetHousehold(gctx, id.HouseholdKey)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return newError(ErrorNotFound, "household_not_found", err)
			}
			return newError(ErrorInternal, "dynamodb_household_error", err)
		}
		household = h
		return nil
	})
	g.Go(func() error {
		latest, err := s.sessions.GetLatestSession(gctx, id.HouseholdKey)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return newError(ErrorNotFound, "session_not_found", err)
			}
			return newError(ErrorInternal, "dynamodb_session_error", err)
		}
		session = latest
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if session.SessionKey != sessionKey {
		return newError(ErrorNotFound, "session_not_found", nil)
	}

	// The conditional put in CreatePending still decides concurrent starts.
	if _, err := s.results.GetMenuResult(ctx, id.HouseholdKey, sessionKey); err == nil {
		return newError(ErrorConflict, "discussion_already_started", nil)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return newError(ErrorInternal, "dynamodb_read_error", err)
	}

	selected, count, err := selectMenus(session.MenuSelection, session.MatchedMenus)
	if err != nil {
		return newError(ErrorInternal, "session_menus_malformed", err)
	}
	if count == 0 {
		return newError(ErrorInvalidInput, "no_menus_selected", nil)
	}

	menu, err := s.discussionMenu(ctx, selected)
	if err != nil {
		return err
	}

	submitCtx, cancel := context.WithTimeout(ctx, s.cfg.SubmitTimeout)
	defer cancel()
	accepted, err := s.engine.Discuss(submitCtx, minglers.DiscussRequest{
		People:      household.People,
		Chef:        household.Chef,
		Consultants: household.Consultants,
		Menu:        menu,
	})
	if err != nil {
		return upstreamError("discussion_submit_error", err)
	}

	taskID := strings.TrimSpace(accepted.TaskID)
	if taskID == "" {
		slog.ErrorContext(ctx, "discussion engine accepted a task without a task id",
			"householdKey", id.HouseholdKey,
			"sessionKey", sessionKey,
			"engineStatus", accepted.Status,
			"engineMessage", accepted.Message,
		)
		return newError(ErrorInternal, "discussion_task_id_missing", nil)
	}

	if err := s.results.CreatePending(ctx, id.HouseholdKey, sessionKey, taskID); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return newError(ErrorConflict, "discussion_already_started", err)
		}
		return newError(ErrorInternal, "dynamodb_write_error", err)
	}

	name := household.Name
	if name == "" {
		name = id.Household
	}
	s.broadcastStarted(ctx, taskID, name)
	return nil
}

// broadcastStarted announces a new discussion. It is best effort and runs on
// its own deadline, detached from the request's cancellation.
func (s *DiscussionService) broadcastStarted(ctx context.Context, taskID, household string) {
	bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.BroadcastTimeout)
	defer cancel()
	if err := s.engine.Broadcast(bctx, s.cfg.BroadcastName, fmt.Sprintf("Menu discussion started for household %s", household)); err != nil {
		slog.WarnContext(ctx, "discussion broadcast failed", "taskId", taskID, "err", err)
	}
}

// discussionMenu returns the menu list sent to the engine: recommender
// candidates for the selected ingredients when enabled, else the selection.
func (s *DiscussionService) discussionMenu(ctx context.Context, selected json.RawMessage) (json.RawMessage, error) {
	if s.cfg.RecommendTopK == 0 {
		return selected, nil
	}
	ingredients := collectIngredients(selected)
	if len(ingredients) == 0 {
		return selected, nil
	}

	recCtx, cancel := context.WithTimeout(ctx, s.cfg.RecommendTimeout)
	defer cancel()
	raw, err := s.recommender.Recommend(recCtx, ingredients, s.cfg.RecommendTopK)
	if err != nil {
		return nil, upstreamError("recommender_error", err)
	}
	candidates, count, err := candidateMenus(raw)
	if err != nil {
		return nil, newError(ErrorUpstream, "recommender_malformed_response", err)
	}
	if count == 0 {
		return selected, nil
	}
	return candidates, nil
}

// Result returns the discussion state for a session, reconciling a pending
// row against the engine once.
func (s *DiscussionService) Result(ctx context.Context, id domain.Identity, sessionKey string) (DiscussionResult, error) {
	if id.HouseholdKey == "" {
		return DiscussionResult{}, newError(ErrorUnauthorized, "missing_household", nil)
	}
	sessionKey = strings.TrimSpace(sessionKey)
	if sessionKey == "" {
		return DiscussionResult{}, newError(ErrorInvalidInput, "missing_session_key", nil)
	}

	row, err := s.results.GetMenuResult(ctx, id.HouseholdKey, sessionKey)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return DiscussionResult{}, newError(ErrorNotFound, "discussion_not_found", err)
		}
		return DiscussionResult{}, newError(ErrorInternal, "dynamodb_read_error", err)
	}
	if row.Completed() {
		return DiscussionResult{Status: domain.ResultCompleted, Result: row.Result}, nil
	}

	pending := DiscussionResult{Status: domain.ResultPending}

	pollCtx, cancel := context.WithTimeout(ctx, s.cfg.PollTimeout)
	defer cancel()
	status, err := s.engine.DiscussionStatus(pollCtx, row.TaskID)
	if err != nil {
		if errors.Is(err, minglers.ErrTaskNotFound) {
			return pending, nil
		}
		return DiscussionResult{}, upstreamError("discussion_status_error", err)
	}

	switch {
	case status.HasResult():
		if err := s.results.Complete(ctx, id.HouseholdKey, sessionKey, status.Result); err != nil {
			return DiscussionResult{}, newError(ErrorInternal, "dynamodb_write_error", err)
		}
		return DiscussionResult{Status: domain.ResultCompleted, Result: status.Result}, nil
	case status.Status == minglers.TaskFailed:
		reason := status.Error
		if reason == "" {
			reason = "engine reported failure without detail"
		}
		return DiscussionResult{}, newError(ErrorUpstream, "discussion_task_failed", errors.New(reason))
	default:
		return pending, nil
	}
}
