package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"menu-planner/internal/domain"
	"menu-planner/internal/integrations/minglers"
	"menu-planner/internal/repository"
)

type fakeHouseholds struct {
	items     map[string]domain.Household
	getErr    error
	createErr error
	created   []string
}

func newFakeHouseholds(hs ...domain.Household) *fakeHouseholds {
	f := &fakeHouseholds{items: map[string]domain.Household{}}
	for _, h := range hs {
		f.items[h.HouseholdKey] = h
	}
	return f
}

func (f *fakeHouseholds) GetHousehold(_ context.Context, householdKey string) (domain.Household, error) {
	if f.getErr != nil {
		return domain.Household{}, f.getErr
	}
	h, ok := f.items[householdKey]
	if !ok {
		return domain.Household{}, fmt.Errorf("repository: GetHousehold: %w", repository.ErrNotFound)
	}
	return h, nil
}

func (f *fakeHouseholds) CreateHouseholdIfNotExists(_ context.Context, name, householdKey string) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, householdKey)
	if _, ok := f.items[householdKey]; !ok {
		f.items[householdKey] = domain.Household{HouseholdKey: householdKey, Name: name}
	}
	return nil
}

type fakeSessions struct {
	latest    map[string]domain.Session
	getErr    error
	startErr  error
	recordErr error
	nextKey   string
}

func newFakeSessions(ss ...domain.Session) *fakeSessions {
	f := &fakeSessions{latest: map[string]domain.Session{}, nextKey: "s-new"}
	for _, s := range ss {
		f.latest[s.HouseholdKey] = s
	}
	return f
}

func (f *fakeSessions) GetLatestSession(_ context.Context, householdKey string) (domain.Session, error) {
	if f.getErr != nil {
		return domain.Session{}, f.getErr
	}
	s, ok := f.latest[householdKey]
	if !ok {
		return domain.Session{}, fmt.Errorf("repository: GetLatestSession: %w", repository.ErrNotFound)
	}
	return s, nil
}

func (f *fakeSessions) StartSession(_ context.Context, householdKey string, startIngredients []string, menus json.RawMessage) (string, error) {
	if f.startErr != nil {
		return "", f.startErr
	}
	f.latest[householdKey] = domain.Session{
		HouseholdKey:     householdKey,
		SessionKey:       f.nextKey,
		StartIngredients: startIngredients,
		MenuSelection:    menus,
	}
	return f.nextKey, nil
}

func (f *fakeSessions) RecordSelection(_ context.Context, householdKey, sessionKey string, matchedMenus []string) error {
	if f.recordErr != nil {
		return f.recordErr
	}
	s, ok := f.latest[householdKey]
	if !ok || s.SessionKey != sessionKey {
		return fmt.Errorf("repository: RecordSelection: %w", repository.ErrNotFound)
	}
	s.MatchedMenus = matchedMenus
	f.latest[householdKey] = s
	return nil
}

type fakeResults struct {
	mu            sync.Mutex
	rows          map[string]domain.MenuResult
	createErr     error
	completeErr   error
	getErr        error
	completeCalls int
}

func newFakeResults() *fakeResults {
	return &fakeResults{rows: map[string]domain.MenuResult{}}
}

func resultKey(householdKey, sessionKey string) string {
	return householdKey + "|" + sessionKey
}

func (f *fakeResults) CreatePending(_ context.Context, householdKey, sessionKey, taskID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	key := resultKey(householdKey, sessionKey)
	if _, ok := f.rows[key]; ok {
		return fmt.Errorf("repository: CreatePending: %w", repository.ErrConflict)
	}
	f.rows[key] = domain.MenuResult{
		HouseholdKey: householdKey,
		SessionKey:   sessionKey,
		TaskID:       taskID,
		Status:       domain.ResultPending,
	}
	return nil
}

func (f *fakeResults) Complete(_ context.Context, householdKey, sessionKey string, result json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completeCalls++
	if f.completeErr != nil {
		return f.completeErr
	}
	key := resultKey(householdKey, sessionKey)
	row := f.rows[key]
	row.HouseholdKey = householdKey
	row.SessionKey = sessionKey
	row.Status = domain.ResultCompleted
	row.Result = result
	f.rows[key] = row
	return nil
}

func (f *fakeResults) GetMenuResult(_ context.Context, householdKey, sessionKey string) (domain.MenuResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return domain.MenuResult{}, f.getErr
	}
	row, ok := f.rows[resultKey(householdKey, sessionKey)]
	if !ok {
		return domain.MenuResult{}, fmt.Errorf("repository: GetMenuResult: %w", repository.ErrNotFound)
	}
	return row, nil
}

type fakeRecommender struct {
	out            json.RawMessage
	err            error
	samplerOut     json.RawMessage
	samplerErr     error
	calls          int
	gotIngredients []string
	gotTopK        int
	gotDeadline    time.Time
}

func (f *fakeRecommender) Recommend(ctx context.Context, ingredients []string, topK int) (json.RawMessage, error) {
	f.calls++
	f.gotDeadline, _ = ctx.Deadline()
	f.gotIngredients = ingredients
	f.gotTopK = topK
	return f.out, f.err
}

func (f *fakeRecommender) MenuSampler(_ context.Context, topK int) (json.RawMessage, error) {
	f.gotTopK = topK
	return f.samplerOut, f.samplerErr
}

type fakeEngine struct {
	accepted       minglers.TaskAccepted
	discussErr     error
	discussCalls   int
	gotReq         minglers.DiscussRequest
	submitDeadline bool

	status      minglers.TaskStatus
	statusErr   error
	statusCalls int
	gotTaskID   string

	broadcastErr      error
	broadcasts        []string
	broadcastDeadline bool
	broadcastCtxErr   error
}

func (f *fakeEngine) Discuss(ctx context.Context, req minglers.DiscussRequest) (minglers.TaskAccepted, error) {
	f.discussCalls++
	f.gotReq = req
	_, f.submitDeadline = ctx.Deadline()
	return f.accepted, f.discussErr
}

func (f *fakeEngine) DiscussionStatus(_ context.Context, taskID string) (minglers.TaskStatus, error) {
	f.statusCalls++
	f.gotTaskID = taskID
	return f.status, f.statusErr
}

func (f *fakeEngine) Broadcast(ctx context.Context, name, message string) error {
	_, f.broadcastDeadline = ctx.Deadline()
	f.broadcastCtxErr = ctx.Err()
	f.broadcasts = append(f.broadcasts, name+": "+message)
	return f.broadcastErr
}

type fakeTokens struct {
	token string
	err   error
	got   domain.Identity
}

func (f *fakeTokens) Issue(_ context.Context, id domain.Identity) (string, error) {
	f.got = id
	return f.token, f.err
}
