package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"menu-planner/internal/domain"
	"menu-planner/internal/integrations/upstream"
)

func newTestPlanning(t *testing.T, sessions *fakeSessions, rec *fakeRecommender) *PlanningService {
	t.Helper()
	svc, err := NewPlanningService(sessions, rec, 0)
	require.NoError(t, err)
	return svc
}

func TestNewPlanningService_Validation(t *testing.T) {
	_, err := NewPlanningService(nil, &fakeRecommender{}, 5)
	require.Error(t, err)
	_, err = NewPlanningService(newFakeSessions(), nil, 5)
	require.Error(t, err)

	svc, err := NewPlanningService(newFakeSessions(), &fakeRecommender{}, 0)
	require.NoError(t, err)
	require.Equal(t, defaultPlanningTopK, svc.topK)
}

func TestPlanningStart_HappyPath(t *testing.T) {
	sessions := newFakeSessions()
	rec := &fakeRecommender{out: json.RawMessage(`[{"dish_name":"Fried Chicken","ingredients":["chicken","rice"]}]`)}
	svc := newTestPlanning(t, sessions, rec)

	out, err := svc.Start(context.Background(), h1, []string{" chicken", "rice", "", "chicken"})
	require.NoError(t, err)
	require.Equal(t, "s-new", out.SessionKey)
	require.JSONEq(t, string(rec.out), string(out.MenuSelection))
	require.Equal(t, []string{"chicken", "rice"}, rec.gotIngredients)
	require.Equal(t, defaultPlanningTopK, rec.gotTopK)

	stored := sessions.latest["h1"]
	require.Equal(t, []string{"chicken", "rice"}, stored.StartIngredients)
}

func TestPlanningStart_AcceptsDishesObject(t *testing.T) {
	rec := &fakeRecommender{out: json.RawMessage(`{"dishes":[{"dish_name":"A"}]}`)}
	svc := newTestPlanning(t, newFakeSessions(), rec)

	out, err := svc.Start(context.Background(), h1, []string{"salt"})
	require.NoError(t, err)
	require.JSONEq(t, `[{"dish_name":"A"}]`, string(out.MenuSelection))
}

func TestPlanningStart_Failures(t *testing.T) {
	svc := newTestPlanning(t, newFakeSessions(), &fakeRecommender{})
	_, err := svc.Start(context.Background(), h1, []string{" ", ""})
	expectError(t, err, ErrorInvalidInput, "missing_ingredients")
	_, err = svc.Start(context.Background(), domain.Identity{}, []string{"salt"})
	expectError(t, err, ErrorUnauthorized, "missing_household")

	svc = newTestPlanning(t, newFakeSessions(), &fakeRecommender{err: &upstream.ValidationError{Details: []upstream.FieldError{{Location: "body", Message: "bad"}}}})
	_, err = svc.Start(context.Background(), h1, []string{"salt"})
	usecaseErr := expectError(t, err, ErrorValidationFailed, "recommender_error")
	require.Len(t, usecaseErr.Details, 1)

	svc = newTestPlanning(t, newFakeSessions(), &fakeRecommender{out: json.RawMessage(`{"oops":1}`)})
	_, err = svc.Start(context.Background(), h1, []string{"salt"})
	expectError(t, err, ErrorUpstream, "recommender_malformed_response")

	sessions := newFakeSessions()
	sessions.startErr = errors.New("boom")
	svc = newTestPlanning(t, sessions, &fakeRecommender{out: json.RawMessage(`[]`)})
	_, err = svc.Start(context.Background(), h1, []string{"salt"})
	expectError(t, err, ErrorInternal, "dynamodb_write_error")
}

func TestSampler(t *testing.T) {
	rec := &fakeRecommender{samplerOut: json.RawMessage(`{"dishes":[]}`)}
	svc := newTestPlanning(t, newFakeSessions(), rec)

	out, err := svc.Sampler(context.Background(), 0)
	require.NoError(t, err)
	require.JSONEq(t, `{"dishes":[]}`, string(out))
	require.Equal(t, defaultSamplerTopK, rec.gotTopK)

	_, err = svc.Sampler(context.Background(), 50)
	require.NoError(t, err)
	require.Equal(t, 50, rec.gotTopK)

	_, err = svc.Sampler(context.Background(), 51)
	expectError(t, err, ErrorInvalidInput, "invalid_top_k")
	_, err = svc.Sampler(context.Background(), -1)
	expectError(t, err, ErrorInvalidInput, "invalid_top_k")

	rec.samplerErr = &upstream.HTTPStatusError{StatusCode: http.StatusServiceUnavailable}
	_, err = svc.Sampler(context.Background(), 3)
	expectError(t, err, ErrorUpstream, "recommender_error")
}

func TestRecordSelection_HappyPath(t *testing.T) {
	sessions := newFakeSessions(testSession())
	svc := newTestPlanning(t, sessions, &fakeRecommender{})

	require.NoError(t, svc.RecordSelection(context.Background(), h1, "s1", []string{"Soup A", " ", "Soup A", "Pie C"}))
	require.Equal(t, []string{"Soup A", "Pie C"}, sessions.latest["h1"].MatchedMenus)
}

func TestRecordSelection_Failures(t *testing.T) {
	svc := newTestPlanning(t, newFakeSessions(testSession()), &fakeRecommender{})

	expectError(t, svc.RecordSelection(context.Background(), h1, "s1", nil), ErrorInvalidInput, "no_menus_selected")
	expectError(t, svc.RecordSelection(context.Background(), h1, "", []string{"A"}), ErrorInvalidInput, "missing_session_key")
	expectError(t, svc.RecordSelection(context.Background(), h1, "s0", []string{"A"}), ErrorNotFound, "session_not_found")

	other := domain.Identity{Username: "bob", HouseholdKey: "h2"}
	expectError(t, svc.RecordSelection(context.Background(), other, "s1", []string{"A"}), ErrorNotFound, "session_not_found")

	sessions := newFakeSessions(testSession())
	sessions.recordErr = errors.New("boom")
	svc = newTestPlanning(t, sessions, &fakeRecommender{})
	expectError(t, svc.RecordSelection(context.Background(), h1, "s1", []string{"A"}), ErrorInternal, "dynamodb_write_error")
}

func TestContinue(t *testing.T) {
	svc := newTestPlanning(t, newFakeSessions(testSession()), &fakeRecommender{})

	session, err := svc.Continue(context.Background(), h1)
	require.NoError(t, err)
	require.Equal(t, "s1", session.SessionKey)
	require.Equal(t, []string{"Soup A", "Stew B"}, session.MatchedMenus)

	_, err = svc.Continue(context.Background(), domain.Identity{Username: "bob", HouseholdKey: "h2"})
	expectError(t, err, ErrorNotFound, "session_not_found")

	sessions := newFakeSessions()
	sessions.getErr = errors.New("boom")
	svc = newTestPlanning(t, sessions, &fakeRecommender{})
	_, err = svc.Continue(context.Background(), h1)
	expectError(t, err, ErrorInternal, "dynamodb_read_error")
}
