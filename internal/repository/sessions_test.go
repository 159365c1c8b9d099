package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"
)

func fixSessionKeys(t *testing.T, keys ...string) {
	t.Helper()
	prev := newSessionKey
	i := 0
	newSessionKey = func() string {
		k := keys[i]
		i++
		return k
	}
	t.Cleanup(func() { newSessionKey = prev })
}

func TestStartSession_HappyPath(t *testing.T) {
	fixSessionKeys(t, "s1")
	db := newFakeDynamo()
	c := mustNewClient(t, db)

	menus := json.RawMessage(`[{"name":"Soup A","ingredients":"salt, water"}]`)
	key, err := c.StartSession(context.Background(), "h1", []string{"salt", "water"}, menus)
	require.NoError(t, err)
	require.Equal(t, "s1", key)
	require.Len(t, db.lastTxInput.TransactItems, 2)
	require.Equal(t, condItemAbsent, *db.lastTxInput.TransactItems[0].Put.ConditionExpression)
	require.Nil(t, db.lastTxInput.TransactItems[1].Put.ConditionExpression)

	session, err := c.GetLatestSession(context.Background(), "h1")
	require.NoError(t, err)
	require.Equal(t, "h1", session.HouseholdKey)
	require.Equal(t, "s1", session.SessionKey)
	require.Equal(t, []string{"salt", "water"}, session.StartIngredients)
	require.JSONEq(t, string(menus), string(session.MenuSelection))
	require.Empty(t, session.MatchedMenus)
}

func TestStartSession_LatestPointerMovesForward(t *testing.T) {
	fixSessionKeys(t, "s1", "s2")
	c := mustNewClient(t, newFakeDynamo())

	_, err := c.StartSession(context.Background(), "h1", nil, json.RawMessage(`[]`))
	require.NoError(t, err)
	_, err = c.StartSession(context.Background(), "h1", nil, json.RawMessage(`[{"name":"B"}]`))
	require.NoError(t, err)

	session, err := c.GetLatestSession(context.Background(), "h1")
	require.NoError(t, err)
	require.Equal(t, "s2", session.SessionKey)
}

func TestStartSession_DuplicateKeyConflicts(t *testing.T) {
	fixSessionKeys(t, "s1", "s1")
	c := mustNewClient(t, newFakeDynamo())

	_, err := c.StartSession(context.Background(), "h1", nil, json.RawMessage(`[]`))
	require.NoError(t, err)
	_, err = c.StartSession(context.Background(), "h1", nil, json.RawMessage(`[]`))
	require.ErrorIs(t, err, ErrConflict)
}

func TestStartSession_Validation(t *testing.T) {
	c := mustNewClient(t, newFakeDynamo())
	_, err := c.StartSession(context.Background(), "", nil, json.RawMessage(`[]`))
	require.ErrorContains(t, err, "household key")
	_, err = c.StartSession(context.Background(), "h1", nil, json.RawMessage(`{broken`))
	require.ErrorContains(t, err, "valid JSON")
}

func TestStartSession_DynamoError(t *testing.T) {
	db := newFakeDynamo()
	db.txErr = errors.New("transaction canceled")
	c := mustNewClient(t, db)
	_, err := c.StartSession(context.Background(), "h1", nil, json.RawMessage(`[]`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "StartSession")
}

func TestGetLatestSession_NoSession(t *testing.T) {
	c := mustNewClient(t, newFakeDynamo())
	_, err := c.GetLatestSession(context.Background(), "h1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetLatestSession_DanglingPointer(t *testing.T) {
	db := newFakeDynamo()
	db.items["HOUSEHOLD#h1|SESSION#LATEST"] = map[string]types.AttributeValue{
		"PK":         &types.AttributeValueMemberS{Value: "HOUSEHOLD#h1"},
		"SK":         &types.AttributeValueMemberS{Value: skLatestSession},
		"sessionKey": &types.AttributeValueMemberS{Value: "gone"},
	}
	c := mustNewClient(t, db)
	_, err := c.GetLatestSession(context.Background(), "h1")
	require.ErrorIs(t, err, ErrNotFound)
	require.Contains(t, err.Error(), "gone")
}

func TestRecordSelection_HappyPath(t *testing.T) {
	fixSessionKeys(t, "s1")
	db := newFakeDynamo()
	c := mustNewClient(t, db)
	_, err := c.StartSession(context.Background(), "h1", nil, json.RawMessage(`[]`))
	require.NoError(t, err)

	require.NoError(t, c.RecordSelection(context.Background(), "h1", "s1", []string{"Soup A", "Stew B"}))
	require.Equal(t, condItemExists, *db.lastUpdateInput.ConditionExpression)

	session, err := c.GetLatestSession(context.Background(), "h1")
	require.NoError(t, err)
	require.Equal(t, []string{"Soup A", "Stew B"}, session.MatchedMenus)
}

func TestRecordSelection_UnknownSession(t *testing.T) {
	c := mustNewClient(t, newFakeDynamo())
	err := c.RecordSelection(context.Background(), "h1", "nope", []string{"Soup A"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRecordSelection_DynamoError(t *testing.T) {
	db := newFakeDynamo()
	db.updateErr = errors.New("boom")
	c := mustNewClient(t, db)
	err := c.RecordSelection(context.Background(), "h1", "s1", []string{"Soup A"})
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotFound)
}
