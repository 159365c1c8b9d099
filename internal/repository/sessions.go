package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"menu-planner/internal/domain"
)

var newSessionKey = func() string {
	return uuid.NewString()
}

// StartSession stores a new planning session and makes it the household's
// latest one. Both writes happen in one transaction.
func (c *Client) StartSession(ctx context.Context, householdKey string, startIngredients []string, menus json.RawMessage) (string, error) {
	if householdKey == "" {
		return "", errors.New("repository: StartSession: household key is required")
	}
	if !json.Valid(menus) {
		return "", errors.New("repository: StartSession: menus must be valid JSON")
	}

	sessionKey := newSessionKey()
	createdAt := timestamp()

	session := itemKey(householdPK(householdKey), sessionSK(sessionKey))
	session["householdKey"] = &types.AttributeValueMemberS{Value: householdKey}
	session["sessionKey"] = &types.AttributeValueMemberS{Value: sessionKey}
	session["startIngredients"] = stringList(startIngredients)
	session["menus"] = &types.AttributeValueMemberS{Value: string(menus)}
	session["createdAt"] = &types.AttributeValueMemberS{Value: createdAt}

	latest := itemKey(householdPK(householdKey), skLatestSession)
	latest["sessionKey"] = &types.AttributeValueMemberS{Value: sessionKey}
	latest["updatedAt"] = &types.AttributeValueMemberS{Value: createdAt}

	_, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           aws.String(c.tableName),
					Item:                session,
					ConditionExpression: aws.String(condItemAbsent),
				},
			},
			{
				Put: &types.Put{
					TableName: aws.String(c.tableName),
					Item:      latest,
				},
			},
		},
	})
	if err != nil {
		if isConditionFailed(err) {
			return "", fmt.Errorf("repository: StartSession: %w", ErrConflict)
		}
		return "", fmt.Errorf("repository: StartSession: %w", err)
	}
	return sessionKey, nil
}

// GetLatestSession returns the household's most recent planning session.
func (c *Client) GetLatestSession(ctx context.Context, householdKey string) (domain.Session, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		Key:            itemKey(householdPK(householdKey), skLatestSession),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.Session{}, fmt.Errorf("repository: GetLatestSession pointer: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.Session{}, fmt.Errorf("repository: GetLatestSession: %w", ErrNotFound)
	}
	sessionKey, err := strAttr(out.Item, "sessionKey")
	if err != nil {
		return domain.Session{}, fmt.Errorf("repository: GetLatestSession pointer decode: %w", err)
	}

	out, err = c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		Key:            itemKey(householdPK(householdKey), sessionSK(sessionKey)),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.Session{}, fmt.Errorf("repository: GetLatestSession: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.Session{}, fmt.Errorf("repository: GetLatestSession session %q: %w", sessionKey, ErrNotFound)
	}

	session, err := itemToSession(out.Item)
	if err != nil {
		return domain.Session{}, fmt.Errorf("repository: GetLatestSession decode: %w", err)
	}
	return session, nil
}

// RecordSelection stores the menus the household picked for a session.
func (c *Client) RecordSelection(ctx context.Context, householdKey, sessionKey string, matchedMenus []string) error {
	if householdKey == "" || sessionKey == "" {
		return errors.New("repository: RecordSelection: household and session keys are required")
	}

	_, err := c.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(c.tableName),
		Key:                 itemKey(householdPK(householdKey), sessionSK(sessionKey)),
		UpdateExpression:    aws.String("SET matchedMenus = :matched, selectedAt = :selectedAt"),
		ConditionExpression: aws.String(condItemExists),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":matched":    stringList(matchedMenus),
			":selectedAt": &types.AttributeValueMemberS{Value: timestamp()},
		},
	})
	if err != nil {
		if isConditionFailed(err) {
			return fmt.Errorf("repository: RecordSelection: %w", ErrNotFound)
		}
		return fmt.Errorf("repository: RecordSelection: %w", err)
	}
	return nil
}

func itemToSession(item map[string]types.AttributeValue) (domain.Session, error) {
	householdKey, err := strAttr(item, "householdKey")
	if err != nil {
		return domain.Session{}, err
	}
	sessionKey, err := strAttr(item, "sessionKey")
	if err != nil {
		return domain.Session{}, err
	}
	menus, err := strAttr(item, "menus")
	if err != nil {
		return domain.Session{}, err
	}
	ingredients, err := listAttr(item, "startIngredients")
	if err != nil {
		return domain.Session{}, err
	}
	matched, err := listAttr(item, "matchedMenus")
	if err != nil {
		return domain.Session{}, err
	}
	createdAt, _ := optStrAttr(item, "createdAt")

	return domain.Session{
		HouseholdKey:     householdKey,
		SessionKey:       sessionKey,
		StartIngredients: ingredients,
		MenuSelection:    json.RawMessage(menus),
		MatchedMenus:     matched,
		CreatedAt:        createdAt,
	}, nil
}
