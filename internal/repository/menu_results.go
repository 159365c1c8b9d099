package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"menu-planner/internal/domain"
)

// CreatePending records a submitted discussion task. Only one result may exist
// per (household, session); a second call returns ErrConflict and leaves the
// stored task id untouched.
func (c *Client) CreatePending(ctx context.Context, householdKey, sessionKey, taskID string) error {
	if householdKey == "" || sessionKey == "" {
		return errors.New("repository: CreatePending: household and session keys are required")
	}
	if strings.TrimSpace(taskID) == "" {
		return errors.New("repository: CreatePending: task id is required")
	}

	item := itemKey(householdPK(householdKey), resultSK(sessionKey))
	item["householdKey"] = &types.AttributeValueMemberS{Value: householdKey}
	item["sessionKey"] = &types.AttributeValueMemberS{Value: sessionKey}
	item["taskId"] = &types.AttributeValueMemberS{Value: taskID}
	item["status"] = &types.AttributeValueMemberS{Value: string(domain.ResultPending)}
	item["createdAt"] = &types.AttributeValueMemberS{Value: timestamp()}

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                item,
		ConditionExpression: aws.String(condItemAbsent),
	})
	if err != nil {
		if isConditionFailed(err) {
			return fmt.Errorf("repository: CreatePending: %w", ErrConflict)
		}
		return fmt.Errorf("repository: CreatePending: %w", err)
	}
	return nil
}

// Complete stores the discussion outcome and flips the status to completed.
// The write is unconditional so concurrent pollers may all apply it. The
// first completion time is kept.
func (c *Client) Complete(ctx context.Context, householdKey, sessionKey string, result json.RawMessage) error {
	if householdKey == "" || sessionKey == "" {
		return errors.New("repository: Complete: household and session keys are required")
	}
	if len(result) == 0 {
		return errors.New("repository: Complete: result is required")
	}

	_, err := c.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(c.tableName),
		Key:              itemKey(householdPK(householdKey), resultSK(sessionKey)),
		UpdateExpression: aws.String("SET #status = :status, #result = :result, completedAt = if_not_exists(completedAt, :completedAt), householdKey = :hk, sessionKey = :sk"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
			"#result": "result",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status":      &types.AttributeValueMemberS{Value: string(domain.ResultCompleted)},
			":result":      &types.AttributeValueMemberS{Value: string(result)},
			":completedAt": &types.AttributeValueMemberS{Value: timestamp()},
			":hk":          &types.AttributeValueMemberS{Value: householdKey},
			":sk":          &types.AttributeValueMemberS{Value: sessionKey},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: Complete: %w", err)
	}
	return nil
}

// GetMenuResult loads the discussion outcome for a session.
func (c *Client) GetMenuResult(ctx context.Context, householdKey, sessionKey string) (domain.MenuResult, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		Key:            itemKey(householdPK(householdKey), resultSK(sessionKey)),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.MenuResult{}, fmt.Errorf("repository: GetMenuResult: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.MenuResult{}, fmt.Errorf("repository: GetMenuResult: %w", ErrNotFound)
	}

	res, err := itemToMenuResult(out.Item)
	if err != nil {
		return domain.MenuResult{}, fmt.Errorf("repository: GetMenuResult decode: %w", err)
	}
	res.HouseholdKey = householdKey
	res.SessionKey = sessionKey
	return res, nil
}

func itemToMenuResult(item map[string]types.AttributeValue) (domain.MenuResult, error) {
	status, err := strAttr(item, "status")
	if err != nil {
		return domain.MenuResult{}, err
	}
	taskID, err := optStrAttr(item, "taskId")
	if err != nil {
		return domain.MenuResult{}, err
	}
	createdAt, _ := optStrAttr(item, "createdAt")
	completedAt, _ := optStrAttr(item, "completedAt")

	res := domain.MenuResult{
		TaskID:      taskID,
		Status:      domain.ResultStatus(status),
		CreatedAt:   createdAt,
		CompletedAt: completedAt,
	}
	switch res.Status {
	case domain.ResultPending:
	case domain.ResultCompleted:
		raw, err := strAttr(item, "result")
		if err != nil {
			return domain.MenuResult{}, err
		}
		res.Result = json.RawMessage(raw)
	default:
		return domain.MenuResult{}, fmt.Errorf("repository: unknown result status %q", status)
	}
	return res, nil
}
