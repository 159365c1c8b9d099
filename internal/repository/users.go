package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"menu-planner/internal/domain"
)

// CreateUser stores a new account. An existing username yields ErrConflict.
func (c *Client) CreateUser(ctx context.Context, user domain.User) error {
	if strings.TrimSpace(user.Username) == "" {
		return errors.New("repository: CreateUser: username is required")
	}
	if user.PasswordHash == "" || user.HouseholdKey == "" {
		return errors.New("repository: CreateUser: password hash and household key are required")
	}
	if user.CreatedAt == "" {
		user.CreatedAt = timestamp()
	}

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                userItem(user),
		ConditionExpression: aws.String(condItemAbsent),
	})
	if err != nil {
		if isConditionFailed(err) {
			return fmt.Errorf("repository: CreateUser: %w", ErrConflict)
		}
		return fmt.Errorf("repository: CreateUser: %w", err)
	}
	return nil
}

// FindUser looks an account up by username.
func (c *Client) FindUser(ctx context.Context, username string) (domain.User, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		Key:            itemKey(userPK(username), skProfile),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.User{}, fmt.Errorf("repository: FindUser: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.User{}, fmt.Errorf("repository: FindUser: %w", ErrNotFound)
	}

	user, err := itemToUser(out.Item)
	if err != nil {
		return domain.User{}, fmt.Errorf("repository: FindUser decode: %w", err)
	}
	return user, nil
}

func userItem(user domain.User) map[string]types.AttributeValue {
	item := itemKey(userPK(user.Username), skProfile)
	item["username"] = &types.AttributeValueMemberS{Value: user.Username}
	item["email"] = &types.AttributeValueMemberS{Value: user.Email}
	item["household"] = &types.AttributeValueMemberS{Value: user.Household}
	item["householdKey"] = &types.AttributeValueMemberS{Value: user.HouseholdKey}
	item["passwordHash"] = &types.AttributeValueMemberS{Value: user.PasswordHash}
	item["createdAt"] = &types.AttributeValueMemberS{Value: user.CreatedAt}
	return item
}

func itemToUser(item map[string]types.AttributeValue) (domain.User, error) {
	username, err := strAttr(item, "username")
	if err != nil {
		return domain.User{}, err
	}
	householdKey, err := strAttr(item, "householdKey")
	if err != nil {
		return domain.User{}, err
	}
	hash, err := strAttr(item, "passwordHash")
	if err != nil {
		return domain.User{}, err
	}
	email, _ := optStrAttr(item, "email")
	household, _ := optStrAttr(item, "household")
	createdAt, _ := optStrAttr(item, "createdAt")

	return domain.User{
		Username:     username,
		Email:        email,
		Household:    household,
		HouseholdKey: householdKey,
		PasswordHash: hash,
		CreatedAt:    createdAt,
	}, nil
}
