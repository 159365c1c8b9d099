package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	pkPrefixUser      = "USER#"
	pkPrefixHousehold = "HOUSEHOLD#"
	skProfile         = "PROFILE"
	skHouseholdMeta   = "META"
	skPrefixSession   = "SESSION#"
	skLatestSession   = "SESSION#LATEST"
	skPrefixResult    = "RESULT#"

	condItemAbsent = "attribute_not_exists(PK) AND attribute_not_exists(SK)"
	condItemExists = "attribute_exists(PK)"
)

var (
	// ErrNotFound is returned when the requested item does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict is returned when an insert-only write finds an existing item.
	ErrConflict = errors.New("repository: conflict")
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Client wraps the single DynamoDB table holding users, households, planning
// sessions and menu results.
type Client struct {
	api       dynamodbAPI
	tableName string
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName}, nil
}

func userPK(username string) string {
	return pkPrefixUser + username
}

func householdPK(householdKey string) string {
	return pkPrefixHousehold + householdKey
}

func sessionSK(sessionKey string) string {
	return skPrefixSession + sessionKey
}

func resultSK(sessionKey string) string {
	return skPrefixResult + sessionKey
}

func itemKey(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

// now is swapped in tests for deterministic timestamps.
var now = func() time.Time {
	return time.Now().UTC()
}

func timestamp() string {
	return now().Format(time.RFC3339)
}

// isConditionFailed reports whether err is a failed condition expression,
// either from a single write or from any item of a transaction.
func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return true
	}
	var canceled *types.TransactionCanceledException
	if errors.As(err, &canceled) {
		for _, reason := range canceled.CancellationReasons {
			if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
				return true
			}
		}
	}
	return false
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

// optStrAttr returns "" when the attribute is absent.
func optStrAttr(item map[string]types.AttributeValue, key string) (string, error) {
	if _, ok := item[key]; !ok {
		return "", nil
	}
	return strAttr(item, key)
}

func listAttr(item map[string]types.AttributeValue, key string) ([]string, error) {
	v, ok := item[key]
	if !ok {
		return nil, nil
	}
	l, ok := v.(*types.AttributeValueMemberL)
	if !ok {
		return nil, fmt.Errorf("repository: attribute %q is not a list", key)
	}
	out := make([]string, 0, len(l.Value))
	for i, entry := range l.Value {
		s, ok := entry.(*types.AttributeValueMemberS)
		if !ok {
			return nil, fmt.Errorf("repository: attribute %q[%d] is not a string", key, i)
		}
		out = append(out, s.Value)
	}
	return out, nil
}

func stringList(values []string) *types.AttributeValueMemberL {
	l := make([]types.AttributeValue, 0, len(values))
	for _, v := range values {
		l = append(l, &types.AttributeValueMemberS{Value: v})
	}
	return &types.AttributeValueMemberL{Value: l}
}
