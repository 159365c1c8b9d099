package repository

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"menu-planner/internal/domain"
)

// Persona documents every new household starts with.
var (
	//go:embed templates/people.json
	templatePeople []byte
	//go:embed templates/chef.json
	templateChef []byte
	//go:embed templates/consultants.json
	templateConsultants []byte
)

// CreateHouseholdIfNotExists seeds a household with the template personas.
// Joining an existing household leaves its personas untouched.
func (c *Client) CreateHouseholdIfNotExists(ctx context.Context, name, householdKey string) error {
	if householdKey == "" {
		return errors.New("repository: CreateHouseholdIfNotExists: household key is required")
	}

	item := itemKey(householdPK(householdKey), skHouseholdMeta)
	item["householdKey"] = &types.AttributeValueMemberS{Value: householdKey}
	item["name"] = &types.AttributeValueMemberS{Value: name}
	item["people"] = &types.AttributeValueMemberS{Value: string(templatePeople)}
	item["chef"] = &types.AttributeValueMemberS{Value: string(templateChef)}
	item["consultants"] = &types.AttributeValueMemberS{Value: string(templateConsultants)}
	item["createdAt"] = &types.AttributeValueMemberS{Value: timestamp()}

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                item,
		ConditionExpression: aws.String(condItemAbsent),
	})
	if err != nil {
		if isConditionFailed(err) {
			return nil
		}
		return fmt.Errorf("repository: CreateHouseholdIfNotExists: %w", err)
	}
	return nil
}

// GetHousehold loads a household and its persona documents.
func (c *Client) GetHousehold(ctx context.Context, householdKey string) (domain.Household, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key:       itemKey(householdPK(householdKey), skHouseholdMeta),
	})
	if err != nil {
		return domain.Household{}, fmt.Errorf("repository: GetHousehold: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.Household{}, fmt.Errorf("repository: GetHousehold: %w", ErrNotFound)
	}

	h, err := itemToHousehold(out.Item)
	if err != nil {
		return domain.Household{}, fmt.Errorf("repository: GetHousehold decode: %w", err)
	}
	return h, nil
}

func itemToHousehold(item map[string]types.AttributeValue) (domain.Household, error) {
	householdKey, err := strAttr(item, "householdKey")
	if err != nil {
		return domain.Household{}, err
	}
	name, _ := optStrAttr(item, "name")

	docs := make(map[string]json.RawMessage, 3)
	for _, key := range []string{"people", "chef", "consultants"} {
		raw, err := strAttr(item, key)
		if err != nil {
			return domain.Household{}, err
		}
		if !json.Valid([]byte(raw)) {
			return domain.Household{}, fmt.Errorf("repository: attribute %q is not valid JSON", key)
		}
		docs[key] = json.RawMessage(raw)
	}

	return domain.Household{
		HouseholdKey: householdKey,
		Name:         name,
		People:       docs["people"],
		Chef:         docs["chef"],
		Consultants:  docs["consultants"],
	}, nil
}
