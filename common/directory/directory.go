// Package directory is the user store: account creation with role rules,
// credential checks and the lookups the check-in service uses to label
// assignments.
package directory

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/Sakethtadimeti/checkin-app/common/auth"
	"github.com/Sakethtadimeti/checkin-app/common/clock"
	"github.com/Sakethtadimeti/checkin-app/common/database"
	apperrors "github.com/Sakethtadimeti/checkin-app/common/errors"
	"github.com/Sakethtadimeti/checkin-app/common/models"
)

type Directory interface {
	CreateUser(ctx context.Context, input models.CreateUserInput) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.SafeUser, error)
	ListByManager(ctx context.Context, managerID string) ([]models.UserSummary, error)
	FindUsersByIDs(ctx context.Context, ids []string) ([]models.UserSummary, error)
	RemoveByID(ctx context.Context, id string) (*models.User, error)
	RemoveByEmail(ctx context.Context, email string) (*models.User, error)
}

type userDirectory struct {
	db         *database.DynamoDBClient
	clock      clock.Clock
	bcryptCost int
}

func NewDirectory(db *database.DynamoDBClient, clk clock.Clock, bcryptCost int) Directory {
	if clk == nil {
		clk = clock.Real()
	}
	if bcryptCost == 0 {
		bcryptCost = auth.DefaultBcryptCost
	}
	return &userDirectory{db: db, clock: clk, bcryptCost: bcryptCost}
}

// Create a user after checking role rules and email uniqueness
func (d *userDirectory) CreateUser(ctx context.Context, input models.CreateUserInput) (*models.User, error) {
	input.Email = strings.TrimSpace(input.Email)
	input.Name = strings.TrimSpace(input.Name)

	if err := d.checkRoleRules(ctx, input); err != nil {
		return nil, err
	}

	existing, err := d.GetByEmail(ctx, input.Email)
	if err != nil && !apperrors.IsNotFound(err) {
		return nil, err
	}
	if existing != nil {
		return nil, apperrors.New(apperrors.CodeAlreadyExists, fmt.Sprintf("User with email %s already exists", input.Email))
	}

	hash, err := auth.HashPassword(input.Password, d.bcryptCost)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternalServer, "failed to hash password")
	}

	now := d.clock.Now()
	user := &models.User{
		ID:           uuid.NewString(),
		Email:        input.Email,
		PasswordHash: hash,
		Name:         input.Name,
		Role:         input.Role,
		ManagerID:    input.ManagerID,
		TeamID:       input.TeamID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	item, err := attributevalue.MarshalMap(user)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeObjectMarshalError, "failed to marshal user")
	}

	_, err = d.db.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(d.db.UsersTable),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if database.IsConditionalCheckFailed(err) {
		return nil, apperrors.Wrap(err, apperrors.CodeAlreadyExists, "User already exists")
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to create user")
	}

	return user, nil
}

func (d *userDirectory) checkRoleRules(ctx context.Context, input models.CreateUserInput) error {
	switch input.Role {
	case models.RoleManager:
		if input.ManagerID != "" {
			return apperrors.New(apperrors.CodeInvalidInput, "Managers cannot have a managerId")
		}
		return nil
	case models.RoleMember:
		if input.ManagerID == "" {
			return apperrors.New(apperrors.CodeInvalidInput, "Members must have a managerId")
		}
	default:
		return apperrors.New(apperrors.CodeInvalidInput, fmt.Sprintf("Invalid role: %s. Must be 'manager' or 'member'", input.Role))
	}

	manager, err := d.GetByID(ctx, input.ManagerID)
	if apperrors.IsNotFound(err) {
		return apperrors.New(apperrors.CodeInvalidInput, fmt.Sprintf("Manager %s does not exist", input.ManagerID))
	}
	if err != nil {
		return err
	}
	if manager.Role != models.RoleManager {
		return apperrors.New(apperrors.CodeInvalidInput, fmt.Sprintf("User %s is not a manager", input.ManagerID))
	}
	return nil
}

// Fetch a user with user id
func (d *userDirectory) GetByID(ctx context.Context, id string) (*models.User, error) {
	result, err := d.db.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.db.UsersTable),
		Key:       userKey(id),
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to get user")
	}
	if result.Item == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, "user not found")
	}

	var user models.User
	if err := attributevalue.UnmarshalMap(result.Item, &user); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeObjectUnmarshalError, "failed to unmarshal user")
	}
	return &user, nil
}

// Fetch a user through the email index
func (d *userDirectory) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	items, err := database.QueryAll(ctx, d.db.Client, &dynamodb.QueryInput{
		TableName:              aws.String(d.db.UsersTable),
		IndexName:              aws.String(database.EmailIndex),
		KeyConditionExpression: aws.String("email = :email"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":email": &types.AttributeValueMemberS{Value: email},
		},
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to query user by email")
	}
	if len(items) == 0 {
		return nil, apperrors.New(apperrors.CodeNotFound, "user not found")
	}

	var user models.User
	if err := attributevalue.UnmarshalMap(items[0], &user); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeObjectUnmarshalError, "failed to unmarshal user")
	}
	return &user, nil
}

// Authenticate returns the user whose password matches. Unknown email and
// wrong password fail the same way.
func (d *userDirectory) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	invalid := apperrors.New(apperrors.CodeUnauthorized, "Invalid email or password")

	user, err := d.GetByEmail(ctx, strings.TrimSpace(email))
	if apperrors.IsNotFound(err) {
		return nil, invalid
	}
	if err != nil {
		return nil, err
	}

	ok, err := auth.CheckPassword(user.PasswordHash, password)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternalServer, "failed to verify password")
	}
	if !ok {
		return nil, invalid
	}
	return user, nil
}

func (d *userDirectory) ListUsers(ctx context.Context) ([]models.SafeUser, error) {
	items, err := database.ScanAll(ctx, d.db.Client, &dynamodb.ScanInput{
		TableName: aws.String(d.db.UsersTable),
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to scan users")
	}

	users, err := unmarshalUsers(items)
	if err != nil {
		return nil, err
	}

	safe := make([]models.SafeUser, 0, len(users))
	for i := range users {
		safe = append(safe, users[i].Safe())
	}
	return safe, nil
}

// List the members reporting to a manager
func (d *userDirectory) ListByManager(ctx context.Context, managerID string) ([]models.UserSummary, error) {
	items, err := database.QueryAll(ctx, d.db.Client, &dynamodb.QueryInput{
		TableName:              aws.String(d.db.UsersTable),
		IndexName:              aws.String(database.ManagerIndex),
		KeyConditionExpression: aws.String("managerId = :managerId"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":managerId": &types.AttributeValueMemberS{Value: managerID},
		},
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to query team members")
	}

	users, err := unmarshalUsers(items)
	if err != nil {
		return nil, err
	}
	return summaries(users), nil
}

// FindUsersByIDs batch-reads the given ids. Duplicates and empty ids are
// ignored; ids with no user are absent from the result.
func (d *userDirectory) FindUsersByIDs(ctx context.Context, ids []string) ([]models.UserSummary, error) {
	unique := uniqueIDs(ids)
	if len(unique) == 0 {
		return []models.UserSummary{}, nil
	}

	keys := make([]map[string]types.AttributeValue, 0, len(unique))
	for _, id := range unique {
		keys = append(keys, userKey(id))
	}

	items, err := database.BatchGet(ctx, d.db.Client, d.db.UsersTable, keys)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to batch get users")
	}

	users, err := unmarshalUsers(items)
	if err != nil {
		return nil, err
	}
	return summaries(users), nil
}

func (d *userDirectory) RemoveByID(ctx context.Context, id string) (*models.User, error) {
	result, err := d.db.Client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(d.db.UsersTable),
		Key:                 userKey(id),
		ConditionExpression: aws.String("attribute_exists(id)"),
		ReturnValues:        types.ReturnValueAllOld,
	})
	if database.IsConditionalCheckFailed(err) {
		return nil, apperrors.New(apperrors.CodeNotFound, "user not found")
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to remove user")
	}

	var user models.User
	if err := attributevalue.UnmarshalMap(result.Attributes, &user); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeObjectUnmarshalError, "failed to unmarshal user")
	}
	return &user, nil
}

func (d *userDirectory) RemoveByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := d.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return d.RemoveByID(ctx, user.ID)
}

func userKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	}
}

func unmarshalUsers(items []map[string]types.AttributeValue) ([]models.User, error) {
	users := make([]models.User, 0, len(items))
	if err := attributevalue.UnmarshalListOfMaps(items, &users); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeObjectUnmarshalError, "failed to unmarshal users")
	}
	return users, nil
}

func summaries(users []models.User) []models.UserSummary {
	out := make([]models.UserSummary, 0, len(users))
	for i := range users {
		out = append(out, users[i].Summary())
	}
	return out
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
