package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/Sakethtadimeti/checkin-app/common/clock"
	"github.com/Sakethtadimeti/checkin-app/common/database"
	apperrors "github.com/Sakethtadimeti/checkin-app/common/errors"
	"github.com/Sakethtadimeti/checkin-app/common/models"
	checkinerrors "github.com/Sakethtadimeti/checkin-app/services/checkin-service/internal/errors"
)

// UserLookup resolves user ids to display summaries in one batched call.
type UserLookup interface {
	FindUsersByIDs(ctx context.Context, ids []string) ([]models.UserSummary, error)
}

type CheckInRepository interface {
	CreateCheckIn(ctx context.Context, input models.CreateCheckInInput) (*models.CheckIn, error)
	GetCheckIn(ctx context.Context, checkInID string) (*models.CheckIn, error)
	GetCheckInsByManager(ctx context.Context, creatorID string) ([]*models.CheckIn, error)
	GetAssignedCheckInsForUser(ctx context.Context, userID string) ([]*models.AssignedCheckIn, error)
	IsAssigned(ctx context.Context, checkInID, userID string) (bool, error)
	GetCheckInDetails(ctx context.Context, checkInID string) (*models.CheckInDetails, error)
	SubmitResponse(ctx context.Context, checkInID, userID string, answers []models.Answer) (*models.Response, error)

	// Transactions
	GetTransactionForResponse(checkInID, userID string, answers []models.Answer, now time.Time) (types.Update, error)
	GetTransactionForCompletion(checkInID, userID string, now time.Time) (types.Update, error)
}

type checkInRepo struct {
	db              *database.DynamoDBClient
	transactionRepo database.TransactionRepository
	users           UserLookup
	clock           clock.Clock
}

func NewCheckInRepository(
	db *database.DynamoDBClient,
	transactionRepo database.TransactionRepository,
	users UserLookup,
	clk clock.Clock,
) CheckInRepository {
	if clk == nil {
		clk = clock.Real()
	}
	return &checkInRepo{
		db:              db,
		transactionRepo: transactionRepo,
		users:           users,
		clock:           clk,
	}
}

// Create a check-in and one pending assignment per assigned user
func (r *checkInRepo) CreateCheckIn(ctx context.Context, input models.CreateCheckInInput) (*models.CheckIn, error) {
	now := r.clock.Now()

	questions := make([]models.Question, 0, len(input.Questions))
	for _, text := range input.Questions {
		questions = append(questions, models.Question{ID: uuid.NewString(), TextContent: text})
	}

	checkIn := &models.CheckIn{
		ID:          uuid.NewString(),
		Title:       input.Title,
		Description: input.Description,
		Questions:   questions,
		DueDate:     input.DueDate.UTC(),
		CreatedBy:   input.CreatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	meta, err := attributevalue.MarshalMap(newCheckInRecord(checkIn))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeObjectMarshalError, "failed to marshal check-in")
	}
	items := []map[string]types.AttributeValue{meta}

	seen := make(map[string]struct{}, len(input.AssignedUserIDs))
	for _, userID := range input.AssignedUserIDs {
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}

		item, err := attributevalue.MarshalMap(newAssignmentRecord(checkIn.ID, &models.Assignment{
			UserID:     userID,
			Status:     models.StatusPending,
			AssignedAt: now,
			AssignedBy: input.CreatedBy,
		}))
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeObjectMarshalError, "failed to marshal assignment")
		}
		items = append(items, item)
	}

	if err := database.BatchWrite(ctx, r.db.Client, r.db.CheckInsTable, database.PutRequests(items)); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to create check-in")
	}

	return checkIn, nil
}

// Fetch the check-in meta row
func (r *checkInRepo) GetCheckIn(ctx context.Context, checkInID string) (*models.CheckIn, error) {
	result, err := r.db.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.db.CheckInsTable),
		Key:       rowKey(models.CheckInPK(checkInID), models.MetaSK()),
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to get check-in")
	}
	if result.Item == nil {
		return nil, checkinerrors.CheckInNotFoundError()
	}

	decoded, err := decodeRow(result.Item)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeObjectUnmarshalError, "failed to decode check-in")
	}
	if decoded.CheckIn == nil {
		return nil, checkinerrors.CheckInNotFoundError()
	}
	return decoded.CheckIn, nil
}

// List every check-in created by a manager, newest first
func (r *checkInRepo) GetCheckInsByManager(ctx context.Context, creatorID string) ([]*models.CheckIn, error) {
	items, err := database.QueryAll(ctx, r.db.Client, &dynamodb.QueryInput{
		TableName:              aws.String(r.db.CheckInsTable),
		IndexName:              aws.String(database.CreatedByIndex),
		KeyConditionExpression: aws.String("createdBy = :createdBy AND #type = :type"),
		ExpressionAttributeNames: map[string]string{
			"#type": "type",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":createdBy": &types.AttributeValueMemberS{Value: creatorID},
			":type":      &types.AttributeValueMemberS{Value: string(models.RecordCheckIn)},
		},
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to query check-ins by manager")
	}

	rows, err := decodeRows(items, models.RecordCheckIn)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeObjectUnmarshalError, "failed to decode check-ins")
	}

	checkIns := make([]*models.CheckIn, 0, len(rows))
	for _, row := range rows {
		checkIns = append(checkIns, row.CheckIn)
	}
	sort.SliceStable(checkIns, func(i, j int) bool {
		return checkIns[i].CreatedAt.After(checkIns[j].CreatedAt)
	})
	return checkIns, nil
}

// Join the user's assignments with their parent check-ins
func (r *checkInRepo) GetAssignedCheckInsForUser(ctx context.Context, userID string) ([]*models.AssignedCheckIn, error) {
	items, err := database.QueryAll(ctx, r.db.Client, &dynamodb.QueryInput{
		TableName:              aws.String(r.db.CheckInsTable),
		IndexName:              aws.String(database.UserTypeIndex),
		KeyConditionExpression: aws.String("userId = :userId AND #type = :type"),
		ExpressionAttributeNames: map[string]string{
			"#type": "type",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":userId": &types.AttributeValueMemberS{Value: userID},
			":type":   &types.AttributeValueMemberS{Value: string(models.RecordAssignment)},
		},
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to query assignments")
	}

	assignments, err := decodeRows(items, models.RecordAssignment)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeObjectUnmarshalError, "failed to decode assignments")
	}
	if len(assignments) == 0 {
		return []*models.AssignedCheckIn{}, nil
	}

	keys := make([]map[string]types.AttributeValue, 0, len(assignments))
	requested := make(map[string]struct{}, len(assignments))
	for _, a := range assignments {
		if _, ok := requested[a.CheckInID]; ok {
			continue
		}
		requested[a.CheckInID] = struct{}{}
		keys = append(keys, rowKey(models.CheckInPK(a.CheckInID), models.MetaSK()))
	}

	metaItems, err := database.BatchGet(ctx, r.db.Client, r.db.CheckInsTable, keys)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to batch get check-ins")
	}
	metas, err := decodeRows(metaItems, models.RecordCheckIn)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeObjectUnmarshalError, "failed to decode check-ins")
	}

	byID := make(map[string]*models.CheckIn, len(metas))
	for _, m := range metas {
		byID[m.CheckInID] = m.CheckIn
	}

	now := r.clock.Now()
	result := make([]*models.AssignedCheckIn, 0, len(assignments))
	for _, a := range assignments {
		checkIn, ok := byID[a.CheckInID]
		if !ok {
			continue
		}
		result = append(result, &models.AssignedCheckIn{
			CheckIn: checkIn,
			Assignment: models.AssignmentView{
				Status:        a.Assignment.Status,
				DisplayStatus: models.DisplayStatus(a.Assignment.Status, checkIn.DueDate, now),
				AssignedAt:    a.Assignment.AssignedAt,
				AssignedBy:    a.Assignment.AssignedBy,
				CompletedAt:   a.Assignment.CompletedAt,
				IsOverdue:     models.IsOverdue(a.Assignment.Status, checkIn.DueDate, now),
			},
		})
	}
	return result, nil
}

// Report whether an assignment row exists for the user
func (r *checkInRepo) IsAssigned(ctx context.Context, checkInID, userID string) (bool, error) {
	result, err := r.db.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:            aws.String(r.db.CheckInsTable),
		Key:                  rowKey(models.CheckInPK(checkInID), models.AssignmentSK(userID)),
		ProjectionExpression: aws.String("PK"),
	})
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to get assignment")
	}
	return result.Item != nil, nil
}

// Assemble a check-in with every assignment, its user and answers
func (r *checkInRepo) GetCheckInDetails(ctx context.Context, checkInID string) (*models.CheckInDetails, error) {
	checkIn, err := r.GetCheckIn(ctx, checkInID)
	if err != nil {
		return nil, err
	}

	assignmentItems, err := r.queryPartition(ctx, checkInID, models.AssignmentSKPrefix())
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to query assignments")
	}
	responseItems, err := r.queryPartition(ctx, checkInID, models.ResponseSKPrefix())
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to query responses")
	}

	assignments, err := decodeRows(assignmentItems, models.RecordAssignment)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeObjectUnmarshalError, "failed to decode assignments")
	}
	responses, err := decodeRows(responseItems, models.RecordResponse)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeObjectUnmarshalError, "failed to decode responses")
	}

	answers := make(map[string][]models.Answer, len(responses))
	for _, resp := range responses {
		answers[resp.Response.UserID] = resp.Response.Answers
	}

	userIDs := make([]string, 0, len(assignments))
	for _, a := range assignments {
		userIDs = append(userIDs, a.Assignment.UserID)
	}
	users, err := r.users.FindUsersByIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	summaries := make(map[string]models.UserSummary, len(users))
	for _, u := range users {
		summaries[u.ID] = u
	}

	now := r.clock.Now()
	details := &models.CheckInDetails{
		CheckIn:     checkIn,
		Assignments: make([]*models.AssignmentDetail, 0, len(assignments)),
	}
	for _, row := range assignments {
		a := row.Assignment

		name, email := models.UnknownUserName, models.UnknownUserEmail
		if u, ok := summaries[a.UserID]; ok {
			name, email = u.Name, u.Email
		}

		details.Assignments = append(details.Assignments, &models.AssignmentDetail{
			UserID:        a.UserID,
			UserName:      name,
			UserEmail:     email,
			Status:        a.Status,
			DisplayStatus: models.DisplayStatus(a.Status, checkIn.DueDate, now),
			AssignedAt:    a.AssignedAt,
			AssignedBy:    a.AssignedBy,
			CompletedAt:   a.CompletedAt,
			IsOverdue:     models.IsOverdue(a.Status, checkIn.DueDate, now),
			Responses:     answers[a.UserID],
		})

		switch a.Status {
		case models.StatusPending:
			details.StatusCounts.Pending++
		case models.StatusCompleted:
			details.StatusCounts.Completed++
		default:
			details.StatusCounts.Unrecognized++
		}
	}

	return details, nil
}

// SubmitResponse stores the user's answers and completes their assignment
// in one transaction. Without an assignment row nothing is written.
func (r *checkInRepo) SubmitResponse(ctx context.Context, checkInID, userID string, answers []models.Answer) (*models.Response, error) {
	now := r.clock.Now()

	responseUpdate, err := r.GetTransactionForResponse(checkInID, userID, answers, now)
	if err != nil {
		return nil, err
	}
	completionUpdate, err := r.GetTransactionForCompletion(checkInID, userID, now)
	if err != nil {
		return nil, err
	}

	transactionBuilder := database.NewTransactionBuilder()
	if err := transactionBuilder.AddUpdate(responseUpdate); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeTransactionError, "failed to build response transaction")
	}
	if err := transactionBuilder.AddUpdate(completionUpdate); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeTransactionError, "failed to build response transaction")
	}

	if err := r.transactionRepo.Execute(ctx, transactionBuilder); err != nil {
		if len(database.CancelledConditions(err)) > 0 {
			return nil, checkinerrors.NotAssignedError(err)
		}
		return nil, apperrors.Wrap(err, apperrors.CodeTransactionError, "failed to submit response")
	}

	return r.getResponse(ctx, checkInID, userID)
}

func (r *checkInRepo) GetTransactionForResponse(checkInID, userID string, answers []models.Answer, now time.Time) (types.Update, error) {
	answersAV, err := attributevalue.Marshal(answers)
	if err != nil {
		return types.Update{}, apperrors.Wrap(err, apperrors.CodeObjectMarshalError, "failed to marshal answers")
	}
	nowAV, err := attributevalue.Marshal(now)
	if err != nil {
		return types.Update{}, apperrors.Wrap(err, apperrors.CodeObjectMarshalError, "failed to marshal timestamp")
	}

	return types.Update{
		TableName:        aws.String(r.db.CheckInsTable),
		Key:              rowKey(models.CheckInPK(checkInID), models.ResponseSK(userID)),
		UpdateExpression: aws.String("SET answers = :answers, userId = :userId, #type = :type, updatedAt = :now, submittedAt = if_not_exists(submittedAt, :now)"),
		ExpressionAttributeNames: map[string]string{
			"#type": "type",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":answers": answersAV,
			":userId":  &types.AttributeValueMemberS{Value: userID},
			":type":    &types.AttributeValueMemberS{Value: string(models.RecordResponse)},
			":now":     nowAV,
		},
	}, nil
}

func (r *checkInRepo) GetTransactionForCompletion(checkInID, userID string, now time.Time) (types.Update, error) {
	nowAV, err := attributevalue.Marshal(now)
	if err != nil {
		return types.Update{}, apperrors.Wrap(err, apperrors.CodeObjectMarshalError, "failed to marshal timestamp")
	}

	return types.Update{
		TableName:           aws.String(r.db.CheckInsTable),
		Key:                 rowKey(models.CheckInPK(checkInID), models.AssignmentSK(userID)),
		UpdateExpression:    aws.String("SET #status = :completed, completedAt = :now"),
		ConditionExpression: aws.String("attribute_exists(PK)"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":completed": &types.AttributeValueMemberS{Value: string(models.StatusCompleted)},
			":now":       nowAV,
		},
	}, nil
}

func (r *checkInRepo) getResponse(ctx context.Context, checkInID, userID string) (*models.Response, error) {
	result, err := r.db.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.db.CheckInsTable),
		Key:            rowKey(models.CheckInPK(checkInID), models.ResponseSK(userID)),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to read response")
	}
	if result.Item == nil {
		return nil, apperrors.New(apperrors.CodeInternalServer, fmt.Sprintf("response for %s missing after submit", userID))
	}

	decoded, err := decodeRow(result.Item)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeObjectUnmarshalError, "failed to decode response")
	}
	if decoded.Response == nil {
		return nil, apperrors.New(apperrors.CodeObjectUnmarshalError, fmt.Sprintf("unexpected record type %q at response key", decoded.Type))
	}
	return decoded.Response, nil
}

func (r *checkInRepo) queryPartition(ctx context.Context, checkInID, skPrefix string) ([]map[string]types.AttributeValue, error) {
	return database.QueryAll(ctx, r.db.Client, &dynamodb.QueryInput{
		TableName:              aws.String(r.db.CheckInsTable),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: models.CheckInPK(checkInID)},
			":sk": &types.AttributeValueMemberS{Value: skPrefix},
		},
	})
}

func rowKey(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}
