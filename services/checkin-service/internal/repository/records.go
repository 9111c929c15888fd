package repository

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/Sakethtadimeti/checkin-app/common/models"
)

// Row shapes stored in the check-ins table. The key fields stay here so the
// domain models never carry them.
type checkInRecord struct {
	PK   string            `dynamodbav:"PK"`
	SK   string            `dynamodbav:"SK"`
	Type models.RecordType `dynamodbav:"type"`
	models.CheckIn
}

type assignmentRecord struct {
	PK   string            `dynamodbav:"PK"`
	SK   string            `dynamodbav:"SK"`
	Type models.RecordType `dynamodbav:"type"`
	models.Assignment
}

type responseRecord struct {
	PK   string            `dynamodbav:"PK"`
	SK   string            `dynamodbav:"SK"`
	Type models.RecordType `dynamodbav:"type"`
	models.Response
}

func newCheckInRecord(c *models.CheckIn) checkInRecord {
	return checkInRecord{
		PK:      models.CheckInPK(c.ID),
		SK:      models.MetaSK(),
		Type:    models.RecordCheckIn,
		CheckIn: *c,
	}
}

func newAssignmentRecord(checkInID string, a *models.Assignment) assignmentRecord {
	return assignmentRecord{
		PK:         models.CheckInPK(checkInID),
		SK:         models.AssignmentSK(a.UserID),
		Type:       models.RecordAssignment,
		Assignment: *a,
	}
}

// row is one decoded item of the check-ins table. Exactly one of the
// pointers is set, matching Type.
type row struct {
	Type       models.RecordType
	CheckInID  string
	CheckIn    *models.CheckIn
	Assignment *models.Assignment
	Response   *models.Response
}

// decodeRow reads the type discriminator first and then unmarshals the
// item into the matching record.
func decodeRow(item map[string]types.AttributeValue) (*row, error) {
	var head struct {
		PK   string            `dynamodbav:"PK"`
		Type models.RecordType `dynamodbav:"type"`
	}
	if err := attributevalue.UnmarshalMap(item, &head); err != nil {
		return nil, fmt.Errorf("failed to read row header: %w", err)
	}

	checkInID, err := models.ExtractCheckInID(head.PK)
	if err != nil {
		return nil, err
	}
	out := &row{Type: head.Type, CheckInID: checkInID}

	switch head.Type {
	case models.RecordCheckIn:
		var rec checkInRecord
		if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal check-in: %w", err)
		}
		out.CheckIn = &rec.CheckIn
	case models.RecordAssignment:
		var rec assignmentRecord
		if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal assignment: %w", err)
		}
		out.Assignment = &rec.Assignment
	case models.RecordResponse:
		var rec responseRecord
		if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal response: %w", err)
		}
		out.Response = &rec.Response
	default:
		return nil, fmt.Errorf("unknown record type %q in %s", head.Type, head.PK)
	}
	return out, nil
}

func decodeRows(items []map[string]types.AttributeValue, want models.RecordType) ([]*row, error) {
	rows := make([]*row, 0, len(items))
	for _, item := range items {
		r, err := decodeRow(item)
		if err != nil {
			return nil, err
		}
		if r.Type != want {
			continue
		}
		rows = append(rows, r)
	}
	return rows, nil
}
