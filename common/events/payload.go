package events

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/Sakethtadimeti/checkin-app/common/models"
)

const (
	fieldOccurredAt = "occurredAt"
	fieldData       = "data"
)

// Event is a decoded message: when it happened and its attributes.
type Event struct {
	OccurredAt time.Time
	Data       map[string]any
}

func (e *Event) String(key string) string {
	s, _ := e.Data[key].(string)
	return s
}

// Encode wraps data in a protobuf Struct envelope stamped with occurredAt.
func Encode(occurredAt time.Time, data map[string]any) ([]byte, error) {
	msg, err := Envelope(occurredAt, data)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(msg)
}

func Envelope(occurredAt time.Time, data map[string]any) (*structpb.Struct, error) {
	ts := timestamppb.New(occurredAt)
	payload, err := structpb.NewStruct(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event data: %w", err)
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldOccurredAt: structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"seconds": structpb.NewNumberValue(float64(ts.GetSeconds())),
			"nanos":   structpb.NewNumberValue(float64(ts.GetNanos())),
		}}),
		fieldData: structpb.NewStructValue(payload),
	}}, nil
}

func Decode(raw []byte) (*Event, error) {
	var msg structpb.Struct
	if err := proto.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode event: %w", err)
	}

	occurred := msg.GetFields()[fieldOccurredAt].GetStructValue().GetFields()
	ts := &timestamppb.Timestamp{
		Seconds: int64(occurred["seconds"].GetNumberValue()),
		Nanos:   int32(occurred["nanos"].GetNumberValue()),
	}
	if err := ts.CheckValid(); err != nil {
		return nil, fmt.Errorf("invalid event timestamp: %w", err)
	}

	return &Event{
		OccurredAt: ts.AsTime(),
		Data:       msg.GetFields()[fieldData].GetStructValue().AsMap(),
	}, nil
}

func CheckInCreatedData(c *models.CheckIn, assignedUserIDs []string) map[string]any {
	assignees := make([]any, len(assignedUserIDs))
	for i, id := range assignedUserIDs {
		assignees[i] = id
	}
	return map[string]any{
		"checkInId":       c.ID,
		"title":           c.Title,
		"createdBy":       c.CreatedBy,
		"dueDate":         c.DueDate.UTC().Format(time.RFC3339),
		"questionCount":   len(c.Questions),
		"assignedUserIds": assignees,
	}
}

func ResponseSubmittedData(checkInID, userID string, answerCount int) map[string]any {
	return map[string]any{
		"checkInId":   checkInID,
		"userId":      userID,
		"answerCount": answerCount,
	}
}

func UserData(u *models.User) map[string]any {
	return map[string]any{
		"userId":    u.ID,
		"email":     u.Email,
		"name":      u.Name,
		"role":      string(u.Role),
		"managerId": u.ManagerID,
	}
}
