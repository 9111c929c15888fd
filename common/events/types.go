package events

const (
	// Streams
	CheckInEventsStream = "CHECKIN_EVENTS"
	UserEventsStream    = "USER_EVENTS"

	// Events
	CheckInCreated           = "events.checkin.created"
	CheckInResponseSubmitted = "events.checkin.responseSubmitted"

	UserCreated = "events.user.created"
	UserRemoved = "events.user.removed"

	// Event Wildcards
	CheckInEventsWildcard = "events.checkin.*"
	UserEventsWildcard    = "events.user.*"
)

type StreamSpec struct {
	Name     string
	Subjects []string
}

// Streams lists every stream the services publish to.
func Streams() []StreamSpec {
	return []StreamSpec{
		{Name: CheckInEventsStream, Subjects: []string{CheckInEventsWildcard}},
		{Name: UserEventsStream, Subjects: []string{UserEventsWildcard}},
	}
}
