package cli

import (
	"context"
	"io"
	"time"

	"google.golang.org/protobuf/proto"

	"github.com/Sakethtadimeti/checkin-app/common/clock"
	"github.com/Sakethtadimeti/checkin-app/common/database"
	"github.com/Sakethtadimeti/checkin-app/common/directory"
	commonevents "github.com/Sakethtadimeti/checkin-app/common/events"
	"github.com/Sakethtadimeti/checkin-app/common/logger"
	"github.com/Sakethtadimeti/checkin-app/common/models"
	"github.com/Sakethtadimeti/checkin-app/common/validation"
)

type EventPublisher interface {
	PublishProto(ctx context.Context, subject string, msg proto.Message) error
}

// Admin holds the dependencies shared by every admin command.
type Admin struct {
	Out           io.Writer
	Store         database.DynamoDBAPI
	UsersTable    string
	CheckInsTable string
	Capacity      database.Capacity
	WaitForTables bool
	Directory     directory.Directory
	Events        EventPublisher
	Validator     *validation.Validator
	Clock         clock.Clock
	Logger        *logger.Logger
}

func (a *Admin) Root() *Command {
	return &Command{
		Name:    "checkin-admin",
		Summary: "Operator tooling for the check-in app tables and users.",
		Subcommands: []*Command{
			a.tablesCommand(),
			a.usersCommand(),
			a.seedCommand(),
		},
	}
}

func (a *Admin) Run(ctx context.Context, args []string) error {
	return a.Root().Execute(ctx, a.Out, args)
}

// publishUserEvent is best-effort; the directory write has already happened.
func (a *Admin) publishUserEvent(ctx context.Context, subject string, user *models.User) {
	if a.Events == nil {
		return
	}

	msg, err := commonevents.Envelope(a.now(), commonevents.UserData(user))
	if err == nil {
		err = a.Events.PublishProto(ctx, subject, msg)
	}
	if err != nil {
		a.Logger.Warn("Failed to publish user event",
			"error", err,
			"subject", subject,
			"user_id", user.ID,
		)
	}
}

func (a *Admin) now() time.Time {
	if a.Clock == nil {
		return clock.Real().Now()
	}
	return a.Clock.Now()
}
