package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"

	apperrors "github.com/Sakethtadimeti/checkin-app/common/errors"
	commonevents "github.com/Sakethtadimeti/checkin-app/common/events"
	"github.com/Sakethtadimeti/checkin-app/common/models"
	"github.com/Sakethtadimeti/checkin-app/common/validation"
)

type addUserFlags struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	ManagerID string `json:"managerId,omitempty"`
	TeamID    string `json:"teamId,omitempty"`
}

func (a *Admin) usersCommand() *Command {
	var (
		add    addUserFlags
		byID   string
		byMail string
	)

	return &Command{
		Name:    "users",
		Summary: "Manage users in the directory",
		Subcommands: []*Command{
			{
				Name:    "add",
				Summary: "Create a user",
				Usage:   "checkin-admin users add --email <email> --password <password> --name <name> --role manager|member [--manager-id <id>] [--team-id <team>]",
				Flags: func() *pflag.FlagSet {
					fs := pflag.NewFlagSet("add", pflag.ContinueOnError)
					fs.StringVar(&add.Email, "email", "", "email address")
					fs.StringVar(&add.Password, "password", "", "plain-text password, hashed before storage")
					fs.StringVar(&add.Name, "name", "", "display name")
					fs.StringVar(&add.Role, "role", "", "manager or member")
					fs.StringVar(&add.ManagerID, "manager-id", "", "manager user id (members only)")
					fs.StringVar(&add.TeamID, "team-id", "", "team identifier")
					return fs
				},
				Run: func(ctx context.Context, _ []string) error {
					return a.addUser(ctx, add)
				},
			},
			{
				Name:    "remove",
				Summary: "Delete a user by id or email",
				Usage:   "checkin-admin users remove (--id <id> | --email <email>)",
				Flags: func() *pflag.FlagSet {
					fs := pflag.NewFlagSet("remove", pflag.ContinueOnError)
					fs.StringVar(&byID, "id", "", "user id")
					fs.StringVar(&byMail, "email", "", "user email")
					return fs
				},
				Run: func(ctx context.Context, _ []string) error {
					return a.removeUser(ctx, byID, byMail)
				},
			},
			{
				Name:    "list",
				Summary: "List every user",
				Run:     a.listUsers,
			},
		},
	}
}

func (a *Admin) addUser(ctx context.Context, in addUserFlags) error {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	in.ManagerID = strings.TrimSpace(in.ManagerID)

	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	if err := a.Validator.Validate(ctx, validation.SchemaCreateUser, body); err != nil {
		return describe(err)
	}

	user, err := a.Directory.CreateUser(ctx, models.CreateUserInput{
		Email:     in.Email,
		Password:  in.Password,
		Name:      in.Name,
		Role:      models.Role(in.Role),
		ManagerID: in.ManagerID,
		TeamID:    in.TeamID,
	})
	if err != nil {
		return describe(err)
	}

	a.publishUserEvent(ctx, commonevents.UserCreated, user)
	fmt.Fprintf(a.Out, "Created %s %s <%s> id=%s\n", user.Role, user.Name, user.Email, user.ID)
	return nil
}

func (a *Admin) removeUser(ctx context.Context, id, email string) error {
	if (id == "") == (email == "") {
		return fmt.Errorf("%w: exactly one of --id or --email is required", ErrUsage)
	}

	var (
		user *models.User
		err  error
	)
	if id != "" {
		user, err = a.Directory.RemoveByID(ctx, id)
	} else {
		user, err = a.Directory.RemoveByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	}
	if err != nil {
		return describe(err)
	}

	a.publishUserEvent(ctx, commonevents.UserRemoved, user)
	fmt.Fprintf(a.Out, "Removed %s <%s> id=%s\n", user.Name, user.Email, user.ID)
	return nil
}

func (a *Admin) listUsers(ctx context.Context, _ []string) error {
	users, err := a.Directory.ListUsers(ctx)
	if err != nil {
		return describe(err)
	}
	if len(users) == 0 {
		fmt.Fprintln(a.Out, "No users found")
		return nil
	}

	tw := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tROLE\tMANAGER\tTEAM")
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", u.ID, u.Name, u.Email, u.Role, orDash(u.ManagerID), orDash(u.TeamID))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "%d user(s)\n", len(users))
	return nil
}

// describe flattens validation details into the error text for the terminal.
func describe(err error) error {
	appErr, ok := apperrors.As(err)
	if !ok || len(appErr.Details) == 0 {
		return err
	}

	parts := make([]string, len(appErr.Details))
	for i, d := range appErr.Details {
		parts[i] = fmt.Sprintf("%s: %s", d.Field, d.Message)
	}
	return fmt.Errorf("%s (%s)", appErr.Message, strings.Join(parts, "; "))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
