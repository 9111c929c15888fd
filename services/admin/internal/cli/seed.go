package cli

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	apperrors "github.com/Sakethtadimeti/checkin-app/common/errors"
	commonevents "github.com/Sakethtadimeti/checkin-app/common/events"
	"github.com/Sakethtadimeti/checkin-app/common/models"
)

const defaultSeedPassword = "password123"

type seedPerson struct {
	Name  string
	Email string
}

type seedTeam struct {
	TeamID  string
	Manager seedPerson
	Members []seedPerson
}

var seedTeams = []seedTeam{
	{
		TeamID:  "engineering-team",
		Manager: seedPerson{"Sarah Johnson", "sarah.johnson@company.com"},
		Members: []seedPerson{
			{"Alex Rodriguez", "alex.rodriguez@company.com"},
			{"Emma Wilson", "emma.wilson@company.com"},
			{"David Kim", "david.kim@company.com"},
			{"Lisa Patel", "lisa.patel@company.com"},
			{"James Anderson", "james.anderson@company.com"},
		},
	},
	{
		TeamID:  "product-team",
		Manager: seedPerson{"Michael Chen", "michael.chen@company.com"},
		Members: []seedPerson{
			{"Sophia Garcia", "sophia.garcia@company.com"},
			{"Ryan Thompson", "ryan.thompson@company.com"},
			{"Olivia Martinez", "olivia.martinez@company.com"},
			{"Daniel Lee", "daniel.lee@company.com"},
			{"Ava Brown", "ava.brown@company.com"},
		},
	},
}

type seedResult struct {
	Created int
	Skipped int
}

func (a *Admin) seedCommand() *Command {
	var password string

	return &Command{
		Name:    "seed",
		Summary: "Create the demo managers and their teams",
		Usage:   "checkin-admin seed [--password <password>]",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("seed", pflag.ContinueOnError)
			fs.StringVar(&password, "password", defaultSeedPassword, "password for every seeded user")
			return fs
		},
		Run: func(ctx context.Context, _ []string) error {
			result, err := a.Seed(ctx, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.Out, "Seed complete: %d created, %d skipped\n", result.Created, result.Skipped)
			return nil
		},
	}
}

// Seed creates managers before their members. Users whose email already
// exists are skipped; an existing manager still anchors its members.
func (a *Admin) Seed(ctx context.Context, password string) (*seedResult, error) {
	result := &seedResult{}

	for _, team := range seedTeams {
		manager, err := a.ensureUser(ctx, result, models.CreateUserInput{
			Email:    team.Manager.Email,
			Password: password,
			Name:     team.Manager.Name,
			Role:     models.RoleManager,
			TeamID:   team.TeamID,
		})
		if err != nil {
			return result, err
		}

		for _, member := range team.Members {
			_, err := a.ensureUser(ctx, result, models.CreateUserInput{
				Email:     member.Email,
				Password:  password,
				Name:      member.Name,
				Role:      models.RoleMember,
				ManagerID: manager.ID,
				TeamID:    team.TeamID,
			})
			if err != nil {
				return result, err
			}
		}
	}

	a.Logger.Info("Seed finished", "created", result.Created, "skipped", result.Skipped)
	return result, nil
}

func (a *Admin) ensureUser(ctx context.Context, result *seedResult, input models.CreateUserInput) (*models.User, error) {
	existing, err := a.Directory.GetByEmail(ctx, input.Email)
	if err == nil {
		result.Skipped++
		fmt.Fprintf(a.Out, "Skipped %s, already exists\n", input.Email)
		return existing, nil
	}
	if !apperrors.IsNotFound(err) {
		return nil, err
	}

	user, err := a.Directory.CreateUser(ctx, input)
	if err != nil {
		return nil, describe(err)
	}

	result.Created++
	a.publishUserEvent(ctx, commonevents.UserCreated, user)
	fmt.Fprintf(a.Out, "Created %s %s <%s>\n", user.Role, user.Name, user.Email)
	return user, nil
}
