package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/spf13/pflag"

	"github.com/Sakethtadimeti/checkin-app/common/database"
)

func (a *Admin) tablesCommand() *Command {
	var confirm bool

	return &Command{
		Name:    "tables",
		Summary: "Create, drop and inspect the DynamoDB tables",
		Subcommands: []*Command{
			{
				Name:    "setup",
				Summary: "Create missing tables (all, or the named one)",
				Usage:   "checkin-admin tables setup [table]",
				Run:     a.setupTables,
			},
			{
				Name:    "drop",
				Summary: "Delete tables and all their data",
				Usage:   "checkin-admin tables drop --yes [table]",
				Flags: func() *pflag.FlagSet {
					fs := pflag.NewFlagSet("drop", pflag.ContinueOnError)
					fs.BoolVar(&confirm, "yes", false, "confirm permanent deletion")
					return fs
				},
				Run: func(ctx context.Context, args []string) error {
					if !confirm {
						return fmt.Errorf("%w: refusing to drop tables without --yes", ErrUsage)
					}
					return a.dropTables(ctx, args)
				},
			},
			{
				Name:    "verify",
				Summary: "Check that every table and index exists",
				Run:     a.verifyTables,
			},
			{
				Name:    "list",
				Summary: "List tables in the account",
				Run:     a.listTables,
			},
		},
	}
}

func (a *Admin) definitions(args []string) ([]*dynamodb.CreateTableInput, error) {
	defs := database.TableDefinitions(a.UsersTable, a.CheckInsTable, a.Capacity)
	if len(args) == 0 {
		return defs, nil
	}

	for _, def := range defs {
		if aws.ToString(def.TableName) == args[0] {
			return []*dynamodb.CreateTableInput{def}, nil
		}
	}
	return nil, fmt.Errorf("%w: unknown table %q, available: %s, %s", ErrUsage, args[0], a.UsersTable, a.CheckInsTable)
}

func (a *Admin) setupTables(ctx context.Context, args []string) error {
	defs, err := a.definitions(args)
	if err != nil {
		return err
	}

	created, err := database.EnsureTables(ctx, a.Store, defs, a.WaitForTables)
	for _, name := range created {
		fmt.Fprintf(a.Out, "Created table %s\n", name)
	}
	if err != nil {
		return err
	}

	if len(created) < len(defs) {
		fmt.Fprintf(a.Out, "%d table(s) already existed\n", len(defs)-len(created))
	}
	return nil
}

func (a *Admin) dropTables(ctx context.Context, args []string) error {
	defs, err := a.definitions(args)
	if err != nil {
		return err
	}

	names := make([]string, len(defs))
	for i, def := range defs {
		names[i] = aws.ToString(def.TableName)
	}

	dropped, err := database.DropTables(ctx, a.Store, names...)
	for _, name := range dropped {
		fmt.Fprintf(a.Out, "Dropped table %s\n", name)
	}
	if err != nil {
		return err
	}

	a.Logger.Warn("Tables dropped", "tables", dropped)
	return nil
}

func (a *Admin) verifyTables(ctx context.Context, _ []string) error {
	statuses, err := database.DescribeTables(ctx, a.Store, a.UsersTable, a.CheckInsTable)
	if err != nil {
		return err
	}

	var missing []string
	for _, st := range statuses {
		if !st.Exists {
			missing = append(missing, st.Name)
			fmt.Fprintf(a.Out, "%s: missing\n", st.Name)
			continue
		}
		fmt.Fprintf(a.Out, "%s: %s, %d items, indexes [%s]\n", st.Name, st.Status, st.ItemCount, strings.Join(st.Indexes, ", "))
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing tables: %s", strings.Join(missing, ", "))
	}
	fmt.Fprintln(a.Out, "All tables are valid")
	return nil
}

func (a *Admin) listTables(ctx context.Context, _ []string) error {
	names, err := database.ListTables(ctx, a.Store)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Fprintln(a.Out, "No tables found")
		return nil
	}
	for _, name := range names {
		fmt.Fprintln(a.Out, name)
	}
	return nil
}
