package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"
)

// Command is a node in the admin command tree. Leaf commands set Run;
// group commands set Subcommands.
type Command struct {
	Name        string
	Summary     string
	Usage       string
	Flags       func() *pflag.FlagSet
	Subcommands []*Command
	Run         func(ctx context.Context, args []string) error

	parent *Command
}

var ErrUsage = errors.New("invalid usage")

func (c *Command) Execute(ctx context.Context, out io.Writer, args []string) error {
	if len(args) > 0 && isHelpFlag(args[0]) {
		c.PrintHelp(out)
		return nil
	}

	if len(c.Subcommands) > 0 {
		if len(args) == 0 || strings.HasPrefix(args[0], "-") {
			c.PrintHelp(out)
			return fmt.Errorf("%w: %s requires a subcommand", ErrUsage, c.fullName())
		}
		for _, sub := range c.Subcommands {
			if sub.Name == args[0] {
				sub.parent = c
				return sub.Execute(ctx, out, args[1:])
			}
		}
		return fmt.Errorf("%w: unknown command %q, run '%s --help' for usage", ErrUsage, args[0], c.fullName())
	}

	fs := pflag.NewFlagSet(c.Name, pflag.ContinueOnError)
	if c.Flags != nil {
		fs = c.Flags()
	}
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			c.PrintHelp(out)
			return nil
		}
		return fmt.Errorf("%w: %s: %v", ErrUsage, c.fullName(), err)
	}

	return c.Run(ctx, fs.Args())
}

func (c *Command) PrintHelp(out io.Writer) {
	usage := c.Usage
	if usage == "" {
		usage = c.fullName()
		if len(c.Subcommands) > 0 {
			usage += " <command>"
		}
	}
	fmt.Fprintf(out, "Usage: %s\n", usage)
	if c.Summary != "" {
		fmt.Fprintf(out, "\n%s\n", c.Summary)
	}

	if len(c.Subcommands) > 0 {
		fmt.Fprintln(out, "\nCommands:")
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		for _, sub := range c.Subcommands {
			fmt.Fprintf(tw, "  %s\t%s\n", sub.Name, sub.Summary)
		}
		_ = tw.Flush()
	}

	if c.Flags != nil {
		fs := c.Flags()
		if usages := fs.FlagUsages(); usages != "" {
			fmt.Fprintf(out, "\nFlags:\n%s", usages)
		}
	}
}

func (c *Command) fullName() string {
	if c.parent == nil {
		return c.Name
	}
	return c.parent.fullName() + " " + c.Name
}

func isHelpFlag(arg string) bool {
	return arg == "-h" || arg == "--help" || arg == "help"
}
