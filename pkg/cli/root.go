package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/platinummonkey/agronomy/pkg/analysis"
	"github.com/platinummonkey/agronomy/pkg/auth"
	"github.com/platinummonkey/agronomy/pkg/orgs"
)

// Users is the part of auth.Service the commands use
type Users interface {
	Register(ctx context.Context, req auth.CreateUserRequest) (*auth.User, error)
	GetUserByEmail(ctx context.Context, email string) (*auth.User, error)
}

// Env carries the services a command runs against
type Env struct {
	Users   Users
	Orgs    orgs.Service
	Migrate func(ctx context.Context) error
	Sweep   func(ctx context.Context) (analysis.SweepResult, error)

	// CleanupAudit removes expired audit events and returns how many
	CleanupAudit func(ctx context.Context) (int64, error)
}

// Loader opens an Env. The returned func releases it.
type Loader func(ctx context.Context) (*Env, func(), error)

// Command represents a CLI command
type Command struct {
	Name        string
	Description string
	Run         func(ctx context.Context, args []string) error
	Subcommands map[string]*Command
}

// Root is the agronomy-admin command
type Root struct {
	Command
	out  io.Writer
	load Loader
}

// NewRootCommand creates the root command. Output goes to out, os.Stdout
// when nil.
func NewRootCommand(load Loader, out io.Writer) *Root {
	if out == nil {
		out = os.Stdout
	}
	root := &Root{
		Command: Command{
			Name:        "agronomy-admin",
			Description: "Agronomy platform administration",
			Subcommands: make(map[string]*Command),
		},
		out:  out,
		load: load,
	}

	for _, cmd := range []*Command{
		root.newMigrateCommand(),
		root.newCreateSuperuserCommand(),
		root.newCreateOrgCommand(),
		root.newAddMemberCommand(),
		root.newListOrgsCommand(),
		root.newSweepCommand(),
		root.newAuditCleanupCommand(),
	} {
		root.Subcommands[cmd.Name] = cmd
	}
	return root
}

// Execute runs the subcommand named by args[0]
func (c *Root) Execute(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return c.usage()
	}

	switch strings.ToLower(args[0]) {
	case "-h", "--help", "help":
		return c.usage()
	}

	if subcmd, ok := c.Subcommands[args[0]]; ok {
		return subcmd.Run(ctx, args[1:])
	}

	return fmt.Errorf("unknown command: %s", args[0])
}

// usage prints the command usage
func (c *Root) usage() error {
	fmt.Fprintf(c.out, "Usage: %s <command> [args]\n\n", c.Name)
	fmt.Fprintf(c.out, "Commands:\n")

	names := make([]string, 0, len(c.Subcommands))
	for name := range c.Subcommands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(c.out, "  %-18s %s\n", name, c.Subcommands[name].Description)
	}
	return nil
}

// withEnv loads the environment around fn
func (c *Root) withEnv(ctx context.Context, fn func(env *Env) error) error {
	env, release, err := c.load(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn(env)
}
