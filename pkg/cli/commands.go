package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/platinummonkey/agronomy/pkg/auth"
	"github.com/platinummonkey/agronomy/pkg/rbac"
)

const adminPasswordEnv = "AGRONOMY_ADMIN_PASSWORD"

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func (c *Root) newMigrateCommand() *Command {
	return &Command{
		Name:        "migrate",
		Description: "Apply pending database migrations",
		Run: func(ctx context.Context, args []string) error {
			return c.withEnv(ctx, func(env *Env) error {
				if err := env.Migrate(ctx); err != nil {
					return err
				}
				fmt.Fprintln(c.out, "Migrations applied")
				return nil
			})
		},
	}
}

func (c *Root) newCreateSuperuserCommand() *Command {
	return &Command{
		Name:        "create-superuser",
		Description: "Create a platform superuser",
		Run: func(ctx context.Context, args []string) error {
			fs := newFlagSet("create-superuser")
			email := fs.String("email", "", "Email address")
			password := fs.String("password", "", "Password (default $"+adminPasswordEnv+")")
			fullName := fs.String("name", "", "Full name")
			if err := fs.Parse(args); err != nil {
				return err
			}
			if *email == "" {
				return errors.New("--email is required")
			}
			if *password == "" {
				*password = os.Getenv(adminPasswordEnv)
			}
			if *password == "" {
				return errors.New("--password or " + adminPasswordEnv + " is required")
			}

			return c.withEnv(ctx, func(env *Env) error {
				user, err := env.Users.Register(ctx, auth.CreateUserRequest{
					Email:       *email,
					FullName:    *fullName,
					Password:    *password,
					IsSuperuser: true,
				})
				if err != nil {
					return fmt.Errorf("failed to create superuser: %w", err)
				}
				fmt.Fprintf(c.out, "Created superuser %s (%s)\n", user.Email, user.ID)
				return nil
			})
		},
	}
}

func (c *Root) newCreateOrgCommand() *Command {
	return &Command{
		Name:        "create-org",
		Description: "Create an organization with a FREE subscription",
		Run: func(ctx context.Context, args []string) error {
			fs := newFlagSet("create-org")
			name := fs.String("name", "", "Organization name")
			if err := fs.Parse(args); err != nil {
				return err
			}
			if strings.TrimSpace(*name) == "" {
				return errors.New("--name is required")
			}

			return c.withEnv(ctx, func(env *Env) error {
				org, err := env.Orgs.CreateOrganization(ctx, strings.TrimSpace(*name))
				if err != nil {
					return fmt.Errorf("failed to create organization: %w", err)
				}
				fmt.Fprintf(c.out, "Created organization %s (%s)\n", org.Name, org.ID)
				return nil
			})
		},
	}
}

func (c *Root) newAddMemberCommand() *Command {
	return &Command{
		Name:        "add-member",
		Description: "Add an existing user to an organization",
		Run: func(ctx context.Context, args []string) error {
			fs := newFlagSet("add-member")
			orgFlag := fs.String("org", "", "Organization id")
			email := fs.String("email", "", "User email")
			roleFlag := fs.String("role", string(rbac.RoleViewer), "Role")
			if err := fs.Parse(args); err != nil {
				return err
			}
			orgID, err := uuid.Parse(*orgFlag)
			if err != nil {
				return fmt.Errorf("invalid --org: %w", err)
			}
			role, err := rbac.ParseRole(strings.ToUpper(*roleFlag))
			if err != nil {
				return err
			}
			if *email == "" {
				return errors.New("--email is required")
			}

			return c.withEnv(ctx, func(env *Env) error {
				user, err := env.Users.GetUserByEmail(ctx, *email)
				if err != nil {
					return fmt.Errorf("failed to find user %s: %w", *email, err)
				}
				if _, err := env.Orgs.GetOrganization(ctx, orgID); err != nil {
					return err
				}
				if _, err := env.Orgs.AddMember(ctx, orgID, user.ID, role); err != nil {
					return fmt.Errorf("failed to add member: %w", err)
				}
				fmt.Fprintf(c.out, "Added %s to %s as %s\n", user.Email, orgID, role)
				return nil
			})
		},
	}
}

func (c *Root) newListOrgsCommand() *Command {
	return &Command{
		Name:        "list-orgs",
		Description: "List organizations",
		Run: func(ctx context.Context, args []string) error {
			return c.withEnv(ctx, func(env *Env) error {
				list, err := env.Orgs.ListOrganizations(ctx)
				if err != nil {
					return err
				}
				for _, org := range list {
					fmt.Fprintf(c.out, "%s\t%s\n", org.ID, org.Name)
				}
				return nil
			})
		},
	}
}

func (c *Root) newSweepCommand() *Command {
	return &Command{
		Name:        "sweep",
		Description: "Run one stale job sweep",
		Run: func(ctx context.Context, args []string) error {
			return c.withEnv(ctx, func(env *Env) error {
				res, err := env.Sweep(ctx)
				fmt.Fprintf(c.out, "leases returned: %d, requeued: %d, failed: %d\n",
					res.LeasesReturned, res.Requeued, res.Failed)
				return err
			})
		},
	}
}

func (c *Root) newAuditCleanupCommand() *Command {
	return &Command{
		Name:        "audit-cleanup",
		Description: "Delete audit events past the retention period",
		Run: func(ctx context.Context, args []string) error {
			return c.withEnv(ctx, func(env *Env) error {
				if env.CleanupAudit == nil {
					return fmt.Errorf("audit trail is not configured")
				}
				n, err := env.CleanupAudit(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.out, "removed %d audit events\n", n)
				return nil
			})
		},
	}
}
