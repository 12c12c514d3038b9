package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Strob0t/TenantCMS/internal/domain"
	"github.com/Strob0t/TenantCMS/internal/domain/tenant"
	"github.com/Strob0t/TenantCMS/internal/domain/user"
	"github.com/Strob0t/TenantCMS/internal/service"
)

// withAdminApp loads the config and a store-only app for an admin command.
func withAdminApp(ctx context.Context, configPath string, fn func(a *app) error) error {
	cfg, logCloser, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	a, err := newApp(ctx, cfg, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func tenantCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenants",
	}

	var (
		req        tenant.CreateRequest
		publicRead bool
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a tenant and seed its template",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("public") {
				req.AllowPublicRead = &publicRead
			}
			return withAdminApp(cmd.Context(), *configPath, func(a *app) error {
				t, err := a.tenants.Create(cmd.Context(), systemPrincipal(), &req)
				if err != nil {
					return fmt.Errorf("create tenant: %w", err)
				}
				cmd.Printf("Tenant created: %s (id=%s)\n", t.Slug, t.ID)
				return nil
			})
		},
	}
	create.Flags().StringVar(&req.Name, "name", "", "tenant display name (required)")
	create.Flags().StringVar(&req.Slug, "slug", "", "tenant slug (required)")
	create.Flags().StringVar(&req.Domain, "domain", "", "public domain")
	create.Flags().StringVar(&req.DefaultLocale, "locale", "", "default locale")
	create.Flags().StringVar(&req.Template, "template", "", "seed template applied after creation")
	create.Flags().BoolVar(&publicRead, "public", true, "allow anonymous reads of published content")
	_ = create.MarkFlagRequired("name")
	_ = create.MarkFlagRequired("slug")
	cmd.AddCommand(create)

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List tenants",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withAdminApp(cmd.Context(), *configPath, func(a *app) error {
				list, err := a.tenants.Find(cmd.Context(), systemPrincipal(), service.FindParams{Limit: service.MaxLimit, Sort: "slug"})
				if err != nil {
					return fmt.Errorf("list tenants: %w", err)
				}
				if len(list.Docs) == 0 {
					cmd.Println("No tenants found.")
					return nil
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				_, _ = fmt.Fprintln(w, "ID\tSLUG\tNAME\tPUBLIC")
				for i := range list.Docs {
					t := &list.Docs[i]
					_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", t.ID, t.Slug, t.Name, t.AllowPublicRead)
				}
				return w.Flush()
			})
		},
	})
	return cmd
}

func userCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage admin users",
	}

	var (
		email, name, password string
		superAdmin            bool
		adminOf, viewerOf     []string
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an admin user",
		Example: `  tenantcms user create --email root@example.com --name Root --super-admin
  tenantcms user create --email ed@example.com --name Ed --admin-of acme --viewer-of globex`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !superAdmin && len(adminOf) == 0 && len(viewerOf) == 0 {
				return errors.New("a user needs --super-admin or at least one tenant membership")
			}
			pass := password
			if pass == "" {
				var err error
				if pass, err = promptNewPassword(); err != nil {
					return err
				}
			}

			return withAdminApp(cmd.Context(), *configPath, func(a *app) error {
				ctx := cmd.Context()
				req := &user.CreateRequest{Email: email, Name: name, Password: pass}
				if superAdmin {
					req.Roles = []user.Role{user.RoleSuperAdmin}
				}
				memberships, err := resolveMemberships(ctx, a, adminOf, viewerOf)
				if err != nil {
					return err
				}
				req.Tenants = memberships

				u, err := a.auth.Register(ctx, req)
				if err != nil {
					return fmt.Errorf("create user: %w", err)
				}
				cmd.Printf("User created: %s (id=%s)\n", u.Email, u.ID)
				return nil
			})
		},
	}
	create.Flags().StringVar(&email, "email", "", "user email address (required)")
	create.Flags().StringVar(&name, "name", "", "user display name (required)")
	create.Flags().StringVar(&password, "password", "", "password (prompted if not provided)")
	create.Flags().BoolVar(&superAdmin, "super-admin", false, "grant the global super-admin role")
	create.Flags().StringSliceVar(&adminOf, "admin-of", nil, "tenant slugs the user administers")
	create.Flags().StringSliceVar(&viewerOf, "viewer-of", nil, "tenant slugs the user can view")
	_ = create.MarkFlagRequired("email")
	_ = create.MarkFlagRequired("name")
	cmd.AddCommand(create)
	return cmd
}

// resolveMemberships turns tenant slugs into memberships. A slug listed under
// both flags gets both roles.
func resolveMemberships(ctx context.Context, a *app, adminOf, viewerOf []string) ([]user.Membership, error) {
	var out []user.Membership
	index := map[string]int{}
	add := func(slug string, role user.TenantRole) error {
		t, err := a.store.GetTenantBySlug(ctx, slug)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("tenant %q does not exist", slug)
			}
			return fmt.Errorf("load tenant %s: %w", slug, err)
		}
		if i, ok := index[t.ID]; ok {
			out[i].Roles = append(out[i].Roles, role)
			return nil
		}
		index[t.ID] = len(out)
		out = append(out, user.Membership{Tenant: domain.RefTo(t.ID), Roles: []user.TenantRole{role}})
		return nil
	}
	for _, slug := range adminOf {
		if err := add(slug, user.TenantRoleAdmin); err != nil {
			return nil, err
		}
	}
	for _, slug := range viewerOf {
		if err := add(slug, user.TenantRoleViewer); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func seedCmd(configPath *string) *cobra.Command {
	var slug, templateName string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Apply a seed template to an existing tenant",
		Long:  "Apply a seed template to an existing tenant. Documents already present by slug are updated in place.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withAdminApp(cmd.Context(), *configPath, func(a *app) error {
				ctx := cmd.Context()
				t, err := a.store.GetTenantBySlug(ctx, slug)
				if err != nil {
					return fmt.Errorf("load tenant %s: %w", slug, err)
				}
				report, err := a.tenants.Seed(ctx, systemPrincipal(), t.ID, templateName)
				if err != nil {
					return fmt.Errorf("seed %s: %w", slug, err)
				}
				cmd.Printf("Seeded %s with %q: %d created, %d updated, %d failed\n",
					t.Slug, report.Template, report.Created, report.Updated, report.Failed)
				for _, f := range report.Failures {
					cmd.Printf("  %s\n", f)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&slug, "tenant", "", "tenant slug (required)")
	cmd.Flags().StringVar(&templateName, "template", "", "template name (defaults to tenancy.seed_template)")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

// promptNewPassword reads and confirms a password from the terminal without
// echoing.
func promptNewPassword() (string, error) {
	pass, err := promptPassword("Password: ")
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	confirm, err := promptPassword("Confirm password: ")
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if pass != confirm {
		return "", errors.New("passwords do not match")
	}
	return pass, nil
}

func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(syscall.Stdin)) //nolint:unconvert // int conversion needed on some platforms
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
