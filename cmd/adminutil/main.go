package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sudo-init-do/homeswift/internal/auth"
	"github.com/sudo-init-do/homeswift/internal/config"
	"github.com/sudo-init-do/homeswift/internal/model"
	"github.com/sudo-init-do/homeswift/internal/pricing"
	"github.com/sudo-init-do/homeswift/internal/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "adminutil",
		Short:         "HomeSwift operator tasks",
		Long:          `Maintenance commands that run directly against the configured store (STORE_TYPE and friends from the environment or .env).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(promoteAdminCmd(), createProviderCmd(), pricingCmd())
	return root
}

// withStore opens the configured store for the duration of fn.
func withStore(ctx context.Context, fn func(store.Store) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.StoreType == "memory" {
		return fmt.Errorf("STORE_TYPE=memory has nothing to administer")
	}
	st, err := store.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close(context.Background())
	return fn(st)
}

func promoteAdminCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "promote-admin",
		Short: "Give an existing account the admin role",
		RunE: func(cmd *cobra.Command, _ []string) error {
			email = strings.ToLower(strings.TrimSpace(email))
			return withStore(cmd.Context(), func(st store.Store) error {
				if err := st.SetRoleByEmail(cmd.Context(), email, model.RoleAdmin); err != nil {
					return fmt.Errorf("promote %s: %w", email, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "User %s promoted to admin.\n", email)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email of the user to promote")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func createProviderCmd() *cobra.Command {
	var (
		p        model.Provider
		password string
	)
	cmd := &cobra.Command{
		Use:   "create-provider",
		Short: "Add a provider to the directory, optionally with a login",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p.Email = strings.ToLower(strings.TrimSpace(p.Email))
			p.Active = true
			if p.ServiceAreas == nil {
				p.ServiceAreas = []string{}
			}
			return withStore(cmd.Context(), func(st store.Store) error {
				ctx := cmd.Context()
				if password == "" {
					if err := st.CreateProvider(ctx, &p); err != nil {
						return fmt.Errorf("create provider: %w", err)
					}
				} else {
					hashed, err := auth.HashPassword(password)
					if err != nil {
						return err
					}
					u := &model.User{Name: p.Name, Email: p.Email, Phone: p.Phone, PasswordHash: hashed}
					if err := st.CreateProviderAccount(ctx, &p, u); err != nil {
						return fmt.Errorf("create provider account: %w", err)
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Provider %d (%s) created.\n", p.ID, p.Email)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&p.Name, "name", "", "provider display name")
	f.StringVar(&p.Email, "email", "", "provider email")
	f.StringVar(&p.Phone, "phone", "", "provider phone")
	f.Float64Var(&p.Rating, "rating", 0, "initial rating (0-5)")
	f.StringSliceVar(&p.ServiceAreas, "area", nil, "service area, repeatable")
	f.StringVar(&password, "password", "", "also create a provider login with this password")
	for _, name := range []string{"name", "email", "phone"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func pricingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pricing [category]",
		Short: "Print the embedded price catalog",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := pricing.Load()
			if err != nil {
				return err
			}
			category := ""
			if len(args) == 1 {
				category = args[0]
			}
			return printCatalog(cmd, catalog.Items(category))
		},
	}
}

func printCatalog(cmd *cobra.Command, items []pricing.Item) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CATEGORY\tSERVICE\tCUSTOMER\tPROVIDER\tWHITE +")
	for _, it := range items {
		white := "-"
		if it.WhiteApplicable {
			white = it.ColorSurchargeCustomer.StringFixed(2)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", it.Category, it.ServiceType,
			it.CustomerDisplayPrice.StringFixed(2), it.ProviderBasePrice.StringFixed(2), white)
	}
	return w.Flush()
}
