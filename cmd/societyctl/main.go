// Command societyctl runs maintenance tasks against the society database.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/Societyforcis/SCIS-Backend/internal/config"
	"github.com/Societyforcis/SCIS-Backend/internal/database"
	"github.com/Societyforcis/SCIS-Backend/internal/repositories"
	"github.com/Societyforcis/SCIS-Backend/internal/services"
	"github.com/Societyforcis/SCIS-Backend/pkg/utils"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
)

var Version = "dev"

// backend is what the commands operate on.
type backend struct {
	db          *sqlx.DB
	admin       services.AdminService
	memberships services.MembershipService
}

// connector opens a backend; the returned func releases it.
type connector func(ctx context.Context) (*backend, func(), error)

func main() {
	utils.InitLogger(utils.Getenv("LOG_LEVEL", "warn"), true)

	if err := newRootCmd(connectDatabase, os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(connect connector, out io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "societyctl",
		Short:         "Maintenance commands for the SCIS backend",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)

	rootCmd.AddCommand(migrateCmd(connect))
	rootCmd.AddCommand(promoteAdminCmd(connect))
	rootCmd.AddCommand(expireMembershipsCmd(connect))
	rootCmd.AddCommand(statsCmd(connect))
	return rootCmd
}

func migrateCmd(connect connector) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, release, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			if err := database.ApplySchema(cmd.Context(), b.db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema applied")
			return nil
		},
	}
}

func promoteAdminCmd(connect connector) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:     "promote-admin",
		Short:   "Grant administrator rights to an existing account",
		Example: `  societyctl promote-admin --email secretary@societycis.org`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, release, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			account, err := b.admin.PromoteAdmin(cmd.Context(), email)
			if err != nil {
				return fmt.Errorf("promoting %s: %w", email, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now an administrator\n", account.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email of the account to promote")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func expireMembershipsCmd(connect connector) *cobra.Command {
	return &cobra.Command{
		Use:   "expire-memberships",
		Short: "Deactivate memberships whose expiry date has passed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, release, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			n, err := b.memberships.ExpireMemberships(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Expired %d memberships\n", n)
			return nil
		},
	}
}

func statsCmd(connect connector) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print dashboard statistics as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, release, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			stats, err := b.admin.DashboardStats(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		},
	}
}

func connectDatabase(ctx context.Context) (*backend, func(), error) {
	cfg, err := config.LoadDatabase()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	accountRepo := repositories.NewAccountRepository(db)
	membershipRepo := repositories.NewMembershipRepository(db)

	b := &backend{
		db: db,
		admin: services.NewAdminService(accountRepo, membershipRepo,
			repositories.NewBookingRepository(db),
			repositories.NewNotificationRepository(db),
			repositories.NewSubscriberRepository(db),
			utils.NormalizeEmail(utils.Getenv("PRIMARY_ADMIN_EMAIL", services.DefaultPrimaryAdminEmail))),
		memberships: services.NewMembershipService(membershipRepo, services.DefaultFeeTable(),
			services.NewMembershipIDGenerator(), nil, services.BankDetails{}, nil),
	}
	return b, func() { db.Close() }, nil
}
