package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"giftlist/internal/config"
	"giftlist/internal/db"
	"giftlist/internal/logger"
	"giftlist/internal/models"
)

type app struct {
	cfg         *config.Config
	log         *logrus.Logger
	databaseURL string
}

func newRootCmd() *cobra.Command {
	a := &app{cfg: config.Load()}
	a.log = logger.New(a.cfg.LogLevel)

	root := &cobra.Command{
		Use:           "giftadmin",
		Short:         "Administer the family gift list",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.databaseURL, "database-url", a.cfg.DatabaseURL, "PostgreSQL connection string")

	root.AddCommand(newMigrateCmd(a))
	root.AddCommand(newUsersCmd(a))
	root.AddCommand(newSeedCmd(a))
	return root
}

// open connects and migrates. Every command needs the current schema.
func (a *app) open(ctx context.Context) (*db.DB, error) {
	database, err := db.New(ctx, a.databaseURL)
	if err != nil {
		return nil, err
	}
	if err := database.RunMigrations(a.databaseURL); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer database.Close()
			a.log.Info("Migrations completed successfully")
			return nil
		},
	}
}

func newUsersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage registered family members",
	}
	cmd.AddCommand(newUsersAddCmd(a))
	cmd.AddCommand(newUsersListCmd(a))
	return cmd
}

func newUsersAddCmd(a *app) *cobra.Command {
	var email, name string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a family member so they can sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				name = nameFromFamilyFile(a.cfg.FamilyFile, email)
			}

			database, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer database.Close()

			user, err := database.RegisterUser(cmd.Context(), email, name)
			if err != nil {
				return err
			}
			a.log.WithFields(logrus.Fields{"user_id": user.ID, "email": user.Email}).Info("Family member registered")
			fmt.Fprintln(cmd.OutOrStdout(), user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address the member signs in with")
	cmd.Flags().StringVar(&name, "name", "", "display name shown to the family")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newUsersListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered family members",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer database.Close()

			users, err := database.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			return writeUsers(cmd.OutOrStdout(), users)
		},
	}
}

func newSeedCmd(a *app) *cobra.Command {
	var file string
	var demo bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Register the members listed in the family file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer database.Close()

			if demo {
				if err := database.SeedDevFamily(cmd.Context()); err != nil {
					return err
				}
				a.log.Info("Demo family seeded")
				return nil
			}

			familyCfg, err := config.LoadFamilyConfig(file)
			if err != nil {
				return err
			}
			if familyCfg == nil {
				return fmt.Errorf("family file %s not found", file)
			}
			added, err := database.RegisterMembers(cmd.Context(), members(familyCfg))
			if err != nil {
				return err
			}
			a.log.WithFields(logrus.Fields{"file": file, "added": added}).Info("Family file loaded")
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d members added\n", added, len(familyCfg.Members))
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", a.cfg.FamilyFile, "family file to load")
	cmd.Flags().BoolVar(&demo, "demo", false, "seed the built-in demo family instead")
	return cmd
}

func members(familyCfg *config.FamilyConfig) []db.Member {
	out := make([]db.Member, len(familyCfg.Members))
	for i, m := range familyCfg.Members {
		out[i] = db.Member{Email: m.Email, DisplayName: m.DisplayName}
	}
	return out
}

// nameFromFamilyFile falls back to the display name the family file lists
// for email, if any.
func nameFromFamilyFile(path, email string) string {
	familyCfg, err := config.LoadFamilyConfig(path)
	if err != nil || familyCfg == nil {
		return ""
	}
	if m := familyCfg.GetMemberByEmail(email); m != nil {
		return m.DisplayName
	}
	return ""
}

func writeUsers(w io.Writer, users []models.User) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEMAIL\tNAME\tSIGNED IN")
	for _, u := range users {
		signedIn := "never"
		if u.LastLoginAt != nil {
			signedIn = u.LastLoginAt.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", u.ID, u.Email, u.Name(), signedIn)
	}
	return tw.Flush()
}
