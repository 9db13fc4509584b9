package main

import (
	"context"
	"fmt"

	"github.com/cuemby/fleetctl/pkg/coretypes"
	"github.com/cuemby/fleetctl/pkg/permissions"
	"github.com/spf13/cobra"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users and their host grants",
}

func init() {
	userAddCmd.Flags().String("role", string(coretypes.RoleViewer), "Global role: viewer, operator, admin")
	_ = userAddCmd.MarkFlagRequired("role")

	grantCmd.Flags().String("level", string(coretypes.RoleViewer), "Grant level: viewer, operator, admin")
	_ = grantCmd.MarkFlagRequired("level")

	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userRemoveCmd)
	userCmd.AddCommand(grantCmd)
	userCmd.AddCommand(revokeCmd)
}

var userAddCmd = &cobra.Command{
	Use:   "add [user-id]",
	Short: "Register a user with a global role",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := requireMasterKey()
		if err != nil {
			return err
		}
		p, err := buildPlane(key)
		if err != nil {
			return err
		}
		defer p.Close()

		role, _ := cmd.Flags().GetString("role")
		user := permissions.User{ID: args[0], Role: coretypes.Role(role)}
		if err := p.repo.CreateUser(context.Background(), user); err != nil {
			return fmt.Errorf("creating user: %w", err)
		}
		fmt.Printf("user registered: %s (role=%s)\n", user.ID, user.Role)
		return nil
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered users",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := requireMasterKey()
		if err != nil {
			return err
		}
		p, err := buildPlane(key)
		if err != nil {
			return err
		}
		defer p.Close()

		users, err := p.repo.ListUsers(context.Background())
		if err != nil {
			return err
		}
		for _, u := range users {
			fmt.Printf("%s\t%s\n", u.ID, u.Role)
		}
		return nil
	},
}

var userRemoveCmd = &cobra.Command{
	Use:   "remove [user-id]",
	Short: "Remove a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := requireMasterKey()
		if err != nil {
			return err
		}
		p, err := buildPlane(key)
		if err != nil {
			return err
		}
		defer p.Close()

		if err := p.repo.DeleteUser(context.Background(), args[0]); err != nil {
			return err
		}
		p.perms.Invalidate(args[0])
		fmt.Printf("user removed: %s\n", args[0])
		return nil
	},
}

var grantCmd = &cobra.Command{
	Use:   "grant [user-id] [host-id]",
	Short: "Grant a user access to a specific host",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := requireMasterKey()
		if err != nil {
			return err
		}
		p, err := buildPlane(key)
		if err != nil {
			return err
		}
		defer p.Close()

		level, _ := cmd.Flags().GetString("level")
		grant := coretypes.Grant{UserID: args[0], HostID: args[1], Level: coretypes.Role(level)}
		if err := p.repo.PutGrant(context.Background(), grant); err != nil {
			return fmt.Errorf("writing grant: %w", err)
		}
		p.perms.Invalidate(args[0])
		fmt.Printf("granted %s access to %s at %s\n", args[0], args[1], level)
		return nil
	},
}

var revokeCmd = &cobra.Command{
	Use:   "revoke [user-id] [host-id]",
	Short: "Revoke a user's grant for a specific host",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := requireMasterKey()
		if err != nil {
			return err
		}
		p, err := buildPlane(key)
		if err != nil {
			return err
		}
		defer p.Close()

		if err := p.repo.DeleteGrant(context.Background(), args[0], args[1]); err != nil {
			return err
		}
		p.perms.Invalidate(args[0])
		fmt.Printf("revoked %s's access to %s\n", args[0], args[1])
		return nil
	},
}
