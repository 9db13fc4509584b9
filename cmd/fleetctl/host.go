package main

import (
	"context"
	"fmt"
	"os"

	"github.com/cuemby/fleetctl/pkg/coretypes"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var hostCmd = &cobra.Command{
	Use:   "host",
	Short: "Manage registered Docker hosts",
}

func init() {
	hostAddCmd.Flags().String("name", "", "Display name for the host")
	hostAddCmd.Flags().String("kind", string(coretypes.ConnectionUnixSocket), "Connection kind: unix_socket, tcp_plain, tcp_tls, ssh")
	hostAddCmd.Flags().String("endpoint", "", "Address to dial (unix path, host:port, or ssh user@host:port)")
	hostAddCmd.Flags().Bool("default", false, "Mark this host as the default for callers with no explicit grant")
	hostAddCmd.Flags().String("tls-ca", "", "Path to a PEM CA certificate (tcp_tls)")
	hostAddCmd.Flags().String("tls-cert", "", "Path to a PEM client certificate (tcp_tls)")
	hostAddCmd.Flags().String("tls-key", "", "Path to a PEM client key (tcp_tls)")
	hostAddCmd.Flags().String("ssh-user", "", "SSH username (ssh)")
	hostAddCmd.Flags().String("ssh-key", "", "Path to a PEM SSH private key (ssh)")
	hostAddCmd.Flags().String("ssh-known-hosts", "", "Path to a known_hosts file (ssh)")
	_ = hostAddCmd.MarkFlagRequired("endpoint")

	hostCmd.AddCommand(hostAddCmd)
	hostCmd.AddCommand(hostListCmd)
	hostCmd.AddCommand(hostRemoveCmd)
	hostCmd.AddCommand(hostTestCmd)
}

var hostAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a new host",
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

		name, _ := cmd.Flags().GetString("name")
		kind, _ := cmd.Flags().GetString("kind")
		endpoint, _ := cmd.Flags().GetString("endpoint")
		isDefault, _ := cmd.Flags().GetBool("default")

		host := coretypes.Host{
			ID:       uuid.NewString(),
			Name:     name,
			Kind:     coretypes.ConnectionKind(kind),
			Endpoint: endpoint,
			Active:   true,
			Default:  isDefault,
			Health:   coretypes.HealthUnknown,
		}

		ctx := context.Background()
		if err := p.repo.CreateHost(ctx, host); err != nil {
			return fmt.Errorf("creating host: %w", err)
		}

		if err := storeCredentialFiles(ctx, p, host.ID, cmd); err != nil {
			return err
		}

		fmt.Printf("host registered: %s (%s)\n", host.ID, host.Endpoint)
		return nil
	},
}

func storeCredentialFiles(ctx context.Context, p *plane, hostID string, cmd *cobra.Command) error {
	files := map[string]coretypes.CredentialKind{
		"tls-ca":          coretypes.CredentialTLSCA,
		"tls-cert":        coretypes.CredentialTLSCert,
		"tls-key":         coretypes.CredentialTLSKey,
		"ssh-key":         coretypes.CredentialSSHPrivateKey,
		"ssh-known-hosts": coretypes.CredentialSSHKnownHosts,
	}
	for flag, kind := range files {
		path, _ := cmd.Flags().GetString(flag)
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", flag, err)
		}
		if err := putCredential(ctx, p, hostID, kind, data); err != nil {
			return err
		}
	}
	if user, _ := cmd.Flags().GetString("ssh-user"); user != "" {
		if err := putCredential(ctx, p, hostID, coretypes.CredentialSSHUser, []byte(user)); err != nil {
			return err
		}
	}
	return nil
}

func putCredential(ctx context.Context, p *plane, hostID string, kind coretypes.CredentialKind, plaintext []byte) error {
	blob, err := p.creds.Encrypt(plaintext)
	if err != nil {
		return fmt.Errorf("encrypting %s credential: %w", kind, err)
	}
	return p.repo.PutCredential(ctx, coretypes.CredentialItem{HostID: hostID, Kind: kind, EncryptedBlob: blob})
}

var hostListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered hosts",
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

		hosts, err := p.repo.ListHosts(context.Background())
		if err != nil {
			return err
		}
		for _, h := range hosts {
			marker := ""
			if h.Default {
				marker = " (default)"
			}
			fmt.Printf("%s\t%-10s\t%-10s\t%s%s\n", h.ID, h.Kind, h.Health, h.Endpoint, marker)
		}
		return nil
	},
}

var hostRemoveCmd = &cobra.Command{
	Use:   "remove [host-id]",
	Short: "Deregister a host",
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

		hostID := args[0]
		p.conns.Close(hostID)
		if err := p.repo.DeleteCredentials(context.Background(), hostID); err != nil {
			return err
		}
		if err := p.repo.DeleteHost(context.Background(), hostID); err != nil {
			return err
		}
		fmt.Printf("host removed: %s\n", hostID)
		return nil
	},
}

var hostTestCmd = &cobra.Command{
	Use:   "test-connection [host-id]",
	Short: "Dial a registered host without caching the connection",
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

		ctx := context.Background()
		hostID := args[0]
		host, err := p.repo.GetHost(ctx, hostID)
		if err != nil {
			return err
		}
		items, err := p.repo.GetCredentials(ctx, hostID)
		if err != nil {
			return err
		}
		creds, err := p.creds.Decrypt(items)
		if err != nil {
			return err
		}
		if err := p.exec.TestConnection(ctx, host, creds); err != nil {
			return fmt.Errorf("connection test failed: %w", err)
		}
		fmt.Printf("host %s is reachable\n", hostID)
		return nil
	},
}
