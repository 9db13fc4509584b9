package main

import (
	"context"
	"fmt"
	"os"

	"github.com/cuemby/fleetctl/pkg/coretypes"
	"github.com/cuemby/fleetctl/pkg/permissions"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply a declarative host/user/grant manifest",
	Long: `Apply registers hosts, users, and grants from a YAML manifest,
so a fleet's fixed set of engines and operators can be declared once and
re-applied idempotently rather than built up through one-off add commands.

Examples:
  fleetctl apply -f fleet.yaml`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringP("file", "f", "", "YAML manifest to apply (required)")
	_ = applyCmd.MarkFlagRequired("file")
}

// resource is a declarative apiVersion/kind/metadata/spec manifest entry,
// narrowed to the three kinds this control plane actually persists: Host,
// User, Grant.
type resource struct {
	APIVersion string                 `yaml:"apiVersion"`
	Kind       string                 `yaml:"kind"`
	Metadata   resourceMetadata       `yaml:"metadata"`
	Spec       map[string]interface{} `yaml:"spec"`
}

type resourceMetadata struct {
	Name string `yaml:"name"`
}

type manifest struct {
	Resources []resource `yaml:"resources"`
}

func runApply(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("file")
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading manifest: %w", err)
	}

	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("parsing manifest: %w", err)
	}

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
	for _, r := range m.Resources {
		switch r.Kind {
		case "Host":
			if err := applyHost(ctx, p, r); err != nil {
				return fmt.Errorf("applying host %q: %w", r.Metadata.Name, err)
			}
		case "User":
			if err := applyUser(ctx, p, r); err != nil {
				return fmt.Errorf("applying user %q: %w", r.Metadata.Name, err)
			}
		case "Grant":
			if err := applyGrant(ctx, p, r); err != nil {
				return fmt.Errorf("applying grant %q: %w", r.Metadata.Name, err)
			}
		default:
			return fmt.Errorf("unsupported resource kind: %s", r.Kind)
		}
	}
	return nil
}

func applyHost(ctx context.Context, p *plane, r resource) error {
	endpoint := specString(r.Spec, "endpoint", "")
	if endpoint == "" {
		return fmt.Errorf("host endpoint is required")
	}
	kind := coretypes.ConnectionKind(specString(r.Spec, "kind", string(coretypes.ConnectionUnixSocket)))

	hosts, err := p.repo.ListHosts(ctx)
	if err != nil {
		return err
	}
	for _, existing := range hosts {
		if existing.Name == r.Metadata.Name {
			existing.Kind = kind
			existing.Endpoint = endpoint
			existing.Default = specBool(r.Spec, "default", existing.Default)
			fmt.Printf("updating host: %s\n", r.Metadata.Name)
			return p.repo.UpdateHost(ctx, existing)
		}
	}

	host := coretypes.Host{
		ID:       uuid.NewString(),
		Name:     r.Metadata.Name,
		Kind:     kind,
		Endpoint: endpoint,
		Active:   true,
		Default:  specBool(r.Spec, "default", false),
		Health:   coretypes.HealthUnknown,
	}
	fmt.Printf("creating host: %s (%s)\n", host.Name, host.ID)
	return p.repo.CreateHost(ctx, host)
}

func applyUser(ctx context.Context, p *plane, r resource) error {
	role := coretypes.Role(specString(r.Spec, "role", string(coretypes.RoleViewer)))
	user := permissions.User{ID: r.Metadata.Name, Role: role}
	if _, err := p.repo.GetUser(ctx, user.ID); err == nil {
		fmt.Printf("user already exists: %s (skipping)\n", user.ID)
		return nil
	}
	fmt.Printf("creating user: %s (role=%s)\n", user.ID, role)
	return p.repo.CreateUser(ctx, user)
}

func applyGrant(ctx context.Context, p *plane, r resource) error {
	userID := specString(r.Spec, "user", "")
	hostID := specString(r.Spec, "host", "")
	level := coretypes.Role(specString(r.Spec, "level", string(coretypes.RoleViewer)))
	if userID == "" || hostID == "" {
		return fmt.Errorf("grant spec requires both user and host")
	}
	fmt.Printf("granting %s access to %s at %s\n", userID, hostID, level)
	if err := p.repo.PutGrant(ctx, coretypes.Grant{UserID: userID, HostID: hostID, Level: level}); err != nil {
		return err
	}
	p.perms.Invalidate(userID)
	return nil
}

func specString(spec map[string]interface{}, key, defaultValue string) string {
	if v, ok := spec[key]; ok {
		return fmt.Sprintf("%v", v)
	}
	return defaultValue
}

func specBool(spec map[string]interface{}, key string, defaultValue bool) bool {
	if v, ok := spec[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return defaultValue
}
