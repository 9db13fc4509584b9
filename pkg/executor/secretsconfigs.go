package executor

import (
	"context"

	"github.com/docker/docker/api/types"
)

// SecretSummary is the normalized view of one swarm secret. The engine
// never returns secret values once created, so none surfaces here either.
type SecretSummary struct {
	HostID string
	ID     string
	Name   string
}

// ListSecrets returns every swarm secret visible from hostID.
func (e *Executor) ListSecrets(ctx context.Context, hostID, userID string) ([]SecretSummary, error) {
	cli, err := e.engine(ctx, hostID, userID, "list")
	if err != nil {
		return nil, err
	}
	list, err := cli.SecretList(ctx, types.SecretListOptions{})
	if err != nil {
		return nil, translateEngineErr("executor.ListSecrets", err)
	}
	out := make([]SecretSummary, 0, len(list))
	for _, s := range list {
		out = append(out, SecretSummary{HostID: hostID, ID: s.ID, Name: s.Spec.Name})
	}
	return out, nil
}

// RemoveSecret removes a swarm secret from hostID.
func (e *Executor) RemoveSecret(ctx context.Context, hostID, userID, id string) error {
	cli, err := e.engine(ctx, hostID, userID, "remove")
	if err != nil {
		return err
	}
	if err := cli.SecretRemove(ctx, id); err != nil {
		return translateEngineErr("executor.RemoveSecret", err)
	}
	return nil
}

// ConfigSummary is the normalized view of one swarm config object.
type ConfigSummary struct {
	HostID string
	ID     string
	Name   string
}

// ListConfigs returns every swarm config object visible from hostID.
func (e *Executor) ListConfigs(ctx context.Context, hostID, userID string) ([]ConfigSummary, error) {
	cli, err := e.engine(ctx, hostID, userID, "list")
	if err != nil {
		return nil, err
	}
	list, err := cli.ConfigList(ctx, types.ConfigListOptions{})
	if err != nil {
		return nil, translateEngineErr("executor.ListConfigs", err)
	}
	out := make([]ConfigSummary, 0, len(list))
	for _, c := range list {
		out = append(out, ConfigSummary{HostID: hostID, ID: c.ID, Name: c.Spec.Name})
	}
	return out, nil
}

// RemoveConfig removes a swarm config object from hostID.
func (e *Executor) RemoveConfig(ctx context.Context, hostID, userID, id string) error {
	cli, err := e.engine(ctx, hostID, userID, "remove")
	if err != nil {
		return err
	}
	if err := cli.ConfigRemove(ctx, id); err != nil {
		return translateEngineErr("executor.RemoveConfig", err)
	}
	return nil
}
