package docker

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/google/uuid"

	"github.com/hashrelay/hashrelay/internal/core/domain"
	"github.com/hashrelay/hashrelay/internal/core/ports"
)

const (
	defaultAgentImage = "hashtopolis/agent:latest"
	labelManaged      = "hashrelay.managed"
	labelAgentID      = "hashrelay.agent_id"
	labelVoucher      = "hashrelay.voucher"
)

// AgentManager provisions local cracking-agent containers that enroll
// themselves with the coordinator using a one-time voucher.
type AgentManager struct {
	cli   *client.Client
	image string
}

var _ ports.AgentProvisioner = (*AgentManager)(nil)

func NewAgentManager(image string) (*AgentManager, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	if image == "" {
		image = defaultAgentImage
	}
	return &AgentManager{cli: cli, image: image}, nil
}

// Provision starts an agent container pointed at the coordinator. The
// voucher is consumed by the agent on first contact; the coordinator side
// still has to activate the agent.
func (m *AgentManager) Provision(ctx context.Context, serverURL, voucher string) (domain.Agent, error) {
	id := uuid.New().String()

	cfg := &container.Config{
		Image: m.image,
		Env: []string{
			fmt.Sprintf("HASHTOPOLIS_SERVER_URL=%s", serverURL),
			fmt.Sprintf("HASHTOPOLIS_VOUCHER=%s", voucher),
		},
		Labels: map[string]string{
			labelManaged: "true",
			labelAgentID: id,
			labelVoucher: voucher,
		},
	}

	hostCfg := &container.HostConfig{
		RestartPolicy: container.RestartPolicy{Name: container.RestartPolicyUnlessStopped},
	}

	created, err := m.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, "hashrelay-agent-"+id[:8])
	if err != nil {
		return domain.Agent{}, fmt.Errorf("failed to create agent container: %w", err)
	}

	if err := m.cli.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		_ = m.cli.ContainerRemove(context.Background(), created.ID, container.RemoveOptions{Force: true})
		return domain.Agent{}, fmt.Errorf("failed to start agent container: %w", err)
	}

	return domain.Agent{
		ID:          id,
		ContainerID: created.ID,
		Voucher:     voucher,
		CreatedAt:   time.Now(),
	}, nil
}

// List returns all agent containers this service provisioned.
func (m *AgentManager) List(ctx context.Context) ([]domain.Agent, error) {
	f := filters.NewArgs()
	f.Add("label", labelManaged+"=true")

	containers, err := m.cli.ContainerList(ctx, container.ListOptions{All: true, Filters: f})
	if err != nil {
		return nil, fmt.Errorf("failed to list agent containers: %w", err)
	}

	agents := make([]domain.Agent, 0, len(containers))
	for _, c := range containers {
		agents = append(agents, domain.Agent{
			ID:          c.Labels[labelAgentID],
			ContainerID: c.ID,
			Voucher:     c.Labels[labelVoucher],
			CreatedAt:   time.Unix(c.Created, 0),
		})
	}
	return agents, nil
}

// Remove force-removes a provisioned agent container by its agent id.
func (m *AgentManager) Remove(ctx context.Context, id string) error {
	f := filters.NewArgs()
	f.Add("label", labelAgentID+"="+id)

	containers, err := m.cli.ContainerList(ctx, container.ListOptions{All: true, Filters: f})
	if err != nil {
		return fmt.Errorf("failed to find agent container: %w", err)
	}
	if len(containers) == 0 {
		return fmt.Errorf("agent %s not found", id)
	}

	for _, c := range containers {
		if err := m.cli.ContainerRemove(ctx, c.ID, container.RemoveOptions{Force: true}); err != nil {
			return fmt.Errorf("failed to remove agent container %s: %w", c.ID, err)
		}
	}
	return nil
}
