package docker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
)

var errPoolStopped = errors.New("docker: pool stopped")

// pool keeps idle sandbox containers running so an execution does not pay
// for container creation. A container serves exactly one execution and is
// discarded afterwards; a background loop replaces it.
type pool struct {
	cli    *client.Client
	config Config
	logger *slog.Logger

	idle chan string
	done chan struct{}
	wg   sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once
}

func newPool(cli *client.Client, cfg Config, logger *slog.Logger) *pool {
	return &pool{
		cli:    cli,
		config: cfg,
		logger: logger,
		idle:   make(chan string, max(cfg.PoolSize, 1)),
		done:   make(chan struct{}),
	}
}

func (p *pool) start() {
	p.startOnce.Do(func() {
		p.logger.Info("warming sandbox containers", slog.Int("size", cap(p.idle)))
		p.wg.Add(1)
		go p.replenish()
	})
}

// stop ends the replenish loop and discards every idle container.
func (p *pool) stop() {
	p.stopOnce.Do(func() {
		close(p.done)
		p.wg.Wait()

		for {
			select {
			case id := <-p.idle:
				p.discard(id)
			default:
				p.logger.Info("sandbox pool stopped")
				return
			}
		}
	})
}

// acquire hands out an idle container, waiting until one is ready, the pool
// stops, or ctx ends.
func (p *pool) acquire(ctx context.Context) (string, error) {
	select {
	case id := <-p.idle:
		return id, nil
	case <-p.done:
		return "", errPoolStopped
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// replenish keeps the idle channel full. Creation failures (daemon restart,
// image gone) are retried with capped exponential backoff.
func (p *pool) replenish() {
	defer p.wg.Done()

	const maxBackoff = 30 * time.Second
	backoff := time.Second

	for {
		id, err := p.spawn()
		if err != nil {
			p.logger.Error("failed to start sandbox container",
				slog.String("error", err.Error()),
				slog.Duration("retryIn", backoff),
			)
			select {
			case <-p.done:
				return
			case <-time.After(backoff):
			}
			backoff = min(2*backoff, maxBackoff)
			continue
		}
		backoff = time.Second

		select {
		case p.idle <- id: // blocks while the pool is full
		case <-p.done:
			p.discard(id)
			return
		}
	}
}

// spawn starts one locked-down container that idles until an exec arrives.
func (p *pool) spawn() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	created, err := p.cli.ContainerCreate(ctx,
		&container.Config{
			Image: p.config.Image,
			Cmd:   []string{"sleep", "infinity"},
			User:  "nobody",
		},
		&container.HostConfig{
			NetworkMode:    "none",
			ReadonlyRootfs: true,
			Tmpfs:          map[string]string{"/tmp": "rw,size=16m"},
			Resources: container.Resources{
				Memory:   p.config.MemoryLimit,
				NanoCPUs: int64(p.config.CPULimit * 1e9),
			},
		},
		nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("docker: creating container: %w", err)
	}

	if err := p.cli.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		p.discard(created.ID)
		return "", fmt.Errorf("docker: starting container: %w", err)
	}
	return created.ID, nil
}

// discard force-removes a container, killing whatever still runs inside.
// It uses its own context so cleanup survives a cancelled request.
func (p *pool) discard(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil {
		p.logger.Error("failed to remove sandbox container", slog.String("id", id), slog.String("error", err.Error()))
	}
}
