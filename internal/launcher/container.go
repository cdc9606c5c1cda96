package launcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"

	"github.com/Abdullah-Elkholy/Clinics-Management-System-sub006/internal/driver"
)

const chromeImage = "browserless/chrome:latest"

// Container launches one browserless/chrome container per moderator and
// attaches to it over CDP. The moderator's profile directory is bind
// mounted into the container so authentication state survives restarts
// and remains visible to the optimizer on the host.
type Container struct {
	cli      *client.Client
	pw       *driver.Playwright
	dataRoot string
}

// NewContainer creates a container launcher talking to the local Docker
// daemon.
func NewContainer(pw *driver.Playwright, dataRoot string) (*Container, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return &Container{cli: cli, pw: pw, dataRoot: dataRoot}, nil
}

// EnsureImage pulls the chrome image if it is not present locally.
func (c *Container) EnsureImage(ctx context.Context) error {
	images, err := c.cli.ImageList(ctx, image.ListOptions{})
	if err != nil {
		return err
	}
	for _, img := range images {
		for _, tag := range img.RepoTags {
			if tag == chromeImage {
				return nil
			}
		}
	}

	reader, err := c.cli.ImagePull(ctx, chromeImage, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image: %w", err)
	}
	defer reader.Close()
	_, err = io.Copy(io.Discard, reader)
	return err
}

// Launch starts the moderator's container and connects a page to it.
func (c *Container) Launch(ctx context.Context, moderatorID string) (*Browser, error) {
	userDataDir := filepath.Join(c.dataRoot, moderatorID)
	if err := os.MkdirAll(userDataDir, 0755); err != nil {
		return nil, fmt.Errorf("create profile directory: %w", err)
	}

	containerConfig := &container.Config{
		Image: chromeImage,
		Labels: map[string]string{
			"moderator-id": moderatorID,
			"managed-by":   "clinics-chat-engine",
		},
		Env: []string{
			"CONNECTION_TIMEOUT=-1",
			"MAX_CONCURRENT_SESSIONS=1",
			"PREBOOT_CHROME=true",
			"KEEP_ALIVE=true",
			"EXIT_ON_HEALTH_FAILURE=false",
		},
		ExposedPorts: nat.PortSet{
			"3000/tcp": struct{}{},
		},
	}

	hostConfig := &container.HostConfig{
		PortBindings: nat.PortMap{
			"3000/tcp": []nat.PortBinding{
				{HostIP: "0.0.0.0", HostPort: "0"},
			},
		},
		AutoRemove: false,
		Mounts: []mount.Mount{
			{
				Type:   mount.TypeBind,
				Source: userDataDir,
				Target: "/data",
			},
		},
	}

	resp, err := c.cli.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil,
		fmt.Sprintf("moderator-%s", moderatorID))
	if err != nil {
		return nil, fmt.Errorf("create container: %w", err)
	}

	if err := c.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("start container: %w", err)
	}

	inspect, err := c.cli.ContainerInspect(ctx, resp.ID)
	if err != nil {
		c.stop(resp.ID)
		return nil, fmt.Errorf("inspect container: %w", err)
	}
	bindings := inspect.NetworkSettings.Ports["3000/tcp"]
	if len(bindings) == 0 {
		c.stop(resp.ID)
		return nil, fmt.Errorf("container %s exposed no browser port", resp.ID[:12])
	}
	port := bindings[0].HostPort

	if err := waitForBrowserReady(ctx, port); err != nil {
		c.stop(resp.ID)
		return nil, fmt.Errorf("browser failed to become ready: %w", err)
	}

	page, closeFn, err := c.pw.ConnectPage(fmt.Sprintf("ws://localhost:%s", port))
	if err != nil {
		c.stop(resp.ID)
		return nil, err
	}

	containerID := resp.ID
	return NewBrowser(page, userDataDir,
		closeFn,
		func() error { return c.stop(containerID) },
	), nil
}

func (c *Container) stop(containerID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	timeout := 10
	if err := c.cli.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &timeout}); err != nil {
		return fmt.Errorf("stop container: %w", err)
	}
	if err := c.cli.ContainerRemove(ctx, containerID, container.RemoveOptions{}); err != nil {
		return fmt.Errorf("remove container: %w", err)
	}
	return nil
}

// Close releases the Docker client.
func (c *Container) Close() error {
	return c.cli.Close()
}

// waitForBrowserReady polls the DevTools version endpoint until the
// containerized browser accepts connections.
func waitForBrowserReady(ctx context.Context, port string) error {
	url := fmt.Sprintf("http://localhost:%s/json/version", port)
	const maxRetries = 20

	for i := 0; i < maxRetries; i++ {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				// The WebSocket endpoint lags the HTTP endpoint slightly.
				time.Sleep(500 * time.Millisecond)
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
	return fmt.Errorf("browser did not become ready after %d retries", maxRetries)
}
