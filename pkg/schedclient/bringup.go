package schedclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/stagehand-io/stagehand/pkg/k8s"
	"github.com/stagehand-io/stagehand/pkg/log"
	"github.com/stagehand-io/stagehand/pkg/retry"
	"github.com/stagehand-io/stagehand/pkg/types"
)

const podPollInterval = 100 * time.Millisecond

// EnsureScheduler brings the scheduler pod up and registers the run with
// it. Concurrent calls wait for the one in progress; once the sequence has
// succeeded, later calls return immediately. A failed attempt leaves the
// client unregistered, so the next call runs the sequence again.
func (c *Client) EnsureScheduler(ctx context.Context) error {
	c.bringupMu.Lock()
	defer c.bringupMu.Unlock()

	c.mu.Lock()
	if c.registered {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	logger := log.WithRun(c.cfg.Namespace, c.cfg.RunName)
	pod := c.cfg.Scheduler

	phase, err := c.pods.GetPodPhase(ctx, c.cfg.Namespace, pod.Name)
	if err != nil {
		return fmt.Errorf("failed to check scheduler pod: %w", err)
	}
	switch phase {
	case k8s.PodTerminated:
		logger.Info().Msg("scheduler pod terminated, recreating")
		if err := c.pods.DeletePod(ctx, c.cfg.Namespace, pod.Name); err != nil {
			return fmt.Errorf("failed to delete terminated scheduler pod: %w", err)
		}
		if err := c.createSchedulerPod(ctx); err != nil {
			return err
		}
	case k8s.PodMissing:
		logger.Info().Msg("creating scheduler pod")
		if err := c.createSchedulerPod(ctx); err != nil {
			return err
		}
	case k8s.PodRunning, k8s.PodWaiting:
		logger.Debug().Str("phase", string(phase)).Msg("reusing scheduler pod")
	default:
		return fmt.Errorf("scheduler pod in unexpected state %q", phase)
	}

	if err := c.awaitPodRunning(ctx, pod.Name); err != nil {
		return err
	}

	ip, err := c.pods.GetPodIP(ctx, c.cfg.Namespace, pod.Name)
	if err != nil {
		return fmt.Errorf("failed to resolve scheduler pod IP: %w", err)
	}
	dns := podDNSFunc(ip, c.cfg.Namespace, pod.Port)

	c.mu.Lock()
	c.baseURL = dns
	c.mu.Unlock()

	if err := c.register(ctx, dns); err != nil {
		return err
	}

	c.mu.Lock()
	c.registered = true
	c.mu.Unlock()
	logger.Info().Str("dns", dns).Msg("scheduler registered")

	if c.DagSource != nil {
		vertices, edges := c.DagSource()
		if err := c.InformDagChange(ctx, vertices, edges); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) createSchedulerPod(ctx context.Context) error {
	pod := c.cfg.Scheduler
	tmpl := k8s.PodTemplate{
		Name:            pod.Name,
		Namespace:       c.cfg.Namespace,
		Image:           pod.Image,
		CPU:             pod.CPU,
		Memory:          pod.Memory,
		ImagePullPolicy: pod.ImagePullPolicy,
		ServiceAccount:  pod.ServiceAccount,
		NodeSelector:    pod.NodeSelector,
		VolumeClaims:    pod.VolumeClaims,
		HostMounts:      pod.HostMounts,
		RunAsUser:       pod.RunAsUser,
		Env: map[string]string{
			"SCHEDULER_NAME": pod.Name,
			"AUTOCLOSE":      strconv.FormatBool(pod.Autoclose),
		},
	}
	if err := c.pods.CreatePod(ctx, tmpl); err != nil {
		return fmt.Errorf("failed to create scheduler pod: %w", err)
	}
	return nil
}

// awaitPodRunning polls the pod until it leaves the waiting phase.
func (c *Client) awaitPodRunning(ctx context.Context, name string) error {
	ticker := time.NewTicker(podPollInterval)
	defer ticker.Stop()
	for {
		phase, err := c.pods.GetPodPhase(ctx, c.cfg.Namespace, name)
		if err != nil {
			return fmt.Errorf("failed to poll scheduler pod: %w", err)
		}
		switch phase {
		case k8s.PodRunning:
			return nil
		case k8s.PodWaiting:
		default:
			return fmt.Errorf("scheduler pod entered state %q while waiting for it to start", phase)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// register performs the registration call. Connection refusals are retried
// while the freshly started scheduler opens its port; an unknown host
// means the cluster DNS cannot see the pod and is not recoverable.
func (c *Client) register(ctx context.Context, dns string) error {
	runCfg := &types.RunConfig{
		VolumeClaims: c.cfg.Scheduler.VolumeClaims,
		WorkDir:      c.cfg.WorkDir,
		CostFunction: c.cfg.Strategy,
		DNS:          dns,
	}
	path := c.runPath("/scheduler/registerScheduler") + "/" + c.cfg.Strategy

	return retry.Do(ctx, c.cfg.RegisterRetry.Policy(), func(attempt int) error {
		err := c.do(ctx, "registerScheduler", http.MethodPut, path, runCfg, nil)
		if err == nil {
			return nil
		}
		if isUnknownHost(err) {
			return retry.Permanent{Err: fmt.Errorf(
				"scheduler DNS %s cannot be resolved; check the cluster DNS configuration: %w", dns, err)}
		}
		if isConnectionRefused(err) {
			logger := log.WithComponent("schedclient")
			logger.Debug().Int("attempt", attempt).
				Msg("scheduler not accepting connections yet")
			return err
		}
		return retry.Permanent{Err: err}
	})
}

// podDNSFunc is swapped by tests that have no cluster DNS.
var podDNSFunc = podDNS

// podDNS builds the in-cluster DNS URL of a pod from its IP.
func podDNS(ip, namespace string, port int) string {
	return fmt.Sprintf("http://%s.%s.pod.cluster.local:%d",
		strings.ReplaceAll(ip, ".", "-"), namespace, port)
}

func isConnectionRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}

func isUnknownHost(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}
