package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stagehand-io/stagehand/pkg/retry"
)

// SchedulerPod describes the pod that runs the remote scheduler.
type SchedulerPod struct {
	Name            string            `yaml:"name"`
	Image           string            `yaml:"image"`
	CPU             string            `yaml:"cpu"`
	Memory          string            `yaml:"memory"`
	ImagePullPolicy string            `yaml:"imagePullPolicy"`
	ServiceAccount  string            `yaml:"serviceAccount"`
	Port            int               `yaml:"port"`
	NodeSelector    map[string]string `yaml:"nodeSelector"`
	VolumeClaims    map[string]string `yaml:"volumeClaims"`
	HostMounts      map[string]string `yaml:"hostMounts"`
	RunAsUser       *int64            `yaml:"runAsUser"`
	Autoclose       bool              `yaml:"autoclose"`
}

// Daemon describes the per-node FTP daemon that exposes node-local scratch.
type Daemon struct {
	Name      string `yaml:"name"`
	Image     string `yaml:"image"`
	Port      int    `yaml:"port"`
	User      string `yaml:"user"`
	Password  string `yaml:"password"`
	MountPath string `yaml:"mountPath"`
}

// Retry mirrors retry.Policy for the two retried paths.
type Retry struct {
	MaxAttempts    int           `yaml:"maxAttempts"`
	InitialBackoff time.Duration `yaml:"initialBackoff"`
	Factor         float64       `yaml:"factor"`
}

// Policy converts the configured values into a retry policy.
func (r Retry) Policy() retry.Policy {
	return retry.Policy{
		MaxAttempts:    r.MaxAttempts,
		InitialBackoff: r.InitialBackoff,
		Factor:         r.Factor,
	}
}

// Config is the root configuration of the subsystem.
type Config struct {
	Namespace string `yaml:"namespace"`
	RunName   string `yaml:"runName"`
	Strategy  string `yaml:"strategy"`
	BatchSize int    `yaml:"batchSize"`

	// LocalRoot is the node-local scratch directory shared with the daemon.
	LocalRoot string `yaml:"localRoot"`
	WorkDir   string `yaml:"workDir"`

	HTTPTimeout time.Duration `yaml:"httpTimeout"`
	FTPTimeout  time.Duration `yaml:"ftpTimeout"`

	Scheduler SchedulerPod `yaml:"scheduler"`
	Daemon    Daemon       `yaml:"daemon"`

	RegisterRetry Retry `yaml:"registerRetry"`
	FetchRetry    Retry `yaml:"fetchRetry"`

	JournalPath string `yaml:"journalPath"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Strategy:    "fair",
		BatchSize:   10,
		HTTPTimeout: 30 * time.Second,
		FTPTimeout:  60 * time.Second,
		Scheduler: SchedulerPod{
			Name:            "workflow-scheduler",
			Image:           "stagehand/scheduler:latest",
			CPU:             "1",
			Memory:          "1Gi",
			ImagePullPolicy: "IfNotPresent",
			Port:            8080,
			Autoclose:       true,
		},
		Daemon: Daemon{
			Name:      "stagehand-daemon",
			Image:     "stagehand/daemon:latest",
			Port:      21,
			User:      "ftp",
			Password:  "nextflowClient",
			MountPath: "/workspace",
		},
		RegisterRetry: Retry{
			MaxAttempts:    50,
			InitialBackoff: 3 * time.Second,
			Factor:         1.0,
		},
		FetchRetry: Retry{
			MaxAttempts:    6,
			InitialBackoff: time.Millisecond,
			Factor:         2.0,
		},
	}
}

// Load reads a YAML config file on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields the subsystem cannot default.
func (c *Config) Validate() error {
	if c.Namespace == "" {
		return fmt.Errorf("namespace must be set")
	}
	if c.RunName == "" {
		return fmt.Errorf("runName must be set")
	}
	if c.LocalRoot == "" {
		return fmt.Errorf("localRoot must be set")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batchSize must be at least 1, got %d", c.BatchSize)
	}
	if c.Scheduler.Port <= 0 || c.Scheduler.Port > 65535 {
		return fmt.Errorf("scheduler port out of range: %d", c.Scheduler.Port)
	}
	return nil
}
