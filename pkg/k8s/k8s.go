// Package k8s declares the contracts the subsystem consumes from the
// external Kubernetes client. The workflow executor supplies an
// implementation; tests supply fakes.
package k8s

import "context"

// PodPhase is the coarse lifecycle state of a pod as the subsystem needs
// to distinguish it.
type PodPhase string

const (
	PodMissing    PodPhase = "missing"
	PodWaiting    PodPhase = "waiting"
	PodRunning    PodPhase = "running"
	PodTerminated PodPhase = "terminated"
	PodUnknown    PodPhase = "unknown"
)

// PodTemplate carries everything the scheduler bring-up needs to create
// the scheduler pod.
type PodTemplate struct {
	Name            string
	Namespace       string
	Image           string
	CPU             string
	Memory          string
	ImagePullPolicy string
	ServiceAccount  string
	NodeSelector    map[string]string
	VolumeClaims    map[string]string
	HostMounts      map[string]string
	RunAsUser       *int64
	Env             map[string]string
}

// DaemonSetTemplate describes the per-node daemon that exposes node-local
// scratch storage over FTP.
type DaemonSetTemplate struct {
	Name      string
	Namespace string
	Image     string
	MountPath string
	HostPath  string
	Port      int
}

// PodClient is the slice of the Kubernetes API the subsystem relies on.
type PodClient interface {
	// GetPodPhase resolves the lifecycle phase of a named pod.
	// A pod that does not exist reports PodMissing, not an error.
	GetPodPhase(ctx context.Context, namespace, name string) (PodPhase, error)

	// CreatePod submits the pod described by the template.
	CreatePod(ctx context.Context, tmpl PodTemplate) error

	// DeletePod removes a pod and waits for it to disappear.
	DeletePod(ctx context.Context, namespace, name string) error

	// GetPodIP resolves the cluster IP of a running pod.
	GetPodIP(ctx context.Context, namespace, name string) (string, error)

	// CreateDaemonSet submits the scratch-exposing DaemonSet.
	CreateDaemonSet(ctx context.Context, tmpl DaemonSetTemplate) error
}
