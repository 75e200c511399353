// Package request builds the canonical container-lifecycle request record
// from the raw field values a frontend collects.
package request

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/FairForge/containerdispatch/internal/common"
)

// Runtime selects the container engine on the manager side
type Runtime string

const (
	RuntimeDocker    Runtime = "docker"
	RuntimePodman    Runtime = "podman"
	RuntimeDockerAPI Runtime = "docker-api"
	RuntimePodmanAPI Runtime = "podman-api"
)

// Runtimes lists every supported runtime in display order
var Runtimes = []Runtime{RuntimeDocker, RuntimePodman, RuntimeDockerAPI, RuntimePodmanAPI}

// DockerFamily reports whether memory limits carry an explicit unit suffix
func (r Runtime) DockerFamily() bool {
	return r == RuntimeDocker || r == RuntimeDockerAPI
}

// PodmanFamily reports whether memory limits are sent as bare numbers
func (r Runtime) PodmanFamily() bool {
	return r == RuntimePodman || r == RuntimePodmanAPI
}

func ParseRuntime(s string) (Runtime, error) {
	for _, r := range Runtimes {
		if string(r) == s {
			return r, nil
		}
	}
	return "", common.ErrInvalid("runtime", "unsupported runtime %q", s)
}

// Operation is the lifecycle action to perform
type Operation string

const (
	OperationCreate    Operation = "create"
	OperationStart     Operation = "start"
	OperationStop      Operation = "stop"
	OperationRestart   Operation = "restart"
	OperationRemove    Operation = "remove"
	OperationAvailable Operation = "available" // runtime status probe
)

var Operations = []Operation{
	OperationCreate, OperationStart, OperationStop,
	OperationRestart, OperationRemove, OperationAvailable,
}

func ParseOperation(s string) (Operation, error) {
	for _, op := range Operations {
		if string(op) == s {
			return op, nil
		}
	}
	return "", common.ErrInvalid("operation", "unsupported operation %q", s)
}

// RestartPolicy mirrors the docker/podman --restart values
type RestartPolicy string

const (
	RestartNo            RestartPolicy = "no"
	RestartOnFailure     RestartPolicy = "on-failure"
	RestartAlways        RestartPolicy = "always"
	RestartUnlessStopped RestartPolicy = "unless-stopped"
)

var RestartPolicies = []RestartPolicy{RestartNo, RestartOnFailure, RestartAlways, RestartUnlessStopped}

func ParseRestartPolicy(s string) (RestartPolicy, error) {
	if s == "" {
		return RestartNo, nil
	}
	for _, p := range RestartPolicies {
		if string(p) == s {
			return p, nil
		}
	}
	return "", common.ErrInvalid("restart_policy", "unsupported restart policy %q", s)
}

// Parameters holds the per-container settings. All values travel as strings.
type Parameters struct {
	ContainerName string
	CPUs          string
	Memory        string
	PidsLimit     string
	RestartPolicy RestartPolicy
	ImageName     string
}

// ContainerRequest is the canonical record handed to the encoder
type ContainerRequest struct {
	Runtime    Runtime
	Operation  Operation
	Parameters Parameters
}

// Equal reports field-for-field equality
func (r ContainerRequest) Equal(other ContainerRequest) bool {
	return r == other
}

// Fields is the raw, pre-validated field set supplied by the frontend
type Fields struct {
	Runtime       string `json:"runtime"`
	Operation     string `json:"operation"`
	ContainerName string `json:"container_name"`
	CPUs          string `json:"cpus"`
	Memory        string `json:"memory"`
	PidsLimit     string `json:"pids"`
	RestartPolicy string `json:"restart_policy"`
	ImageName     string `json:"image_name"`
}

// New validates the raw fields and returns the normalized request
func New(f Fields) (ContainerRequest, error) {
	if err := checkUTF8(f); err != nil {
		return ContainerRequest{}, err
	}
	runtime, err := ParseRuntime(strings.TrimSpace(f.Runtime))
	if err != nil {
		return ContainerRequest{}, err
	}
	op, err := ParseOperation(strings.TrimSpace(f.Operation))
	if err != nil {
		return ContainerRequest{}, err
	}
	policy, err := ParseRestartPolicy(strings.TrimSpace(f.RestartPolicy))
	if err != nil {
		return ContainerRequest{}, err
	}

	cpus := strings.TrimSpace(f.CPUs)
	if cpus != "" {
		if v, err := strconv.ParseFloat(cpus, 64); err != nil || v < 0 {
			return ContainerRequest{}, common.ErrInvalid("cpus", "%q is not a non-negative decimal", cpus)
		}
	}
	pids := strings.TrimSpace(f.PidsLimit)
	if pids != "" && !isDigits(pids) {
		return ContainerRequest{}, common.ErrInvalid("pids", "%q is not an integer", pids)
	}

	return ContainerRequest{
		Runtime:   runtime,
		Operation: op,
		Parameters: Parameters{
			ContainerName: strings.TrimSpace(f.ContainerName),
			CPUs:          cpus,
			Memory:        NormalizeMemory(runtime, strings.TrimSpace(f.Memory)),
			PidsLimit:     pids,
			RestartPolicy: policy,
			ImageName:     strings.TrimSpace(f.ImageName),
		},
	}, nil
}

// checkUTF8 rejects values the JSON and Protobuf encodings would disagree on
func checkUTF8(f Fields) error {
	for _, v := range []struct{ field, value string }{
		{"runtime", f.Runtime},
		{"operation", f.Operation},
		{"container_name", f.ContainerName},
		{"cpus", f.CPUs},
		{"memory", f.Memory},
		{"pids", f.PidsLimit},
		{"restart_policy", f.RestartPolicy},
		{"image_name", f.ImageName},
	} {
		if !utf8.ValidString(v.value) {
			return common.ErrInvalid(v.field, "not valid UTF-8")
		}
	}
	return nil
}
