package codec

import (
	"encoding/json"

	"github.com/FairForge/containerdispatch/internal/common"
	"github.com/FairForge/containerdispatch/internal/request"
)

// Field order of these structs is the wire key order. The receiver indexes
// parameters[0], so parameters is always an array of one.
type wireParameters struct {
	ContainerName string `json:"container_name"`
	CPUs          string `json:"cpus"`
	Memory        string `json:"memory"`
	Pids          string `json:"pids"`
	RestartPolicy string `json:"restart_policy"`
	ImageName     string `json:"image_name"`
}

type wireRequest struct {
	Runtime    string           `json:"runtime"`
	Operation  string           `json:"operation"`
	Parameters []wireParameters `json:"parameters"`
}

func toWire(req request.ContainerRequest) wireRequest {
	p := req.Parameters
	return wireRequest{
		Runtime:   string(req.Runtime),
		Operation: string(req.Operation),
		Parameters: []wireParameters{{
			ContainerName: p.ContainerName,
			CPUs:          p.CPUs,
			Memory:        p.Memory,
			Pids:          p.PidsLimit,
			RestartPolicy: string(p.RestartPolicy),
			ImageName:     p.ImageName,
		}},
	}
}

func fromWire(w wireRequest) (request.ContainerRequest, error) {
	if len(w.Parameters) != 1 {
		return request.ContainerRequest{}, common.ErrInvalid("parameters", "expected exactly one entry, got %d", len(w.Parameters))
	}
	runtime, err := request.ParseRuntime(w.Runtime)
	if err != nil {
		return request.ContainerRequest{}, err
	}
	op, err := request.ParseOperation(w.Operation)
	if err != nil {
		return request.ContainerRequest{}, err
	}

	p := w.Parameters[0]
	policy := request.RestartPolicy(p.RestartPolicy)
	if p.RestartPolicy != "" {
		if policy, err = request.ParseRestartPolicy(p.RestartPolicy); err != nil {
			return request.ContainerRequest{}, err
		}
	}

	return request.ContainerRequest{
		Runtime:   runtime,
		Operation: op,
		Parameters: request.Parameters{
			ContainerName: p.ContainerName,
			CPUs:          p.CPUs,
			Memory:        p.Memory,
			PidsLimit:     p.Pids,
			RestartPolicy: policy,
			ImageName:     p.ImageName,
		},
	}, nil
}

func encodeJSON(req request.ContainerRequest) ([]byte, error) {
	return json.Marshal(toWire(req))
}

// DecodeJSON parses a JSON wire document
func DecodeJSON(data []byte) (request.ContainerRequest, error) {
	var w wireRequest
	if err := json.Unmarshal(data, &w); err != nil {
		return request.ContainerRequest{}, common.ErrInvalid("payload", "malformed json: %v", err)
	}
	return fromWire(w)
}
