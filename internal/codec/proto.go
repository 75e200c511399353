package codec

import (
	"github.com/FairForge/containerdispatch/internal/common"
	"github.com/FairForge/containerdispatch/internal/request"
	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the manager's container_manager.proto:
//
//	message ContainerRequest {
//	  string runtime = 1;
//	  string operation = 2;
//	  repeated ContainerParameters parameters = 3;
//	}
//	message ContainerParameters {
//	  string container_name = 1;
//	  string cpus = 2;
//	  string memory = 3;
//	  string pids = 4;
//	  string restart_policy = 5;
//	  string image_name = 6;
//	}
const (
	fieldRuntime    protowire.Number = 1
	fieldOperation  protowire.Number = 2
	fieldParameters protowire.Number = 3

	fieldContainerName protowire.Number = 1
	fieldCPUs          protowire.Number = 2
	fieldMemory        protowire.Number = 3
	fieldPids          protowire.Number = 4
	fieldRestartPolicy protowire.Number = 5
	fieldImageName     protowire.Number = 6
)

func encodeProto(req request.ContainerRequest) []byte {
	w := toWire(req)

	var b []byte
	b = appendString(b, fieldRuntime, w.Runtime)
	b = appendString(b, fieldOperation, w.Operation)
	for _, p := range w.Parameters {
		var m []byte
		m = appendString(m, fieldContainerName, p.ContainerName)
		m = appendString(m, fieldCPUs, p.CPUs)
		m = appendString(m, fieldMemory, p.Memory)
		m = appendString(m, fieldPids, p.Pids)
		m = appendString(m, fieldRestartPolicy, p.RestartPolicy)
		m = appendString(m, fieldImageName, p.ImageName)

		b = protowire.AppendTag(b, fieldParameters, protowire.BytesType)
		b = protowire.AppendBytes(b, m)
	}
	return b
}

// proto3: empty strings are not written
func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// DecodeProto parses a binary ContainerRequest message. Unknown fields are skipped.
func DecodeProto(data []byte) (request.ContainerRequest, error) {
	var w wireRequest
	err := walkFields(data, func(num protowire.Number, value []byte) error {
		switch num {
		case fieldRuntime:
			w.Runtime = string(value)
		case fieldOperation:
			w.Operation = string(value)
		case fieldParameters:
			p, err := decodeProtoParameters(value)
			if err != nil {
				return err
			}
			w.Parameters = append(w.Parameters, p)
		}
		return nil
	})
	if err != nil {
		return request.ContainerRequest{}, err
	}
	return fromWire(w)
}

func decodeProtoParameters(data []byte) (wireParameters, error) {
	var p wireParameters
	err := walkFields(data, func(num protowire.Number, value []byte) error {
		switch num {
		case fieldContainerName:
			p.ContainerName = string(value)
		case fieldCPUs:
			p.CPUs = string(value)
		case fieldMemory:
			p.Memory = string(value)
		case fieldPids:
			p.Pids = string(value)
		case fieldRestartPolicy:
			p.RestartPolicy = string(value)
		case fieldImageName:
			p.ImageName = string(value)
		}
		return nil
	})
	return p, err
}

// walkFields calls fn for every length-delimited field in data and skips
// fields of any other wire type.
func walkFields(data []byte, fn func(num protowire.Number, value []byte) error) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return malformed(n)
		}
		data = data[n:]

		if typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return malformed(n)
			}
			data = data[n:]
			continue
		}

		value, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return malformed(n)
		}
		data = data[n:]
		if err := fn(num, value); err != nil {
			return err
		}
	}
	return nil
}

func malformed(n int) error {
	return common.ErrInvalid("payload", "malformed protobuf: %v", protowire.ParseError(n))
}
