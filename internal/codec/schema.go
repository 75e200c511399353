package codec

import (
	"fmt"
	"strings"
	"sync"

	"github.com/FairForge/containerdispatch/internal/common"
	"github.com/xeipuuv/gojsonschema"
)

// RequestSchema is the JSON-schema of the wire document
const RequestSchema = `{
  "type": "object",
  "required": ["runtime", "operation", "parameters"],
  "properties": {
    "runtime":   {"enum": ["docker", "podman", "docker-api", "podman-api"]},
    "operation": {"enum": ["create", "start", "stop", "restart", "remove", "available"]},
    "parameters": {
      "type": "array",
      "minItems": 1,
      "maxItems": 1,
      "items": {
        "type": "object",
        "required": ["container_name", "cpus", "memory", "pids", "restart_policy", "image_name"],
        "properties": {
          "container_name": {"type": "string"},
          "cpus":           {"type": "string"},
          "memory":         {"type": "string"},
          "pids":           {"type": "string"},
          "restart_policy": {"type": "string"},
          "image_name":     {"type": "string"}
        }
      }
    }
  }
}`

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func requestSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(RequestSchema))
	})
	return schema, schemaErr
}

// ValidateJSON checks a JSON document against RequestSchema
func ValidateJSON(data []byte) error {
	s, err := requestSchema()
	if err != nil {
		return fmt.Errorf("compile request schema: %w", err)
	}

	result, err := s.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return common.ErrInvalid("payload", "schema validation error: %v", err)
	}
	if !result.Valid() {
		errs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			errs = append(errs, e.String())
		}
		return common.ErrInvalid("payload", "%s", strings.Join(errs, "; "))
	}
	return nil
}
