package schema

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/ocpp/protocol"
)

//go:embed schemas
var schemaFiles embed.FS

// Direction tells requests from responses of the same action.
type Direction int

const (
	Request Direction = iota
	Response
)

func (d Direction) String() string {
	if d == Response {
		return "response"
	}
	return "request"
}

// Validation errors.
var (
	ErrUnknownAction   = errors.New("schema: unknown action")
	ErrSchemaViolation = errors.New("schema: payload violates schema")
)

// ViolationError lists every field-level failure of one payload.
type ViolationError struct {
	Action    string
	Direction Direction
	Fields    []string
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("schema: %s %s: %s", e.Action, e.Direction, strings.Join(e.Fields, "; "))
}

// Unwrap lets errors.Is match ErrSchemaViolation.
func (e *ViolationError) Unwrap() error {
	return ErrSchemaViolation
}

type key struct {
	version   string
	action    string
	direction Direction
}

// Validator holds compiled schemas keyed by (version, action, direction). It is
// immutable after construction and safe for concurrent use.
type Validator struct {
	schemas map[key]*gojsonschema.Schema
}

// versionDirs maps a protocol version to its schema directory.
var versionDirs = map[string]string{
	protocol.Version16: "schemas/v16",
}

// NewValidator compiles every embedded schema. File names follow the OCPP
// distribution: <Action>.json for requests, <Action>Response.json for responses.
func NewValidator() (*Validator, error) {
	v := &Validator{schemas: make(map[key]*gojsonschema.Schema)}

	for version, dir := range versionDirs {
		entries, err := fs.ReadDir(schemaFiles, dir)
		if err != nil {
			return nil, fmt.Errorf("schema: read %s: %w", dir, err)
		}
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || !strings.HasSuffix(name, ".json") {
				continue
			}
			data, err := schemaFiles.ReadFile(path.Join(dir, name))
			if err != nil {
				return nil, fmt.Errorf("schema: read %s: %w", name, err)
			}
			compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
			if err != nil {
				return nil, fmt.Errorf("schema: compile %s: %w", name, err)
			}

			action := strings.TrimSuffix(name, ".json")
			direction := Request
			if strings.HasSuffix(action, "Response") {
				action = strings.TrimSuffix(action, "Response")
				direction = Response
			}
			v.schemas[key{version: version, action: action, direction: direction}] = compiled
		}
	}

	return v, nil
}

// Known reports whether a schema exists for the combination.
func (v *Validator) Known(action, version string, direction Direction) bool {
	_, ok := v.schemas[key{version: version, action: action, direction: direction}]
	return ok
}

// Actions lists the actions with a schema in the given direction.
func (v *Validator) Actions(version string, direction Direction) []string {
	var actions []string
	for k := range v.schemas {
		if k.version == version && k.direction == direction {
			actions = append(actions, k.action)
		}
	}
	sort.Strings(actions)
	return actions
}

// Validate checks payload against the schema for (action, version, direction).
// An empty payload is treated as an empty object.
func (v *Validator) Validate(action string, payload json.RawMessage, version string, direction Direction) error {
	compiled, ok := v.schemas[key{version: version, action: action, direction: direction}]
	if !ok {
		return fmt.Errorf("%w: %s %s (ocpp %s)", ErrUnknownAction, action, direction, version)
	}

	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	result, err := compiled.Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return &ViolationError{Action: action, Direction: direction, Fields: []string{err.Error()}}
	}
	if result.Valid() {
		return nil
	}

	fields := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		fields = append(fields, desc.String())
	}
	return &ViolationError{Action: action, Direction: direction, Fields: fields}
}
