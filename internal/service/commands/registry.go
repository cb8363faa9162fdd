package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	apperrors "bytepad-backend/internal/errors"
	"bytepad-backend/internal/validation"
	"bytepad-backend/pkg/api"
)

// RunFunc executes a command with decoded JSON arguments.
type RunFunc func(ctx context.Context, args map[string]any) (api.CommandResponse, error)

// Param describes one command argument.
type Param struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
}

// Command is a named operation callable over any transport.
type Command struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Params      []Param `json:"params"`
	Creation    bool    `json:"creation"`
	ReadOnly    bool    `json:"readOnly"`
	Run         RunFunc `json:"-"`
}

// Registry holds the available commands.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]Command
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]Command)}
}

// Register adds a command. Names must be unique.
func (r *Registry) Register(cmd Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.commands[cmd.Name]; exists {
		return fmt.Errorf("command %q already registered", cmd.Name)
	}
	cmd.Creation = IsCreation(cmd.Name)
	r.commands[cmd.Name] = cmd
	return nil
}

// MustRegister adds a command and panics on a duplicate name.
func (r *Registry) MustRegister(cmd Command) {
	if err := r.Register(cmd); err != nil {
		panic(err)
	}
}

// Get returns the named command.
func (r *Registry) Get(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[name]
	return cmd, ok
}

// List returns every command sorted by name.
func (r *Registry) List() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		out = append(out, cmd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// bind decodes args into target and validates it. Unknown arguments are
// rejected.
func bind(command string, args map[string]any, target any) error {
	if args == nil {
		args = map[string]any{}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return invalidArgs(command, err)
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return invalidArgs(command, err)
	}
	if err := validation.Validate(target); err != nil {
		if ue, ok := apperrors.As(err); ok {
			ue.Operation = command
		}
		return err
	}
	return nil
}

func invalidArgs(command string, cause error) error {
	return apperrors.Validation(apperrors.CodeInvalidArguments, "Invalid arguments").
		WithOperation(command).
		WithDetails(cause.Error()).
		WithCause(cause).
		Build()
}

// fieldsOf converts an argument struct into item fields, dropping empty
// optional values.
func fieldsOf(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, apperrors.Wrap(err, "encode arguments")
	}
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, apperrors.Wrap(err, "encode arguments")
	}
	return fields, nil
}

// paramsOf describes the arguments of an argument struct from its json,
// validate and desc tags.
func paramsOf(v any) []Param {
	t := reflect.TypeOf(v)
	if t == nil {
		return nil
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	params := make([]Param, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			continue
		}
		params = append(params, Param{
			Name:        name,
			Type:        jsonType(f.Type),
			Description: f.Tag.Get("desc"),
			Required:    hasRule(f.Tag.Get("validate"), "required"),
		})
	}
	return params
}

func hasRule(tag, rule string) bool {
	for _, part := range strings.Split(tag, ",") {
		if part == rule {
			return true
		}
	}
	return false
}

func jsonType(t reflect.Type) string {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int32, reflect.Int64, reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Slice, reflect.Array:
		return "array"
	default:
		return "object"
	}
}
