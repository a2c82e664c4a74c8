package action

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingKind is returned when an action has no kind discriminator.
	ErrMissingKind = errors.New("action kind is required")
	// ErrMissingConfig is returned when an action names no config document.
	ErrMissingConfig = errors.New("action config is required")
	// ErrMissingEnabled is returned when an action omits the enabled flag.
	ErrMissingEnabled = errors.New("action enabled flag is required")
)

// Action is the tagged envelope of a declarative hardware action.
//
// Only the discriminator and the common fields are interpreted here. The
// kind-specific timing and value fields stay in the raw object and are decoded
// by the handler that serves the kind.
type Action struct {
	Kind       string
	ConfigName string
	Enabled    bool
	TaskID     string

	raw json.RawMessage
}

type envelope struct {
	Kind       string `json:"kind"`
	ConfigName string `json:"config"`
	Enabled    *bool  `json:"enabled"`
	TaskID     string `json:"taskId,omitempty"`
}

// UnmarshalJSON reads the envelope fields and keeps the full object for Decode.
func (a *Action) UnmarshalJSON(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}

	env.Kind = strings.TrimSpace(env.Kind)
	if env.Kind == "" {
		return ErrMissingKind
	}
	if strings.TrimSpace(env.ConfigName) == "" {
		return fmt.Errorf("%s: %w", env.Kind, ErrMissingConfig)
	}
	if env.Enabled == nil {
		return fmt.Errorf("%s: %w", env.Kind, ErrMissingEnabled)
	}

	*a = Action{
		Kind:       env.Kind,
		ConfigName: env.ConfigName,
		Enabled:    *env.Enabled,
		TaskID:     strings.TrimSpace(env.TaskID),
		raw:        append(json.RawMessage(nil), data...),
	}
	return nil
}

// MarshalJSON writes the original object with the envelope fields refreshed.
func (a Action) MarshalJSON() ([]byte, error) {
	fields := make(map[string]json.RawMessage)
	if len(a.raw) > 0 {
		if err := json.Unmarshal(a.raw, &fields); err != nil {
			return nil, fmt.Errorf("decode raw action: %w", err)
		}
	}

	set := func(key string, v any) error {
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		fields[key] = b
		return nil
	}
	if err := set("kind", a.Kind); err != nil {
		return nil, err
	}
	if err := set("config", a.ConfigName); err != nil {
		return nil, err
	}
	if err := set("enabled", a.Enabled); err != nil {
		return nil, err
	}
	if a.TaskID != "" {
		if err := set("taskId", a.TaskID); err != nil {
			return nil, err
		}
	} else {
		delete(fields, "taskId")
	}
	return json.Marshal(fields)
}

// Decode unmarshals the kind-specific fields of the action into v.
func (a Action) Decode(v any) error {
	if len(a.raw) == 0 {
		return fmt.Errorf("%s: action has no payload", a.Kind)
	}
	if err := json.Unmarshal(a.raw, v); err != nil {
		return fmt.Errorf("%s: decode params: %w", a.Kind, err)
	}
	return nil
}

// Raw returns a copy of the original JSON object.
func (a Action) Raw() json.RawMessage {
	return append(json.RawMessage(nil), a.raw...)
}

// New builds an Action from its envelope fields and kind-specific params.
// params may be nil or any value that marshals to a JSON object.
func New(kind, configName string, enabled bool, taskID string, params any) (Action, error) {
	obj := make(map[string]any)
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return Action{}, fmt.Errorf("encode params: %w", err)
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return Action{}, fmt.Errorf("params must be a JSON object: %w", err)
		}
	}
	obj["kind"] = kind
	obj["config"] = configName
	obj["enabled"] = enabled
	if taskID != "" {
		obj["taskId"] = taskID
	}

	b, err := json.Marshal(obj)
	if err != nil {
		return Action{}, err
	}
	var a Action
	if err := json.Unmarshal(b, &a); err != nil {
		return Action{}, err
	}
	return a, nil
}

// ParseList decodes a JSON array of actions. A null or non-array document is an error.
func ParseList(data []byte) ([]Action, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, errors.New("actions must be a JSON array")
	}

	var actions []Action
	if err := json.Unmarshal(trimmed, &actions); err != nil {
		return nil, err
	}
	return actions, nil
}

// Enabled filters actions down to the enabled entries, preserving order.
func Enabled(actions []Action) []Action {
	out := make([]Action, 0, len(actions))
	for _, a := range actions {
		if a.Enabled {
			out = append(out, a)
		}
	}
	return out
}
