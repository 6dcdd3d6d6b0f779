package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Taskfile represents the structure of the tend.yaml configuration file.
type Taskfile struct {
	Root    string              `yaml:"root"`
	Default StringList          `yaml:"default"`
	Tasks   OrderedMap[TaskDTO] `yaml:"tasks"`
	Watch   WatchSection        `yaml:"watch"`
}

// OrderedMap decodes a YAML mapping while keeping key order.
type OrderedMap[T any] struct {
	Keys   []string
	Values map[string]T
}

// Len returns the number of entries.
func (m OrderedMap[T]) Len() int {
	return len(m.Keys)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (m *OrderedMap[T]) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", node.Line)
	}
	m.Keys = make([]string, 0, len(node.Content)/2)
	m.Values = make(map[string]T, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if _, dup := m.Values[key.Value]; dup {
			return fmt.Errorf("line %d: duplicate key %q", key.Line, key.Value)
		}
		var v T
		if err := value.Decode(&v); err != nil {
			return err
		}
		m.Keys = append(m.Keys, key.Value)
		m.Values[key.Value] = v
	}
	return nil
}

// StringList accepts either a single string or a sequence of strings.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			*l = nil
			return nil
		}
		*l = StringList{node.Value}
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return err
		}
		*l = items
		return nil
	default:
		return fmt.Errorf("line %d: expected a string or a list of strings", node.Line)
	}
}

// TaskDTO represents one entry under "tasks".
//
// A list or a bare string declares a composite task. A mapping declares either
// a composite (run), a single handler task, or a handler task with targets.
// Keys other than the reserved ones are task data and become handler options.
type TaskDTO struct {
	Handler     string
	Description string
	Options     map[string]any
	Run         StringList
	Targets     OrderedMap[TargetDTO]
	Data        map[string]any

	// Line is where the task was declared, for error messages.
	Line int
}

// IsShorthand reports whether the task was written as a list or a bare string.
func (t TaskDTO) IsShorthand() bool {
	return t.Handler == "" && t.Description == "" && t.Options == nil &&
		t.Targets.Len() == 0 && t.Data == nil && t.Run != nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (t *TaskDTO) UnmarshalYAML(node *yaml.Node) error {
	t.Line = node.Line
	switch node.Kind {
	case yaml.ScalarNode, yaml.SequenceNode:
		return node.Decode(&t.Run)
	case yaml.MappingNode:
	default:
		return fmt.Errorf("line %d: expected a task list or mapping", node.Line)
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		var err error
		switch key.Value {
		case "handler":
			err = value.Decode(&t.Handler)
		case "description":
			err = value.Decode(&t.Description)
		case "options":
			err = value.Decode(&t.Options)
		case "run":
			err = value.Decode(&t.Run)
		case "targets":
			err = value.Decode(&t.Targets)
		default:
			if t.Data == nil {
				t.Data = make(map[string]any)
			}
			var v any
			err = value.Decode(&v)
			t.Data[key.Value] = v
		}
		if err != nil {
			return fmt.Errorf("line %d: %s: %w", key.Line, key.Value, err)
		}
	}
	return nil
}

// TargetDTO represents one entry under a task's "targets".
// A bare string is shorthand for {command: <string>}.
type TargetDTO struct {
	Options map[string]any
	Data    map[string]any
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (t *TargetDTO) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		t.Data = map[string]any{"command": node.Value}
		return nil
	case yaml.MappingNode:
	default:
		return fmt.Errorf("line %d: expected a command string or mapping", node.Line)
	}

	var raw map[string]any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if opts, ok := raw["options"]; ok {
		m, ok := opts.(map[string]any)
		if !ok {
			return fmt.Errorf("line %d: options must be a mapping", node.Line)
		}
		t.Options = m
		delete(raw, "options")
	}
	t.Data = raw
	return nil
}

// WatchSection is the "watch" block: rule defaults under "options" and named rules.
type WatchSection struct {
	Defaults WatchOptionsDTO
	Rules    OrderedMap[WatchRuleDTO]
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (w *WatchSection) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping of watch rules", node.Line)
	}
	rules := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", Line: node.Line, Column: node.Column}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if key.Value == "options" {
			if err := value.Decode(&w.Defaults); err != nil {
				return fmt.Errorf("line %d: options: %w", key.Line, err)
			}
			continue
		}
		rules.Content = append(rules.Content, key, value)
	}
	return rules.Decode(&w.Rules)
}

// WatchRuleDTO represents one named entry under "watch".
type WatchRuleDTO struct {
	Files   StringList      `yaml:"files"`
	Tasks   StringList      `yaml:"tasks"`
	Options WatchOptionsDTO `yaml:"options"`

	// Unknown collects rule keys outside files, tasks and options.
	Unknown map[string]any `yaml:",inline"`
}

// WatchOptionsDTO holds per-rule watch settings. Unset fields inherit the defaults.
type WatchOptionsDTO struct {
	Event         StringList `yaml:"event"`
	DebounceDelay *int       `yaml:"debounceDelay"`
	AtBegin       *bool      `yaml:"atBegin"`
	SkipUnchanged *bool      `yaml:"skipUnchanged"`

	// Extra collects keys tend does not act on, such as livereload.
	Extra map[string]any `yaml:",inline"`
}

// merge fills unset fields of o from base.
func (o WatchOptionsDTO) merge(base WatchOptionsDTO) WatchOptionsDTO {
	if o.Event == nil {
		o.Event = base.Event
	}
	if o.DebounceDelay == nil {
		o.DebounceDelay = base.DebounceDelay
	}
	if o.AtBegin == nil {
		o.AtBegin = base.AtBegin
	}
	if o.SkipUnchanged == nil {
		o.SkipUnchanged = base.SkipUnchanged
	}
	return o
}
