package dialogue

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Definition models the dialogue section of the bot configuration.
type Definition struct {
	Entry Ref                `yaml:"entry"`
	Trees map[string]NodeDef `yaml:"trees"`
}

// NodeDef is the declarative body of a single question.
type NodeDef struct {
	Question       string      `yaml:"question"`
	ResendQuestion string      `yaml:"resend_question"`
	Type           string      `yaml:"type"`
	Field          string      `yaml:"field"`
	Next           *Ref        `yaml:"next"`
	Options        []OptionDef `yaml:"options"`
}

// OptionDef is one selectable answer of a NodeDef.
type OptionDef struct {
	Text string `yaml:"text"`
	Chat string `yaml:"chat"`
	Next *Ref   `yaml:"next"`
}

// Ref points at a node either by tree name or by an inline body.
type Ref struct {
	Name   string
	Inline *NodeDef
}

// Named returns a reference to the tree registered under name.
func Named(name string) *Ref {
	return &Ref{Name: name}
}

// InlineRef wraps an inline node body.
func InlineRef(def NodeDef) *Ref {
	return &Ref{Inline: &def}
}

// IsZero reports whether the reference points nowhere.
func (r *Ref) IsZero() bool {
	return r == nil || (r.Name == "" && r.Inline == nil)
}

// UnmarshalYAML accepts either a scalar tree name or a mapping node body.
func (r *Ref) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		r.Name = value.Value
		r.Inline = nil
		return nil
	case yaml.MappingNode:
		var def NodeDef
		if err := value.Decode(&def); err != nil {
			return err
		}
		r.Name = ""
		r.Inline = &def
		return nil
	default:
		return fmt.Errorf("line %d: dialogue reference must be a tree name or a node mapping", value.Line)
	}
}

func (r *Ref) String() string {
	switch {
	case r == nil:
		return "<nil>"
	case r.Name != "":
		return r.Name
	case r.Inline != nil:
		return "<inline>"
	default:
		return "<empty>"
	}
}
