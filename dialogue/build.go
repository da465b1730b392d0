package dialogue

import (
	"errors"
	"fmt"
)

// ConfigError reports a malformed dialogue definition.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return "dialogue config: " + e.Err.Error()
	}
	return fmt.Sprintf("dialogue config %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

var (
	ErrMissingQuestion    = errors.New("question is required")
	ErrMissingEntry       = errors.New("entry is required")
	ErrUnknownTree        = errors.New("unknown tree")
	ErrUnknownDestination = errors.New("unknown destination chat")
	ErrUnknownResultType  = errors.New("unknown result type")
	ErrDuplicateOption    = errors.New("duplicate option label")
	ErrEmptyOption        = errors.New("option text is required")
)

// Build turns def into a node graph and returns its entry node. Named trees
// are resolved once and shared by every reference, so definitions may contain
// cycles.
func Build(def Definition, destinations map[string]int64) (*Node, error) {
	if def.Entry.IsZero() {
		return nil, &ConfigError{Path: "entry", Err: ErrMissingEntry}
	}
	b := &builder{
		trees:        def.Trees,
		destinations: destinations,
		memo:         make(map[string]*Node, len(def.Trees)),
	}
	return b.resolve(&def.Entry, "entry")
}

type builder struct {
	trees        map[string]NodeDef
	destinations map[string]int64
	memo         map[string]*Node
}

func (b *builder) resolve(ref *Ref, path string) (*Node, error) {
	if ref.Name == "" {
		if ref.Inline == nil {
			return nil, &ConfigError{Path: path, Err: ErrMissingQuestion}
		}
		node := &Node{}
		if err := b.populate(node, *ref.Inline, path); err != nil {
			return nil, err
		}
		return node, nil
	}

	if node, ok := b.memo[ref.Name]; ok {
		return node, nil
	}
	def, ok := b.trees[ref.Name]
	if !ok {
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("%w %q", ErrUnknownTree, ref.Name)}
	}

	// Registered before populate so a cycle back to this name terminates.
	node := &Node{}
	b.memo[ref.Name] = node
	if err := b.populate(node, def, "trees."+ref.Name); err != nil {
		return nil, err
	}
	return node, nil
}

func (b *builder) populate(node *Node, def NodeDef, path string) error {
	if def.Question == "" {
		return &ConfigError{Path: path, Err: ErrMissingQuestion}
	}
	switch def.Type {
	case "", ResultDigit, ResultOption:
	default:
		return &ConfigError{Path: path + ".type", Err: fmt.Errorf("%w %q", ErrUnknownResultType, def.Type)}
	}

	node.Question = def.Question
	node.ResendQuestion = def.ResendQuestion
	node.ResultType = def.Type
	node.Field = def.Field

	if !def.Next.IsZero() {
		next, err := b.resolve(def.Next, path+".next")
		if err != nil {
			return err
		}
		node.Next = next
	}

	if len(def.Options) == 0 {
		return nil
	}
	node.Options = make([]*Option, 0, len(def.Options))
	node.byLabel = make(map[string]*Option, len(def.Options))
	for i, od := range def.Options {
		optPath := fmt.Sprintf("%s.options[%d]", path, i)
		opt, err := b.option(od, optPath)
		if err != nil {
			return err
		}
		if _, dup := node.byLabel[opt.Label]; dup {
			return &ConfigError{Path: optPath, Err: fmt.Errorf("%w %q", ErrDuplicateOption, opt.Label)}
		}
		node.Options = append(node.Options, opt)
		node.byLabel[opt.Label] = opt
	}
	return nil
}

func (b *builder) option(def OptionDef, path string) (*Option, error) {
	if def.Text == "" {
		return nil, &ConfigError{Path: path, Err: ErrEmptyOption}
	}
	opt := &Option{Label: def.Text}
	if def.Chat != "" {
		id, ok := b.destinations[def.Chat]
		if !ok {
			return nil, &ConfigError{Path: path + ".chat", Err: fmt.Errorf("%w %q", ErrUnknownDestination, def.Chat)}
		}
		opt.Destination = id
	}
	if !def.Next.IsZero() {
		next, err := b.resolve(def.Next, path+".next")
		if err != nil {
			return nil, err
		}
		opt.Next = next
	}
	return opt, nil
}
