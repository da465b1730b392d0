// Package dialogue builds the immutable question graph the bot walks for
// every conversation.
package dialogue

// Result types accepted in the definition's `type` key.
const (
	ResultDigit  = "digit"
	ResultOption = "option"
)

// Node is a question presented to the user. Nodes are shared by every
// conversation and must not be mutated after Build returns.
type Node struct {
	Question       string
	ResendQuestion string
	ResultType     string
	Field          string
	Next           *Node
	Options        []*Option

	byLabel map[string]*Option
}

// Option is one selectable branch of a choice-driven node.
type Option struct {
	Label       string
	Next        *Node
	Destination int64
}

// HasOptions reports whether the node is choice-driven.
func (n *Node) HasOptions() bool {
	return len(n.Options) > 0
}

// Option looks up an option by its exact label.
func (n *Node) Option(label string) (*Option, bool) {
	opt, ok := n.byLabel[label]
	return opt, ok
}

// Labels returns the option labels in definition order.
func (n *Node) Labels() []string {
	if len(n.Options) == 0 {
		return nil
	}
	labels := make([]string, len(n.Options))
	for i, opt := range n.Options {
		labels[i] = opt.Label
	}
	return labels
}

// Reprompt returns the text shown after an invalid answer.
func (n *Node) Reprompt() string {
	if n.ResendQuestion != "" {
		return n.ResendQuestion
	}
	return n.Question
}
