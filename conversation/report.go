package conversation

import (
	"fmt"
	"strings"

	"siriusbot/dialogue"
)

const defaultProblem = "другое"

// ProblemRule classifies a report from its recorded fields. Text may
// reference recorded fields as {name}.
type ProblemRule struct {
	Field  string   `yaml:"field"`
	Equals string   `yaml:"equals"`
	Chats  []string `yaml:"chats"`
	Text   string   `yaml:"text"`
}

// ReportTemplate configures how reports are laid out.
type ReportTemplate struct {
	Problems       []ProblemRule     `yaml:"problems"`
	DefaultProblem string            `yaml:"default_problem"`
	FieldLabels    map[string]string `yaml:"field_labels"`
}

// Report is the assembled message sent to a destination chat.
type Report struct {
	Destination int64
	Text        string
	PhotoIDs    []string
}

// Composer renders reports.
type Composer struct {
	rules          []rule
	defaultProblem string
	labels         map[string]string
}

type rule struct {
	ProblemRule
	chats map[int64]struct{}
}

// NewComposer resolves the chat names referenced by tmpl.
func NewComposer(tmpl ReportTemplate, destinations map[string]int64) (*Composer, error) {
	c := &Composer{
		defaultProblem: tmpl.DefaultProblem,
		labels:         tmpl.FieldLabels,
	}
	if c.defaultProblem == "" {
		c.defaultProblem = defaultProblem
	}
	for i, pr := range tmpl.Problems {
		if pr.Text == "" {
			return nil, &dialogue.ConfigError{
				Path: fmt.Sprintf("report.problems[%d].text", i),
				Err:  ErrMissingProblemText,
			}
		}
		r := rule{ProblemRule: pr}
		if len(pr.Chats) > 0 {
			r.chats = make(map[int64]struct{}, len(pr.Chats))
			for _, name := range pr.Chats {
				id, ok := destinations[name]
				if !ok {
					return nil, &dialogue.ConfigError{
						Path: fmt.Sprintf("report.problems[%d].chats", i),
						Err:  fmt.Errorf("%w %q", dialogue.ErrUnknownDestination, name),
					}
				}
				r.chats[id] = struct{}{}
			}
		}
		c.rules = append(c.rules, r)
	}
	return c, nil
}

// Problem classifies a conversation routed to destination.
func (c *Composer) Problem(destination int64, fields Fields) string {
	for _, r := range c.rules {
		if r.chats != nil {
			if _, ok := r.chats[destination]; !ok {
				continue
			}
		}
		if r.Field != "" {
			v, ok := fields.Get(r.Field)
			if !ok || (r.Equals != "" && v != r.Equals) {
				continue
			}
		}
		return expand(r.Text, fields)
	}
	return c.defaultProblem
}

// Compose builds the report text for a finished conversation.
func (c *Composer) Compose(sender Sender, destination int64, fields Fields, text string, photoIDs []string) Report {
	var b strings.Builder
	fmt.Fprintf(&b, "Пользователь: %s\n", sender.Mention())
	fmt.Fprintf(&b, "Проблема: %s\n", c.Problem(destination, fields))
	fields.Each(func(name, value string) {
		label := name
		if l, ok := c.labels[name]; ok && l != "" {
			label = l
		}
		fmt.Fprintf(&b, "%s: %s\n", label, value)
	})
	fmt.Fprintf(&b, "Текст: %s", text)

	return Report{
		Destination: destination,
		Text:        b.String(),
		PhotoIDs:    photoIDs,
	}
}

func expand(text string, fields Fields) string {
	if fields.Len() == 0 || !strings.Contains(text, "{") {
		return text
	}
	pairs := make([]string, 0, fields.Len()*2)
	fields.Each(func(name, value string) {
		pairs = append(pairs, "{"+name+"}", value)
	})
	return strings.NewReplacer(pairs...).Replace(text)
}

// dedupe drops repeated ids, keeping first-seen order.
func dedupe(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
