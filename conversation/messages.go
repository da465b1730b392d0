package conversation

// Messages holds the fixed texts the bot sends outside the dialogue graph.
type Messages struct {
	DescribeProblem string `yaml:"describe_problem"`
	Accepted        string `yaml:"accepted"`
	StartButton     string `yaml:"start_button"`
	DispatchFailed  string `yaml:"dispatch_failed"`
	StartCommand    string `yaml:"start_command"`
}

// DefaultMessages returns the stock texts.
func DefaultMessages() Messages {
	return Messages{
		DescribeProblem: "Опишите проблему, приложите фотографию, если нужно:",
		Accepted:        "Принято, спасибо!",
		StartButton:     "start",
		DispatchFailed:  "Не удалось отправить заявку, попробуйте отправить сообщение ещё раз.",
		StartCommand:    "Начать вводить заявку (ввод предыдущей прерывается)",
	}
}

// WithDefaults fills empty texts from DefaultMessages.
func (m Messages) WithDefaults() Messages {
	d := DefaultMessages()
	if m.DescribeProblem == "" {
		m.DescribeProblem = d.DescribeProblem
	}
	if m.Accepted == "" {
		m.Accepted = d.Accepted
	}
	if m.StartButton == "" {
		m.StartButton = d.StartButton
	}
	if m.DispatchFailed == "" {
		m.DispatchFailed = d.DispatchFailed
	}
	if m.StartCommand == "" {
		m.StartCommand = d.StartCommand
	}
	return m
}
