package task

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Runner routes tick and settlement messages to the task they belong to
type Runner struct {
	tasks map[string]*Task
}

// NewRunner creates an empty runner
func NewRunner() *Runner {
	return &Runner{tasks: make(map[string]*Task)}
}

// Start tracks t and starts it
func (r *Runner) Start(t *Task) tea.Cmd {
	if t == nil {
		return nil
	}
	cmd := t.Start()
	if cmd != nil {
		r.tasks[t.ID()] = t
	}
	return cmd
}

// Update forwards task messages. It returns handled=false for anything else.
func (r *Runner) Update(msg tea.Msg) (tea.Cmd, bool) {
	m, ok := msg.(taskMsg)
	if !ok {
		return nil, false
	}
	t, ok := r.tasks[m.taskID()]
	if !ok {
		// settled or cancelled tasks may still have a message in flight
		return nil, true
	}
	cmd := t.Update(msg)
	if t.done() {
		delete(r.tasks, t.ID())
	}
	return cmd, true
}

// Len returns the number of pending tasks. Cancelled tasks are kept until
// their operation returns so a late result still reaches Discard.
func (r *Runner) Len() int {
	n := 0
	for id, t := range r.tasks {
		switch {
		case t.done():
			delete(r.tasks, id)
		case !t.State().Terminal():
			n++
		}
	}
	return n
}
