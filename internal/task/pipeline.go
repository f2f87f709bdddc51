// Package task drives a spinner in a UI element while an asynchronous
// operation runs, and groups the cancel callbacks of running pipelines.
package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
)

// State of a task
type State int

const (
	Pending State = iota
	Succeeded
	Failed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether the task can no longer change state
func (s State) Terminal() bool { return s != Pending }

// Element is the UI target a task renders into
type Element interface {
	SetLabel(text string)
	SetContent(text string)
}

// ApplyFunc pushes text into an element
type ApplyFunc func(el Element, text string)

// Ready-made apply functions
var (
	SetLabel   ApplyFunc = Element.SetLabel
	SetContent ApplyFunc = Element.SetContent
)

// Operation is the wrapped asynchronous work. The context is cancelled when
// the task is cancelled; the operation may ignore it.
type Operation func(ctx context.Context) (any, error)

// RenderFunc turns the current spinner frame into element text
type RenderFunc func(frame string) string

// TickMsg advances the spinner of one task
type TickMsg struct {
	ID  string
	tag int
}

type settledMsg struct {
	id      string
	value   any
	err     error
	dropped bool
}

func (m TickMsg) taskID() string    { return m.ID }
func (m settledMsg) taskID() string { return m.id }

type taskMsg interface {
	taskID() string
}

// Task is one spinner-driven pipeline around an Operation
type Task struct {
	id string
	op Operation

	el      Element
	apply   ApplyFunc
	spin    RenderFunc
	succeed RenderFunc
	fail    RenderFunc

	register func(cancel func()) (release func())
	then     []func(any) tea.Cmd
	catch    []func(error) tea.Cmd
	discard  func(any)

	frames []string
	fps    time.Duration

	mu       sync.Mutex
	state    State
	started  bool
	frame    int
	tag      int
	release  func()
	drained  bool
	ctx      context.Context
	cancelFn context.CancelFunc
}

// Until wraps op in a new pending task. Nothing runs until Start.
func Until(op Operation) *Task {
	ctx, cancel := context.WithCancel(context.Background())
	return &Task{
		id:       uuid.NewString(),
		op:       op,
		spin:     func(frame string) string { return frame },
		frames:   spinner.MiniDot.Frames,
		fps:      spinner.MiniDot.FPS,
		ctx:      ctx,
		cancelFn: cancel,
	}
}

// Do sets the element to render into and how to push text into it
func (t *Task) Do(el Element, apply ApplyFunc) *Task {
	t.el, t.apply = el, apply
	return t
}

// Spin sets the text rendered on every tick
func (t *Task) Spin(render RenderFunc) *Task {
	if render != nil {
		t.spin = render
	}
	return t
}

// Succeed sets the text rendered once on success
func (t *Task) Succeed(render RenderFunc) *Task {
	t.succeed = render
	return t
}

// Fail sets the text rendered once on failure
func (t *Task) Fail(render RenderFunc) *Task {
	t.fail = render
	return t
}

// Cancel hands the task's cancel callback to register when the task starts.
// register may return a release func; it is called once the task is terminal
// so a settled task does not stay registered.
func (t *Task) Cancel(register func(cancel func()) (release func())) *Task {
	t.register = register
	return t
}

// Then adds a continuation run with the operation's value on success
func (t *Task) Then(fn func(any) tea.Cmd) *Task {
	if fn != nil {
		t.then = append(t.then, fn)
	}
	return t
}

// Catch adds a continuation run with the operation's error on failure
func (t *Task) Catch(fn func(error) tea.Cmd) *Task {
	if fn != nil {
		t.catch = append(t.catch, fn)
	}
	return t
}

// Discard sets a cleanup run with a value the operation returned after the
// task was cancelled, such as a connection nobody will use
func (t *Task) Discard(fn func(value any)) *Task {
	t.discard = fn
	return t
}

// Every replaces the spinner frames and tick interval
func (t *Task) Every(s spinner.Spinner) *Task {
	if len(s.Frames) > 0 {
		t.frames = s.Frames
	}
	if s.FPS > 0 {
		t.fps = s.FPS
	}
	return t
}

// ID identifies the task in its messages
func (t *Task) ID() string { return t.id }

// State returns the current state
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Start renders the first frame, starts the ticker and runs the operation.
// Calling it again is a no-op.
func (t *Task) Start() tea.Cmd {
	t.mu.Lock()
	if t.started || t.state.Terminal() {
		t.mu.Unlock()
		return nil
	}
	t.started = true
	t.render(t.spin(t.currentFrame()))
	tick := t.scheduleTick()
	t.mu.Unlock()

	if t.register != nil {
		release := t.register(t.Stop)
		t.mu.Lock()
		if t.state.Terminal() {
			t.mu.Unlock()
			if release != nil {
				release()
			}
		} else {
			t.release = release
			t.mu.Unlock()
		}
	}
	return tea.Batch(tick, t.run())
}

// Stop cancels a pending task. The last rendered frame stays in place and a
// later settlement of the operation is discarded.
func (t *Task) Stop() {
	t.mu.Lock()
	if t.state.Terminal() {
		t.mu.Unlock()
		return
	}
	t.state = Cancelled
	t.stopTicker()
	t.cancelFn()
	release := t.takeRelease()
	t.mu.Unlock()
	release()
}

// Update consumes the task's own tick and settlement messages
func (t *Task) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case TickMsg:
		if msg.ID != t.id {
			return nil
		}
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.state.Terminal() || msg.tag != t.tag {
			return nil
		}
		t.frame++
		t.render(t.spin(t.currentFrame()))
		return t.scheduleTick()

	case settledMsg:
		if msg.id != t.id || msg.dropped {
			return nil
		}
		return t.settle(msg.value, msg.err)
	}
	return nil
}

func (t *Task) settle(value any, err error) tea.Cmd {
	t.mu.Lock()
	if t.state.Terminal() {
		t.drained = true
		discard := t.discard
		t.mu.Unlock()
		if discard != nil && err == nil {
			discard(value)
		}
		return nil
	}
	t.drained = true
	t.stopTicker()
	t.cancelFn()
	release := t.takeRelease()
	frame := t.currentFrame()

	var cmds []tea.Cmd
	if err != nil {
		t.state = Failed
		if t.fail != nil {
			t.render(t.fail(frame))
		}
		t.mu.Unlock()
		release()
		for _, fn := range t.catch {
			cmds = append(cmds, fn(err))
		}
		return tea.Batch(cmds...)
	}

	t.state = Succeeded
	if t.succeed != nil {
		t.render(t.succeed(frame))
	}
	t.mu.Unlock()
	release()
	for _, fn := range t.then {
		cmds = append(cmds, fn(value))
	}
	return tea.Batch(cmds...)
}

// run executes the operation; a panic settles the task as failed
func (t *Task) run() tea.Cmd {
	id, op, ctx := t.id, t.op, t.ctx
	return func() (msg tea.Msg) {
		defer func() {
			if r := recover(); r != nil {
				msg = settledMsg{id: id, err: fmt.Errorf("task %s panicked: %v", id, r)}
			}
		}()
		if op == nil {
			return settledMsg{id: id}
		}
		value, err := op(ctx)
		if t.dropLate(value, err) {
			return settledMsg{id: id, dropped: true}
		}
		return settledMsg{id: id, value: value, err: err}
	}
}

// dropLate discards the result of an operation whose task was cancelled
// while it ran. It reports whether the result was consumed.
func (t *Task) dropLate(value any, err error) bool {
	t.mu.Lock()
	if t.state != Cancelled {
		t.mu.Unlock()
		return false
	}
	t.drained = true
	discard := t.discard
	t.mu.Unlock()
	if discard != nil && err == nil {
		discard(value)
	}
	return true
}

// done reports whether the task is terminal and its operation's result, if
// any, has been handled
func (t *Task) done() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Terminal() && (t.drained || t.op == nil)
}

// callers hold t.mu
func (t *Task) scheduleTick() tea.Cmd {
	id, tag := t.id, t.tag
	return tea.Tick(t.fps, func(time.Time) tea.Msg {
		return TickMsg{ID: id, tag: tag}
	})
}

// stopTicker invalidates the outstanding tick; callers hold t.mu and have
// checked the task is still pending, so it runs once per task.
func (t *Task) stopTicker() {
	t.tag++
}

// takeRelease hands out the registration release once; callers hold t.mu
func (t *Task) takeRelease() func() {
	release := t.release
	t.release = nil
	if release == nil {
		return func() {}
	}
	return release
}

func (t *Task) currentFrame() string {
	if len(t.frames) == 0 {
		return ""
	}
	return t.frames[t.frame%len(t.frames)]
}

func (t *Task) render(text string) {
	if t.el == nil || t.apply == nil {
		return
	}
	t.apply(t.el, text)
}
