package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Neopallium/s1vm/engine"
	"github.com/Neopallium/s1vm/isa"
	"github.com/Neopallium/s1vm/runtime"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type interactiveModel struct {
	err      error
	prog     demoProgram
	opts     []runtime.InstanceOption
	rt       *runtime.Runtime
	module   *runtime.Module
	instance *runtime.Instance
	session  *runtime.CallSession
	waiting  string
	waitType isa.ValType
	hasWait  bool
	result   string
	funcs    []funcInfo
	inputs   []textinput.Model
	resume   textinput.Model
	selected int
	focusIdx int
	state    modelState
}

type funcInfo struct {
	name string
	sig  isa.FuncType
}

type modelState int

const (
	stateSelectFunc modelState = iota
	stateInputArgs
	stateAwaitHost
	stateShowResult
)

func newInteractiveModel(prog demoProgram, opts []runtime.InstanceOption) *interactiveModel {
	return &interactiveModel{
		prog:  prog,
		opts:  opts,
		state: stateSelectFunc,
	}
}

type loadedMsg struct {
	err   error
	rt    *runtime.Runtime
	mod   *runtime.Module
	funcs []funcInfo
}

type callResultMsg struct {
	err      error
	result   string
	session  *runtime.CallSession
	waiting  string
	waitType isa.ValType
	hasWait  bool
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.loadProgram
}

func (m *interactiveModel) loadProgram() tea.Msg {
	rt, mod, err := newRuntime(m.prog, false)
	if err != nil {
		return loadedMsg{err: err}
	}

	var funcs []funcInfo
	for _, name := range mod.Exports() {
		sig, _ := mod.ExportType(name)
		funcs = append(funcs, funcInfo{name: name, sig: sig})
	}
	return loadedMsg{rt: rt, mod: mod, funcs: funcs}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.state == stateInputArgs || m.state == stateAwaitHost {
				if msg.String() == "q" {
					break // let the text inputs have the character
				}
			}
			ctx := context.Background()
			if m.instance != nil {
				m.instance.Close(ctx)
			}
			if m.rt != nil {
				m.rt.Close(ctx)
			}
			return m, tea.Quit

		case "up", "k":
			if m.state == stateSelectFunc && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectFunc && m.selected < len(m.funcs)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectFunc:
				m.prepareInputs()
				if len(m.inputs) == 0 {
					return m, m.callFunction
				}
				m.state = stateInputArgs

			case stateInputArgs:
				return m, m.callFunction

			case stateAwaitHost:
				return m, m.resumeSession

			case stateShowResult:
				m.state = stateSelectFunc
				m.result = ""
				m.err = nil
			}

		case "tab":
			if m.state == stateInputArgs && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			switch m.state {
			case stateInputArgs:
				m.state = stateSelectFunc
				m.inputs = nil
			case stateShowResult:
				m.state = stateSelectFunc
				m.result = ""
				m.err = nil
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.rt = msg.rt
		m.module = msg.mod
		m.funcs = msg.funcs

	case callResultMsg:
		m.err = msg.err
		m.result = msg.result
		m.session = msg.session
		if msg.session != nil && msg.err == nil {
			m.waiting = msg.waiting
			m.waitType = msg.waitType
			m.hasWait = msg.hasWait
			m.prepareResumeInput()
			m.state = stateAwaitHost
		} else {
			m.state = stateShowResult
		}
	}

	switch m.state {
	case stateInputArgs:
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	case stateAwaitHost:
		var cmd tea.Cmd
		m.resume, cmd = m.resume.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *interactiveModel) prepareInputs() {
	f := m.funcs[m.selected]
	m.inputs = make([]textinput.Model, len(f.sig.Params))
	for i, p := range f.sig.Params {
		ti := textinput.New()
		ti.Placeholder = p.String()
		ti.Prompt = fmt.Sprintf("arg%d: ", i)
		ti.Width = 40
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

func (m *interactiveModel) prepareResumeInput() {
	ti := textinput.New()
	if m.hasWait {
		ti.Placeholder = m.waitType.String()
	}
	ti.Prompt = "value: "
	ti.Width = 40
	ti.Focus()
	m.resume = ti
}

func (m *interactiveModel) callFunction() tea.Msg {
	ctx := context.Background()

	if m.instance == nil {
		if m.module == nil {
			return callResultMsg{err: fmt.Errorf("program not loaded")}
		}
		inst, err := m.module.Instantiate(ctx, m.opts...)
		if err != nil {
			return callResultMsg{err: err}
		}
		m.instance = inst
	}

	f := m.funcs[m.selected]
	args := make([]engine.Value, len(m.inputs))
	for i, input := range m.inputs {
		v, err := parseValue(strings.TrimSpace(input.Value()), f.sig.Params[i])
		if err != nil {
			return callResultMsg{err: err}
		}
		args[i] = v
	}

	out, err := m.instance.Call(ctx, f.name, args...)
	if err != nil {
		return callResultMsg{err: err}
	}
	return m.settle(ctx, out)
}

func (m *interactiveModel) resumeSession() tea.Msg {
	ctx := context.Background()
	sess := m.session

	if !m.hasWait {
		out, err := sess.Resume(ctx)
		if err != nil {
			return callResultMsg{err: err}
		}
		return m.settle(ctx, out)
	}

	v, err := parseValue(strings.TrimSpace(m.resume.Value()), m.waitType)
	if err != nil {
		return callResultMsg{err: err}
	}
	out, err := sess.Resume(ctx, v)
	if err != nil {
		return callResultMsg{err: err}
	}
	return m.settle(ctx, out)
}

// settle drives fuel-slice suspensions to quiescence and reports the final
// state: a result, a trap, or a wait on an async host function. Programs
// that outlive the round cap are abandoned so the UI stays responsive.
func (m *interactiveModel) settle(ctx context.Context, out *runtime.Outcome) tea.Msg {
	const maxRounds = 10000
	rounds := 0
	for {
		switch {
		case out.Completed():
			msg := callResultMsg{result: "completed"}
			if v, has := out.Result(); has {
				msg.result = v.String()
			}
			if rounds > 0 {
				msg.result += fmt.Sprintf("  (%d fuel slice rounds)", rounds)
			}
			return msg

		case out.Trapped() != nil:
			return callResultMsg{err: fmt.Errorf("trap: %v", out.Trapped())}

		default:
			sess := out.Suspended()
			if host := sess.WaitingOn(); host != "" {
				t, has := sess.WaitingType()
				return callResultMsg{session: sess, waiting: host, waitType: t, hasWait: has}
			}
			if rounds >= maxRounds {
				return callResultMsg{err: fmt.Errorf("still suspended after %d fuel slices", rounds)}
			}
			rounds++
			next, err := sess.Resume(ctx)
			if err != nil {
				return callResultMsg{err: err}
			}
			out = next
		}
	}
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	if len(m.funcs) == 0 {
		return "Loading program..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("s1vm"))
	b.WriteString(" ")
	b.WriteString(m.prog.name)
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectFunc:
		b.WriteString("Select a function to call:\n\n")
		for i, f := range m.funcs {
			cursor := "  "
			if i == m.selected {
				cursor = "> "
				b.WriteString(selectedStyle.Render(cursor + m.formatFunc(f)))
			} else {
				b.WriteString(cursor + m.formatFunc(f))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter call • q quit"))

	case stateInputArgs:
		f := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Calling %s\n\n", funcStyle.Render(f.name)))
		for i, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString(" ")
			b.WriteString(typeStyle.Render(f.sig.Params[i].String()))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter call • esc back"))

	case stateAwaitHost:
		b.WriteString(fmt.Sprintf("Suspended waiting on host %s\n\n", funcStyle.Render(m.waiting)))
		if m.hasWait {
			b.WriteString(m.resume.View())
			b.WriteString(" ")
			b.WriteString(typeStyle.Render(m.waitType.String()))
			b.WriteString("\n\n")
			b.WriteString(helpStyle.Render("enter resume with value"))
		} else {
			b.WriteString(helpStyle.Render("enter resume"))
		}

	case stateShowResult:
		f := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", funcStyle.Render(f.name)))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func (m *interactiveModel) formatFunc(f funcInfo) string {
	var params []string
	for _, p := range f.sig.Params {
		params = append(params, typeStyle.Render(p.String()))
	}
	result := ""
	if f.sig.HasResult() {
		result = " -> " + typeStyle.Render(f.sig.Results[0].String())
	}
	return funcStyle.Render(f.name) + "(" + strings.Join(params, ", ") + ")" + result
}

func runInteractive(prog demoProgram, opts []runtime.InstanceOption) error {
	p := tea.NewProgram(newInteractiveModel(prog, opts), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
