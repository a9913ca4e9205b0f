package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.bytecodealliance.org/wit"
	"go.uber.org/zap"

	"github.com/wippyai/component-host/executor"
	"github.com/wippyai/component-host/host"
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
	err         error
	host        *host.Host
	logger      *zap.Logger
	filename    string
	componentID string
	title       string
	risk        string
	result      string
	elapsed     string
	funcs       []funcInfo
	inputs      []textinput.Model
	selected    int
	focusIdx    int
	state       modelState
}

type funcInfo struct {
	name       string
	resultType string
	params     []paramInfo
}

type paramInfo struct {
	name    string
	witType wit.Type
	typeStr string
}

type modelState int

const (
	stateSelectFunc modelState = iota
	stateInputArgs
	stateShowResult
)

func newInteractiveModel(filename string, logger *zap.Logger) *interactiveModel {
	return &interactiveModel{
		filename: filename,
		logger:   logger,
		state:    stateSelectFunc,
	}
}

type loadedMsg struct {
	err         error
	host        *host.Host
	componentID string
	title       string
	risk        string
	funcs       []funcInfo
}

type callResultMsg struct {
	err     error
	result  string
	elapsed string
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.loadComponent
}

func (m *interactiveModel) loadComponent() tea.Msg {
	ctx := context.Background()

	data, err := os.ReadFile(m.filename)
	if err != nil {
		return loadedMsg{err: err}
	}

	h, err := host.New(ctx, host.Config{Logger: m.logger})
	if err != nil {
		return loadedMsg{err: err}
	}

	id, err := h.Upload(ctx, data, componentName(m.filename))
	if err != nil {
		h.Close(ctx)
		return loadedMsg{err: err}
	}

	tc, ok := h.Component(id)
	if !ok {
		h.Close(ctx)
		return loadedMsg{err: fmt.Errorf("component %s missing after upload", id)}
	}

	var funcs []funcInfo
	for _, method := range tc.Module.Methods() {
		fi := funcInfo{name: method.Name}
		for _, p := range method.Params {
			fi.params = append(fi.params, paramInfo{
				name:    p.Name,
				witType: p.Type,
				typeStr: witTypeStr(p.Type),
			})
		}
		if len(method.Results) > 0 {
			fi.resultType = witTypeStr(method.Results[0])
		}
		funcs = append(funcs, fi)
	}
	sort.Slice(funcs, func(i, j int) bool { return funcs[i].name < funcs[j].name })

	return loadedMsg{
		host:        h,
		componentID: id,
		title:       tc.Metadata.Name,
		risk:        tc.Security.Risk.String(),
		funcs:       funcs,
	}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.host != nil {
				m.host.Close(context.Background())
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
		m.host = msg.host
		m.componentID = msg.componentID
		m.title = msg.title
		m.risk = msg.risk
		m.funcs = msg.funcs

	case callResultMsg:
		m.result = msg.result
		m.elapsed = msg.elapsed
		m.err = msg.err
		m.state = stateShowResult
	}

	if m.state == stateInputArgs {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m *interactiveModel) prepareInputs() {
	f := m.funcs[m.selected]
	m.inputs = make([]textinput.Model, len(f.params))
	for i, p := range f.params {
		ti := textinput.New()
		ti.Placeholder = p.typeStr
		ti.Prompt = p.name + ": "
		ti.Width = 40
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

func (m *interactiveModel) callFunction() tea.Msg {
	if m.host == nil {
		return callResultMsg{err: fmt.Errorf("component not loaded")}
	}

	f := m.funcs[m.selected]
	args := make([]any, len(m.inputs))
	for i, input := range m.inputs {
		args[i] = convertArg(input.Value(), f.params[i].witType)
	}

	result := m.host.Execute(context.Background(), executor.Request{
		ComponentID: m.componentID,
		Method:      f.name,
		Args:        args,
	})
	if !result.Success {
		return callResultMsg{err: fmt.Errorf("%s", result.Error)}
	}

	return callResultMsg{
		result:  fmt.Sprintf("%v", result.Value),
		elapsed: result.Elapsed.String(),
	}
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	if len(m.funcs) == 0 {
		return "Loading component..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Component Host"))
	b.WriteString(" ")
	b.WriteString(m.title)
	b.WriteString(helpStyle.Render(" risk:" + m.risk))
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectFunc:
		b.WriteString("Select a method to call:\n\n")
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
			b.WriteString(typeStyle.Render(f.params[i].typeStr))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter call • esc back"))

	case stateShowResult:
		f := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", funcStyle.Render(f.name)))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
			b.WriteString(helpStyle.Render("  (" + m.elapsed + ")"))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func (m *interactiveModel) formatFunc(f funcInfo) string {
	var params []string
	for _, p := range f.params {
		params = append(params, p.name+": "+typeStyle.Render(p.typeStr))
	}
	result := ""
	if f.resultType != "" {
		result = " -> " + typeStyle.Render(f.resultType)
	}
	return funcStyle.Render(f.name) + "(" + strings.Join(params, ", ") + ")" + result
}

func runInteractive(filename string, logger *zap.Logger) error {
	p := tea.NewProgram(newInteractiveModel(filename, logger), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
