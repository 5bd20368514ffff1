package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/wifiboot/internal/credstore"
	"github.com/muurk/wifiboot/internal/deviceclient"
	"github.com/muurk/wifiboot/internal/discovery"
	"github.com/muurk/wifiboot/internal/server"
)

// DeviceAPI is the part of the device client the dashboard uses.
type DeviceAPI interface {
	Info(ctx context.Context) (*server.Status, error)
	PushCredentials(ctx context.Context, creds credstore.Credentials) (string, error)
}

// ClientFactory returns a client for a selected device.
type ClientFactory func(*discovery.Device) DeviceAPI

// DefaultClient talks to the device over HTTP.
func DefaultClient(d *discovery.Device) DeviceAPI {
	return deviceclient.NewClientWithURL(d.BaseURL())
}

type statusMsg struct {
	status *server.Status
	err    error
}

type provisionMsg struct {
	reply string
	err   error
}

type backMsg struct{}

type dashboardKeyMap struct {
	Refresh   key.Binding
	Provision key.Binding
	Back      key.Binding
	Quit      key.Binding
}

func (k dashboardKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Refresh, k.Provision, k.Back, k.Quit}
}

func (k dashboardKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Refresh, k.Provision}, {k.Back, k.Quit}}
}

type formKeyMap struct {
	Next   key.Binding
	Submit key.Binding
	Cancel key.Binding
}

func (k formKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Submit, k.Cancel}
}

func (k formKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Next, k.Submit, k.Cancel}}
}

const (
	fieldSSID = iota
	fieldPassword
)

// DashboardModel shows one device's status and provisions new credentials.
type DashboardModel struct {
	Device *discovery.Device
	Status *server.Status
	Err    error

	Loading bool
	Sending bool

	// Provisioning form
	Editing bool
	Inputs  []textinput.Model
	Focus   int
	Reply   string

	Width    int
	Spinner  spinner.Model
	Help     help.Model
	Keys     dashboardKeyMap
	FormKeys formKeyMap

	client DeviceAPI
}

// NewDashboardModel creates the dashboard for device.
func NewDashboardModel(device *discovery.Device, client DeviceAPI) DashboardModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	ssid := textinput.New()
	ssid.Placeholder = "network name"
	ssid.CharLimit = credstore.SSIDSize
	ssid.Width = 34

	password := textinput.New()
	password.Placeholder = "passphrase (empty for open network)"
	password.CharLimit = credstore.PasswordSize
	password.Width = 40
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'

	return DashboardModel{
		Device:  device,
		Loading: true,
		Inputs:  []textinput.Model{ssid, password},
		Spinner: s,
		Help:    help.New(),
		Keys: dashboardKeyMap{
			Refresh:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
			Provision: key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "provision network")),
			Back:      key.NewBinding(key.WithKeys("b", "esc"), key.WithHelp("b", "back")),
			Quit:      key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
		},
		FormKeys: formKeyMap{
			Next:   key.NewBinding(key.WithKeys("tab", "shift+tab", "up", "down"), key.WithHelp("tab", "next field")),
			Submit: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
			Cancel: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		},
		client: client,
	}
}

// Init fetches the device status.
func (m DashboardModel) Init() tea.Cmd {
	return tea.Batch(m.fetchStatus(), m.Spinner.Tick)
}

func (m DashboardModel) fetchStatus() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		status, err := client.Info(context.Background())
		return statusMsg{status: status, err: err}
	}
}

func (m DashboardModel) pushCredentials(creds credstore.Credentials) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		reply, err := client.PushCredentials(context.Background(), creds)
		return provisionMsg{reply: reply, err: err}
	}
}

// Update handles messages for the dashboard.
func (m DashboardModel) Update(msg tea.Msg) (DashboardModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		return m, nil

	case statusMsg:
		m.Loading = false
		m.Status, m.Err = msg.status, msg.err
		return m, nil

	case provisionMsg:
		m.Sending = false
		if msg.err != nil {
			m.Err = msg.err
			return m, nil
		}
		m.Err = nil
		m.Editing = false
		m.Reply = msg.reply
		return m, nil

	case spinner.TickMsg:
		if !m.Loading && !m.Sending {
			return m, nil
		}
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.Editing {
			return m.updateForm(msg)
		}
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m DashboardModel) updateKeys(msg tea.KeyMsg) (DashboardModel, tea.Cmd) {
	switch {
	case key.Matches(msg, m.Keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.Keys.Back):
		return m, func() tea.Msg { return backMsg{} }

	case key.Matches(msg, m.Keys.Refresh):
		if m.Loading {
			return m, nil
		}
		m.Loading = true
		m.Err = nil
		return m, tea.Batch(m.fetchStatus(), m.Spinner.Tick)

	case key.Matches(msg, m.Keys.Provision):
		m.Editing = true
		m.Reply = ""
		m.Err = nil
		m.Focus = fieldSSID
		for i := range m.Inputs {
			m.Inputs[i].SetValue("")
		}
		return m, m.focusInputs()
	}
	return m, nil
}

func (m DashboardModel) updateForm(msg tea.KeyMsg) (DashboardModel, tea.Cmd) {
	if m.Sending {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.FormKeys.Cancel):
		m.Editing = false
		m.Err = nil
		for i := range m.Inputs {
			m.Inputs[i].Blur()
		}
		return m, nil

	case key.Matches(msg, m.FormKeys.Next):
		m.Focus = (m.Focus + 1) % len(m.Inputs)
		return m, m.focusInputs()

	case key.Matches(msg, m.FormKeys.Submit):
		if m.Focus == fieldSSID {
			m.Focus = fieldPassword
			return m, m.focusInputs()
		}
		creds, err := credstore.NewCredentials(
			strings.TrimSpace(m.Inputs[fieldSSID].Value()),
			m.Inputs[fieldPassword].Value(),
		)
		if err == nil && creds.SSID == "" {
			err = errEmptySSID
		}
		if err != nil {
			m.Err = err
			return m, nil
		}
		m.Sending = true
		m.Err = nil
		return m, tea.Batch(m.pushCredentials(creds), m.Spinner.Tick)
	}

	var cmd tea.Cmd
	m.Inputs[m.Focus], cmd = m.Inputs[m.Focus].Update(msg)
	return m, cmd
}

// focusInputs focuses the current field and blurs the rest.
func (m DashboardModel) focusInputs() tea.Cmd {
	var cmd tea.Cmd
	for i := range m.Inputs {
		if i == m.Focus {
			cmd = m.Inputs[i].Focus()
			continue
		}
		m.Inputs[i].Blur()
	}
	return cmd
}

// View renders the dashboard
func (m DashboardModel) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("  " + deviceItem{device: m.Device}.Title()))
	b.WriteString("\n")

	switch {
	case m.Loading && m.Status == nil:
		b.WriteString("  " + m.Spinner.View() + " Fetching status...\n")
	case m.Status != nil:
		var info strings.Builder
		info.WriteString(renderField("Address", m.Device.Addr()))
		info.WriteString(renderField("Message", m.Status.Message))
		info.WriteString(renderField("Info", m.Status.ExterInfo))
		info.WriteString(renderField("Hostname", m.Status.Hostname))
		info.WriteString(renderField("Version", m.Status.Version))
		info.WriteString(renderField("State", m.Status.State))
		info.WriteString(renderField("Network", m.Status.SSID))
		b.WriteString(InfoBoxStyle.Render(strings.TrimRight(info.String(), "\n")))
		b.WriteString("\n")
	}

	if m.Editing {
		b.WriteString("\n")
		b.WriteString(SubtitleStyle.Render("  New credentials apply at the device's next boot"))
		b.WriteString("\n\n  SSID:       ")
		b.WriteString(m.Inputs[fieldSSID].View())
		b.WriteString("\n  Passphrase: ")
		b.WriteString(m.Inputs[fieldPassword].View())
		b.WriteString("\n")
		if m.Sending {
			b.WriteString("\n  " + m.Spinner.View() + " Sending...\n")
		}
	}

	if m.Reply != "" {
		b.WriteString("\n")
		b.WriteString(RenderSuccess(m.Reply))
		b.WriteString("\n")
	}
	if m.Err != nil {
		b.WriteString("\n")
		b.WriteString(RenderError(deviceclient.GetShortErrorMessage(m.Err)))
		b.WriteString("\n")
	}

	helpText := m.Help.View(m.Keys)
	if m.Editing {
		helpText = m.Help.View(m.FormKeys)
	}
	return RenderApplicationContainer(b.String(), helpText, m.Width)
}
