package tui

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/wifiboot/internal/discovery"
)

// ScanFunc finds devices on the network.
type ScanFunc func() ([]*discovery.Device, error)

// DefaultScan browses mDNS for the default scan timeout.
func DefaultScan() ([]*discovery.Device, error) {
	return discovery.NewScanner().ScanForDevices()
}

// Messages for async operations
type scanStartMsg struct{}
type scanCompleteMsg struct {
	devices []*discovery.Device
	err     error
}
type deviceSelectedMsg struct {
	device *discovery.Device
}

// discoveryKeyMap defines key bindings for the device list
type discoveryKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Enter  key.Binding
	Rescan key.Binding
	Manual key.Binding
	Quit   key.Binding
}

func (k discoveryKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Enter, k.Rescan, k.Manual, k.Quit}
}

func (k discoveryKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Enter},
		{k.Rescan, k.Manual, k.Quit},
	}
}

// manualModeKeyMap defines key bindings for manual address entry
type manualModeKeyMap struct {
	Confirm key.Binding
	Cancel  key.Binding
}

func (m manualModeKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{m.Confirm, m.Cancel}
}

func (m manualModeKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{m.Confirm, m.Cancel}}
}

// deviceItem wraps a Device for use with bubbles/list
type deviceItem struct {
	device *discovery.Device
}

func (d deviceItem) FilterValue() string {
	return d.device.Hostname + " " + d.device.IP + " " + d.device.Board
}

func (d deviceItem) Title() string {
	if d.device.Instance == manualInstance {
		return "Manual: " + d.device.Addr()
	}
	return strings.TrimSuffix(d.device.Hostname, ".")
}

func (d deviceItem) Description() string {
	board := d.device.Board
	if board == "" {
		board = "unknown board"
	}
	return fmt.Sprintf("%s • %s", d.device.Addr(), board)
}

const manualInstance = "manual"

// DiscoveryModel is the device discovery screen.
type DiscoveryModel struct {
	Scanning   bool
	DeviceList list.Model
	Err        error

	ManualMode bool
	AddrInput  textinput.Model

	Width         int
	Spinner       spinner.Model
	ScanStartTime time.Time
	Help          help.Model
	Keys          discoveryKeyMap
	ManualKeys    manualModeKeyMap

	scan ScanFunc
}

// NewDiscoveryModel creates the discovery screen. A nil scan uses DefaultScan.
func NewDiscoveryModel(scan ScanFunc) DiscoveryModel {
	if scan == nil {
		scan = DefaultScan
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	addrInput := textinput.New()
	addrInput.Placeholder = "192.168.4.16 or 192.168.4.16:8080"
	addrInput.CharLimit = 64
	addrInput.Width = 40

	deviceList := list.New([]list.Item{}, list.NewDefaultDelegate(), MinTerminalWidth-4, 14)
	deviceList.Title = "Discovered Devices"
	deviceList.SetShowStatusBar(false)
	deviceList.SetShowHelp(false)
	deviceList.Styles.Title = TitleStyle

	return DiscoveryModel{
		DeviceList: deviceList,
		AddrInput:  addrInput,
		Spinner:    s,
		Help:       help.New(),
		Keys: discoveryKeyMap{
			Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "move up")),
			Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "move down")),
			Enter:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
			Rescan: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rescan")),
			Manual: key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "manual address")),
			Quit:   key.NewBinding(key.WithKeys("q", "esc"), key.WithHelp("q", "quit")),
		},
		ManualKeys: manualModeKeyMap{
			Confirm: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "confirm")),
			Cancel:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		},
		scan: scan,
	}
}

// Init starts the first scan.
func (m DiscoveryModel) Init() tea.Cmd {
	return m.startScan()
}

func (m DiscoveryModel) startScan() tea.Cmd {
	scan := m.scan
	return tea.Batch(
		func() tea.Msg { return scanStartMsg{} },
		func() tea.Msg {
			devices, err := scan()
			return scanCompleteMsg{devices: devices, err: err}
		},
		m.Spinner.Tick,
	)
}

// Update handles messages for the discovery screen.
func (m DiscoveryModel) Update(msg tea.Msg) (DiscoveryModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.ManualMode {
			return m.updateManualMode(msg)
		}
		if m.DeviceList.FilterState() != list.Filtering {
			if next, cmd, handled := m.updateNormalMode(msg); handled {
				return next, cmd
			}
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.DeviceList.SetWidth(clampWidth(msg.Width) - 8)
		m.DeviceList.SetHeight(max(6, msg.Height-12))

	case scanStartMsg:
		m.Scanning = true
		m.ScanStartTime = time.Now()
		return m, nil

	case scanCompleteMsg:
		m.Scanning = false
		m.Err = msg.err
		items := make([]list.Item, len(msg.devices))
		for i, dev := range msg.devices {
			items[i] = deviceItem{device: dev}
		}
		cmd = m.DeviceList.SetItems(items)
		return m, cmd

	case spinner.TickMsg:
		if !m.Scanning {
			return m, nil
		}
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}

	if !m.Scanning {
		m.DeviceList, cmd = m.DeviceList.Update(msg)
	}
	return m, cmd
}

// updateNormalMode handles the screen's own keys. Unhandled keys fall
// through to the list for navigation and filtering.
func (m DiscoveryModel) updateNormalMode(msg tea.KeyMsg) (DiscoveryModel, tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.Keys.Quit):
		return m, tea.Quit, true

	case key.Matches(msg, m.Keys.Enter):
		if item, ok := m.DeviceList.SelectedItem().(deviceItem); ok {
			device := item.device
			return m, func() tea.Msg { return deviceSelectedMsg{device: device} }, true
		}
		return m, nil, true

	case key.Matches(msg, m.Keys.Rescan):
		if m.Scanning {
			return m, nil, true
		}
		m.Err = nil
		return m, tea.Batch(m.DeviceList.SetItems(nil), m.startScan()), true

	case key.Matches(msg, m.Keys.Manual):
		m.ManualMode = true
		m.AddrInput.SetValue("")
		return m, m.AddrInput.Focus(), true
	}
	return m, nil, false
}

func (m DiscoveryModel) updateManualMode(msg tea.KeyMsg) (DiscoveryModel, tea.Cmd) {
	var cmd tea.Cmd

	switch {
	case key.Matches(msg, m.ManualKeys.Cancel):
		m.ManualMode = false
		m.AddrInput.Blur()
		return m, nil

	case key.Matches(msg, m.ManualKeys.Confirm):
		device, err := manualDevice(m.AddrInput.Value())
		if err != nil {
			m.Err = err
			return m, nil
		}
		m.Err = nil
		items := append([]list.Item{deviceItem{device: device}}, m.DeviceList.Items()...)
		cmd = m.DeviceList.SetItems(items)
		m.DeviceList.Select(0)
		m.ManualMode = false
		m.AddrInput.Blur()
		return m, cmd
	}

	m.AddrInput, cmd = m.AddrInput.Update(msg)
	return m, cmd
}

// manualDevice builds a device entry from "host" or "host:port".
func manualDevice(addr string) (*discovery.Device, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("enter an address")
	}

	host, port := addr, discovery.DefaultPort
	if h, p, err := net.SplitHostPort(addr); err == nil {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 || n > 65535 {
			return nil, fmt.Errorf("invalid port %q", p)
		}
		host, port = h, n
	}

	return &discovery.Device{
		Instance:     manualInstance,
		Hostname:     host,
		IP:           host,
		Port:         port,
		DiscoveredAt: time.Now(),
	}, nil
}

// View renders the discovery screen
func (m DiscoveryModel) View() string {
	var (
		content  string
		helpText string
	)
	switch {
	case m.ManualMode:
		content = m.renderManualEntry()
		helpText = m.Help.View(m.ManualKeys)
	case m.Scanning:
		content = m.renderScanning()
		helpText = SubtitleStyle.Render("scanning...")
	default:
		content = m.renderDeviceResults()
		helpText = m.Help.View(m.Keys)
	}
	return RenderApplicationContainer(content, helpText, m.Width)
}

func (m DiscoveryModel) renderScanning() string {
	elapsed := time.Since(m.ScanStartTime).Round(time.Second)
	return "\n" + TitleStyle.Render(fmt.Sprintf("%s SEARCHING FOR DEVICES", m.Spinner.View())) + "\n" +
		SubtitleStyle.Render(fmt.Sprintf("  Browsing mDNS for wifiboot control servers... (%s)", elapsed)) + "\n"
}

func (m DiscoveryModel) renderDeviceResults() string {
	var b strings.Builder
	b.WriteString("\n")

	switch {
	case m.Err != nil:
		b.WriteString(RenderError(fmt.Sprintf("Scan failed: %v", m.Err)))
		b.WriteString("\n")
	case len(m.DeviceList.Items()) == 0:
		b.WriteString("  ")
		b.WriteString(WarningStyle.Render("⚠ No devices found on your network"))
		b.WriteString("\n\n")
		b.WriteString("  Troubleshooting:\n")
		b.WriteString("    • Devices only advertise after joining the network\n")
		b.WriteString("    • Check that multicast is allowed between you and the device\n")
		b.WriteString("    • Press m to enter an address by hand\n")
	default:
		b.WriteString(m.DeviceList.View())
	}
	return b.String()
}

func (m DiscoveryModel) renderManualEntry() string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(SubtitleStyle.Render("  Enter device address"))
	b.WriteString("\n\n  Address: ")
	b.WriteString(m.AddrInput.View())
	b.WriteString("\n")
	if m.Err != nil {
		b.WriteString("\n")
		b.WriteString(RenderError(m.Err.Error()))
		b.WriteString("\n")
	}
	return b.String()
}
