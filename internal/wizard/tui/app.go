package tui

import (
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/wifiboot/internal/discovery"
)

// Screen represents the current active screen in the application
type Screen string

const (
	ScreenDiscovery Screen = "discovery"
	ScreenDashboard Screen = "dashboard"
)

var errEmptySSID = errors.New("ssid is required")

// AppModel is the top-level coordinator model that manages screen transitions
type AppModel struct {
	CurrentScreen Screen

	DiscoveryModel DiscoveryModel
	DashboardModel DashboardModel

	SelectedDevice *discovery.Device

	Width  int
	Height int

	scan      ScanFunc
	newClient ClientFactory
}

// NewAppModel creates the wizard. With a device it opens straight on the
// dashboard, otherwise it starts with a scan.
func NewAppModel(scan ScanFunc, newClient ClientFactory, device *discovery.Device) AppModel {
	if newClient == nil {
		newClient = DefaultClient
	}

	m := AppModel{
		CurrentScreen:  ScreenDiscovery,
		DiscoveryModel: NewDiscoveryModel(scan),
		SelectedDevice: device,
		scan:           scan,
		newClient:      newClient,
	}
	if device != nil {
		m.CurrentScreen = ScreenDashboard
		m.DashboardModel = NewDashboardModel(device, newClient(device))
	}
	return m
}

// Init initializes the current screen
func (m AppModel) Init() tea.Cmd {
	if m.CurrentScreen == ScreenDashboard {
		return m.DashboardModel.Init()
	}
	return m.DiscoveryModel.Init()
}

// Update handles all messages and routes them to the appropriate screen
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		var cmd tea.Cmd
		m.DiscoveryModel, cmd = m.DiscoveryModel.Update(msg)
		m.DashboardModel.Width = msg.Width
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

	case deviceSelectedMsg:
		m.SelectedDevice = msg.device
		m.CurrentScreen = ScreenDashboard
		m.DashboardModel = NewDashboardModel(msg.device, m.newClient(msg.device))
		m.DashboardModel.Width = m.Width
		return m, m.DashboardModel.Init()

	case backMsg:
		m.CurrentScreen = ScreenDiscovery
		if len(m.DiscoveryModel.DeviceList.Items()) == 0 && !m.DiscoveryModel.Scanning {
			// Opened directly on a device; nothing has been scanned yet.
			return m, m.DiscoveryModel.Init()
		}
		return m, nil
	}

	var cmd tea.Cmd
	switch m.CurrentScreen {
	case ScreenDiscovery:
		m.DiscoveryModel, cmd = m.DiscoveryModel.Update(msg)
	case ScreenDashboard:
		m.DashboardModel, cmd = m.DashboardModel.Update(msg)
	}
	return m, cmd
}

// View renders the current screen
func (m AppModel) View() string {
	if m.CurrentScreen == ScreenDashboard {
		return m.DashboardModel.View()
	}
	return m.DiscoveryModel.View()
}
