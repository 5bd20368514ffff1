// Package tui implements the operator wizard for wifiboot devices.
//
// The wizard is a Bubble Tea program with two screens:
//   - Discovery: browse mDNS for control servers or enter an address by hand
//   - Dashboard: show a device's status and push new network credentials
//
// Both screens render through RenderApplicationContainer so the header and
// help footer stay in place while the content changes.
//
// # Usage
//
//	app := tui.NewAppModel(tui.DefaultScan, tui.DefaultClient, nil)
//	if _, err := tea.NewProgram(app, tea.WithAltScreen()).Run(); err != nil {
//	    return err
//	}
//
// Credentials pushed from the dashboard are stored by the device and take
// effect on its next boot.
package tui
