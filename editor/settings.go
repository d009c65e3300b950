package main

import (
	"fmt"
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/16n-faderbank/16next-firmware/pkg/settings"
	"github.com/16n-faderbank/16next-firmware/pkg/transport"
)

// showSettingsDialog edits the controller configuration from the last dump.
func showSettingsDialog(state *appState) {
	if !state.connected() {
		return
	}
	sess := state.chain.sess
	d, ok := sess.Last()
	if !ok {
		dialog.ShowInformation("Settings", "No configuration received yet.", state.window)
		return
	}

	cfg := d.Settings
	general, applyGeneral := createGeneralTab(&cfg)
	usb, applyUSB := createRoutingTab("USB", &cfg.USBChannel, &cfg.USBCC, &cfg.USBHighRes)
	trs, applyTRS := createRoutingTab("TRS", &cfg.TRSChannel, &cfg.TRSCC, &cfg.TRSHighRes)
	tabs := container.NewAppTabs(general, usb, trs)

	dlg := dialog.NewCustomConfirm("Settings: "+d.Identity.String(), "Send", "Cancel", tabs, func(send bool) {
		if !send {
			return
		}
		for _, apply := range []func() error{applyGeneral, applyUSB, applyTRS} {
			if err := apply(); err != nil {
				dialog.ShowError(err, state.window)
				return
			}
		}
		if err := sess.Edit(cfg); err != nil {
			dialog.ShowError(fmt.Errorf("failed to send configuration: %w", err), state.window)
			return
		}
		if err := sess.RequestConfig(); err != nil {
			dialog.ShowError(fmt.Errorf("failed to request configuration: %w", err), state.window)
		}
	}, state.window)
	dlg.Resize(fyne.NewSize(700, 600))
	dlg.Show()
}

func createGeneralTab(cfg *settings.Settings) (*container.TabItem, func() error) {
	powerLED := widget.NewCheck("", nil)
	powerLED.SetChecked(cfg.PowerLED)
	midiLED := widget.NewCheck("", nil)
	midiLED.SetChecked(cfg.MIDILED)
	rotated := widget.NewCheck("", nil)
	rotated.SetChecked(cfg.Rotated)
	thru := widget.NewCheck("", nil)
	thru.SetChecked(cfg.MIDIThru)
	role := widget.NewRadioGroup([]string{"Peripheral", "Controller"}, nil)
	role.Horizontal = true
	if cfg.BusController {
		role.SetSelected("Controller")
	} else {
		role.SetSelected("Peripheral")
	}

	faderMin := widget.NewEntry()
	faderMin.SetText(strconv.Itoa(int(cfg.FaderMin)))
	faderMax := widget.NewEntry()
	faderMax.SetText(strconv.Itoa(int(cfg.FaderMax)))

	form := widget.NewForm(
		widget.NewFormItem("Power LED", powerLED),
		widget.NewFormItem("MIDI activity LED", midiLED),
		widget.NewFormItem("Rotated", rotated),
		widget.NewFormItem("Soft MIDI thru", thru),
		widget.NewFormItem("I2C role", role),
		widget.NewFormItem("Fader minimum", faderMin),
		widget.NewFormItem("Fader maximum", faderMax),
	)

	apply := func() error {
		lo, err := parse14(faderMin.Text)
		if err != nil {
			return fmt.Errorf("fader minimum: %w", err)
		}
		hi, err := parse14(faderMax.Text)
		if err != nil {
			return fmt.Errorf("fader maximum: %w", err)
		}
		cfg.PowerLED = powerLED.Checked
		cfg.MIDILED = midiLED.Checked
		cfg.Rotated = rotated.Checked
		cfg.MIDIThru = thru.Checked
		cfg.BusController = role.Selected == "Controller"
		cfg.FaderMin, cfg.FaderMax = lo, hi
		return nil
	}
	return container.NewTabItem("General", form), apply
}

// createRoutingTab edits one output's channel, CC and resolution per fader.
func createRoutingTab(name string, channels, ccs *[settings.Channels]uint8, highRes *[settings.Channels]bool) (*container.TabItem, func() error) {
	var (
		chEntries [settings.Channels]*widget.Entry
		ccEntries [settings.Channels]*widget.Entry
		hrChecks  [settings.Channels]*widget.Check
	)

	grid := container.NewGridWithColumns(4,
		widget.NewLabelWithStyle("Fader", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		widget.NewLabelWithStyle("Channel", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		widget.NewLabelWithStyle("CC", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		widget.NewLabelWithStyle("14-bit", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
	)
	for i := range settings.Channels {
		chEntries[i] = widget.NewEntry()
		chEntries[i].SetText(strconv.Itoa(int(channels[i])))
		ccEntries[i] = widget.NewEntry()
		ccEntries[i].SetText(strconv.Itoa(int(ccs[i])))
		hrChecks[i] = widget.NewCheck("", nil)
		hrChecks[i].SetChecked(highRes[i])
		grid.Add(widget.NewLabel(strconv.Itoa(i + 1)))
		grid.Add(chEntries[i])
		grid.Add(ccEntries[i])
		grid.Add(hrChecks[i])
	}

	apply := func() error {
		var ch, cc [settings.Channels]uint8
		for i := range settings.Channels {
			var err error
			if ch[i], err = parseRange(chEntries[i].Text, 1, 16); err != nil {
				return fmt.Errorf("%s fader %d channel: %w", name, i+1, err)
			}
			if cc[i], err = parseRange(ccEntries[i].Text, 0, 127); err != nil {
				return fmt.Errorf("%s fader %d CC: %w", name, i+1, err)
			}
		}
		*channels, *ccs = ch, cc
		for i := range settings.Channels {
			highRes[i] = hrChecks[i].Checked
		}
		return nil
	}
	return container.NewTabItem(name, container.NewVScroll(grid)), apply
}

func parseRange(s string, lo, hi int) (uint8, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("%d outside %d..%d", v, lo, hi)
	}
	return uint8(v), nil
}

func parse14(s string) (uint16, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if v < 0 || v > 1<<14-1 {
		return 0, fmt.Errorf("%d outside 0..16383", v)
	}
	return uint16(v), nil
}

// showPrefsDialog edits the editor preferences.
func showPrefsDialog(state *appState) {
	tabs := container.NewAppTabs(
		createPortTab(state),
		createDisplayTab(state),
	)
	d := dialog.NewCustom("Preferences", "Close", tabs, state.window)
	d.Resize(fyne.NewSize(600, 400))
	d.Show()
}

func createPortTab(state *appState) *container.TabItem {
	ports, err := transport.Ports()
	portOptions := []string{}
	portMap := make(map[string]string)
	if err == nil {
		for _, port := range ports {
			display := port.Name
			if port.Description != "" && port.Description != port.Name {
				display = fmt.Sprintf("%s (%s)", port.Name, port.Description)
			}
			portOptions = append(portOptions, display)
			portMap[display] = port.Name
		}
	}

	current := state.prefs.Port
	currentDisplay := current
	found := false
	for _, opt := range portOptions {
		if portMap[opt] == current {
			currentDisplay = opt
			found = true
			break
		}
	}
	if !found && current != "" {
		portOptions = append(portOptions, current)
		portMap[current] = current
	}

	portSelect := widget.NewSelect(portOptions, nil)
	if currentDisplay != "" {
		portSelect.SetSelected(currentDisplay)
	}
	baudEntry := widget.NewEntry()
	baudEntry.SetText(strconv.Itoa(state.prefs.Baud))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Serial Port", Widget: portSelect},
			{Text: "Baud", Widget: baudEntry},
		},
		OnSubmit: func() {
			if portSelect.Selected != "" {
				port := portMap[portSelect.Selected]
				if port == "" {
					port = portSelect.Selected
				}
				state.prefs.Port = port
			}
			if baud, err := strconv.Atoi(baudEntry.Text); err == nil && baud > 0 {
				state.prefs.Baud = baud
			}
			savePrefs(state)
		},
	}
	return container.NewTabItem("Serial", form)
}

func createDisplayTab(state *appState) *container.TabItem {
	windowEntry := widget.NewEntry()
	windowEntry.SetText(state.prefs.Window.String())
	thresholdEntry := widget.NewEntry()
	thresholdEntry.SetText(fmt.Sprintf("%.3f", state.prefs.Threshold))
	averageEntry := widget.NewEntry()
	averageEntry.SetText(strconv.Itoa(state.prefs.AverageSamples))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Window", Widget: windowEntry},
			{Text: "Move threshold (travels/s)", Widget: thresholdEntry},
			{Text: "Average Samples (0=disabled)", Widget: averageEntry},
		},
		OnSubmit: func() {
			if w, err := time.ParseDuration(windowEntry.Text); err == nil && w > 0 {
				state.prefs.Window = w
			}
			if th, err := strconv.ParseFloat(thresholdEntry.Text, 64); err == nil && th > 0 {
				state.prefs.Threshold = th
			}
			if avg, err := strconv.Atoi(averageEntry.Text); err == nil && avg >= 0 {
				state.prefs.AverageSamples = avg
			}
			savePrefs(state)
		},
	}
	return container.NewTabItem("Display", form)
}

// savePrefs writes the preferences; they apply on the next connect.
func savePrefs(state *appState) {
	if err := state.prefs.save(state.prefsFile); err != nil {
		dialog.ShowError(err, state.window)
	}
}
