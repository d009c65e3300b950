package main

import (
	"strconv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"github.com/16n-faderbank/16next-firmware/pkg/settings"
)

// createTraceButtons returns one toggle per fader that shows or hides its
// trace on the scope.
func createTraceButtons(state *appState) fyne.CanvasObject {
	box := container.NewHBox()
	for i := range settings.Channels {
		btn := widget.NewButton(strconv.Itoa(i+1), func() {
			handleTraceToggle(state, i)
		})
		btn.Importance = widget.HighImportance
		state.traceBtns[i] = btn
		box.Add(btn)
	}
	return box
}

func handleTraceToggle(state *appState, fader int) {
	state.hidden[fader] = !state.hidden[fader]
	if state.scopeWidget != nil {
		state.scopeWidget.SetVisible(fader, !state.hidden[fader])
	}
	updateTraceButton(state.traceBtns[fader], !state.hidden[fader])
}

func updateTraceButton(btn *widget.Button, visible bool) {
	if visible {
		btn.Importance = widget.HighImportance
	} else {
		btn.Importance = widget.MediumImportance
	}
	btn.Refresh()
}
