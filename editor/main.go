package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/16n-faderbank/16next-firmware/editor/session"
	"github.com/16n-faderbank/16next-firmware/pkg/monitor"
	"github.com/16n-faderbank/16next-firmware/pkg/sample"
	"github.com/16n-faderbank/16next-firmware/pkg/scope"
	"github.com/16n-faderbank/16next-firmware/pkg/settings"
	"github.com/16n-faderbank/16next-firmware/pkg/transport"
)

const prefsFile = "editor.yaml"

func main() {
	var (
		portFlag           = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyACM0)")
		prefsFlag          = flag.String("prefs", prefsFile, "Preferences file path")
		mockFlag           = flag.Bool("mock", false, "Run an in-process controller instead of opening a serial port")
		averageSamplesFlag = flag.Int("average-samples", -1, "Number of samples to average (0 = disabled, overrides preferences)")
	)
	flag.Parse()

	p, err := loadPrefs(*prefsFlag)
	if err != nil {
		log.Fatalf("Failed to load preferences: %v", err)
	}
	if *portFlag != "" {
		p.Port = *portFlag
	}
	if *averageSamplesFlag >= 0 {
		p.AverageSamples = *averageSamplesFlag
	}

	application := app.NewWithID("com.16n-faderbank.editor")
	window := application.NewWindow("16n Editor")
	window.Resize(fyne.NewSize(1200, 800))
	window.CenterOnScreen()

	state := &appState{
		prefs:     p,
		prefsFile: *prefsFlag,
		window:    window,
		useMock:   *mockFlag,
	}

	toolbar := createToolbar(state)
	state.scopeWidget = scope.New(p.Window)
	state.status = widget.NewLabel("Disconnected")

	window.SetContent(container.NewBorder(toolbar, state.status, nil, nil, state.scopeWidget))
	window.SetOnClosed(func() {
		closeChain(state.chain)
	})
	window.ShowAndRun()
}

// chain tracks the goroutines of one connection for shutdown.
type chain struct {
	sess        *session.Session
	cancel      context.CancelFunc
	monitorDone chan struct{}
}

type appState struct {
	prefs     *prefs
	prefsFile string
	useMock   bool

	window      fyne.Window
	scopeWidget *scope.ScopeWidget
	status      *widget.Label
	connectBtn  *widget.Button
	editBtn     *widget.Button
	fetchBtn    *widget.Button
	resetBtn    *widget.Button
	traceBtns   [settings.Channels]*widget.Button
	hidden      [settings.Channels]bool

	chain *chain

	lastUpdateTime time.Time
	updateMu       sync.Mutex
}

func (s *appState) connected() bool { return s.chain != nil }

func createToolbar(state *appState) fyne.CanvasObject {
	state.connectBtn = widget.NewButtonWithIcon("", theme.LoginIcon(), func() {
		handleConnect(state)
	})
	state.fetchBtn = widget.NewButtonWithIcon("", theme.DownloadIcon(), func() {
		handleFetch(state)
	})
	state.editBtn = widget.NewButtonWithIcon("", theme.DocumentCreateIcon(), func() {
		showSettingsDialog(state)
	})
	state.resetBtn = widget.NewButtonWithIcon("", theme.HistoryIcon(), func() {
		handleFactoryReset(state)
	})
	prefsBtn := widget.NewButtonWithIcon("", theme.SettingsIcon(), func() {
		showPrefsDialog(state)
	})
	state.fetchBtn.Disable()
	state.editBtn.Disable()
	state.resetBtn.Disable()

	return container.NewBorder(
		nil,
		nil,
		container.NewHBox(state.connectBtn, prefsBtn, state.fetchBtn, state.editBtn, state.resetBtn),
		createTraceButtons(state),
		nil,
	)
}

func setConnected(state *appState, on bool) {
	for _, b := range []*widget.Button{state.fetchBtn, state.editBtn, state.resetBtn} {
		if on {
			b.Enable()
		} else {
			b.Disable()
		}
	}
}

func closeChain(c *chain) {
	if c == nil {
		return
	}
	c.cancel()
	if err := c.sess.Close(); err != nil {
		slog.Warn("closing session", "error", err)
	}
	<-c.monitorDone
}

func handleConnect(state *appState) {
	if state.connected() {
		closeChain(state.chain)
		state.chain = nil
		setConnected(state, false)
		state.status.SetText("Disconnected")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	var (
		link transport.Link
		err  error
	)
	if state.useMock {
		link, err = startMock(ctx)
	} else {
		link = transport.NewSerial(state.prefs.Port, state.prefs.Baud, 500)
	}
	if err != nil {
		cancel()
		dialog.ShowError(fmt.Errorf("failed to start mocked controller: %w", err), state.window)
		return
	}

	sess, err := session.Open(link, 500)
	if err != nil {
		cancel()
		dialog.ShowError(fmt.Errorf("failed to connect to %s: %w", state.prefs.Port, err), state.window)
		return
	}

	m := monitor.New(monitor.Options{Window: state.prefs.Window, Threshold: state.prefs.Threshold})
	const updateInterval = 16 * time.Millisecond
	m.OnUpdate(func(u monitor.Update) {
		state.updateMu.Lock()
		now := time.Now()
		if now.Sub(state.lastUpdateTime) < updateInterval {
			state.updateMu.Unlock()
			return
		}
		state.lastUpdateTime = now
		state.updateMu.Unlock()

		fyne.Do(func() {
			state.scopeWidget.UpdateData(u)
		})
	})

	sess.OnDump(func(d session.Dump) {
		fyne.Do(func() {
			state.status.SetText(d.Identity.String())
		})
	})

	var samples <-chan sample.Sample = sess.Samples()
	if state.prefs.AverageSamples > 0 {
		samples = sample.NewAveragingConverter(state.prefs.AverageSamples, 500)(samples)
	}

	monitorDone := make(chan struct{})
	go func() {
		defer close(monitorDone)
		m.ProcessSamples(samples)
	}()

	state.chain = &chain{sess: sess, cancel: cancel, monitorDone: monitorDone}
	state.scopeWidget.Clear()
	setConnected(state, true)
	state.status.SetText("Connected, requesting configuration")

	if err := sess.RequestConfig(); err != nil {
		dialog.ShowError(fmt.Errorf("failed to request configuration: %w", err), state.window)
	}
}

func handleFetch(state *appState) {
	if !state.connected() {
		return
	}
	if err := state.chain.sess.RequestConfig(); err != nil {
		dialog.ShowError(fmt.Errorf("failed to request configuration: %w", err), state.window)
	}
}

func handleFactoryReset(state *appState) {
	if !state.connected() {
		return
	}
	dialog.ShowConfirm("Factory reset", "Restore the controller's factory configuration?", func(ok bool) {
		if !ok {
			return
		}
		sess := state.chain.sess
		if err := sess.FactoryReset(); err != nil {
			dialog.ShowError(fmt.Errorf("factory reset failed: %w", err), state.window)
			return
		}
		if err := sess.RequestConfig(); err != nil {
			dialog.ShowError(fmt.Errorf("failed to request configuration: %w", err), state.window)
		}
	}, state.window)
}
