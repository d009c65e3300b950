// Command faderbank-sim runs the controller on a host. Faders are
// simulated; MIDI goes to serial ports or, without a USB port, to a local
// monitor that decodes the stream and logs fader moves.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/viper"

	"github.com/16n-faderbank/16next-firmware/pkg/bus"
	"github.com/16n-faderbank/16next-firmware/pkg/bus/periphbus"
	"github.com/16n-faderbank/16next-firmware/pkg/config"
	"github.com/16n-faderbank/16next-firmware/pkg/control"
	"github.com/16n-faderbank/16next-firmware/pkg/monitor"
	"github.com/16n-faderbank/16next-firmware/pkg/sample"
	"github.com/16n-faderbank/16next-firmware/pkg/settings"
	"github.com/16n-faderbank/16next-firmware/pkg/store"
	"github.com/16n-faderbank/16next-firmware/pkg/transport"
)

const tickInterval = time.Millisecond

func main() {
	var (
		configFlag = flag.String("config", "", "Settings file (default: faderbank.yaml in ~/.config/faderbank or .)")
		debugFlag  = flag.Bool("debug", false, "Debug logging and settings dump")
		listFlag   = flag.Bool("list", false, "List serial ports and profile presets, then exit")
	)
	flag.Parse()

	if *listFlag {
		if err := list(os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	v := viper.New()
	if err := setupViper(v, *configFlag); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	sc, err := loadSimConfig(v)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	_, closer := startLogger(sc.Log.File, sc.Log.Level, *debugFlag)
	defer closer.Close()
	if used := v.ConfigFileUsed(); used != "" {
		logger.Info("using settings file", "path", used)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if sc.Sim.Duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, sc.Sim.Duration)
		defer cancel()
	}

	if err := run(ctx, sc, *debugFlag); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		logger.Error("simulator stopped", "error", err)
		os.Exit(1)
	}
}

func list(w io.Writer) error {
	ports, err := transport.Ports()
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "serial ports:")
	for _, p := range ports {
		fmt.Fprintf(w, "  %s\n", p.Name)
	}
	fmt.Fprintln(w, "profiles:")
	for _, name := range config.Presets() {
		fmt.Fprintf(w, "  %s\n", name)
	}
	return nil
}

func loadProfile(name string) (*config.Profile, error) {
	if p, err := config.Preset(name); err == nil {
		return p, nil
	}
	if _, err := os.Stat(name); err != nil {
		return nil, fmt.Errorf("profile %q is neither a preset nor a file: %w", name, err)
	}
	return config.Load(name)
}

func run(ctx context.Context, sc *simConfig, debug bool) error {
	profile, err := loadProfile(sc.Profile)
	if err != nil {
		return err
	}
	logger.Info("profile loaded", "name", profile.Name, "faders", profile.Faders.Count, "version", fmt.Sprint(profile.Version()))

	var i2c *periphbus.Bus
	if sc.I2C.Bus != "" {
		i2c, err = periphbus.Open(sc.I2C.Bus, profile.Bus.Frequency)
		if err != nil {
			return err
		}
		defer i2c.Close()
	}

	st, closeStore, err := openStore(profile.Storage, sc.Storage.Path, i2c)
	if err != nil {
		return err
	}
	defer closeStore()

	usb, host, err := openUSB(sc)
	if err != nil {
		return err
	}
	defer usb.Close()

	b := newBoard(profile.Faders.ADCBits, sc.Sim.Noise, sc.Sim.Period)
	hw := control.Hardware{
		Mux:   b,
		ADC:   b,
		USB:   usb,
		LED:   &led{},
		Delay: time.Sleep,
	}

	if sc.TRS.Port != "" {
		trs := transport.NewSerial(sc.TRS.Port, sc.TRS.Baud, 0)
		if err := trs.Connect(); err != nil {
			return err
		}
		defer trs.Close()
		hw.UART = trs
	}

	if i2c != nil {
		hw.Bus = bus.NewController(i2c, profile.Bus)
	}

	sched := control.New(profile, hw, st)
	if err := sched.Start(); err != nil {
		logger.Warn("running with factory settings", "error", err)
	}
	if debug {
		logger.Debug("settings\n" + spew.Sdump(sched.Settings()))
	}
	if sched.Settings().BusController && hw.Bus == nil {
		logger.Warn("bus controller role selected but no i2c bus configured")
	}
	var updates chan settings.Settings
	if host != nil {
		updates = make(chan settings.Settings, 1)
		go runMonitor(ctx, host, sched.Settings(), updates)
	}

	return loop(ctx, sched, usb, profile, updates)
}

// openStore builds the configuration store for the storage kind. Flash
// kinds are emulated by a sector file at path; an eeprom needs the i2c bus.
func openStore(sc config.StorageConfig, path string, i2c *periphbus.Bus) (*store.Store, func() error, error) {
	var dev store.Devices
	closer := func() error { return nil }
	switch sc.Kind {
	case config.StorageFlash, config.StorageFile:
		sector, err := store.OpenFileSector(path, sc.SectorSize, sc.PageSize)
		if err != nil {
			return nil, nil, err
		}
		dev.Sector = sector
		closer = sector.Close
	case config.StorageEEPROM:
		if i2c != nil {
			dev.I2C = i2c
		}
	}
	st, err := store.Open(sc, dev)
	if err != nil {
		closer()
		return nil, nil, err
	}
	return st, closer, nil
}

// loop is the main loop: received MIDI is handled first, then the
// scheduler runs. Settings changed by a received edit are published to
// updates when it is not nil.
func loop(ctx context.Context, sched *control.Scheduler, usb transport.Link, profile *config.Profile, updates chan settings.Settings) error {
	parser := transport.NewParser(profile.Sysex.BufferSize)
	last := sched.Settings()
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	chunks := usb.Chunks()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk, ok := <-chunks:
			if !ok {
				return errors.New("usb link closed")
			}
			now := time.Now()
			parser.Feed(chunk, func(msg []byte) {
				sched.HandleMIDI(msg, now)
			})
			if cur := sched.Settings(); cur != last {
				last = cur
				publish(updates, cur)
			}
		case now := <-ticker.C:
			sched.Tick(now)
		}
	}
}

// openUSB connects the USB MIDI stream. Without a port the device end of an
// in-memory pipe is returned along with the host end.
func openUSB(sc *simConfig) (transport.Link, *transport.Mock, error) {
	if sc.USB.Port != "" {
		s := transport.NewSerial(sc.USB.Port, sc.USB.Baud, 0)
		if err := s.Connect(); err != nil {
			return nil, nil, err
		}
		logger.Info("usb midi on serial port", "port", sc.USB.Port)
		return s, nil, nil
	}

	device, host := transport.NewPipe(0)
	device.Record(false)
	if err := device.Connect(); err != nil {
		return nil, nil, err
	}
	if err := host.Connect(); err != nil {
		return nil, nil, err
	}
	logger.Info("no usb port configured, monitoring locally")
	return device, host, nil
}

// publish replaces any pending settings in updates with cfg.
func publish(updates chan settings.Settings, cfg settings.Settings) {
	if updates == nil {
		return
	}
	for {
		select {
		case updates <- cfg:
			return
		default:
		}
		select {
		case <-updates:
		default:
		}
	}
}

// runMonitor decodes the controller's output with the routing in cfg,
// switching to each settings value received from updates, and logs
// completed moves.
func runMonitor(ctx context.Context, host *transport.Mock, cfg settings.Settings, updates <-chan settings.Settings) {
	go func() {
		<-ctx.Done()
		host.Close()
	}()

	window := monitor.DefaultOptions().Window
	samples := sample.NewFollowingConverter(cfg, updates, 0)(host.Chunks())
	m := monitor.New(monitor.DefaultOptions())
	logged := map[time.Time]bool{}
	m.OnUpdate(func(u monitor.Update) {
		for _, mv := range u.Moves {
			if mv.Active || logged[mv.StartTime] {
				continue
			}
			logged[mv.StartTime] = true
			logger.Info("fader moved", "fader", mv.Fader+1, "from", fmt.Sprintf("%.2f", mv.From), "to", fmt.Sprintf("%.2f", mv.To), "duration", mv.Duration())
		}
		for start := range logged {
			if time.Since(start) > 2*window {
				delete(logged, start)
			}
		}
	})
	m.ProcessSamples(samples)
}
