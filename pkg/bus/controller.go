package bus

import (
	"fmt"
	"log/slog"

	"go.uber.org/multierr"
	"tinygo.org/x/drivers"

	"github.com/16n-faderbank/16next-firmware/pkg/config"
)

// logger is the package logger. Defaults to slog.Default().
var logger = slog.Default()

// SetLogger replaces the package logger.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// Target is a class of module that accepts fader values over I2C.
type Target struct {
	Name    string
	Address uint16 // probed base address
	Command byte
	// Route maps a fader channel to the device address and output port.
	Route func(channel int) (addr uint16, port byte)
}

// Known targets.
var (
	TXo = Target{
		Name:    "txo",
		Address: 0x60,
		Command: 0x11,
		Route: func(ch int) (uint16, byte) {
			return 0x60 + uint16(ch/4), byte(ch % 4)
		},
	}
	ER301 = Target{
		Name:    "er301",
		Address: 0x31,
		Command: 0x11,
		Route: func(ch int) (uint16, byte) {
			return 0x31, byte(ch)
		},
	}
	Ansible = Target{
		Name:    "ansible",
		Address: 0x20,
		Command: 0x06,
		Route: func(ch int) (uint16, byte) {
			return 0x20 + uint16(ch/4)<<1, byte(ch % 4)
		},
	}
)

// Targets lists the modules the controller probes for.
var Targets = []Target{TXo, ER301, Ansible}

// Controller pushes fader values to the modules found on the bus.
type Controller struct {
	bus       drivers.I2C
	scanStart uint8
	scanEnd   uint8
	targets   []Target
	present   []bool
	msg       [4]byte
	probe     [1]byte
}

// NewController returns a controller on an already configured bus.
func NewController(bus drivers.I2C, cfg config.BusConfig) *Controller {
	return &Controller{
		bus:       bus,
		scanStart: cfg.ScanStart,
		scanEnd:   cfg.ScanEnd,
		targets:   Targets,
		present:   make([]bool, len(Targets)),
	}
}

// Probe reads one byte from every address in the scan range and records
// which known targets answered. It returns the addresses that answered.
func (c *Controller) Probe() []uint16 {
	var found []uint16
	for addr := uint16(c.scanStart); addr < uint16(c.scanEnd); addr++ {
		if err := c.bus.Tx(addr, nil, c.probe[:]); err != nil {
			continue
		}
		found = append(found, addr)
		for i, t := range c.targets {
			if t.Address == addr {
				c.present[i] = true
				logger.Info("found i2c target", "name", t.Name, "address", fmt.Sprintf("0x%02X", addr))
			}
		}
	}
	return found
}

// Present reports whether the named target answered the probe.
func (c *Controller) Present(name string) bool {
	for i, t := range c.targets {
		if t.Name == name {
			return c.present[i]
		}
	}
	return false
}

// Send fans value out to every present target. A failing target does not
// stop delivery to the others; all failures are returned together.
func (c *Controller) Send(channel int, value uint16) error {
	var err error
	for i, t := range c.targets {
		if !c.present[i] {
			continue
		}
		addr, port := t.Route(channel)
		c.msg = [4]byte{t.Command, port, byte(value >> 8), byte(value)}
		if txErr := c.bus.Tx(addr, c.msg[:], nil); txErr != nil {
			err = multierr.Append(err, fmt.Errorf("%s at 0x%02X: %w", t.Name, addr, txErr))
		}
	}
	return err
}
