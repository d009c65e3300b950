//go:build tinygo && rp2040

//go:generate tinygo flash -target=pico

package main

import (
	"machine"
	usbmidi "machine/usb/adc/midi"
	"time"

	"github.com/16n-faderbank/16next-firmware/pkg/bus"
	"github.com/16n-faderbank/16next-firmware/pkg/config"
	"github.com/16n-faderbank/16next-firmware/pkg/control"
	"github.com/16n-faderbank/16next-firmware/pkg/store"
	"github.com/16n-faderbank/16next-firmware/pkg/transport"
)

var (
	// filled from the USB interrupt, drained by the main loop
	rxPackets = make(chan transport.Packet, 64)
)

func main() {
	profile := config.Default()

	port := usbmidi.Port()
	port.SetRxHandler(func(b []byte) {
		var p transport.Packet
		copy(p[:], b)
		select {
		case rxPackets <- p:
		default:
		}
	})
	usb := transport.NewPacker(0, func(p transport.Packet) error {
		_, err := port.Write(p[:])
		return err
	})

	midiUART := machine.UART1
	midiUART.Configure(machine.UARTConfig{BaudRate: midiBaud, TX: midiTX, RX: midiRX})

	st, err := openStore(profile.Storage)
	if err != nil {
		println("storage unavailable, falling back to flash:", err.Error())
		st = store.New(store.NewWearLeveler(newFlashSector(profile.Storage.SectorSize, profile.Storage.PageSize)))
	}

	i2c := machine.I2C1
	hw := control.Hardware{
		Mux:  newMux(),
		ADC:  newADC(),
		USB:  usb,
		UART: uart{midiUART},
		LED:  newLED(),
	}

	// The bus role comes from the stored settings, so peek before wiring it.
	cfg, _, err := st.LoadOrDefault()
	if err != nil {
		println("config load failed:", err.Error())
	}
	if cfg.BusController {
		if err := i2c.Configure(machine.I2CConfig{
			Frequency: profile.Bus.Frequency,
			SDA:       i2cSDA,
			SCL:       i2cSCL,
		}); err != nil {
			println("i2c configure failed:", err.Error())
		}
		hw.Bus = bus.NewController(i2c, profile.Bus)
	}

	sched := control.New(profile, hw, st)
	if err := sched.Start(); err != nil {
		println("using factory settings:", err.Error())
	}

	if !cfg.BusController {
		go servePeripheral(i2c, profile.Bus, sched.Values())
	}

	parser := transport.NewParser(profile.Sysex.BufferSize)
	for {
		now := time.Now()
	drain:
		for {
			select {
			case p := <-rxPackets:
				parser.Feed(p.Bytes(), func(msg []byte) {
					sched.HandleMIDI(msg, now)
				})
			default:
				break drain
			}
		}
		sched.Tick(now)
		time.Sleep(100 * time.Microsecond)
	}
}

// servePeripheral answers read requests from a bus controller.
func servePeripheral(i2c *machine.I2C, cfg config.BusConfig, values *bus.Values) {
	if err := i2c.Configure(machine.I2CConfig{
		Mode:      machine.I2CModeTarget,
		Frequency: cfg.Frequency,
		SDA:       i2cSDA,
		SCL:       i2cSCL,
	}); err != nil {
		println("i2c target configure failed:", err.Error())
		return
	}
	if err := i2c.Listen(uint16(cfg.Address)); err != nil {
		println("i2c listen failed:", err.Error())
		return
	}
	println("listening on i2c address", cfg.Address)

	p := bus.NewPeripheral(values)
	buf := make([]byte, 4)
	for {
		evt, n, err := i2c.WaitForEvent(buf)
		if err != nil {
			println("i2c wait failed:", err.Error())
			continue
		}
		switch evt {
		case machine.I2CReceive:
			p.Handle(bus.Receive, buf[:n])
		case machine.I2CRequest:
			if err := i2c.Reply(p.Handle(bus.Request, nil)); err != nil {
				println("i2c reply failed:", err.Error())
			}
		case machine.I2CFinish:
			p.Handle(bus.Finish, nil)
		}
	}
}
