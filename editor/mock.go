package main

import (
	"context"
	"math"
	"time"

	"github.com/16n-faderbank/16next-firmware/pkg/config"
	"github.com/16n-faderbank/16next-firmware/pkg/control"
	"github.com/16n-faderbank/16next-firmware/pkg/store"
	"github.com/16n-faderbank/16next-firmware/pkg/transport"
)

// sweep is a fader bank whose faders follow phase-shifted sines.
type sweep struct {
	bits     int
	start    time.Time
	selected uint8
}

func (s *sweep) Select(code uint8) { s.selected = code }

func (s *sweep) Get() uint16 {
	phase := 2*math.Pi*time.Since(s.start).Seconds()/8 + float64(s.selected)*math.Pi/8
	full := float64(int(1)<<s.bits - 1)
	return uint16(math.Round(full * (0.5 + 0.5*math.Sin(phase))))
}

// startMock runs a controller in process and returns the host end of its
// USB link. The controller stops when ctx is done.
func startMock(ctx context.Context) (transport.Link, error) {
	profile := config.Default()
	host, dev := transport.NewPipe(500)
	dev.Record(false)
	if err := dev.Connect(); err != nil {
		return nil, err
	}

	st := store.New(store.NewWearLeveler(store.NewMemorySector(store.DefaultSectorSize, store.DefaultPageSize)))
	adc := &sweep{bits: profile.Faders.ADCBits, start: time.Now()}
	sched := control.New(profile, control.Hardware{Mux: adc, ADC: adc, USB: dev, Delay: time.Sleep}, st)
	if err := sched.Start(); err != nil {
		return nil, err
	}

	go func() {
		defer dev.Close()
		parser := transport.NewParser(profile.Sysex.BufferSize)
		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case chunk, ok := <-dev.Chunks():
				if !ok {
					return
				}
				now := time.Now()
				parser.Feed(chunk, func(msg []byte) { sched.HandleMIDI(msg, now) })
			case now := <-ticker.C:
				sched.Tick(now)
			}
		}
	}()
	return host, nil
}
