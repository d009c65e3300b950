package analog

import (
	"github.com/16n-faderbank/16next-firmware/pkg/config"
)

// New builds the conditioner selected by the profile's filter section.
func New(cfg config.FilterConfig, resolution int) Conditioner {
	if cfg.Kind == config.FilterHysteresis {
		return NewHysteresis(cfg.Pole, cfg.HysteresisBits, resolution)
	}

	f := NewFilter(cfg.Sleep, cfg.SnapMultiplier)
	f.SetResolution(resolution)
	f.SetActivityThreshold(cfg.ActivityThreshold)
	f.EnableEdgeSnap(cfg.EdgeSnap)
	return f
}

// NewBank builds one conditioner per channel.
func NewBank(cfg config.FilterConfig, resolution, n int) []Conditioner {
	bank := make([]Conditioner, n)
	for i := range bank {
		bank[i] = New(cfg, resolution)
	}
	return bank
}
