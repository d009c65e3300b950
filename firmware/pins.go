//go:build tinygo && rp2040

package main

import "machine"

// 16nx board wiring.
const (
	firstMuxPin = machine.GPIO18
	muxPinCount = 4
	adcPin      = machine.ADC0 // GPIO26
	ledPin      = machine.GPIO2

	i2cSDA = machine.GPIO10
	i2cSCL = machine.GPIO11

	// external configuration memory, fitted on some builds
	eepromSDA   = machine.GPIO12
	eepromSCL   = machine.GPIO13
	eepromFreq  = 400 * machine.KHz
	spiFlashSCK = machine.GPIO6
	spiFlashSDO = machine.GPIO7
	spiFlashSDI = machine.GPIO16
	spiFlashCS  = machine.GPIO17
	spiFlashHz  = 8 * machine.MHz

	midiTX   = machine.GPIO4
	midiRX   = machine.GPIO5
	midiBaud = 31250

	// tinygo scales every conversion to 16 bits
	adcShift = 16 - 12
)
