package hardware

import (
	"fmt"
	"math"
	"time"
)

const (
	pcaMode1    = 0x00
	pcaPrescale = 0xFE
	pcaLED0OnL  = 0x06

	pcaModeSleep   = 0x10
	pcaModeRestart = 0x80

	pcaOscillatorHz = 25_000_000
)

// PCA9685 is a 16-channel 12-bit PWM controller.
type PCA9685 struct {
	dev I2CDevice
}

func NewPCA9685(dev I2CDevice) *PCA9685 {
	return &PCA9685{dev: dev}
}

// SetFrequency programs the PWM update rate in hertz.
func (p *PCA9685) SetFrequency(hz int) error {
	if hz < 24 || hz > 1526 {
		return fmt.Errorf("pwm frequency %d out of range 24-1526", hz)
	}
	prescale := byte(math.Round(float64(pcaOscillatorHz)/(4096*float64(hz))) - 1)

	old := make([]byte, 1)
	if err := p.dev.Tx([]byte{pcaMode1}, old); err != nil {
		return fmt.Errorf("read mode1: %w", err)
	}
	sleep := (old[0] &^ pcaModeRestart) | pcaModeSleep

	steps := [][]byte{
		{pcaMode1, sleep},
		{pcaPrescale, prescale},
		{pcaMode1, old[0]},
	}
	for _, w := range steps {
		if err := p.dev.Tx(w, nil); err != nil {
			return fmt.Errorf("set pwm frequency: %w", err)
		}
	}
	time.Sleep(5 * time.Millisecond)
	if err := p.dev.Tx([]byte{pcaMode1, old[0] | pcaModeRestart}, nil); err != nil {
		return fmt.Errorf("restart pwm: %w", err)
	}
	return nil
}

// SetPWM sets the on and off tick counts (0-4095) for a channel.
func (p *PCA9685) SetPWM(channel, on, off int) error {
	if channel < 0 || channel > 15 {
		return fmt.Errorf("pwm channel %d out of range 0-15", channel)
	}
	reg := byte(pcaLED0OnL + 4*channel)
	w := []byte{reg, byte(on), byte(on >> 8), byte(off), byte(off >> 8)}
	if err := p.dev.Tx(w, nil); err != nil {
		return fmt.Errorf("set pwm channel %d: %w", channel, err)
	}
	return nil
}

// DegreesToPulse maps 0-180 degrees linearly onto [minPulse, maxPulse].
func DegreesToPulse(degrees, minPulse, maxPulse int) (int, error) {
	if degrees < 0 || degrees > 180 {
		return 0, fmt.Errorf("rotation %d out of range 0-180", degrees)
	}
	return int(float64(maxPulse-minPulse)/180*float64(degrees)) + minPulse, nil
}
