package handlers

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/mattjoyce/gpiogw/internal/action"
	"github.com/mattjoyce/gpiogw/internal/actionconfig"
	"github.com/mattjoyce/gpiogw/internal/hardware"
	"github.com/mattjoyce/gpiogw/internal/log"
)

type servoParams struct {
	PreDelay      int     `json:"preDelay"`
	PostDelay     int     `json:"postDelay"`
	Rotation      [][]int `json:"rotation"`
	RotationDelay [][]int `json:"rotationDelay"`
}

type servoConfig struct {
	I2CAddress   uint16 `json:"i2cAddress"`
	PWMFrequency int    `json:"pwmFrequency"`
	I2CChannel   []int  `json:"i2cChannel"`
	PWMMinPulse  []int  `json:"pwmMinPulse"`
	PWMMaxPulse  []int  `json:"pwmMaxPulse"`
}

// validateServo checks the action against the configured channels. The n
// rotation sequences map onto the first n configured channels.
func validateServo(p servoParams, c servoConfig) error {
	if len(p.Rotation) != len(p.RotationDelay) {
		return fmt.Errorf("rotation[] and rotationDelay[] lengths are not the same")
	}
	if len(p.Rotation) > len(c.I2CChannel) {
		return fmt.Errorf("rotation[] and rotationDelay[] lengths cannot exceed the configured channel count (%d)", len(c.I2CChannel))
	}
	if p.PreDelay < 0 || p.PostDelay < 0 {
		return fmt.Errorf("preDelay and postDelay must not be negative")
	}
	for i := range p.Rotation {
		if len(p.Rotation[i]) != len(p.RotationDelay[i]) {
			return fmt.Errorf("rotation[%d] and rotationDelay[%d] lengths are not the same", i, i)
		}
		for _, d := range p.RotationDelay[i] {
			if d < 0 {
				return fmt.Errorf("rotationDelay[%d] has delay less than zero", i)
			}
		}
		for _, r := range p.Rotation[i] {
			if r < 0 || r > 180 {
				return fmt.Errorf("rotation[%d] contains invalid rotation; must be in range 0-180", i)
			}
		}
	}
	if len(c.PWMMinPulse) != len(c.PWMMaxPulse) || len(c.PWMMinPulse) != len(c.I2CChannel) {
		return fmt.Errorf("config error: pwmMinPulse[] and pwmMaxPulse[] must be the same length as i2cChannel[]")
	}
	return nil
}

// ServoHandler rotates servos attached to a PCA9685 PWM controller.
type ServoHandler struct {
	driver hardware.Driver
	state  progress
}

func NewServoHandler(driver hardware.Driver) *ServoHandler {
	return &ServoHandler{driver: driver}
}

func (h *ServoHandler) SupportedActions() []string { return []string{KindServoSimple} }

func (h *ServoHandler) CurrentState() any { return h.state.get() }

// Execute programs the controller, then runs every rotation sequence
// concurrently and waits for all of them.
func (h *ServoHandler) Execute(ctx context.Context, a action.Action, cfg actionconfig.Document) error {
	h.state.set("validateSetup")

	var p servoParams
	if err := a.Decode(&p); err != nil {
		return err
	}
	var c servoConfig
	if err := cfg.Decode(&c); err != nil {
		return err
	}
	if err := validateServo(p, c); err != nil {
		return err
	}

	h.state.set("connection")
	dev, err := h.driver.I2C(c.I2CAddress)
	if err != nil {
		return fmt.Errorf("open pca9685 at 0x%02x: %w", c.I2CAddress, err)
	}
	defer dev.Close()

	pca := hardware.NewPCA9685(dev)
	if err := pca.SetFrequency(c.PWMFrequency); err != nil {
		return err
	}

	h.state.set("preDelay")
	if wait(ctx, p.PreDelay) {
		return ctx.Err()
	}

	logger := log.WithHandler(ImplServoSimple)
	var g errgroup.Group
	for i := range p.Rotation {
		if len(p.Rotation[i]) == 0 {
			continue
		}
		h.state.setf("startRotate_%d", i)
		channel, minPulse, maxPulse := c.I2CChannel[i], c.PWMMinPulse[i], c.PWMMaxPulse[i]
		degrees, delays := p.Rotation[i], p.RotationDelay[i]
		g.Go(func() error {
			return h.rotate(ctx, pca, channel, minPulse, maxPulse, degrees, delays)
		})
	}
	if err := g.Wait(); err != nil {
		logger.Warn("servo rotation failed", "error", err)
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	h.state.set("postDelay")
	if wait(ctx, p.PostDelay) {
		return ctx.Err()
	}
	return nil
}

func (h *ServoHandler) rotate(ctx context.Context, pca *hardware.PCA9685, channel, minPulse, maxPulse int, degrees, delays []int) error {
	if err := pca.SetPWM(channel, 0, 0); err != nil {
		return err
	}
	for i, deg := range degrees {
		h.state.setf("rotate_%d_%d", channel, i)
		pulse, err := hardware.DegreesToPulse(deg, minPulse, maxPulse)
		if err != nil {
			return fmt.Errorf("invalid rotation at index %d: %w", i, err)
		}
		if err := pca.SetPWM(channel, 0, pulse); err != nil {
			return err
		}

		h.state.setf("rotateDelay_c%d_%d", channel, i)
		if wait(ctx, delays[i]) {
			return nil
		}
	}
	return nil
}
