package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/mattjoyce/gpiogw/internal/action"
	"github.com/mattjoyce/gpiogw/internal/actionconfig"
	"github.com/mattjoyce/gpiogw/internal/hardware"
	"github.com/mattjoyce/gpiogw/internal/telemetry"
)

type tmp102Params struct {
	PreDelay  int `json:"preDelay"`
	PostDelay int `json:"postDelay"`
	ReadDelay int `json:"readDelay"`
	Duration  int `json:"duration"`
}

// TMP102Handler samples a TMP102 temperature sensor until cancelled or the
// requested duration has elapsed. A zero duration samples until cancelled.
type TMP102Handler struct {
	driver hardware.Driver
	sink   telemetry.Sink
	state  progress
}

func NewTMP102Handler(driver hardware.Driver, sink telemetry.Sink) *TMP102Handler {
	if sink == nil {
		sink = telemetry.NopSink{}
	}
	return &TMP102Handler{driver: driver, sink: sink}
}

func (h *TMP102Handler) SupportedActions() []string { return []string{KindTMP102Simple} }

// CurrentState is the last temperature reading, or the current step before
// the first reading.
func (h *TMP102Handler) CurrentState() any { return h.state.get() }

func (h *TMP102Handler) Execute(ctx context.Context, a action.Action, cfg actionconfig.Document) error {
	h.state.set("setup")

	var p tmp102Params
	if err := a.Decode(&p); err != nil {
		return err
	}
	if p.PreDelay < 0 || p.PostDelay < 0 || p.ReadDelay < 0 || p.Duration < 0 {
		return fmt.Errorf("delays and duration must not be negative")
	}
	var c struct {
		I2CAddress uint16 `json:"i2cAddress"`
	}
	if err := cfg.Decode(&c); err != nil {
		return err
	}

	h.state.set("preDelay")
	if wait(ctx, p.PreDelay) {
		return ctx.Err()
	}

	dev, err := h.driver.I2C(c.I2CAddress)
	if err != nil {
		return fmt.Errorf("open tmp102 at 0x%02x: %w", c.I2CAddress, err)
	}
	defer dev.Close()

	started := time.Now()
	for ctx.Err() == nil {
		temp, err := hardware.ReadTMP102(dev)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		h.state.setValue(map[string]any{
			"date":         now.Format(time.RFC3339Nano),
			"temperatureC": temp.Celsius,
			"temperatureF": temp.Fahrenheit,
		})
		h.sink.WriteTemperature(telemetry.Reading{
			Config:     a.ConfigName,
			TaskID:     a.TaskID,
			Celsius:    temp.Celsius,
			Fahrenheit: temp.Fahrenheit,
			At:         now,
		})

		if wait(ctx, p.ReadDelay) {
			break
		}
		if p.Duration > 0 && time.Since(started) > time.Duration(p.Duration)*time.Millisecond {
			break
		}
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
