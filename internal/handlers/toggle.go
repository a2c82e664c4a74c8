package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mattjoyce/gpiogw/internal/action"
	"github.com/mattjoyce/gpiogw/internal/actionconfig"
	"github.com/mattjoyce/gpiogw/internal/hardware"
	"github.com/mattjoyce/gpiogw/internal/log"
)

type timing struct {
	PreDelay      int `json:"preDelay"`
	PostDelay     int `json:"postDelay"`
	StartDuration int `json:"startDuration"`
	EndDuration   int `json:"endDuration"`
	Loops         int `json:"loops"`
}

func (t timing) validate() error {
	for name, v := range map[string]int{
		"preDelay":      t.PreDelay,
		"postDelay":     t.PostDelay,
		"startDuration": t.StartDuration,
		"endDuration":   t.EndDuration,
		"loops":         t.Loops,
	} {
		if v < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	return nil
}

// pinResolver reads the output pin numbers from a config document.
type pinResolver func(cfg actionconfig.Document) ([]int, error)

// valueResolver reads the per-pin start and end values from an action.
type valueResolver func(a action.Action) (timing, []bool, []bool, error)

func singlePin(key string) pinResolver {
	return func(cfg actionconfig.Document) ([]int, error) {
		var fields map[string]json.RawMessage
		if err := cfg.Decode(&fields); err != nil {
			return nil, err
		}
		raw, ok := fields[key]
		if !ok {
			return nil, fmt.Errorf("config is missing %q", key)
		}
		var pin int
		if err := json.Unmarshal(raw, &pin); err != nil {
			return nil, fmt.Errorf("config %q: %w", key, err)
		}
		return []int{pin}, nil
	}
}

func pinPair(first, second string) pinResolver {
	return func(cfg actionconfig.Document) ([]int, error) {
		a, err := singlePin(first)(cfg)
		if err != nil {
			return nil, err
		}
		b, err := singlePin(second)(cfg)
		if err != nil {
			return nil, err
		}
		return append(a, b...), nil
	}
}

func rgbPins(cfg actionconfig.Document) ([]int, error) {
	var c struct {
		Pins []int `json:"pins"`
	}
	if err := cfg.Decode(&c); err != nil {
		return nil, err
	}
	if len(c.Pins) != 3 {
		return nil, fmt.Errorf("config pins must have 3 entries, got %d", len(c.Pins))
	}
	return c.Pins, nil
}

// simpleValues drives n pins with the same start and end value.
func simpleValues(n int) valueResolver {
	return func(a action.Action) (timing, []bool, []bool, error) {
		var p struct {
			timing
			StartValue bool `json:"startValue"`
			EndValue   bool `json:"endValue"`
		}
		if err := a.Decode(&p); err != nil {
			return timing{}, nil, nil, err
		}
		start := make([]bool, n)
		end := make([]bool, n)
		for i := range n {
			start[i] = p.StartValue
			end[i] = p.EndValue
		}
		return p.timing, start, end, nil
	}
}

func rgbValues(a action.Action) (timing, []bool, []bool, error) {
	var p struct {
		timing
		StartValues []bool `json:"startValues"`
		EndValues   []bool `json:"endValues"`
	}
	if err := a.Decode(&p); err != nil {
		return timing{}, nil, nil, err
	}
	if len(p.StartValues) != 3 || len(p.EndValues) != 3 {
		return timing{}, nil, nil, fmt.Errorf("startValues and endValues must have 3 entries")
	}
	return p.timing, p.StartValues, p.EndValues, nil
}

// ToggleHandler drives one or more binary outputs through a timed
// start/end sequence.
type ToggleHandler struct {
	impl   string
	kind   string
	driver hardware.Driver
	pins   pinResolver
	values valueResolver
	state  progress
}

func newToggleHandler(impl, kind string, driver hardware.Driver, pins pinResolver, values valueResolver) *ToggleHandler {
	return &ToggleHandler{impl: impl, kind: kind, driver: driver, pins: pins, values: values}
}

func (h *ToggleHandler) SupportedActions() []string { return []string{h.kind} }

func (h *ToggleHandler) CurrentState() any { return h.state.get() }

// Execute waits preDelay, then for each loop writes the start values, waits
// startDuration, writes any end value that differs and waits endDuration,
// then waits postDelay. A cancel during startDuration still writes the end
// values before returning.
func (h *ToggleHandler) Execute(ctx context.Context, a action.Action, cfg actionconfig.Document) error {
	h.state.set("setup")

	t, start, end, err := h.values(a)
	if err != nil {
		return err
	}
	if err := t.validate(); err != nil {
		return err
	}
	pinNums, err := h.pins(cfg)
	if err != nil {
		return err
	}
	if len(pinNums) != len(start) {
		return fmt.Errorf("%d pins configured for %d values", len(pinNums), len(start))
	}

	pins := make([]hardware.OutputPin, len(pinNums))
	for i, n := range pinNums {
		p, err := h.driver.Out(n)
		if err != nil {
			return fmt.Errorf("open pin %d: %w", n, err)
		}
		pins[i] = p
	}

	logger := log.WithHandler(h.impl)
	logger.Debug("toggle sequence starting", "pins", pinNums, "loops", t.Loops)

	h.state.set("preDelay")
	if wait(ctx, t.PreDelay) {
		return ctx.Err()
	}

	for loop := 0; loop < t.Loops; loop++ {
		h.state.setf("startValue_%d", loop)
		for i, p := range pins {
			if err := p.Write(start[i]); err != nil {
				return err
			}
		}

		h.state.setf("startDuration_%d", loop)
		wait(ctx, t.StartDuration)

		h.state.setf("endValue_%d", loop)
		for i, p := range pins {
			if end[i] == start[i] {
				continue
			}
			if err := p.Write(end[i]); err != nil {
				return err
			}
		}

		h.state.setf("endDuration_%d", loop)
		if wait(ctx, t.EndDuration) {
			return ctx.Err()
		}
	}

	h.state.set("postDelay")
	if wait(ctx, t.PostDelay) {
		return ctx.Err()
	}
	return nil
}
