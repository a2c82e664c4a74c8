// Package handlers holds the device handlers compiled into gpiogw.
//
// Each handler is activated at runtime by a manifest.yaml in the plugin
// directory naming its implementation.
package handlers

import (
	"github.com/mattjoyce/gpiogw/internal/hardware"
	"github.com/mattjoyce/gpiogw/internal/plugin"
	"github.com/mattjoyce/gpiogw/internal/telemetry"
)

// Implementation names as they appear in manifests.
const (
	ImplBuzzerSimple    = "HandlerBuzzerSimpleAction"
	ImplLedBuzzerSimple = "HandlerLedBuzzerSimpleAction"
	ImplLedSimple       = "HandlerLedSimpleAction"
	ImplRgbSimple       = "HandlerRgbSimpleAction"
	ImplServoSimple     = "HandlerServoSimpleAction"
	ImplTMP102Simple    = "HandlerTMP102SimpleAction"
)

// Action kinds served by the shipped handlers.
const (
	KindBuzzerSimple    = "BuzzerSimple"
	KindLedBuzzerSimple = "LedBuzzerSimple"
	KindLedSimple       = "LedSimple"
	KindRgbSimple       = "RgbSimple"
	KindServoSimple     = "ServoSimple"
	KindTMP102Simple    = "TMP102Simple"
)

// Deps are the shared resources handlers talk to.
type Deps struct {
	Driver    hardware.Driver
	Telemetry telemetry.Sink
}

// Catalog returns the factories for every shipped handler.
func Catalog(deps Deps) plugin.Catalog {
	if deps.Driver == nil {
		deps.Driver = hardware.NewMemoryDriver()
	}
	if deps.Telemetry == nil {
		deps.Telemetry = telemetry.NopSink{}
	}

	return plugin.Catalog{
		ImplBuzzerSimple: func() (plugin.Handler, error) {
			return newToggleHandler(ImplBuzzerSimple, KindBuzzerSimple, deps.Driver, singlePin("pin"), simpleValues(1)), nil
		},
		ImplLedBuzzerSimple: func() (plugin.Handler, error) {
			return newToggleHandler(ImplLedBuzzerSimple, KindLedBuzzerSimple, deps.Driver, pinPair("pinLed", "pinBuzzer"), simpleValues(2)), nil
		},
		ImplLedSimple: func() (plugin.Handler, error) {
			return newToggleHandler(ImplLedSimple, KindLedSimple, deps.Driver, singlePin("pin"), simpleValues(1)), nil
		},
		ImplRgbSimple: func() (plugin.Handler, error) {
			return newToggleHandler(ImplRgbSimple, KindRgbSimple, deps.Driver, rgbPins, rgbValues), nil
		},
		ImplServoSimple: func() (plugin.Handler, error) {
			return NewServoHandler(deps.Driver), nil
		},
		ImplTMP102Simple: func() (plugin.Handler, error) {
			return NewTMP102Handler(deps.Driver, deps.Telemetry), nil
		},
	}
}
