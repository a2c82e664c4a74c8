package handlers

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/gpiogw/internal/action"
	"github.com/mattjoyce/gpiogw/internal/actionconfig"
	"github.com/mattjoyce/gpiogw/internal/hardware"
	"github.com/mattjoyce/gpiogw/internal/telemetry"
)

func mustAction(t *testing.T, kind string, params map[string]any) action.Action {
	t.Helper()
	a, err := action.New(kind, kind+"Action", true, "", params)
	require.NoError(t, err)
	return a
}

func togglePayload(loops, startMs, endMs int, start, end bool) map[string]any {
	return map[string]any{
		"preDelay": 0, "postDelay": 0,
		"startDuration": startMs, "endDuration": endMs,
		"loops": loops, "startValue": start, "endValue": end,
	}
}

func handlerFor(t *testing.T, deps Deps, impl string) any {
	t.Helper()
	h, err := Catalog(deps)[impl]()
	require.NoError(t, err)
	return h
}

func TestCatalog(t *testing.T) {
	cat := Catalog(Deps{})
	names := make([]string, 0, len(cat))
	kinds := make([]string, 0, len(cat))
	for name, f := range cat {
		names = append(names, name)
		h, err := f()
		require.NoError(t, err)
		kinds = append(kinds, h.SupportedActions()...)
		assert.NotNil(t, h.CurrentState())
	}
	sort.Strings(names)
	sort.Strings(kinds)

	assert.Equal(t, []string{
		ImplBuzzerSimple, ImplLedBuzzerSimple, ImplLedSimple,
		ImplRgbSimple, ImplServoSimple, ImplTMP102Simple,
	}, names)
	assert.Equal(t, []string{
		KindBuzzerSimple, KindLedBuzzerSimple, KindLedSimple,
		KindRgbSimple, KindServoSimple, KindTMP102Simple,
	}, kinds)
}

func TestLedSimpleSequence(t *testing.T) {
	tests := []struct {
		name       string
		loops      int
		start, end bool
		want       []bool
	}{
		{name: "blink", loops: 3, start: true, end: false, want: []bool{true, false, true, false, true, false}},
		{name: "end equals start skips end write", loops: 2, start: true, end: true, want: []bool{true, true}},
		{name: "zero loops", loops: 0, start: true, end: false, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drv := hardware.NewMemoryDriver()
			h := handlerFor(t, Deps{Driver: drv}, ImplLedSimple).(*ToggleHandler)

			a := mustAction(t, KindLedSimple, togglePayload(tt.loops, 1, 1, tt.start, tt.end))
			err := h.Execute(context.Background(), a, actionconfig.Document{"pin": 17})
			require.NoError(t, err)
			assert.Equal(t, tt.want, drv.PinWrites(17))
			assert.Equal(t, map[string]any{"state": "postDelay"}, h.CurrentState())
		})
	}
}

func TestToggleTiming(t *testing.T) {
	drv := hardware.NewMemoryDriver()
	h := handlerFor(t, Deps{Driver: drv}, ImplLedSimple).(*ToggleHandler)

	a := mustAction(t, KindLedSimple, togglePayload(1, 60, 0, true, false))
	started := time.Now()
	require.NoError(t, h.Execute(context.Background(), a, actionconfig.Document{"pin": 17}))
	assert.GreaterOrEqual(t, time.Since(started), 60*time.Millisecond)

	writes := drv.Writes()
	require.Len(t, writes, 2)
	assert.GreaterOrEqual(t, writes[1].At.Sub(writes[0].At), 60*time.Millisecond)
}

func TestToggleCancelDuringStartStillWritesEnd(t *testing.T) {
	drv := hardware.NewMemoryDriver()
	h := handlerFor(t, Deps{Driver: drv}, ImplLedSimple).(*ToggleHandler)

	ctx, cancel := context.WithCancel(context.Background())
	a := mustAction(t, KindLedSimple, togglePayload(5, 5000, 5000, true, false))

	done := make(chan error, 1)
	go func() { done <- h.Execute(ctx, a, actionconfig.Document{"pin": 17}) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not observe cancellation")
	}
	assert.Equal(t, []bool{true, false}, drv.PinWrites(17))
}

func TestToggleCancelDuringPreDelay(t *testing.T) {
	drv := hardware.NewMemoryDriver()
	h := handlerFor(t, Deps{Driver: drv}, ImplBuzzerSimple).(*ToggleHandler)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	payload := togglePayload(1, 1, 1, true, false)
	payload["preDelay"] = 1000
	err := h.Execute(ctx, mustAction(t, KindBuzzerSimple, payload), actionconfig.Document{"pin": 4})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, drv.Writes())
	assert.Equal(t, map[string]any{"state": "preDelay"}, h.CurrentState())
}

func TestLedBuzzerDrivesBothPins(t *testing.T) {
	drv := hardware.NewMemoryDriver()
	h := handlerFor(t, Deps{Driver: drv}, ImplLedBuzzerSimple).(*ToggleHandler)

	a := mustAction(t, KindLedBuzzerSimple, togglePayload(1, 1, 1, true, false))
	err := h.Execute(context.Background(), a, actionconfig.Document{"pinLed": 17, "pinBuzzer": 27})
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false}, drv.PinWrites(17))
	assert.Equal(t, []bool{true, false}, drv.PinWrites(27))
}

func TestRgbWritesOnlyChangedChannels(t *testing.T) {
	drv := hardware.NewMemoryDriver()
	h := handlerFor(t, Deps{Driver: drv}, ImplRgbSimple).(*ToggleHandler)

	a := mustAction(t, KindRgbSimple, map[string]any{
		"preDelay": 0, "postDelay": 0, "startDuration": 1, "endDuration": 1, "loops": 1,
		"startValues": []bool{true, false, true},
		"endValues":   []bool{false, false, true},
	})
	err := h.Execute(context.Background(), a, actionconfig.Document{"pins": []any{22, 23, 24}})
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false}, drv.PinWrites(22))
	assert.Equal(t, []bool{false}, drv.PinWrites(23))
	assert.Equal(t, []bool{true}, drv.PinWrites(24))
}

func TestToggleConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		impl string
		kind string
		cfg  actionconfig.Document
		data map[string]any
	}{
		{name: "missing pin", impl: ImplLedSimple, kind: KindLedSimple, cfg: actionconfig.Document{}, data: togglePayload(1, 1, 1, true, false)},
		{name: "missing buzzer pin", impl: ImplLedBuzzerSimple, kind: KindLedBuzzerSimple, cfg: actionconfig.Document{"pinLed": 1}, data: togglePayload(1, 1, 1, true, false)},
		{name: "rgb needs three pins", impl: ImplRgbSimple, kind: KindRgbSimple, cfg: actionconfig.Document{"pins": []any{1, 2}}, data: map[string]any{
			"loops": 1, "startValues": []bool{true, true, true}, "endValues": []bool{false, false, false},
		}},
		{name: "rgb needs three values", impl: ImplRgbSimple, kind: KindRgbSimple, cfg: actionconfig.Document{"pins": []any{1, 2, 3}}, data: map[string]any{
			"loops": 1, "startValues": []bool{true}, "endValues": []bool{false},
		}},
		{name: "negative loops", impl: ImplLedSimple, kind: KindLedSimple, cfg: actionconfig.Document{"pin": 1}, data: togglePayload(-1, 1, 1, true, false)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drv := hardware.NewMemoryDriver()
			h := handlerFor(t, Deps{Driver: drv}, tt.impl).(*ToggleHandler)
			err := h.Execute(context.Background(), mustAction(t, tt.kind, tt.data), tt.cfg)
			assert.Error(t, err)
			assert.Empty(t, drv.Writes())
		})
	}
}

func servoConfigDoc() actionconfig.Document {
	return actionconfig.Document{
		"i2cAddress":   64,
		"pwmFrequency": 60,
		"i2cChannel":   []any{0, 1},
		"pwmMinPulse":  []any{150, 150},
		"pwmMaxPulse":  []any{600, 600},
	}
}

func TestServoValidation(t *testing.T) {
	base := servoConfig{
		I2CAddress: 0x40, PWMFrequency: 60,
		I2CChannel: []int{0, 1}, PWMMinPulse: []int{150, 150}, PWMMaxPulse: []int{600, 600},
	}
	tests := []struct {
		name    string
		params  servoParams
		cfg     servoConfig
		wantErr string
	}{
		{name: "valid", params: servoParams{Rotation: [][]int{{0, 90}}, RotationDelay: [][]int{{1, 1}}}, cfg: base},
		{name: "length mismatch", params: servoParams{Rotation: [][]int{{0}}, RotationDelay: nil}, cfg: base, wantErr: "lengths are not the same"},
		{name: "too many servos", params: servoParams{Rotation: [][]int{{0}, {0}, {0}}, RotationDelay: [][]int{{0}, {0}, {0}}}, cfg: base, wantErr: "cannot exceed"},
		{name: "negative delay", params: servoParams{Rotation: [][]int{{0}}, RotationDelay: [][]int{{-1}}}, cfg: base, wantErr: "less than zero"},
		{name: "rotation out of range", params: servoParams{Rotation: [][]int{{181}}, RotationDelay: [][]int{{0}}}, cfg: base, wantErr: "0-180"},
		{name: "pulse arrays mismatch", params: servoParams{}, cfg: servoConfig{I2CChannel: []int{0}, PWMMinPulse: []int{1, 2}, PWMMaxPulse: []int{3}}, wantErr: "pwmMinPulse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateServo(tt.params, tt.cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestServoExecute(t *testing.T) {
	drv := hardware.NewMemoryDriver()
	h := handlerFor(t, Deps{Driver: drv}, ImplServoSimple).(*ServoHandler)

	a := mustAction(t, KindServoSimple, map[string]any{
		"preDelay": 0, "postDelay": 0,
		"rotation":      [][]int{{0, 180}, {90}},
		"rotationDelay": [][]int{{1, 1}, {1}},
	})
	require.NoError(t, h.Execute(context.Background(), a, servoConfigDoc()))

	pwm := map[byte][][]byte{}
	for _, w := range drv.BusWrites() {
		assert.Equal(t, uint16(0x40), w.Addr)
		if len(w.Data) == 5 {
			pwm[w.Data[0]] = append(pwm[w.Data[0]], w.Data)
		}
	}
	// channel 0: reset, 0 degrees (150), 180 degrees (600)
	require.Len(t, pwm[0x06], 3)
	assert.Equal(t, []byte{0x06, 0, 0, 150, 0}, pwm[0x06][1])
	assert.Equal(t, []byte{0x06, 0, 0, 0x58, 0x02}, pwm[0x06][2])
	// channel 1: reset, 90 degrees (375)
	require.Len(t, pwm[0x0A], 2)
	assert.Equal(t, []byte{0x0A, 0, 0, 0x77, 0x01}, pwm[0x0A][1])
}

func TestServoRejectsBeforeTouchingBus(t *testing.T) {
	drv := hardware.NewMemoryDriver()
	h := NewServoHandler(drv)

	a := mustAction(t, KindServoSimple, map[string]any{
		"rotation":      [][]int{{200}},
		"rotationDelay": [][]int{{0}},
	})
	assert.Error(t, h.Execute(context.Background(), a, servoConfigDoc()))
	assert.Empty(t, drv.BusWrites())
}

type recordingSink struct {
	mu       sync.Mutex
	readings []telemetry.Reading
}

func (s *recordingSink) WriteTemperature(r telemetry.Reading) {
	s.mu.Lock()
	s.readings = append(s.readings, r)
	s.mu.Unlock()
}

func (s *recordingSink) Close() error { return nil }

func (s *recordingSink) all() []telemetry.Reading {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]telemetry.Reading(nil), s.readings...)
}

func TestTMP102DurationBounded(t *testing.T) {
	drv := hardware.NewMemoryDriver()
	drv.SetReadData(0x48, []byte{0x19, 0x00})
	sink := &recordingSink{}
	h := NewTMP102Handler(drv, sink)

	a, err := action.New(KindTMP102Simple, "TMP102SimpleAction", true, "temp", map[string]any{
		"preDelay": 0, "postDelay": 0, "readDelay": 10, "duration": 35,
	})
	require.NoError(t, err)

	require.NoError(t, h.Execute(context.Background(), a, actionconfig.Document{"i2cAddress": 72}))

	readings := sink.all()
	require.NotEmpty(t, readings)
	assert.LessOrEqual(t, len(readings), 6)
	assert.InDelta(t, 25.0, readings[0].Celsius, 1e-9)
	assert.InDelta(t, 77.0, readings[0].Fahrenheit, 1e-9)
	assert.Equal(t, "TMP102SimpleAction", readings[0].Config)
	assert.Equal(t, "temp", readings[0].TaskID)
	assert.Equal(t, map[string]any{"state": "postDelay"}, h.CurrentState())
}

func TestTMP102RunsUntilCancelled(t *testing.T) {
	drv := hardware.NewMemoryDriver()
	drv.SetReadData(0x48, []byte{0x19, 0x00})
	sink := &recordingSink{}
	h := NewTMP102Handler(drv, sink)

	a := mustAction(t, KindTMP102Simple, map[string]any{"readDelay": 5, "duration": 0})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Execute(ctx, a, actionconfig.Document{"i2cAddress": 72}) }()

	time.Sleep(40 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("tmp102 did not stop after cancel")
	}

	assert.NotEmpty(t, sink.all())
	state, ok := h.CurrentState().(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 25.0, state["temperatureC"], 1e-9)
}
