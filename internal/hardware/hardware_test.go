package hardware

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	d, err := Open("memory", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryDriver{}, d)

	_, err = Open("arduino", "")
	assert.ErrorIs(t, err, ErrUnknownDriver)
}

func TestMemoryDriverRecordsWrites(t *testing.T) {
	d := NewMemoryDriver()
	p17, err := d.Out(17)
	require.NoError(t, err)
	p27, err := d.Out(27)
	require.NoError(t, err)

	require.NoError(t, p17.Write(true))
	require.NoError(t, p27.Write(true))
	require.NoError(t, p17.Write(false))

	assert.Equal(t, []bool{true, false}, d.PinWrites(17))
	assert.Equal(t, []bool{true}, d.PinWrites(27))
	assert.Len(t, d.Writes(), 3)
}

func TestDecodeTMP102(t *testing.T) {
	tests := []struct {
		name     string
		msb, lsb byte
		wantC    float64
		wantF    float64
	}{
		{name: "25C", msb: 0x19, lsb: 0x00, wantC: 25, wantF: 77},
		{name: "zero", msb: 0x00, lsb: 0x00, wantC: 0, wantF: 32},
		{name: "fraction", msb: 0x19, lsb: 0x10, wantC: 25.0625, wantF: 77.1125},
		{name: "just below zero", msb: 0xFF, lsb: 0xF0, wantC: -0.0625, wantF: 31.8875},
		{name: "minus 25C", msb: 0xE7, lsb: 0x00, wantC: -25, wantF: -13},
		{name: "minus 55C", msb: 0xC9, lsb: 0x00, wantC: -55, wantF: -67},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeTMP102(tt.msb, tt.lsb)
			assert.InDelta(t, tt.wantC, got.Celsius, 1e-9)
			assert.InDelta(t, tt.wantF, got.Fahrenheit, 1e-9)
		})
	}
}

func TestReadTMP102(t *testing.T) {
	d := NewMemoryDriver()
	d.SetReadData(0x48, []byte{0x19, 0x00})
	dev, err := d.I2C(0x48)
	require.NoError(t, err)

	temp, err := ReadTMP102(dev)
	require.NoError(t, err)
	assert.InDelta(t, 25.0, temp.Celsius, 1e-9)
}

func TestPCA9685(t *testing.T) {
	d := NewMemoryDriver()
	dev, err := d.I2C(0x40)
	require.NoError(t, err)
	pca := NewPCA9685(dev)

	require.NoError(t, pca.SetFrequency(60))
	require.NoError(t, pca.SetPWM(1, 0, 375))

	writes := d.BusWrites()
	require.NotEmpty(t, writes)
	assert.Equal(t, []byte{pcaPrescale, 101}, writes[2].Data)
	assert.Equal(t, []byte{0x0A, 0, 0, 0x77, 0x01}, writes[len(writes)-1].Data)

	assert.Error(t, pca.SetFrequency(5))
	assert.Error(t, pca.SetPWM(16, 0, 0))
}

func TestDegreesToPulse(t *testing.T) {
	got, err := DegreesToPulse(90, 150, 600)
	require.NoError(t, err)
	assert.Equal(t, 375, got)

	got, err = DegreesToPulse(0, 150, 600)
	require.NoError(t, err)
	assert.Equal(t, 150, got)

	_, err = DegreesToPulse(181, 150, 600)
	assert.Error(t, err)
}
