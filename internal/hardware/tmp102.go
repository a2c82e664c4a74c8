package hardware

import "fmt"

// Temperature is one TMP102 reading.
type Temperature struct {
	Celsius    float64
	Fahrenheit float64
}

// ReadTMP102 reads the 12-bit temperature register.
func ReadTMP102(dev I2CDevice) (Temperature, error) {
	data := make([]byte, 2)
	if err := dev.Tx([]byte{0x00}, data); err != nil {
		return Temperature{}, fmt.Errorf("read tmp102: %w", err)
	}
	return DecodeTMP102(data[0], data[1]), nil
}

// DecodeTMP102 converts the register bytes, most significant first. The
// 12-bit reading is two's complement.
func DecodeTMP102(msb, lsb byte) Temperature {
	raw := int(int16(uint16(msb)<<8|uint16(lsb))) >> 4
	c := float64(raw) * 0.0625
	return Temperature{Celsius: c, Fahrenheit: c*1.8 + 32}
}
