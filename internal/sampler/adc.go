package sampler

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
)

// Full-scale reference as a physic quantity, matching the vref constant.
const vrefPotential = 3300 * physic.MilliVolt

// ADCSource reads the CT sensor through an ADS1115 on the I2C bus. The
// Raspberry Pi has no onboard ADC so the sensor is wired through an external
// converter.
type ADCSource struct {
	pin ads1x15.PinADC
}

// NewADCSource opens channel on an ADS1115 at the default address.
func NewADCSource(bus i2c.Bus, channel ads1x15.Channel) (*ADCSource, error) {
	adc, err := ads1x15.NewADS1115(bus, &ads1x15.DefaultOpts)
	if err != nil {
		return nil, fmt.Errorf("opening ADS1115: %v", err)
	}
	pin, err := adc.PinForChannel(channel, vrefPotential, 860*physic.Hertz, ads1x15.BestQuality)
	if err != nil {
		return nil, fmt.Errorf("configuring ADC channel: %v", err)
	}
	return &ADCSource{pin: pin}, nil
}

// ReadRaw returns one conversion scaled to the samplers full-scale count
// range.
func (a *ADCSource) ReadRaw() (int, error) {
	sample, err := a.pin.Read()
	if err != nil {
		return 0, err
	}
	count := int(int64(sample.V) * adcCounts / int64(vrefPotential))
	if count < 0 {
		count = 0
	}
	if count >= adcCounts {
		count = adcCounts - 1
	}
	return count, nil
}

func (a *ADCSource) Close() error {
	return a.pin.Halt()
}
