package xmlcon

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCon = `<?xml version="1.0" encoding="UTF-8"?>
<SBE_InstrumentConfiguration SB_ConfigCTD_FileVersion="7.26.4.0">
  <Instrument Type="8">
    <Name>SBE 911plus/917plus CTD</Name>
    <FrequencyChannelsSuppressed>0</FrequencyChannelsSuppressed>
    <VoltageWordsSuppressed>0</VoltageWordsSuppressed>
    <SensorArray Size="5">
      <Sensor index="0" SensorID="55">
        <TemperatureSensor SensorID="55">
          <SerialNumber>03P-1234</SerialNumber>
          <CalibrationDate>01-Jan-24</CalibrationDate>
          <G>4.3e-3</G>
          <H>6.4e-4</H>
          <I>2.3e-5</I>
          <J>2.1e-6</J>
          <F0>1000.0</F0>
        </TemperatureSensor>
      </Sensor>
      <Sensor index="1" SensorID="3">
        <ConductivitySensor SensorID="3">
          <SerialNumber>04-5678</SerialNumber>
          <Coefficients equation="0">
            <A>0.0</A>
            <B>0.0</B>
          </Coefficients>
          <Coefficients equation="1">
            <G>-9.9e0</G>
            <H>1.3e0</H>
            <I>-2.9e-3</I>
            <J>2.4e-4</J>
            <CPcor>-9.57e-8</CPcor>
            <CTcor>3.25e-6</CTcor>
          </Coefficients>
        </ConductivitySensor>
      </Sensor>
      <Sensor index="2" SensorID="45">
        <PressureSensor SensorID="45">
          <SerialNumber>0987</SerialNumber>
          <C1>-4.3e4</C1>
        </PressureSensor>
      </Sensor>
      <Sensor index="3" SensorID="27">
        <NotInUse SensorID="27">
        </NotInUse>
      </Sensor>
    </SensorArray>
  </Instrument>
</SBE_InstrumentConfiguration>`

func TestParse(t *testing.T) {
	cfg, err := ParseWithEncoding(strings.NewReader(sampleCon), nil)
	require.NoError(t, err)

	assert.Equal(t, "SBE 911plus/917plus CTD", cfg.Settings["Name"])
	assert.Equal(t, "0", cfg.Settings["FrequencyChannelsSuppressed"])
	assert.Equal(t, 0, cfg.FrequencyChannelsSuppressed())
	assert.Equal(t, "5", cfg.Settings["SensorArraySize"])

	// Declared size 5 but only 4 entries: a warning, never an error.
	assert.Equal(t, 5, cfg.SensorArraySize)
	require.Len(t, cfg.Sensors, 4)

	temp := cfg.Sensors[0]
	assert.Equal(t, 0, temp.Channel)
	assert.Equal(t, "55", temp.SensorID)
	assert.Equal(t, "TemperatureSensor", temp.Name)
	assert.Equal(t, "03P-1234", temp.Meta["SerialNumber"])
	assert.Equal(t, "1000.0", temp.Meta["F0"])

	cond := cfg.Sensors[1]
	assert.Equal(t, "3", cond.SensorID)
	require.Contains(t, cond.Groups, "Coefficients")
	require.Contains(t, cond.Groups, "Coefficients2")
	assert.Equal(t, "0.0", cond.Groups["Coefficients"]["A"])
	assert.Equal(t, "-9.9e0", cond.Groups["Coefficients2"]["G"])
}

func TestCoefSet(t *testing.T) {
	cfg, err := ParseWithEncoding(strings.NewReader(sampleCon), nil)
	require.NoError(t, err)

	// Second (newer) coefficient group wins for the conductivity cell.
	coefs := cfg.Sensors[1].CoefSet()
	assert.Equal(t, "-9.9e0", coefs["G"])
	assert.Equal(t, "3.25e-6", coefs["CTcor"])

	// Frequency sensors with flat coefficients fall back to metadata.
	coefs = cfg.Sensors[0].CoefSet()
	assert.Equal(t, "1000.0", coefs["F0"])
}

func TestParseCP437(t *testing.T) {
	// 0xF8 is the degree sign in cp437; it must survive decoding.
	doc := []byte(`<Root><Instrument><Units>5` + "\xf8" + `C</Units><SensorArray Size="0"></SensorArray></Instrument></Root>`)
	cfg, err := Parse(bytes.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, "5°C", cfg.Settings["Units"])
}

func TestParseNoSensorArray(t *testing.T) {
	_, err := ParseWithEncoding(strings.NewReader(`<Root><Instrument><Name>x</Name></Instrument></Root>`), nil)
	assert.ErrorIs(t, err, ErrNoSensorArray)
}
