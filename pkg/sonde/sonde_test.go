package sonde

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanodyne/sonde/pkg/sonde/storage"
)

// Two frequency channels suppressed leaves three: temperature,
// pressure, conductivity. One voltage channel carries a fluorometer.
const testCon = `<?xml version="1.0" encoding="UTF-8"?>
<SBE_InstrumentConfiguration SB_ConfigCTD_FileVersion="7.26.4.0">
  <Instrument Type="8">
    <Name>SBE 911plus/917plus CTD</Name>
    <FrequencyChannelsSuppressed>2</FrequencyChannelsSuppressed>
    <VoltageWordsSuppressed>0</VoltageWordsSuppressed>
    <SensorArray Size="4">
      <Sensor index="0" SensorID="55">
        <TemperatureSensor SensorID="55">
          <G>4.3e-3</G>
          <H>6.4e-4</H>
          <I>2.3e-5</I>
          <J>2.1e-6</J>
          <F0>1000.0</F0>
        </TemperatureSensor>
      </Sensor>
      <Sensor index="1" SensorID="45">
        <PressureSensor SensorID="45">
          <T1>0</T1><T2>0</T2><T3>0</T3><T4>0</T4><T5>0</T5>
          <C1>1000</C1><C2>0</C2><C3>0</C3>
          <D1>0</D1><D2>0</D2>
          <AD590M>1</AD590M><AD590B>0</AD590B>
          <Slope>1</Slope><Offset>0</Offset>
        </PressureSensor>
      </Sensor>
      <Sensor index="2" SensorID="3">
        <ConductivitySensor SensorID="3">
          <Coefficients equation="1">
            <G>0</G><H>1</H><I>0</I><J>0</J>
            <CPcor>0</CPcor><CTcor>0</CTcor>
          </Coefficients>
        </ConductivitySensor>
      </Sensor>
      <Sensor index="3" SensorID="11">
        <FluoroWetlabECO_AFL_FL_Sensor SensorID="11">
          <ScaleFactor>10</ScaleFactor>
        </FluoroWetlabECO_AFL_FL_Sensor>
      </Sensor>
    </SensorArray>
  </Instrument>
</SBE_InstrumentConfiguration>`

// One 14-byte scan: 3000 Hz, 10000 Hz, 2000 Hz, one voltage word with
// raw 0x333 (4.0 V) in its high 12 bits, probe code 0x800.
const testHex = "* Sea-Bird SBE 9 Data File:\r\n" +
	"* number of bytes per scan = 14\r\n" +
	"*END*\r\n" +
	"0BB80027100007D0003330008000\r\n" +
	"0BB80027100007D0003330008000\r\n"

const testBL = "RESET\n" +
	"1, 1, Jan 01 2024 00:00:01, 100, 124\n" +
	"2, 2, Jan 01 2024 00:01:01, 1500, 1524\n"

func TestConvertCast(t *testing.T) {
	c, err := NewConverter(Options{})
	require.NoError(t, err)

	ds, err := c.ConvertCast(context.Background(), CastInput{
		Name:   "station-001",
		Hex:    strings.NewReader(testHex),
		Con:    strings.NewReader(testCon),
		Bottle: strings.NewReader(testBL),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, ds.Frame.Scans())
	assert.Equal(t, 14, ds.Frame.BytesPerScan)
	assert.Equal(t, 3, ds.Engineering.FreqChans)
	assert.Equal(t, 1, ds.Engineering.VoltChans)

	assert.Equal(t, []string{
		"CTDTMP", "CTDPRS", "CTDCOND", "CTDSAL", "CTDFLUOR",
	}, ds.Science.Names())

	tmp, ok := ds.Science.Column("CTDTMP")
	require.True(t, ok)
	assert.InDelta(t, 2.951, tmp[0], 0.02)

	prs, ok := ds.Science.Column("CTDPRS")
	require.True(t, ok)
	assert.InDelta(t, 679.3406, prs[0], 1e-3)

	cond, ok := ds.Science.Column("CTDCOND")
	require.True(t, ok)
	assert.InDelta(t, 4.0, cond[0], 1e-9)

	fl, ok := ds.Science.Column("CTDFLUOR")
	require.True(t, ok)
	assert.InDelta(t, 4.0, fl[0], 1e-3)

	require.Len(t, ds.Closures, 2)
	assert.Equal(t, 100, ds.Closures[0].ScanStart)

	assert.Empty(t, ds.Anomalies)
	assert.Zero(t, ds.StoreID)
}

func TestConvertCastPersists(t *testing.T) {
	store := storage.NewStore(filepath.Join(t.TempDir(), "casts.db"))
	t.Cleanup(func() { _ = store.Close() })

	c, err := NewConverter(Options{}, WithStore(store))
	require.NoError(t, err)

	ctx := context.Background()
	ds, err := c.ConvertCast(ctx, CastInput{
		Name: "station-002",
		Hex:  strings.NewReader(testHex),
		Con:  strings.NewReader(testCon),
	})
	require.NoError(t, err)
	require.NotZero(t, ds.StoreID)

	cast, err := store.Cast(ctx, ds.StoreID)
	require.NoError(t, err)
	assert.Equal(t, "station-002", cast.Name)
	assert.Equal(t, 2, cast.Scans)

	col, err := store.Column(ctx, ds.StoreID, "CTDPRS")
	require.NoError(t, err)
	assert.InDelta(t, 679.3406, col[0], 1e-3)
}

func TestConvertCastBadHex(t *testing.T) {
	c, err := NewConverter(Options{})
	require.NoError(t, err)

	_, err = c.ConvertCast(context.Background(), CastInput{
		Name: "station-003",
		Hex:  strings.NewReader("no header here\n"),
		Con:  strings.NewReader(testCon),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "station-003")
}
