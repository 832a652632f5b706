package channels

import (
	"encoding/hex"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanodyne/sonde/pkg/sbe/hexfile"
	"github.com/oceanodyne/sonde/pkg/sbe/xmlcon"
)

func makeFrame(t *testing.T, rows ...[]byte) *hexfile.Frame {
	t.Helper()
	var sb strings.Builder
	fmt.Fprintf(&sb, "* number of bytes per scan = %d\r\n", len(rows[0]))
	for _, row := range rows {
		sb.WriteString(strings.ToUpper(hex.EncodeToString(row)))
		sb.WriteString("\r\n")
	}
	f, err := hexfile.DecodeString(sb.String(), hexfile.PolicyRaise)
	require.NoError(t, err)
	return f
}

func makeConfig(suppressed, sensors int) *xmlcon.Config {
	cfg := &xmlcon.Config{
		Settings: map[string]string{
			"FrequencyChannelsSuppressed": fmt.Sprint(suppressed),
		},
		SensorArraySize: sensors,
		Sensors:         make([]xmlcon.Sensor, sensors),
	}
	for i := range cfg.Sensors {
		cfg.Sensors[i].Channel = i
	}
	return cfg
}

func TestExtract(t *testing.T) {
	// 5 frequency channels (15 bytes), 2 voltage channels (1 word,
	// 3 bytes), probe temperature word (2 bytes).
	row := make([]byte, 20)
	row[0], row[1], row[2] = 0x01, 0x00, 0x00 // freq 0: 65536/256
	row[3], row[4], row[5] = 0xFF, 0xFF, 0xFF // freq 1: max
	row[6], row[7], row[8] = 0x00, 0x0F, 0x42 // freq 2
	// volt 0 raw=4095 (0 V), volt 1 raw=0 (5 V)
	row[15], row[16], row[17] = 0xFF, 0xF0, 0x00
	row[18], row[19] = 0xAB, 0xC0 // probe code 0xABC

	f := makeFrame(t, row, row)
	eng, err := Extract(f, makeConfig(0, 7))
	require.NoError(t, err)

	assert.Equal(t, 2, eng.Scans)
	assert.Equal(t, 5, eng.FreqChans)
	assert.Equal(t, 2, eng.VoltChans)

	assert.Equal(t, 256.0, eng.Column(0)[0])
	assert.Equal(t, float64(0xFFFFFF)/256, eng.Column(1)[0])
	assert.Equal(t, float64(0x000F42)/256, eng.Column(2)[0])
	assert.Equal(t, 0.0, eng.Column(3)[0])

	// Raw 4095 is exactly 0 V, raw 0 exactly 5 V.
	assert.Equal(t, 0.0, eng.Column(5)[0])
	assert.Equal(t, 5.0, eng.Column(6)[0])

	assert.Equal(t, float64(0xABC), eng.PTempCode[0])
	assert.Equal(t, float64(0xABC), eng.PTempCode[1])
}

func TestExtractVoltageRange(t *testing.T) {
	// Every decoded voltage lies in [0, 5] before sanitization.
	rows := [][]byte{
		append(make([]byte, 15), 0x00, 0x00, 0x00, 0x00, 0x00),
		append(make([]byte, 15), 0xFF, 0xFF, 0xFF, 0x00, 0x00),
		append(make([]byte, 15), 0x12, 0x34, 0x56, 0x00, 0x00),
	}
	f := makeFrame(t, rows...)
	eng, err := Extract(f, makeConfig(0, 7))
	require.NoError(t, err)

	for c := 5; c < 7; c++ {
		for i, v := range eng.Column(c) {
			assert.GreaterOrEqual(t, v, 0.0, "scan %d ch %d", i, c)
			assert.LessOrEqual(t, v, 5.0, "scan %d ch %d", i, c)
		}
	}
}

func TestExtractOddVoltageByHand(t *testing.T) {
	// Odd channels read a shifted two-byte window; derive by hand:
	// bytes 16,17 = 0x3A, 0xBC -> raw = 0x3ABC & 0xFFF = 0xABC.
	row := make([]byte, 20)
	row[16], row[17] = 0x3A, 0xBC
	f := makeFrame(t, row)

	eng, err := Extract(f, makeConfig(0, 7))
	require.NoError(t, err)

	want := 5 * (1 - float64(0xABC)/4095)
	assert.InDelta(t, want, eng.Column(6)[0], 1e-12)
}

func TestExtractSuppressedFrequencies(t *testing.T) {
	// 2 suppressed: 3 frequency channels, voltage region starts at 9.
	row := make([]byte, 12)
	row[9], row[10] = 0xFF, 0xF0 // volt 0 raw=4095 -> 0 V
	f := makeFrame(t, row)

	eng, err := Extract(f, makeConfig(2, 4))
	require.NoError(t, err)
	assert.Equal(t, 3, eng.FreqChans)
	assert.Equal(t, 1, eng.VoltChans)
	assert.Equal(t, 0.0, eng.Column(3)[0])
}

func TestExtractInvalidChannels(t *testing.T) {
	f := makeFrame(t, make([]byte, 20))

	// Fewer sensors than frequency channels.
	_, err := Extract(f, makeConfig(0, 3))
	assert.ErrorIs(t, err, ErrInvalidChannels)

	// More channels than a scan can hold.
	_, err = Extract(f, makeConfig(0, 20))
	assert.ErrorIs(t, err, ErrInvalidChannels)
}

func TestExtractGappySensorMap(t *testing.T) {
	f := makeFrame(t, make([]byte, 20))

	// A dropped entry leaves a hole: positions 0,1,2,4,5,6,7 for a
	// 7-entry map. The parser only warns; extraction must refuse.
	cfg := makeConfig(0, 7)
	cfg.Sensors[3].Channel = 7

	_, err := Extract(f, cfg)
	require.ErrorIs(t, err, ErrInvalidChannels)
}

func TestExtractDuplicateSensorChannel(t *testing.T) {
	f := makeFrame(t, make([]byte, 20))

	cfg := makeConfig(0, 7)
	cfg.Sensors[3].Channel = 2

	_, err := Extract(f, cfg)
	require.ErrorIs(t, err, ErrInvalidChannels)
}
