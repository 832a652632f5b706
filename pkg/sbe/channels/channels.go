// Package channels turns decoded scan rows into engineering values:
// frequencies in Hz from 3-byte big-endian fields and voltages from
// 12-bit nibble-packed words.
package channels

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/oceanodyne/sonde/pkg/sbe"
	"github.com/oceanodyne/sonde/pkg/sbe/hexfile"
	"github.com/oceanodyne/sonde/pkg/sbe/xmlcon"
)

// maxFreqChannels is the instrument's frequency channel capacity;
// suppressed channels are subtracted from it.
const maxFreqChannels = 5

var ErrInvalidChannels = errors.New("invalid channel indices")

// Extract builds the Engineering Dataset from a decoded frame and its
// configuration: frequency channels first, then voltage channels, in
// sensor-map order, plus the pressure-probe temperature code column.
func Extract(f *hexfile.Frame, cfg *xmlcon.Config) (*sbe.EngineeringData, error) {
	freqChans := maxFreqChannels - cfg.FrequencyChannelsSuppressed()
	if freqChans < 0 || freqChans > maxFreqChannels {
		return nil, fmt.Errorf("%w: %d frequency channels", ErrInvalidChannels, freqChans)
	}

	// Voltage count comes from the parsed sensor-map length, not the
	// declared array size, which can be stale.
	voltChans := len(cfg.Sensors) - freqChans
	if voltChans < 0 {
		return nil, fmt.Errorf("%w: %d sensors for %d frequency channels",
			ErrInvalidChannels, len(cfg.Sensors), freqChans)
	}

	// The parser accepts a sensor map with dropped entries (size
	// mismatch is only a warning), so channel positions can have gaps.
	// Columns are addressed by position, so the map must be contiguous.
	seen := make(map[int]bool, len(cfg.Sensors))
	for _, s := range cfg.Sensors {
		if s.Channel < 0 || s.Channel >= len(cfg.Sensors) {
			return nil, fmt.Errorf("%w: sensor channel %d outside 0..%d",
				ErrInvalidChannels, s.Channel, len(cfg.Sensors)-1)
		}
		if seen[s.Channel] {
			return nil, fmt.Errorf("%w: sensor channel %d appears twice",
				ErrInvalidChannels, s.Channel)
		}
		seen[s.Channel] = true
	}

	voltWords := (voltChans + 1) / 2
	needed := freqChans*3 + voltWords*3
	if needed > f.BytesPerScan {
		return nil, fmt.Errorf("%w: %d channel bytes exceed %d bytes per scan",
			ErrInvalidChannels, needed, f.BytesPerScan)
	}

	eng := sbe.NewEngineeringData(f.Scans(), freqChans, voltChans)

	for c := 0; c < freqChans; c++ {
		frequencyColumn(f, c, eng.Column(c))
	}

	voltOffset := freqChans * 3
	for n := 0; n < voltChans; n++ {
		log.Debug().Int("channel", freqChans+n).Msg("extracting voltage channel")
		voltageColumn(f, voltOffset, n, eng.Column(freqChans+n))
	}

	probeTempColumn(f, voltOffset+voltWords*3, eng.PTempCode)

	return eng, nil
}

// frequencyColumn decodes frequency channel c for every scan. The
// shift-and-or sequence mirrors the wire layout: three big-endian
// bytes making a 24-bit count, scaled by 1/256 to Hz.
func frequencyColumn(f *hexfile.Frame, c int, dst []float64) {
	m := 3 * c
	for i := range dst {
		row := f.Row(i)
		v := (uint32(row[m])<<8|uint32(row[m+1]))<<8 | uint32(row[m+2])
		dst[i] = float64(v) / 256
	}
}

// voltageColumn decodes voltage channel n (counted from the first
// voltage channel). Channels pack two per three bytes: the even channel
// takes the high 12 bits of its window, the odd channel the low 12.
// A raw 0 is full scale (5 V) and 4095 is 0 V.
func voltageColumn(f *hexfile.Frame, offset, n int, dst []float64) {
	start := offset + 3*(n/2) + n%2
	shift := uint(4 * (1 - n%2))

	for i := range dst {
		row := f.Row(i)
		v := (uint16(row[start])<<8 | uint16(row[start+1])) >> shift & 0xFFF
		dst[i] = 5 * (1 - float64(v)/4095)
	}
}

// probeTempColumn reads the 12-bit pressure-probe temperature code that
// follows the voltage words. Instruments configured without the word
// leave the column zeroed.
func probeTempColumn(f *hexfile.Frame, offset int, dst []float64) {
	if offset+1 >= f.BytesPerScan {
		return
	}
	for i := range dst {
		row := f.Row(i)
		v := uint16(row[offset])<<4 | uint16(row[offset+1])>>4
		dst[i] = float64(v)
	}
}
