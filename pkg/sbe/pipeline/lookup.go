package pipeline

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v2"

	"github.com/oceanodyne/sonde/pkg/sbe"
)

//go:embed lookup.yaml
var lookupYAML []byte

// SensorInfo is what the table knows about one identity code.
type SensorInfo struct {
	Kind      sbe.SensorKind
	ShortName string
}

// SensorTable maps sensor identity codes to conversion kinds and
// column base names. It is built once at startup and passed into the
// scheduler; nothing mutates it afterwards.
type SensorTable map[string]SensorInfo

// SalinitySensorID is the synthetic identity code for the derived
// salinity channel, which has no physical channel position.
const SalinitySensorID = "1000"

type lookupEntry struct {
	Kind      string `yaml:"kind"`
	ShortName string `yaml:"short_name"`
}

// DefaultSensorTable parses the embedded lookup table.
func DefaultSensorTable() (SensorTable, error) {
	return ParseSensorTable(lookupYAML)
}

// ParseSensorTable builds a sensor table from YAML, for deployments
// carrying custom sensors the built-in table does not know.
func ParseSensorTable(data []byte) (SensorTable, error) {
	var raw map[string]lookupEntry
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing sensor lookup table: %w", err)
	}

	table := make(SensorTable, len(raw))
	for id, entry := range raw {
		kind := sbe.KindFromString(entry.Kind)
		if kind == sbe.KindUnknown {
			return nil, fmt.Errorf("sensor %s has unknown kind %q", id, entry.Kind)
		}
		if entry.ShortName == "" {
			return nil, fmt.Errorf("sensor %s has no short name", id)
		}
		table[id] = SensorInfo{Kind: kind, ShortName: entry.ShortName}
	}
	return table, nil
}

// Lookup resolves an identity code. Unknown codes are not an error:
// the scheduler degrades them to raw pass-through.
func (t SensorTable) Lookup(sensorID string) (SensorInfo, bool) {
	info, ok := t[sensorID]
	return info, ok
}
