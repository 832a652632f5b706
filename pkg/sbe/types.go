package sbe

import "fmt"

// SensorKind identifies the physical conversion an instrument channel needs.
// The set is closed: dispatch in the pipeline switches over it exhaustively
// and anything unlisted degrades to a raw-voltage pass-through.
type SensorKind int

const (
	KindUnknown SensorKind = iota
	KindTemperature
	KindPressure
	KindConductivity
	KindSalinity // synthetic, no physical channel
	KindOxygen
	KindAltimeter
	KindFluorometer
	KindTransmissometer
	KindUserVoltage
	KindFree
)

func (k SensorKind) String() string {
	switch k {
	case KindTemperature:
		return "temperature"
	case KindPressure:
		return "pressure"
	case KindConductivity:
		return "conductivity"
	case KindSalinity:
		return "salinity"
	case KindOxygen:
		return "oxygen"
	case KindAltimeter:
		return "altimeter"
	case KindFluorometer:
		return "fluorometer"
	case KindTransmissometer:
		return "transmissometer"
	case KindUserVoltage:
		return "user-voltage"
	case KindFree:
		return "free"
	}
	return "unknown"
}

// KindFromString is the inverse of String. Unlisted names map to
// KindUnknown.
func KindFromString(s string) SensorKind {
	for k := KindTemperature; k <= KindFree; k++ {
		if k.String() == s {
			return k
		}
	}
	return KindUnknown
}

// Rank is the processing priority: lower ranks must be converted first
// because later equations consume their output.
func (k SensorKind) Rank() int {
	switch k {
	case KindTemperature:
		return 1
	case KindPressure:
		return 2
	case KindConductivity:
		return 3
	case KindSalinity:
		return 4
	case KindOxygen:
		return 5
	}
	return 6
}

// ChannelDescriptor is one work item for the conversion pipeline.
type ChannelDescriptor struct {
	// Index is the physical channel position in the sensor map,
	// or -1 for synthetic channels (salinity).
	Index    int
	SensorID string
	Kind     SensorKind

	// Name is the disambiguated column name: the first occurrence of a
	// kind keeps the bare short name, repeats get a numeric suffix.
	Name string

	// Instance counts occurrences of a kind in channel-index order,
	// starting at 1. The instance-1 channel is the one threaded into
	// dependent equations; this is never re-derived from Name.
	Instance int
}

func (d ChannelDescriptor) IsPrimary() bool { return d.Instance == 1 }

func (d ChannelDescriptor) String() string {
	return fmt.Sprintf("ch%d %s (%s)", d.Index, d.Name, d.Kind)
}

// EngineeringData holds raw engineering values, column-major: frequency
// channels in Hz first, then voltage channels in volts, in sensor-map
// order. PTempCode carries the raw pressure-probe temperature reading
// per scan for the pressure equation.
type EngineeringData struct {
	Scans     int
	FreqChans int
	VoltChans int
	values    []float64
	PTempCode []float64
}

func NewEngineeringData(scans, freqChans, voltChans int) *EngineeringData {
	return &EngineeringData{
		Scans:     scans,
		FreqChans: freqChans,
		VoltChans: voltChans,
		values:    make([]float64, scans*(freqChans+voltChans)),
		PTempCode: make([]float64, scans),
	}
}

func (e *EngineeringData) Channels() int { return e.FreqChans + e.VoltChans }

// Column returns the backing slice for channel c. Callers must not
// resize it; writes are how the extractor fills the dataset in.
func (e *EngineeringData) Column(c int) []float64 {
	return e.values[c*e.Scans : (c+1)*e.Scans]
}

// ScienceData accumulates converted columns under their disambiguated
// names. Each name is written exactly once, in pipeline priority order,
// so later equations can read earlier results without locking.
type ScienceData struct {
	Scans int
	names []string
	cols  map[string][]float64
}

func NewScienceData(scans int) *ScienceData {
	return &ScienceData{Scans: scans, cols: make(map[string][]float64)}
}

func (s *ScienceData) Set(name string, col []float64) error {
	if _, ok := s.cols[name]; ok {
		return fmt.Errorf("science column %q written twice", name)
	}
	if len(col) != s.Scans {
		return fmt.Errorf("science column %q has %d scans, want %d", name, len(col), s.Scans)
	}
	s.names = append(s.names, name)
	s.cols[name] = col
	return nil
}

func (s *ScienceData) Column(name string) ([]float64, bool) {
	col, ok := s.cols[name]
	return col, ok
}

// Names returns column names in the order they were written.
func (s *ScienceData) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Anomaly records a non-fatal data-quality correction applied during
// conversion, retained for downstream reporting.
type Anomaly struct {
	Channel string
	Reason  string
	Count   int
}
