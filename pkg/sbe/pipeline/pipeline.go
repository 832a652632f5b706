// Package pipeline schedules calibration equations over an engineering
// dataset. Channels are ranked by their conversion priority so that
// equations consuming earlier outputs (conductivity needs temperature
// and pressure, oxygen needs all three) always find them converted.
package pipeline

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/oceanodyne/sonde/pkg/sbe"
	"github.com/oceanodyne/sonde/pkg/sbe/channels"
	"github.com/oceanodyne/sonde/pkg/sbe/equations"
	"github.com/oceanodyne/sonde/pkg/sbe/xmlcon"
)

// defaultSampleInterval is the scan period in seconds at the standard
// 24 Hz acquisition rate.
const defaultSampleInterval = 1.0 / 24.0

type Scheduler struct {
	table          SensorTable
	log            zerolog.Logger
	sampleInterval float64
}

type Option func(*Scheduler)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

// WithSampleInterval overrides the scan period used by time-dependent
// corrections, in seconds.
func WithSampleInterval(dt float64) Option {
	return func(s *Scheduler) { s.sampleInterval = dt }
}

// WithSensorTable replaces the embedded sensor identity table.
func WithSensorTable(t SensorTable) Option {
	return func(s *Scheduler) { s.table = t }
}

func NewScheduler(opts ...Option) (*Scheduler, error) {
	table, err := DefaultSensorTable()
	if err != nil {
		return nil, err
	}
	s := &Scheduler{
		table:          table,
		log:            zerolog.Nop(),
		sampleInterval: defaultSampleInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sampleInterval <= 0 {
		return nil, fmt.Errorf("sample interval must be positive, got %g", s.sampleInterval)
	}
	return s, nil
}

// Result is one converted cast.
type Result struct {
	Science  *sbe.ScienceData
	Channels []sbe.ChannelDescriptor

	// Anomalies counts non-fatal input repairs (zero frequencies,
	// out-of-range voltages) per output column.
	Anomalies []sbe.Anomaly

	// Unprocessed names columns emitted as raw pass-through because
	// their sensor identity has no conversion.
	Unprocessed []string
}

// BuildDescriptors maps the sensor array onto pipeline work items in
// conversion priority order. Channel order breaks rank ties, so two
// sensors of the same kind convert lowest-index first and the
// lowest-index one becomes the primary instance. A cast with any
// conductivity channel gets one synthetic salinity item.
func (s *Scheduler) BuildDescriptors(cfg *xmlcon.Config) []sbe.ChannelDescriptor {
	descs := make([]sbe.ChannelDescriptor, 0, len(cfg.Sensors)+1)

	instances := make(map[sbe.SensorKind]int)
	for _, sensor := range cfg.Sensors {
		info, known := s.table.Lookup(sensor.SensorID)
		if !known {
			info = SensorInfo{Kind: sbe.KindUnknown, ShortName: sensor.Name}
			s.log.Warn().
				Int("channel", sensor.Channel).
				Str("sensor_id", sensor.SensorID).
				Str("element", sensor.Name).
				Msg("unknown sensor identity, channel passes through raw")
		}

		instances[info.Kind]++
		descs = append(descs, sbe.ChannelDescriptor{
			Index:    sensor.Channel,
			SensorID: sensor.SensorID,
			Kind:     info.Kind,
			Name:     info.ShortName,
			Instance: instances[info.Kind],
		})
	}

	if instances[sbe.KindConductivity] > 0 {
		descs = append(descs, sbe.ChannelDescriptor{
			Index:    -1,
			SensorID: SalinitySensorID,
			Kind:     sbe.KindSalinity,
			Name:     "CTDSAL",
			Instance: 1,
		})
	}

	sort.SliceStable(descs, func(i, j int) bool {
		return descs[i].Kind.Rank() < descs[j].Kind.Rank()
	})

	disambiguate(descs)
	return descs
}

// disambiguate suffixes repeated column names: the first keeps the bare
// name, repeats get "2", "3" and so on.
func disambiguate(descs []sbe.ChannelDescriptor) {
	seen := make(map[string]int)
	for i := range descs {
		base := descs[i].Name
		seen[base]++
		if seen[base] > 1 {
			descs[i].Name = fmt.Sprintf("%s%d", base, seen[base])
		}
	}
}

// run carries per-cast state: converted series keyed by kind and
// instance, for threading into dependent equations.
type run struct {
	eng     *sbe.EngineeringData
	sensors map[int]*xmlcon.Sensor
	conv    map[sbe.SensorKind]map[int][]float64
}

func (r *run) store(kind sbe.SensorKind, instance int, col []float64) {
	if r.conv[kind] == nil {
		r.conv[kind] = make(map[int][]float64)
	}
	r.conv[kind][instance] = col
}

// dep fetches a converted dependency. Only the primary instance of a
// kind feeds dependent equations; suffixed duplicates are computed but
// never used as dependency sources.
func (r *run) dep(kind sbe.SensorKind) ([]float64, error) {
	if col, ok := r.conv[kind][1]; ok {
		return col, nil
	}
	return nil, fmt.Errorf("no converted %s channel available", kind)
}

// Run converts a full engineering dataset against its sensor map. Any
// missing calibration coefficient aborts the whole cast: a partially
// calibrated dataset is worse than none.
func (s *Scheduler) Run(eng *sbe.EngineeringData, cfg *xmlcon.Config) (*Result, error) {
	descs := s.BuildDescriptors(cfg)

	// A gappy sensor map survives parsing with only a warning; catch it
	// here before any descriptor indexes past the dataset.
	for _, d := range descs {
		if d.Index >= eng.Channels() {
			return nil, fmt.Errorf("channel %s: %w: channel %d in a dataset of %d channels",
				d.Name, channels.ErrInvalidChannels, d.Index, eng.Channels())
		}
	}

	r := &run{
		eng:     eng,
		sensors: make(map[int]*xmlcon.Sensor, len(cfg.Sensors)),
		conv:    make(map[sbe.SensorKind]map[int][]float64),
	}
	for i := range cfg.Sensors {
		r.sensors[cfg.Sensors[i].Channel] = &cfg.Sensors[i]
	}

	res := &Result{
		Science:  sbe.NewScienceData(eng.Scans),
		Channels: descs,
	}

	for _, d := range descs {
		col, replaced, err := s.convert(r, d)
		if err != nil {
			return nil, fmt.Errorf("channel %s: %w", d.Name, err)
		}
		if err := res.Science.Set(d.Name, col); err != nil {
			return nil, err
		}
		r.store(d.Kind, d.Instance, col)

		if replaced > 0 {
			res.Anomalies = append(res.Anomalies, sbe.Anomaly{
				Channel: d.Name,
				Reason:  "out-of-range engineering values replaced with NaN",
				Count:   replaced,
			})
			s.log.Debug().
				Str("channel", d.Name).
				Int("replaced", replaced).
				Msg("sanitized engineering values")
		}
		if d.Kind == sbe.KindUnknown {
			res.Unprocessed = append(res.Unprocessed, d.Name)
		}
	}
	return res, nil
}

func (s *Scheduler) convert(r *run, d sbe.ChannelDescriptor) ([]float64, int, error) {
	var raw []float64
	var coefs map[string]string
	if d.Index >= 0 {
		raw = r.eng.Column(d.Index)
		coefs = r.sensors[d.Index].CoefSet()
	}

	switch d.Kind {
	case sbe.KindTemperature:
		return equations.Temperature(raw, coefs)

	case sbe.KindPressure:
		return equations.Pressure(raw, r.eng.PTempCode, coefs)

	case sbe.KindConductivity:
		t, err := r.dep(sbe.KindTemperature)
		if err != nil {
			return nil, 0, err
		}
		p, err := r.dep(sbe.KindPressure)
		if err != nil {
			return nil, 0, err
		}
		return equations.Conductivity(raw, t, p, coefs)

	case sbe.KindSalinity:
		c, err := r.dep(sbe.KindConductivity)
		if err != nil {
			return nil, 0, err
		}
		t, err := r.dep(sbe.KindTemperature)
		if err != nil {
			return nil, 0, err
		}
		p, err := r.dep(sbe.KindPressure)
		if err != nil {
			return nil, 0, err
		}
		return equations.Salinity(c, t, p), 0, nil

	case sbe.KindOxygen:
		p, err := r.dep(sbe.KindPressure)
		if err != nil {
			return nil, 0, err
		}
		t, err := r.dep(sbe.KindTemperature)
		if err != nil {
			return nil, 0, err
		}
		c, err := r.dep(sbe.KindConductivity)
		if err != nil {
			return nil, 0, err
		}
		return equations.Oxygen(raw, p, t, c, coefs, s.sampleInterval)

	case sbe.KindAltimeter:
		return equations.Altimeter(raw, coefs)

	case sbe.KindFluorometer, sbe.KindTransmissometer, sbe.KindUserVoltage, sbe.KindFree:
		out, replaced := equations.Voltage(raw)
		return out, replaced, nil
	}

	// Unknown identity on a frequency channel passes raw Hz through
	// untouched; on a voltage channel it goes through the voltage
	// sanitizer like any other auxiliary.
	if d.Index < r.eng.FreqChans {
		out := make([]float64, len(raw))
		copy(out, raw)
		return out, 0, nil
	}
	out, replaced := equations.Voltage(raw)
	return out, replaced, nil
}
