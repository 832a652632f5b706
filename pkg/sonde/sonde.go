// Package sonde ties the decode and conversion stages into a single
// cast converter: hex frame in, calibrated science dataset out, with
// optional persistence and metric emission.
package sonde

import (
	"context"
	"fmt"
	"io"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/oceanodyne/sonde/pkg/sbe"
	"github.com/oceanodyne/sonde/pkg/sbe/bl"
	"github.com/oceanodyne/sonde/pkg/sbe/channels"
	"github.com/oceanodyne/sonde/pkg/sbe/hexfile"
	"github.com/oceanodyne/sonde/pkg/sbe/pipeline"
	"github.com/oceanodyne/sonde/pkg/sbe/xmlcon"
	"github.com/oceanodyne/sonde/pkg/sonde/storage"
	"github.com/oceanodyne/sonde/pkg/util"
)

type Converter struct {
	opts     Options
	writeAPI api.WriteAPI
	store    *storage.Store
	sched    *pipeline.Scheduler
	logger   zerolog.Logger
}

type Options struct {
	// ErrorPolicy is applied to scan-length mismatches during decode.
	ErrorPolicy hexfile.ErrorPolicy

	// SampleInterval is the scan period in seconds; zero selects the
	// standard 24 Hz rate.
	SampleInterval float64
}

type ConverterOption func(c *Converter) error

func WithInfluxDB(writeAPI api.WriteAPI) ConverterOption {
	return func(c *Converter) error {
		c.writeAPI = writeAPI
		return nil
	}
}

func WithStore(store *storage.Store) ConverterOption {
	return func(c *Converter) error {
		c.store = store
		return nil
	}
}

func WithLogger(logger zerolog.Logger) ConverterOption {
	return func(c *Converter) error {
		c.logger = logger
		return nil
	}
}

func NewConverter(options Options, opts ...ConverterOption) (*Converter, error) {
	c := &Converter{
		opts:     options,
		writeAPI: &util.MockWriteAPI{}, // overwritten with option
		logger:   log.Logger,
	}
	if c.opts.ErrorPolicy == "" {
		c.opts.ErrorPolicy = hexfile.PolicyRaise
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	schedOpts := []pipeline.Option{pipeline.WithLogger(c.logger)}
	if c.opts.SampleInterval > 0 {
		schedOpts = append(schedOpts, pipeline.WithSampleInterval(c.opts.SampleInterval))
	}
	sched, err := pipeline.NewScheduler(schedOpts...)
	if err != nil {
		return nil, err
	}
	c.sched = sched
	return c, nil
}

// CastInput names one cast's input streams. Bottle is optional.
type CastInput struct {
	Name   string
	Hex    io.Reader
	Con    io.Reader
	Bottle io.Reader
}

// Dataset is one fully converted cast.
type Dataset struct {
	Name        string
	Frame       *hexfile.Frame
	Config      *xmlcon.Config
	Engineering *sbe.EngineeringData
	Science     *sbe.ScienceData
	Channels    []sbe.ChannelDescriptor
	Anomalies   []sbe.Anomaly
	Unprocessed []string
	Closures    []bl.Closure

	// StoreID is the persisted cast's row ID, zero when no store is
	// configured.
	StoreID int64
}

// ConvertCast runs decode, extraction and conversion for one cast,
// persists the result when a store is configured, and emits metric
// points per stage.
func (c *Converter) ConvertCast(ctx context.Context, input CastInput) (*Dataset, error) {
	start := time.Now()

	var frame *hexfile.Frame
	var err error
	decodeMicros := util.TimeOperationMicroseconds(func() {
		frame, err = hexfile.Decode(input.Hex, c.opts.ErrorPolicy)
	})
	if err != nil {
		return nil, fmt.Errorf("cast %s: decoding frame: %w", input.Name, err)
	}

	cfg, err := xmlcon.Parse(input.Con)
	if err != nil {
		return nil, fmt.Errorf("cast %s: parsing instrument config: %w", input.Name, err)
	}

	eng, err := channels.Extract(frame, cfg)
	if err != nil {
		return nil, fmt.Errorf("cast %s: extracting channels: %w", input.Name, err)
	}

	var res *pipeline.Result
	convertMicros := util.TimeOperationMicroseconds(func() {
		res, err = c.sched.Run(eng, cfg)
	})
	if err != nil {
		return nil, fmt.Errorf("cast %s: converting: %w", input.Name, err)
	}

	ds := &Dataset{
		Name:        input.Name,
		Frame:       frame,
		Config:      cfg,
		Engineering: eng,
		Science:     res.Science,
		Channels:    res.Channels,
		Anomalies:   res.Anomalies,
		Unprocessed: res.Unprocessed,
	}

	if input.Bottle != nil {
		closures, err := bl.Parse(input.Bottle)
		if err != nil {
			return nil, fmt.Errorf("cast %s: parsing bottle log: %w", input.Name, err)
		}
		ds.Closures = closures
	}

	if c.store != nil {
		id, err := c.store.SaveCast(ctx, castRecord(ds))
		if err != nil {
			return nil, fmt.Errorf("cast %s: persisting: %w", input.Name, err)
		}
		ds.StoreID = id
	}

	anomalyCount := 0
	for _, a := range ds.Anomalies {
		anomalyCount += a.Count
	}

	c.logger.Info().
		Str("cast", input.Name).
		Int("scans", frame.Scans()).
		Int("channels", len(ds.Channels)).
		Int("anomalies", anomalyCount).
		Int("unprocessed", len(ds.Unprocessed)).
		Dur("elapsed", time.Since(start)).
		Msg("cast converted")

	go c.writeAPI.WritePoint(influxdb2.NewPoint("cast.converted",
		map[string]string{
			"cast": input.Name,
		},
		map[string]interface{}{
			"scans":           frame.Scans(),
			"channels":        len(ds.Channels),
			"anomalies":       anomalyCount,
			"unprocessed":     len(ds.Unprocessed),
			"decode_micros":  decodeMicros,
			"convert_micros": convertMicros,
		}, start))

	return ds, nil
}

func castRecord(ds *Dataset) *storage.CastRecord {
	names := ds.Science.Names()
	cols := make(map[string][]float64, len(names))
	for _, name := range names {
		col, _ := ds.Science.Column(name)
		cols[name] = col
	}
	return &storage.CastRecord{
		Name:         ds.Name,
		Header:       ds.Frame.Header,
		BytesPerScan: ds.Frame.BytesPerScan,
		Scans:        ds.Frame.Scans(),
		Raw:          ds.Frame.Data(),
		Channels:     ds.Channels,
		ColumnOrder:  names,
		Columns:      cols,
		Anomalies:    ds.Anomalies,
	}
}
