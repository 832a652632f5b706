package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v2"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/oceanodyne/sonde/pkg/sbe/hexfile"
	"github.com/oceanodyne/sonde/pkg/sonde"
	"github.com/oceanodyne/sonde/pkg/sonde/config"
	"github.com/oceanodyne/sonde/pkg/sonde/server"
	"github.com/oceanodyne/sonde/pkg/sonde/storage"
	"golang.org/x/sync/errgroup"
)

const defaultShutdownTimeout = 5 * time.Second

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.InfoLevel)
	configFile := flag.String("config", "sonde.yaml", "YAML config file")

	flag.Parse()
	if configFile == nil {
		flag.Usage()
		os.Exit(1)
	}

	configContents, err := os.ReadFile(*configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("error reading config file")
	}
	var opts config.Config
	if err := yaml.Unmarshal(configContents, &opts); err != nil {
		log.Fatal().Err(err).Msg("error unmarshaling yaml file")
	}

	convOpts := []sonde.ConverterOption{sonde.WithLogger(log.Logger)}

	var store *storage.Store
	if opts.DatabasePath != "" {
		store = storage.NewStore(opts.DatabasePath)
		defer store.Close()
		convOpts = append(convOpts, sonde.WithStore(store))
	}

	if opts.InfluxDB.Host != "" {
		writeAPI := influxdb2.NewClient(opts.InfluxDB.Host, "").
			WriteAPI(opts.InfluxDB.Organization, opts.InfluxDB.Bucket)
		convOpts = append(convOpts, sonde.WithInfluxDB(writeAPI))
	}

	converter, err := sonde.NewConverter(sonde.Options{
		ErrorPolicy:    hexfile.ErrorPolicy(opts.ErrorPolicy),
		SampleInterval: opts.SampleInterval,
	}, convOpts...)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create converter")
	}

	eg, ctx := errgroup.WithContext(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var apiServer *server.Server
	if opts.Server.Port != 0 && store != nil {
		apiServer = server.NewServer(opts.Server.Port, store, log.Logger)
		eg.Go(func() error {
			return apiServer.Run(ctx)
		})
	}

	eg.Go(func() error {
		<-ctx.Done()
		if apiServer != nil {
			timeout := opts.Server.ShutdownTimeout
			if timeout == 0 {
				timeout = defaultShutdownTimeout
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			if err := apiServer.Stop(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("server did not drain cleanly")
			}
		}
		return nil
	})

	convDone := make(chan struct{})
	eg.Go(func() error {
		defer close(convDone)
		return convertCasts(ctx, converter, opts.Casts)
	})

	eg.Go(func() error {
		select {
		case <-sigChan:
		case <-ctx.Done():
		case <-convDone:
			if apiServer != nil {
				// Keep serving stored casts until interrupted.
				select {
				case <-sigChan:
				case <-ctx.Done():
				}
			}
		}
		return context.Canceled
	})

	if err := eg.Wait(); err != nil && err != context.Canceled {
		log.Fatal().Err(err).Msg("exited program")
	}
}

func convertCasts(ctx context.Context, converter *sonde.Converter, casts []config.Cast) error {
	for _, cast := range casts {
		if err := convertCast(ctx, converter, cast); err != nil {
			return err
		}
	}
	return nil
}

func convertCast(ctx context.Context, converter *sonde.Converter, cast config.Cast) error {
	hexF, err := os.Open(cast.HexFile)
	if err != nil {
		return err
	}
	defer hexF.Close()

	conF, err := os.Open(cast.ConfigFile)
	if err != nil {
		return err
	}
	defer conF.Close()

	input := sonde.CastInput{Name: cast.Name, Hex: hexF, Con: conF}

	if cast.BottleFile != "" {
		blF, err := os.Open(cast.BottleFile)
		if err != nil {
			return err
		}
		defer blF.Close()
		input.Bottle = blF
	}

	_, err = converter.ConvertCast(ctx, input)
	return err
}
