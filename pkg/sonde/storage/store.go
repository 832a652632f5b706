// Package storage persists converted casts in a sqlite database: cast
// provenance, channel metadata, and science columns as compressed
// blobs. One writable connection runs in WAL mode; reads go through a
// second read-only connection so API queries never block a conversion
// in progress.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/oceanodyne/sonde/pkg/sbe"
)

// CastRecord is one converted cast ready for persistence.
type CastRecord struct {
	Name         string
	Header       []string
	BytesPerScan int
	Scans        int

	// Raw is the decoded frame payload, stored gzip-compressed so the
	// original telemetry can always be re-derived.
	Raw []byte

	Channels    []sbe.ChannelDescriptor
	ColumnOrder []string
	Columns     map[string][]float64
	Anomalies   []sbe.Anomaly
}

// CastInfo is the listing row for a stored cast.
type CastInfo struct {
	ID           int64
	CreatedAt    time.Time
	Name         string
	BytesPerScan int
	Scans        int
}

// Cast is a stored cast's provenance without its column data.
type Cast struct {
	CastInfo
	Header []string
}

type Store struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

func NewStore(dbPath string) *Store {
	return &Store{dbPath: dbPath}
}

func (s *Store) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}
		if _, err = db.Exec(schemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}
		s.writeDB = db
	})
	return s.writeDB, s.writeDBErr
}

func (s *Store) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})
	return s.readDB, s.readDBErr
}

// SaveCast writes a cast and all of its channels, columns and
// anomalies in one transaction.
func (s *Store) SaveCast(ctx context.Context, rec *CastRecord) (castID int64, err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return 0, err
	}

	raw, err := packRaw(rec.Raw)
	if err != nil {
		return 0, fmt.Errorf("compressing raw payload: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, insertCastSQL,
		rec.Name, strings.Join(rec.Header, "\n"), rec.BytesPerScan, rec.Scans, raw)
	if err != nil {
		return 0, fmt.Errorf("inserting cast: %w", err)
	}
	if castID, err = res.LastInsertId(); err != nil {
		return 0, fmt.Errorf("getting cast ID: %w", err)
	}

	chanStmt, err := tx.PrepareContext(ctx, insertChannelSQL)
	if err != nil {
		return 0, fmt.Errorf("preparing channel insert: %w", err)
	}
	defer closeWithError(chanStmt, &err)

	for pos, d := range rec.Channels {
		if _, err = chanStmt.ExecContext(ctx, castID, pos, d.Index, d.SensorID, d.Kind.String(), d.Name, d.Instance); err != nil {
			return 0, fmt.Errorf("inserting channel %s: %w", d.Name, err)
		}
	}

	colStmt, err := tx.PrepareContext(ctx, insertColumnSQL)
	if err != nil {
		return 0, fmt.Errorf("preparing column insert: %w", err)
	}
	defer closeWithError(colStmt, &err)

	for _, name := range rec.ColumnOrder {
		col, ok := rec.Columns[name]
		if !ok {
			return 0, fmt.Errorf("column %q listed but not supplied", name)
		}
		blob, perr := packColumn(col)
		if perr != nil {
			return 0, fmt.Errorf("compressing column %q: %w", name, perr)
		}
		if _, err = colStmt.ExecContext(ctx, castID, name, len(col), blob); err != nil {
			return 0, fmt.Errorf("inserting column %q: %w", name, err)
		}
	}

	for _, a := range rec.Anomalies {
		if _, err = tx.ExecContext(ctx, insertAnomalySQL, castID, a.Channel, a.Reason, a.Count); err != nil {
			return 0, fmt.Errorf("inserting anomaly for %s: %w", a.Channel, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing cast: %w", err)
	}
	return castID, nil
}

func (s *Store) Cast(ctx context.Context, id int64) (*Cast, error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, err
	}

	var c Cast
	var header string
	err = db.QueryRowContext(ctx, selectCastSQL, id).
		Scan(&c.ID, &c.CreatedAt, &c.Name, &header, &c.BytesPerScan, &c.Scans)
	if err != nil {
		return nil, fmt.Errorf("scanning cast %d: %w", id, err)
	}
	if header != "" {
		c.Header = strings.Split(header, "\n")
	}
	return &c, nil
}

func (s *Store) Casts(ctx context.Context) (casts []CastInfo, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, selectCastsSQL)
	if err != nil {
		return nil, fmt.Errorf("querying casts: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var c CastInfo
		if err = rows.Scan(&c.ID, &c.CreatedAt, &c.Name, &c.BytesPerScan, &c.Scans); err != nil {
			return nil, fmt.Errorf("scanning cast row: %w", err)
		}
		casts = append(casts, c)
	}
	return casts, rows.Err()
}

func (s *Store) Channels(ctx context.Context, castID int64) (descs []sbe.ChannelDescriptor, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, selectChannelsSQL, castID)
	if err != nil {
		return nil, fmt.Errorf("querying channels: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var d sbe.ChannelDescriptor
		var kind string
		if err = rows.Scan(&d.Index, &d.SensorID, &kind, &d.Name, &d.Instance); err != nil {
			return nil, fmt.Errorf("scanning channel row: %w", err)
		}
		d.Kind = sbe.KindFromString(kind)
		descs = append(descs, d)
	}
	return descs, rows.Err()
}

func (s *Store) ColumnNames(ctx context.Context, castID int64) (names []string, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, selectColumnNamesSQL, castID)
	if err != nil {
		return nil, fmt.Errorf("querying column names: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var name string
		if err = rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning column name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *Store) Column(ctx context.Context, castID int64, name string) ([]float64, error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, err
	}

	var scans int
	var blob []byte
	err = db.QueryRowContext(ctx, selectColumnSQL, castID, name).Scan(&scans, &blob)
	if err != nil {
		return nil, fmt.Errorf("scanning column %q: %w", name, err)
	}
	col, err := unpackColumn(blob, scans)
	if err != nil {
		return nil, fmt.Errorf("decoding column %q: %w", name, err)
	}
	return col, nil
}

func (s *Store) Anomalies(ctx context.Context, castID int64) (anoms []sbe.Anomaly, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, selectAnomaliesSQL, castID)
	if err != nil {
		return nil, fmt.Errorf("querying anomalies: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var a sbe.Anomaly
		if err = rows.Scan(&a.Channel, &a.Reason, &a.Count); err != nil {
			return nil, fmt.Errorf("scanning anomaly row: %w", err)
		}
		anoms = append(anoms, a)
	}
	return anoms, rows.Err()
}

// Raw returns the decompressed raw frame payload of a cast.
func (s *Store) Raw(ctx context.Context, castID int64) ([]byte, error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, err
	}

	var blob []byte
	if err = db.QueryRowContext(ctx, selectRawSQL, castID).Scan(&blob); err != nil {
		return nil, fmt.Errorf("scanning raw payload: %w", err)
	}
	return unpackRaw(blob)
}

func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		if s.writeDB != nil {
			s.closeErr = s.writeDB.Close()
		}
		if s.readDB != nil {
			if err := s.readDB.Close(); err != nil && s.closeErr == nil {
				s.closeErr = err
			}
		}
	})
	return s.closeErr
}
