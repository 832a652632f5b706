package storage

import (
	_ "embed"
)

const (
	insertCastSQL = `
INSERT INTO casts (name,
                   header,
                   bytes_per_scan,
                   scans,
                   raw)
VALUES (?, ?, ?, ?, ?)`

	selectCastSQL = `
SELECT
    id,
    created_at,
    name,
    header,
    bytes_per_scan,
    scans
FROM casts
WHERE
    id = ?`

	selectCastsSQL = `
SELECT
    id,
    created_at,
    name,
    bytes_per_scan,
    scans
FROM casts
ORDER BY id`

	insertChannelSQL = `
INSERT INTO channels (cast_id,
                      position,
                      channel_index,
                      sensor_id,
                      kind,
                      name,
                      instance)
VALUES (?, ?, ?, ?, ?, ?, ?)`

	selectChannelsSQL = `
SELECT
    channel_index,
    sensor_id,
    kind,
    name,
    instance
FROM channels
WHERE
    cast_id = ?
ORDER BY position`

	insertColumnSQL = `
INSERT INTO columns (cast_id,
                     name,
                     scans,
                     data)
VALUES (?, ?, ?, ?)`

	selectColumnSQL = `
SELECT
    scans,
    data
FROM columns
WHERE
    cast_id = ? AND name = ?`

	selectColumnNamesSQL = `
SELECT
    name
FROM columns
WHERE
    cast_id = ?
ORDER BY id`

	insertAnomalySQL = `
INSERT INTO anomalies (cast_id,
                       channel,
                       reason,
                       count)
VALUES (?, ?, ?, ?)`

	selectAnomaliesSQL = `
SELECT
    channel,
    reason,
    count
FROM anomalies
WHERE
    cast_id = ?`

	selectRawSQL = `
SELECT
    raw
FROM casts
WHERE
    id = ?`
)

//go:embed schema.sql
var schemaSQL string
