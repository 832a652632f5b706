package server

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanodyne/sonde/pkg/sbe"
	"github.com/oceanodyne/sonde/pkg/sonde/storage"
)

func newTestServer(t *testing.T) (*Server, int64) {
	t.Helper()
	store := storage.NewStore(filepath.Join(t.TempDir(), "casts.db"))
	t.Cleanup(func() { _ = store.Close() })

	id, err := store.SaveCast(context.Background(), &storage.CastRecord{
		Name:         "station-001",
		Header:       []string{"* header"},
		BytesPerScan: 24,
		Scans:        3,
		Channels: []sbe.ChannelDescriptor{
			{Index: 0, SensorID: "55", Kind: sbe.KindTemperature, Name: "CTDTMP", Instance: 1},
		},
		ColumnOrder: []string{"CTDTMP"},
		Columns: map[string][]float64{
			"CTDTMP": {2.95, math.NaN(), 3.0},
		},
	})
	require.NoError(t, err)

	return NewServer(0, store, zerolog.Nop()), id
}

func TestHandleCasts(t *testing.T) {
	s, id := newTestServer(t)

	rec := httptest.NewRecorder()
	s.handleCasts(rec, httptest.NewRequest(http.MethodGet, "/casts", nil), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var casts []storage.CastInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &casts))
	require.Len(t, casts, 1)
	assert.Equal(t, id, casts[0].ID)
}

func TestHandleCast(t *testing.T) {
	s, id := newTestServer(t)

	rec := httptest.NewRecorder()
	params := httprouter.Params{{Key: "id", Value: strconv.FormatInt(id, 10)}}
	s.handleCast(rec, httptest.NewRequest(http.MethodGet, "/casts/1", nil), params)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp castResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "station-001", resp.Name)
	assert.Equal(t, []string{"CTDTMP"}, resp.Columns)
	require.Len(t, resp.Channels, 1)
	assert.Equal(t, "temperature", resp.Channels[0].Kind)
}

func TestHandleCastNotFound(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	params := httprouter.Params{{Key: "id", Value: "999"}}
	s.handleCast(rec, httptest.NewRequest(http.MethodGet, "/casts/999", nil), params)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleColumnNullsNaN(t *testing.T) {
	s, id := newTestServer(t)

	rec := httptest.NewRecorder()
	params := httprouter.Params{
		{Key: "id", Value: strconv.FormatInt(id, 10)},
		{Key: "name", Value: "CTDTMP"},
	}
	s.handleColumn(rec, httptest.NewRequest(http.MethodGet, "/", nil), params)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Name   string     `json:"name"`
		Values []*float64 `json:"values"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Values, 3)
	assert.NotNil(t, resp.Values[0])
	assert.Nil(t, resp.Values[1])
	assert.Equal(t, 3.0, *resp.Values[2])
}

func TestStopReportsDrainResult(t *testing.T) {
	s, _ := newTestServer(t)

	// Nothing is listening, so the drain completes immediately.
	assert.NoError(t, s.Stop(context.Background()))
}
