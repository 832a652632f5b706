// Package server exposes stored casts over HTTP as JSON.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"

	"github.com/oceanodyne/sonde/pkg/sbe"
	"github.com/oceanodyne/sonde/pkg/sonde/storage"
)

type Server struct {
	store *storage.Store
	srv   *http.Server
	log   zerolog.Logger
}

func NewServer(port int, store *storage.Store, log zerolog.Logger) *Server {
	return &Server{
		store: store,
		srv:   &http.Server{Addr: fmt.Sprintf(":%d", port)},
		log:   log,
	}
}

// Stop drains in-flight requests until ctx expires. The error reports
// a failed drain, not a failed close.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) Run(ctx context.Context) error {
	handler := httprouter.New()
	handler.GET("/casts", s.handleCasts)
	handler.GET("/casts/:id", s.handleCast)
	handler.GET("/casts/:id/columns/:name", s.handleColumn)
	s.srv.Handler = handler

	s.log.Info().Str("addr", s.srv.Addr).Msg("dataset API listening")

	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) handleCasts(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	casts, err := s.store.Casts(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, casts)
}

type castResponse struct {
	ID           int64                   `json:"id"`
	CreatedAt    time.Time               `json:"created_at"`
	Name         string                  `json:"name"`
	BytesPerScan int                     `json:"bytes_per_scan"`
	Scans        int                     `json:"scans"`
	Header       []string                `json:"header"`
	Channels     []channelResponse       `json:"channels"`
	Columns      []string                `json:"columns"`
	Anomalies    []sbe.Anomaly           `json:"anomalies,omitempty"`
}

type channelResponse struct {
	Index    int    `json:"index"`
	SensorID string `json:"sensor_id"`
	Kind     string `json:"kind"`
	Name     string `json:"name"`
	Instance int    `json:"instance"`
}

func (s *Server) handleCast(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	id, err := strconv.ParseInt(params.ByName("id"), 10, 64)
	if err != nil {
		http.Error(w, "cast id must be an integer", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	cast, err := s.store.Cast(ctx, id)
	if err != nil {
		http.Error(w, "cast not found", http.StatusNotFound)
		return
	}
	descs, err := s.store.Channels(ctx, id)
	if err != nil {
		s.internalError(w, err)
		return
	}
	names, err := s.store.ColumnNames(ctx, id)
	if err != nil {
		s.internalError(w, err)
		return
	}
	anoms, err := s.store.Anomalies(ctx, id)
	if err != nil {
		s.internalError(w, err)
		return
	}

	resp := castResponse{
		ID:           cast.ID,
		CreatedAt:    cast.CreatedAt,
		Name:         cast.Name,
		BytesPerScan: cast.BytesPerScan,
		Scans:        cast.Scans,
		Header:       cast.Header,
		Columns:      names,
		Anomalies:    anoms,
	}
	for _, d := range descs {
		resp.Channels = append(resp.Channels, channelResponse{
			Index:    d.Index,
			SensorID: d.SensorID,
			Kind:     d.Kind.String(),
			Name:     d.Name,
			Instance: d.Instance,
		})
	}
	s.writeJSON(w, resp)
}

func (s *Server) handleColumn(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	id, err := strconv.ParseInt(params.ByName("id"), 10, 64)
	if err != nil {
		http.Error(w, "cast id must be an integer", http.StatusBadRequest)
		return
	}

	col, err := s.store.Column(r.Context(), id, params.ByName("name"))
	if err != nil {
		http.Error(w, "column not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, map[string]interface{}{
		"name":   params.ByName("name"),
		"values": jsonColumn(col),
	})
}

// jsonColumn maps NaN scans to null, which encoding/json cannot do for
// bare float64.
func jsonColumn(col []float64) []*float64 {
	out := make([]*float64, len(col))
	for i := range col {
		if math.IsNaN(col[i]) {
			continue
		}
		v := col[i]
		out[i] = &v
	}
	return out
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("encoding response")
	}
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.log.Error().Err(err).Msg("request failed")
	http.Error(w, "internal error", http.StatusInternalServerError)
}
