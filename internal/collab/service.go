// Package collab is the composition root of the collaboration core: it
// wires a mutation request through the rate limiter, ring validation,
// and the versioned area store.
//
// Quota policy: admission is advisory. The limiter check runs before
// geometry validation and is not atomic with the store commit, so a
// mutation that is later rejected (bad geometry, version conflict,
// unknown id) has still consumed one unit of the actor's quota. This
// mirrors the documented behavior of the service this core replaces and
// keeps the limiter entirely outside the store's critical sections.
package collab

import (
	"log/slog"
	"time"

	"github.com/oedima/gis-colab/internal/geo"
	"github.com/oedima/gis-colab/internal/metrics"
	"github.com/oedima/gis-colab/internal/ratelimit"
	"github.com/oedima/gis-colab/internal/store"
)

// SaveRequest is one mutation. An empty ID means create; a non-empty ID
// selects the optimistic update path, with ExpectedVersion carrying the
// version the client last saw.
type SaveRequest struct {
	Name            string
	Ring            geo.Ring
	ID              string
	ExpectedVersion int
	Actor           string
}

// Service coordinates mutations and queries against the shared store
type Service struct {
	limiter *ratelimit.Limiter
	areas   *store.AreaStore
	log     *slog.Logger
}

// NewService wires the collaboration core together
func NewService(limiter *ratelimit.Limiter, areas *store.AreaStore, log *slog.Logger) *Service {
	return &Service{limiter: limiter, areas: areas, log: log}
}

// Save applies one mutation: rate check, then create or update depending
// on whether the request carries an id. Errors pass through untranslated
// (ratelimit.ErrLimitExceeded, geo.ErrTooFewPoints / geo.ErrNotSimple,
// store.ErrNotFound, *store.VersionConflictError) so the boundary can
// map each to a distinct response code.
func (s *Service) Save(req SaveRequest) (*store.AreaRecord, error) {
	started := time.Now()
	defer func() {
		metrics.MutationDurationMs.Observe(float64(time.Since(started).Milliseconds()))
	}()

	if err := s.limiter.Attempt(req.Actor); err != nil {
		metrics.RateLimitedTotal.Inc()
		s.log.Warn("mutation_rate_limited", "actor", req.Actor)
		return nil, err
	}

	var rec *store.AreaRecord
	var err error
	kind := "create"
	if req.ID == "" {
		rec, err = s.areas.Create(req.Name, req.Ring, req.Actor)
	} else {
		kind = "update"
		rec, err = s.areas.Update(req.ID, req.ExpectedVersion, req.Name, req.Ring, req.Actor)
	}
	if err != nil {
		observeMutationError(err)
		return nil, err
	}

	metrics.MutationsTotal.WithLabelValues(kind).Inc()
	s.log.Info("area_saved", "id", rec.ID, "version", rec.Version, "actor", req.Actor, "area_sq_km", rec.AreaSqKm)
	return rec, nil
}

// Query returns every record intersecting the bounding box. Reads are
// not rate limited.
func (s *Service) Query(b geo.BBox) []store.AreaRecord {
	metrics.QueriesTotal.Inc()
	return s.areas.QueryByBBox(b)
}

// observeMutationError bumps the counter matching the failure class
func observeMutationError(err error) {
	switch {
	case isGeometryError(err):
		metrics.GeometryErrorsTotal.Inc()
	case isVersionConflict(err):
		metrics.VersionConflictsTotal.Inc()
	}
}
