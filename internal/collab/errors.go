package collab

import (
	"errors"

	"github.com/oedima/gis-colab/internal/geo"
	"github.com/oedima/gis-colab/internal/store"
)

// isGeometryError reports whether err is a ring validation failure
func isGeometryError(err error) bool {
	return errors.Is(err, geo.ErrTooFewPoints) || errors.Is(err, geo.ErrNotSimple)
}

// isVersionConflict reports whether err is an optimistic concurrency failure
func isVersionConflict(err error) bool {
	var vc *store.VersionConflictError
	return errors.As(err, &vc)
}
