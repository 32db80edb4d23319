package orchestrator

import (
	"regexp"

	"github.com/GriffinCanCode/dialogue-overlay/internal/config"
	apperrors "github.com/GriffinCanCode/dialogue-overlay/internal/errors"
	"github.com/GriffinCanCode/dialogue-overlay/internal/hashcache"
	"github.com/GriffinCanCode/dialogue-overlay/internal/regions"
)

// caches are the persistent recognition and translation caches of one
// namespace together with their write-behind batchers.
type caches struct {
	recognitions *hashcache.Cache[[]regions.Annotation]
	translations *hashcache.Cache[string]
	recBatch     *hashcache.Batcher[[]regions.Annotation]
	transBatch   *hashcache.Batcher[string]
}

// Namespaces name a directory under the cache dir, so they must be a
// single plain path element.
var namespacePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

func validateNamespace(namespace string) error {
	if !namespacePattern.MatchString(namespace) {
		return apperrors.Newf(apperrors.CodeInvalidArgument,
			"invalid cache namespace %q: use 1 to 64 letters, digits, '-' or '_'", namespace)
	}
	return nil
}

func openCaches(cfg *config.Config, namespace string) (*caches, error) {
	if err := validateNamespace(namespace); err != nil {
		return nil, err
	}
	recPath, transPath := cachePaths(cfg.CacheDir, namespace)
	threshold := cfg.Pipeline.HashThreshold
	if threshold <= 0 {
		threshold = hashcache.DefaultThreshold
	}
	recognitions, recBatch, err := hashcache.Open[[]regions.Annotation](recPath, threshold, cfg.Cache.BatchSize, cfg.Cache.FlushDelay)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "open recognition cache")
	}
	translations, transBatch, err := hashcache.Open[string](transPath, threshold, cfg.Cache.BatchSize, cfg.Cache.FlushDelay)
	if err != nil {
		recBatch.Stop()
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "open translation cache")
	}
	return &caches{
		recognitions: recognitions,
		translations: translations,
		recBatch:     recBatch,
		transBatch:   transBatch,
	}, nil
}

// flush writes pending entries and stops the batchers.
func (c *caches) flush() {
	c.recBatch.Stop()
	c.transBatch.Stop()
}
