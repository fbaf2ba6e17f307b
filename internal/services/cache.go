package services

import (
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

// PredictionCache memoizes predictions by exact feature vector. Predictions
// are a pure function of the vector, so entries only expire to bound memory.
// A nil *PredictionCache is a valid, disabled cache.
type PredictionCache struct {
	lru             *expirable.LRU[string, float64]
	logger          *zap.Logger
	defaultDuration time.Duration
	maxSize         int
	hits            atomic.Int64
	misses          atomic.Int64
}

// NewPredictionCache returns nil when maxSize is not positive.
func NewPredictionCache(defaultDuration time.Duration, maxSize int, logger *zap.Logger) *PredictionCache {
	if maxSize <= 0 {
		logger.Info("Prediction cache disabled")
		return nil
	}

	cache := &PredictionCache{
		logger:          logger,
		defaultDuration: defaultDuration,
		maxSize:         maxSize,
	}
	cache.lru = expirable.NewLRU[string, float64](maxSize, cache.onEvict, defaultDuration)
	return cache
}

func (c *PredictionCache) Get(features []float64) (float64, bool) {
	if c == nil {
		return 0, false
	}

	value, ok := c.lru.Get(cacheKey(features))
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return value, ok
}

func (c *PredictionCache) Set(features []float64, value float64) {
	if c == nil {
		return
	}

	c.lru.Add(cacheKey(features), value)

	c.logger.Debug("Prediction cached",
		zap.Float64s("features", features),
		zap.Time("expires_at", time.Now().Add(c.defaultDuration)))
}

func (c *PredictionCache) onEvict(key string, _ float64) {
	c.logger.Debug("Evicted prediction from cache", zap.String("key", key))
}

func (c *PredictionCache) GetStats() map[string]interface{} {
	if c == nil {
		return map[string]interface{}{"enabled": false}
	}

	return map[string]interface{}{
		"enabled":          true,
		"items":            c.lru.Len(),
		"hits":             c.hits.Load(),
		"misses":           c.misses.Load(),
		"max_size":         c.maxSize,
		"default_duration": c.defaultDuration.String(),
	}
}

// cacheKey encodes the vector losslessly; -0 and 0 map to distinct keys,
// which only costs a miss.
func cacheKey(features []float64) string {
	var b strings.Builder
	for i, v := range features {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	return b.String()
}
