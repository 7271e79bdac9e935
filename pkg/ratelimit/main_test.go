package ratelimit

import (
	"os"
	"testing"

	"github.com/zhanikpanik/restaurant-checklist-sub001/pkg/config"
	"github.com/zhanikpanik/restaurant-checklist-sub001/prometheus"
)

func TestMain(m *testing.M) {
	// The limiter increments package-level counters; register them once for
	// the whole test binary.
	prometheus.InitMetrics(&config.Config{Metrics: config.MetricsConfig{Prefix: "ratelimit_test"}})
	os.Exit(m.Run())
}
