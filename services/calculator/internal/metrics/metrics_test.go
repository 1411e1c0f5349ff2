package metrics_test

import (
	"testing"
	"time"

	"daystohire/services/calculator/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveRun(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	at := time.Unix(1700000000, 0)

	m.ObserveRun("ok", 2*time.Second, at)
	m.ObserveRun("partial", time.Second, at.Add(time.Hour))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("partial")))
	assert.Equal(t, float64(at.Unix()), testutil.ToFloat64(m.LastSuccess))
}

func TestObserveGroup(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	m.ObserveGroup("written")
	m.ObserveGroup("written")
	m.ObserveGroup("deleted")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.GroupsTotal.WithLabelValues("written")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GroupsTotal.WithLabelValues("deleted")))
}
