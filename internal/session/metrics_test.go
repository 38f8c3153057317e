package session

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGauge(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	reg := prometheus.NewRegistry()
	reg.MustRegister(MemoryGauge(s))

	value := func() float64 {
		families, err := reg.Gather()
		require.NoError(t, err)
		require.Len(t, families, 1)
		return families[0].GetMetric()[0].GetGauge().GetValue()
	}

	assert.Equal(t, 0.0, value())
	require.NoError(t, s.Save(context.Background(), "a", []byte("{}")))
	require.NoError(t, s.Save(context.Background(), "b", []byte("{}")))
	assert.Equal(t, 2.0, value())
}
