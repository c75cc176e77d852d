package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUsesPrivateRegistry(t *testing.T) {
	// two instances must not collide on registration
	a := New(nil)
	b := New(nil)

	a.IndexBuildsTotal.WithLabelValues("success").Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.IndexBuildsTotal.WithLabelValues("success")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.IndexBuildsTotal.WithLabelValues("success")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New(nil)
	m.IndexTerms.Set(42)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "index_terms 42")
}
