package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadedIndex() IndexState {
	return IndexState{Loaded: true, BuildID: "b1", Documents: 2, Terms: 3}
}

func refused(context.Context) error { return errors.New("connection refused") }

func TestRunTakesWorstStatus(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]Check
		want   Status
	}{
		{"index loaded", map[string]Check{
			ComponentIndex: IndexCheck(loadedIndex),
		}, StatusUp},
		{"cache unreachable", map[string]Check{
			ComponentIndex: IndexCheck(loadedIndex),
			ComponentCache: PingCheck(refused, StatusDegraded),
		}, StatusDegraded},
		{"no index loaded", map[string]Check{
			ComponentIndex:    IndexCheck(func() IndexState { return IndexState{} }),
			ComponentRegistry: PingCheck(refused, StatusDegraded),
		}, StatusDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker()
			for component, check := range tt.checks {
				c.Register(component, check)
			}
			report := c.Run(context.Background())
			assert.Equal(t, tt.want, report.Status)
			assert.Len(t, report.Components, len(tt.checks))
		})
	}
}

func TestIndexCheckDescribesBuild(t *testing.T) {
	got := IndexCheck(loadedIndex)(context.Background())
	assert.Equal(t, StatusUp, got.Status)
	assert.Equal(t, "build b1: 2 documents, 3 terms", got.Message)
}

func TestReadyHandler(t *testing.T) {
	c := NewChecker()
	c.Register(ComponentIndex, IndexCheck(loadedIndex))

	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	c.Register(ComponentCache, PingCheck(refused, StatusDegraded))
	rec = httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var report Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "connection refused", report.Components[ComponentCache].Message)
	assert.Equal(t, StatusUp, report.Components[ComponentIndex].Status)
}

func TestLiveHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewChecker().LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alive")
}
