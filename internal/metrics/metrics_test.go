package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppMetrics_Observe(t *testing.T) {
	reg := NewRegistry()
	m := NewAppMetrics(reg)

	m.ObserveRequest("login", nil, 20*time.Millisecond)
	m.ObserveRequest("login", errors.New("boom"), time.Millisecond)
	m.ObserveParse("live", nil)
	m.SetStateful(true)
	m.ObservePoll("history", nil)
	m.AddArchived(3)
	m.AddArchived(-1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Talk2MRequestsTotal.WithLabelValues("login", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Talk2MRequestsTotal.WithLabelValues("login", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EBDParseTotal.WithLabelValues("live", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionStateful))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SamplesArchived))

	m.SetStateful(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.SessionStateful))
}

func TestAppMetrics_NilSafe(t *testing.T) {
	var m *AppMetrics
	m.ObserveRequest("login", nil, time.Second)
	m.ObserveParse("live", nil)
	m.SetStateful(true)
	m.ObservePoll("live", nil)
	m.AddArchived(1)
}

func TestHandler_Exposes(t *testing.T) {
	reg := NewRegistry()
	m := NewAppMetrics(reg)
	m.ObserveRequest("getewons", nil, time.Millisecond)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "talk2m_requests_total"))
}
