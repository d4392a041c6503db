package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findFamily(t *testing.T, substr string) *dto.MetricFamily {
	t.Helper()
	families, err := Registry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if strings.Contains(f.GetName(), substr) {
			return f
		}
	}
	return nil
}

func TestReportToPrometheus(t *testing.T) {
	require.NoError(t, Init(&Cfg{ServiceName: "test"}))

	IncrCounterWithGroup("net", "frames_total", 2)
	IncrCounterWithGroup("net", "frames_total", 3)
	IncrCounterWithDimGroup("net", "disconnects_total", 1, Dimension{"reason": "timeout"})
	UpdateGaugeWithGroup("net", "connections", 7)
	AddSampleWithGroup("net", "poll_frames", 4)
	Report("net", "ignored", PolicyNone, 1, nil)

	counter := findFamily(t, "net_frames_total")
	require.NotNil(t, counter)
	require.Len(t, counter.GetMetric(), 1)
	assert.Equal(t, 5.0, counter.GetMetric()[0].GetCounter().GetValue())

	disc := findFamily(t, "net_disconnects_total")
	require.NotNil(t, disc)
	var reason string
	for _, l := range disc.GetMetric()[0].GetLabel() {
		if l.GetName() == "reason" {
			reason = l.GetValue()
		}
	}
	assert.Equal(t, "timeout", reason)

	gauge := findFamily(t, "net_connections")
	require.NotNil(t, gauge)
	assert.Equal(t, 7.0, gauge.GetMetric()[0].GetGauge().GetValue())

	assert.NotNil(t, findFamily(t, "net_poll_frames"))
	assert.Nil(t, findFamily(t, "ignored"))
}

func TestInitRejectsBadCfg(t *testing.T) {
	assert.Error(t, Init(&Cfg{Enabled: true}))
}

func TestRouter(t *testing.T) {
	require.NoError(t, Init(&Cfg{ServiceName: "router"}))
	IncrCounterWithGroup("http", "hits_total", 1)

	srv := httptest.NewServer(Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "http_hits_total")
}
