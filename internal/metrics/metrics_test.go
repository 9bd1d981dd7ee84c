package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecordExecution(t *testing.T) {
	before := testutil.ToFloat64(hookExecutions.WithLabelValues("API", "failure"))

	RecordExecution("API", 3, 10*time.Millisecond)
	RecordExecution("API", 0, 10*time.Millisecond)

	require.Equal(t, before+1, testutil.ToFloat64(hookExecutions.WithLabelValues("API", "failure")))
}

func TestRecordReload(t *testing.T) {
	ok := testutil.ToFloat64(registryReloads.WithLabelValues("success"))
	failed := testutil.ToFloat64(registryReloads.WithLabelValues("failure"))

	RecordReload(nil)
	RecordReload(errors.New("unreachable"))

	require.Equal(t, ok+1, testutil.ToFloat64(registryReloads.WithLabelValues("success")))
	require.Equal(t, failed+1, testutil.ToFloat64(registryReloads.WithLabelValues("failure")))
}

func TestGauges(t *testing.T) {
	SetRegistryHooks(4)
	UpdateEngineStats(2, 7)

	require.Equal(t, 4.0, testutil.ToFloat64(registryHooks))
	require.Equal(t, 2.0, testutil.ToFloat64(workersBusy))
	require.Equal(t, 7.0, testutil.ToFloat64(queueDepth))
}

func TestHandler(t *testing.T) {
	RecordEvent("STATE")

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), `hookd_events_total{type="STATE"}`))
}
