package prober

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monico-sh/monico/pkg/types"
)

func testMonitor(endpoint, bodyRegexp string) *types.Monitor {
	return &types.Monitor{
		ID:         "m1",
		Name:       "Test Monitor",
		Endpoint:   endpoint,
		Interval:   60,
		BodyRegexp: bodyRegexp,
	}
}

func TestProbeSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("all systems operational")) //nolint:errcheck
	}))
	defer server.Close()

	monitor := testMonitor(server.URL, "")
	task := types.NewTask(monitor.ID)

	probe := New().Probe(context.Background(), monitor, task)

	assert.Equal(t, monitor.ID, probe.MonitorID)
	assert.Equal(t, task.ID, probe.TaskID)
	require.NotNil(t, probe.ResponseCode)
	assert.Equal(t, http.StatusOK, *probe.ResponseCode)
	assert.Nil(t, probe.ResponseError)
	assert.Nil(t, probe.ContentMatch)
	assert.Greater(t, probe.ResponseTime, 0.0)
}

func TestProbeRecordsNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	probe := New().Probe(context.Background(), testMonitor(server.URL, ""), types.NewTask("m1"))

	require.NotNil(t, probe.ResponseCode)
	assert.Equal(t, http.StatusInternalServerError, *probe.ResponseCode)
	assert.Nil(t, probe.ResponseError)
}

func TestProbeBodyRegexp(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("version v1.24 deployed")) //nolint:errcheck
	}))
	defer server.Close()

	t.Run("match records first occurrence", func(t *testing.T) {
		monitor := testMonitor(server.URL, `v[0-9]+\.[0-9]+`)
		probe := New().Probe(context.Background(), monitor, types.NewTask(monitor.ID))

		require.NotNil(t, probe.ContentMatch)
		assert.Equal(t, "v1.24", *probe.ContentMatch)
	})

	t.Run("no match leaves content empty", func(t *testing.T) {
		monitor := testMonitor(server.URL, "unobtainium")
		probe := New().Probe(context.Background(), monitor, types.NewTask(monitor.ID))

		assert.Nil(t, probe.ContentMatch)
	})
}

func TestProbeTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer server.Close()

	prober := New().WithTimeout(50 * time.Millisecond)
	probe := prober.Probe(context.Background(), testMonitor(server.URL, ""), types.NewTask("m1"))

	assert.Nil(t, probe.ResponseCode)
	require.NotNil(t, probe.ResponseError)
	assert.Equal(t, types.ProbeErrorTimeout, *probe.ResponseError)
	assert.Nil(t, probe.ContentMatch)
}

func TestProbeConnectionError(t *testing.T) {
	// grab a port with no listener behind it
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := server.URL
	server.Close()

	probe := New().Probe(context.Background(), testMonitor(endpoint, ""), types.NewTask("m1"))

	assert.Nil(t, probe.ResponseCode)
	require.NotNil(t, probe.ResponseError)
	assert.Equal(t, types.ProbeErrorConnectionError, *probe.ResponseError)
}
