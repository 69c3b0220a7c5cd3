package metrics

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerExposesCounters(t *testing.T) {
	DatagramsReceivedTotal.WithLabelValues("test").Add(3)
	DecodeErrorsTotal.WithLabelValues("test", ReasonTooShort).Inc()

	srv := NewServer("127.0.0.1:0", "/custom")
	require.NoError(t, srv.Start(context.Background()))
	defer srv.Stop(context.Background())

	resp, err := http.Get("http://" + srv.Addr().String() + "/custom")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `mcdetect_datagrams_received_total{source="test"} 3`)
	assert.Contains(t, string(body), `mcdetect_decode_errors_total{reason="too_short",source="test"} 1`)
}

func TestServerDefaultPathAndStop(t *testing.T) {
	srv := NewServer("127.0.0.1:0", "")
	assert.Nil(t, srv.Addr())
	assert.NoError(t, srv.Stop(context.Background()), "stop before start is a no-op")

	require.NoError(t, srv.Start(context.Background()))
	addr := srv.Addr().String()

	resp, err := http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, srv.Stop(context.Background()))
	_, err = http.Get("http://" + addr + "/metrics")
	assert.Error(t, err)
}

func TestServerListenFailure(t *testing.T) {
	first := NewServer("127.0.0.1:0", "")
	require.NoError(t, first.Start(context.Background()))
	defer first.Stop(context.Background())

	second := NewServer(first.Addr().String(), "")
	assert.Error(t, second.Start(context.Background()))
}

func TestCountersAreIndependentPerLabel(t *testing.T) {
	RecordsDecodedTotal.WithLabelValues("a").Inc()
	RecordsDecodedTotal.WithLabelValues("a").Inc()
	RecordsDecodedTotal.WithLabelValues("b").Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(RecordsDecodedTotal.WithLabelValues("a")))
	assert.Equal(t, 1.0, testutil.ToFloat64(RecordsDecodedTotal.WithLabelValues("b")))
}
