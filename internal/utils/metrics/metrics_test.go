package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	c := NewCollector()

	c.SetVirtualPrice("jitoSOL", 1.15)
	c.RecordExtractionFailure("jitoSOL", "zero_supply")
	c.RecordExtractionFailure("jitoSOL", "zero_supply")
	c.SetStalePrices(1)
	c.RecordRPCLatency("getMultipleAccounts", "https://rpc.example.com", 25*time.Millisecond)

	assert.InDelta(t, 1.15, testutil.ToFloat64(c.virtualPrice.WithLabelValues("jitoSOL")), 1e-9)
	assert.Equal(t, 2.0, testutil.ToFloat64(c.extractionFailures.WithLabelValues("jitoSOL", "zero_supply")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.stalePrices))
	assert.Equal(t, 1, testutil.CollectAndCount(c.rpcLatency))

	c.Reset()
	assert.Equal(t, 0, testutil.CollectAndCount(c.virtualPrice))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.stalePrices))
}

func TestCollectorsAreIndependent(t *testing.T) {
	a := NewCollector()
	b := NewCollector()
	a.SetStalePrices(3)
	assert.Equal(t, 0.0, testutil.ToFloat64(b.stalePrices))
}

func TestHandler(t *testing.T) {
	c := NewCollector()
	c.SetVirtualPrice("jitoSOL", 1.2)

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.True(t, strings.Contains(string(body), `stakepool_virtual_price{pool="jitoSOL"} 1.2`))
}
