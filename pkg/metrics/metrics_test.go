package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	someip "github.com/waheedejaz/opensomeip"
	"github.com/waheedejaz/opensomeip/pkg/sd"
	"github.com/waheedejaz/opensomeip/pkg/session"
	"github.com/waheedejaz/opensomeip/pkg/tp"
	"github.com/waheedejaz/opensomeip/pkg/transport"
)

func TestCollectorEmitsTPAndSessionMetrics(t *testing.T) {
	tpMgr := tp.NewManager(tp.Options{
		MaxSegmentSize:         1392,
		MaxMessageSize:         1 << 20,
		MaxConcurrentTransfers: 4,
		ReassemblyTimeout:      time.Second,
	})
	sessionMgr := session.NewManager()
	sessionMgr.Allocate(1)
	sessionMgr.RegisterOutstanding(1, 1, time.Now().Add(time.Minute))

	net := transport.NewNetwork()
	serverTransport := net.NewLoopback(someip.Endpoint{Address: "10.9.9.1", Port: 30490})
	clientTransport := net.NewLoopback(someip.Endpoint{Address: "10.9.9.2", Port: 30490})
	sdEndpoint := someip.Endpoint{Address: "224.224.1.1", Port: 30490}

	sdServer := sd.NewServer(serverTransport, sdEndpoint, 1, sd.DefaultTiming())
	require.NoError(t, sdServer.Enable(0x1111, 0x0001, 1, 0, sd.TTLInfinite))

	sdClient := sd.NewClient(clientTransport, sdEndpoint, nil, nil)
	sdClient.FindService(0x1111, 50*time.Millisecond)

	collector := NewCollector(tpMgr, sessionMgr, sdServer, sdClient)

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(collector))

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]*dto.MetricFamily)
	for _, f := range families {
		names[f.GetName()] = f
	}

	require.Contains(t, names, "someip_session_outstanding_requests")
	assert.Equal(t, float64(1), names["someip_session_outstanding_requests"].Metric[0].GetGauge().GetValue())
	require.Contains(t, names, "someip_tp_active_send_transfers")

	require.Contains(t, names, "someip_sd_offered_services")
	assert.Equal(t, float64(1), names["someip_sd_offered_services"].Metric[0].GetGauge().GetValue())
	require.Contains(t, names, "someip_sd_pending_finds")
}

func TestCollectorWithNilProvidersEmitsNothing(t *testing.T) {
	collector := NewCollector(nil, nil, nil, nil)
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(collector))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Empty(t, families)
}
