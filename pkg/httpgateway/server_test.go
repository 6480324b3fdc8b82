package httpgateway

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	someip "github.com/waheedejaz/opensomeip"
	"github.com/waheedejaz/opensomeip/pkg/sd"
	"github.com/waheedejaz/opensomeip/pkg/transport"
)

func TestHandleServicesListsOffered(t *testing.T) {
	net := transport.NewNetwork()
	lb := net.NewLoopback(someip.Endpoint{Address: "10.9.0.1", Port: 30490})
	srv := sd.NewServer(lb, someip.Endpoint{Address: "224.224.1.1", Port: 30490}, 1, sd.DefaultTiming())
	require.NoError(t, srv.Enable(0x1111, 0x0001, 1, 0, sd.TTLInfinite))

	gw := NewServer(srv, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/services", nil)
	rec := httptest.NewRecorder()
	gw.serveMux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "4369") // 0x1111 == 4369
}

func TestHandleServicesWithoutServerIsNotImplemented(t *testing.T) {
	gw := NewServer(nil, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/services", nil)
	rec := httptest.NewRecorder()
	gw.serveMux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestHandleFindParsesHexServiceId(t *testing.T) {
	net := transport.NewNetwork()
	lb := net.NewLoopback(someip.Endpoint{Address: "10.9.1.2", Port: 30490})
	cl := sd.NewClient(lb, someip.Endpoint{Address: "224.224.1.1", Port: 30490}, nil, nil)

	gw := NewServer(nil, cl, nil)
	req := httptest.NewRequest(http.MethodGet, "/find?service=0x1111&timeout_ms=50", nil)
	rec := httptest.NewRecorder()
	gw.serveMux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), "4369")
	time.Sleep(10 * time.Millisecond)
}

func TestHandleFindRejectsBadServiceId(t *testing.T) {
	net := transport.NewNetwork()
	lb := net.NewLoopback(someip.Endpoint{Address: "10.9.2.2", Port: 30490})
	cl := sd.NewClient(lb, someip.Endpoint{Address: "224.224.1.1", Port: 30490}, nil, nil)

	gw := NewServer(nil, cl, nil)
	req := httptest.NewRequest(http.MethodGet, "/find?service=not-a-number", nil)
	rec := httptest.NewRecorder()
	gw.serveMux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
