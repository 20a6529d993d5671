package metrics

import (
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/pomgen/internal/errors"
)

func TestObserveInvocation(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveInvocation("page", 4, nil)
	m.ObserveInvocation("page", 0, errors.NewEmptyStoryError("Checkout"))
	m.ObserveInvocation("workflow", 0, stderrors.New("disk full"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.StageInvocations.WithLabelValues("page", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StageInvocations.WithLabelValues("page", string(errors.KindEmptyStory))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StageInvocations.WithLabelValues("workflow", string(errors.KindIO))))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.RegistryVersion))
}

func TestInstrumentLabelsByPattern(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/components/{name}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	h := m.Instrument(mux)

	for _, path := range []string{"/v1/components/Shopper", "/v1/components/Cart", "/nowhere"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET /v1/components/{name}", "GET", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("unmatched", "GET", "404")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.HTTPInFlight))
}

func TestRegistryHandler(t *testing.T) {
	reg, m := NewRegistry()
	m.RegistryVersion.Set(7)

	w := httptest.NewRecorder()
	HandlerFor(reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, "pomgen_registry_version 7")
	assert.True(t, strings.Contains(body, "go_goroutines"), "runtime collector should be registered")
}
