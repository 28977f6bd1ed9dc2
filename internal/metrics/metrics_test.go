package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/players/{playerID}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	pattern := "/players/{playerID}"
	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", pattern, "200"))

	for _, id := range []string{"a1", "b2", "c3"} {
		req := httptest.NewRequest(http.MethodGet, "/players/"+id, nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	// All three requests share one series under the route pattern; the
	// raw paths never appear as label values.
	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", pattern, "200"))
	assert.Equal(t, before+3, after)
	assert.Zero(t, testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/players/a1", "200")))
}
