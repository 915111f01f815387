package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                     "/",
		"/":                    "/",
		"/api/tweets":          "/api/tweets",
		"/api/tweets/42":       "/api/tweets/:id",
		"/api/tweets/42/likes": "/api/tweets/:id/likes",
		"/api/users/me":        "/api/users/me",
		"/api/users/7/follow":  "/api/users/:id/follow",
		"/uploads/abc.png":     "/uploads",
	}
	for in, want := range cases {
		assert.Equal(t, want, canonicalPath(in), in)
	}
}

func TestInstrumentHandlerRecordsStatus(t *testing.T) {
	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/tweets/:id", "404"))

	h := InstrumentHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/tweets/9", nil))

	after := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/tweets/:id", "404"))
	assert.Equal(t, before+1, after)
}

func TestDomainCounters(t *testing.T) {
	before := testutil.ToFloat64(likes.WithLabelValues("added"))
	RecordLike(true)
	assert.Equal(t, before+1, testutil.ToFloat64(likes.WithLabelValues("added")))

	bytesBefore := testutil.ToFloat64(mediaBytes)
	RecordMediaUpload("image/png", 128)
	assert.Equal(t, bytesBefore+128, testutil.ToFloat64(mediaBytes))

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "microblog_media_uploaded_bytes_total")
}
