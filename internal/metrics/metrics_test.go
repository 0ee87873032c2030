package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManager(t *testing.T) {
	Convey("Given a metrics manager on a private registry", t, func() {
		m := NewManager(WithRegistry(prometheus.NewRegistry()), WithHistogramBuckets([]float64{0.01, 0.1, 1}))

		Convey("When fetches complete with different outcomes", func() {
			m.RecordFetch(FetchOK, 20*time.Millisecond)
			m.RecordFetch(FetchOK, 30*time.Millisecond)
			m.RecordFetch(FetchError, time.Millisecond)
			m.RecordFetch(FetchStale, time.Millisecond)

			Convey("Then each outcome is counted separately", func() {
				So(testutil.ToFloat64(m.fetches.WithLabelValues(FetchOK)), ShouldEqual, 2)
				So(testutil.ToFloat64(m.fetches.WithLabelValues(FetchError)), ShouldEqual, 1)
				So(testutil.ToFloat64(m.fetches.WithLabelValues(FetchStale)), ShouldEqual, 1)
			})

			Convey("Then stale completions are not observed as latency", func() {
				So(testutil.CollectAndCount(m.fetchDuration), ShouldEqual, 1)
			})
		})

		Convey("When markers are skipped", func() {
			m.AddMarkersSkipped(2)
			m.AddMarkersSkipped(0)
			m.AddMarkersSkipped(-1)

			Convey("Then only positive counts are added", func() {
				So(testutil.ToFloat64(m.markersSkipped), ShouldEqual, 2)
			})
		})

		Convey("When views and registrations change", func() {
			m.SetActiveViews(3)
			m.RecordRegistration("ok")
			m.RecordLocate(false)

			So(testutil.ToFloat64(m.activeViews), ShouldEqual, 3)
			So(testutil.ToFloat64(m.registrations.WithLabelValues("ok")), ShouldEqual, 1)
			So(testutil.ToFloat64(m.locates.WithLabelValues("unavailable")), ShouldEqual, 1)
		})

		Convey("When the handler is scraped", func() {
			m.RecordHTTPRequest("/map", http.MethodGet, http.StatusOK, 5*time.Millisecond)
			rec := httptest.NewRecorder()
			m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
			body, _ := io.ReadAll(rec.Body)

			Convey("Then it exposes the namespaced series", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(string(body), ShouldContainSubstring, `donormap_http_requests_total{method="GET",route="/map",status_code="200"} 1`)
			})
		})
	})

	Convey("Given a nil manager", t, func() {
		var m *Manager

		Convey("Then recording is a no-op", func() {
			So(func() {
				m.RecordFetch(FetchOK, time.Second)
				m.RecordHTTPRequest("/", "GET", 200, time.Second)
				m.RecordLocate(true)
				m.AddMarkersSkipped(1)
				m.RecordRegistration("ok")
				m.SetActiveViews(1)
			}, ShouldNotPanic)
		})
	})
}
