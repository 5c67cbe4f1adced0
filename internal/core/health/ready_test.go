package health

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type fakeReadiness struct {
	ready      bool
	partitions []int32
}

func (f fakeReadiness) Readiness() (bool, []int32) { return f.ready, f.partitions }

func TestReadiness_Ready(t *testing.T) {
	h := Readiness(fakeReadiness{ready: true, partitions: []int32{0, 1}})
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rr := httptest.NewRecorder()
	h(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, `"status":"ready"`) || !strings.Contains(body, `"invalidation_partitions":[0,1]`) {
		t.Fatalf("unexpected body: %s", body)
	}
}

func TestReadiness_NotReady(t *testing.T) {
	h := Readiness(fakeReadiness{ready: false})
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rr := httptest.NewRecorder()
	h(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d want 503", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"status":"not_ready"`) {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}
}
