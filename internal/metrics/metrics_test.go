package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	groupsdomain "roommates-app-go/internal/domain/groups"
	requestsdomain "roommates-app-go/internal/domain/requests"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

func TestCountersRecord(t *testing.T) {
	m := New()

	m.MergeCompleted(groupsdomain.ScenarioMergedGroups)
	m.MergeCompleted(groupsdomain.ScenarioMergedGroups)
	m.MergeRejected("capacity")
	m.GroupsSwept(3)
	m.GroupsSwept(0)
	m.RequestResolved(requestsdomain.KindApartment, requestsdomain.StatusApproved, true)
	m.SideEffectFailed("apartment_partner")
	m.NotificationSent(false)

	body := scrape(t, m)
	expected := []string{
		`roommates_groups_merges_completed_total{scenario="merged_groups"} 2`,
		`roommates_groups_merges_rejected_total{reason="capacity"} 1`,
		`roommates_groups_swept_total 3`,
		`roommates_requests_resolved_total{kind="APT",partial="true",status="APPROVED"} 1`,
		`roommates_requests_side_effects_failed_total{step="apartment_partner"} 1`,
		`roommates_notifications_sent_total{deduplicated="false"} 1`,
	}
	for _, line := range expected {
		if !strings.Contains(body, line) {
			t.Fatalf("expected %q in output, got:\n%s", line, body)
		}
	}
}

func TestObserveHTTP(t *testing.T) {
	m := New()
	m.ObserveHTTP("POST", "/api/groups/invites/{inviteId}/accept", 200, 0.01)

	body := scrape(t, m)
	if !strings.Contains(body, `roommates_http_requests_total{code="200",method="POST",route="/api/groups/invites/{inviteId}/accept"} 1`) {
		t.Fatalf("expected http counter in output, got:\n%s", body)
	}
	if !strings.Contains(body, "roommates_http_request_duration_seconds_count") {
		t.Fatalf("expected latency histogram in output")
	}
}
