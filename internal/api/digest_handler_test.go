package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/common/health"
	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/digest"
	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/telemetry"
)

func seedDigest(t *testing.T, repo *digest.MemoryRepository) *digest.AlertDigest {
	t.Helper()

	d, err := repo.Record(context.Background(), "user-1", digest.CategoryPHHigh, digest.DayOf(time.Now()), digest.DigestItem{
		DeviceID:   "tank-3",
		Parameter:  telemetry.ParameterPH,
		Severity:   telemetry.SeverityWarning,
		Value:      8.9,
		OccurredAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("seed digest: %v", err)
	}
	return d
}

func TestAcknowledgeDigestEndpoint(t *testing.T) {
	repo := digest.NewMemoryRepository()
	d := seedDigest(t, repo)
	router := NewRouter(health.NewChecker(), repo)

	cases := []struct {
		name       string
		method     string
		url        string
		wantStatus int
	}{
		{"valid token via link", http.MethodGet, "/api/digests/" + d.ID + "/ack?token=" + d.AckToken, http.StatusOK},
		{"valid token via post", http.MethodPost, "/api/digests/" + d.ID + "/ack?token=" + d.AckToken, http.StatusOK},
		{"missing token", http.MethodGet, "/api/digests/" + d.ID + "/ack", http.StatusBadRequest},
		{"wrong token", http.MethodGet, "/api/digests/" + d.ID + "/ack?token=bogus", http.StatusForbidden},
		{"unknown digest", http.MethodGet, "/api/digests/nope/ack?token=" + d.AckToken, http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.url, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Errorf("expected status %d, got %d: %s", tc.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestAcknowledgeDigestIsIdempotent(t *testing.T) {
	repo := digest.NewMemoryRepository()
	d := seedDigest(t, repo)
	router := NewRouter(health.NewChecker(), repo)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/digests/"+d.ID+"/ack?token="+d.AckToken, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("ack attempt %d: expected 200, got %d", i+1, rec.Code)
		}
	}

	got, err := repo.FindByID(context.Background(), d.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsAcknowledged {
		t.Error("digest should be acknowledged")
	}
}

func TestHealthEndpoint(t *testing.T) {
	checker := health.NewChecker()
	checker.AddReadinessCheck(func() health.Check {
		return health.Check{Name: "MongoDB", Status: health.StatusUp}
	})
	router := NewRouter(checker, digest.NewMemoryRepository())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
