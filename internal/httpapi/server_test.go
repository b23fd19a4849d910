package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ppiankov/riskcheck/internal/community"
	"github.com/ppiankov/riskcheck/internal/evidence"
	"github.com/ppiankov/riskcheck/internal/footprint"
	"github.com/ppiankov/riskcheck/internal/logging"
	"github.com/ppiankov/riskcheck/internal/metrics"
	"github.com/ppiankov/riskcheck/internal/model"
	"github.com/ppiankov/riskcheck/internal/pipeline"
	"github.com/ppiankov/riskcheck/internal/worker"
)

const testToken = "s3cret-admin"

type quietProber struct{}

func (quietProber) Probe(_ context.Context, targets []footprint.Target) []footprint.TargetReport {
	out := make([]footprint.TargetReport, len(targets))
	for i, t := range targets {
		out[i] = footprint.TargetReport{Target: t, Signals: []model.Signal{
			{Name: "Internet footprint", Status: model.TierUnknown, Note: "Search not configured", Source: model.SourceFootprint},
		}}
	}
	return out
}

type testEnv struct {
	handler http.Handler
	reports *community.Service
	files   *evidence.Store
}

type envOption func(*Options)

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	logger := logging.Discard()
	m := metrics.New()

	files := evidence.NewStore(evidence.NewDiskBlobs(t.TempDir()), evidence.NewMemoryIndex(), nil, 4096*4, 6)
	reports := community.NewService(community.Options{
		Store:       community.NewMemoryStore(),
		Attachments: files,
		Metrics:     m,
		Logger:      logger,
	})
	checks := pipeline.New(pipeline.Options{
		Prober:   quietProber{},
		Reports:  reports,
		Evidence: files,
		Metrics:  m,
		Logger:   logger,
	})

	o := Options{
		Checks:     checks,
		Reports:    reports,
		Files:      files,
		Metrics:    m,
		Logger:     logger,
		AdminToken: testToken,
		Origins:    []string{"http://localhost:3000"},
	}
	for _, fn := range opts {
		fn(&o)
	}
	return &testEnv{handler: New(o).Routes(), reports: reports, files: files}
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) postJSON(t *testing.T, path string, v interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return e.do(t, http.MethodPost, path, bytes.NewReader(data), headers)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}

func validReport() model.ReportRequest {
	return model.ReportRequest{
		EntityType:  model.EntityWebsite,
		EntityValue: "https://shop.example",
		Category:    "advance_payment",
		Description: "Took an advance payment for a phone and stopped answering.",
	}
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: uint8(y * 8), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func multipartBody(t *testing.T, field, filename string, data []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	decode(t, rec, &body)
	require.Equal(t, "ok", body["status"])
}

func TestHealth_Degraded(t *testing.T) {
	env := newTestEnv(t, func(o *Options) {
		o.Health = func(context.Context) error { return errors.New("db down") }
	})
	rec := env.do(t, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/health", nil, nil)

	rec := env.do(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `riskcheck_http_requests_total{code="200",method="GET",route="/health"} 1`)
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health", nil, map[string]string{"Origin": "http://localhost:3000"})
	require.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = env.do(t, http.MethodGet, "/health", nil, map[string]string{"Origin": "https://evil.example"})
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCheck_RoundTrip(t *testing.T) {
	env := newTestEnv(t)
	rec := env.postJSON(t, "/api/check", map[string]interface{}{
		"entity_type":  "website",
		"entity_value": "http://totally-legit-shop.example",
		"evidence":     map[string]interface{}{"https_present": false},
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var check map[string]interface{}
	decode(t, rec, &check)
	for _, field := range []string{"id", "entity_type", "entity_value", "risk_level", "confidence", "grade", "signals", "rationale", "community", "created_at"} {
		require.Contains(t, check, field)
	}
	require.NotContains(t, check, "user_contact")
	id := check["id"].(string)

	rec = env.do(t, http.MethodGet, "/api/check/"+id, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var loaded map[string]interface{}
	decode(t, rec, &loaded)
	require.Equal(t, check["risk_level"], loaded["risk_level"])
	require.Equal(t, check["grade"], loaded["grade"])

	rec = env.do(t, http.MethodGet, "/api/report/"+id+"/pdf", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	require.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))
}

func TestCheck_Errors(t *testing.T) {
	env := newTestEnv(t)

	rec := env.postJSON(t, "/api/check", map[string]string{"entity_type": "myspace", "entity_value": "x"}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body errorBody
	decode(t, rec, &body)
	require.Equal(t, "validation", body.Kind)

	rec = env.do(t, http.MethodPost, "/api/check", strings.NewReader("{not json"), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/check/missing", nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/report/missing/pdf", nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmitReport(t *testing.T) {
	env := newTestEnv(t)
	rec := env.postJSON(t, "/api/community/report", validReport(), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var body map[string]string
	decode(t, rec, &body)
	require.NotEmpty(t, body["id"])
	require.Equal(t, "pending", body["status"])

	bad := validReport()
	bad.Description = "too short"
	rec = env.postJSON(t, "/api/community/report", bad, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdmin_Auth(t *testing.T) {
	t.Run("disabled without token", func(t *testing.T) {
		env := newTestEnv(t, func(o *Options) { o.AdminToken = "" })
		rec := env.do(t, http.MethodGet, "/api/admin/reports", nil, map[string]string{"X-Admin-Token": "anything"})
		require.Equal(t, http.StatusForbidden, rec.Code)
		var body errorBody
		decode(t, rec, &body)
		require.Equal(t, "admin actions disabled", body.Error)
	})

	env := newTestEnv(t)
	tests := []struct {
		name    string
		headers map[string]string
		want    int
	}{
		{"missing", nil, http.StatusUnauthorized},
		{"wrong", map[string]string{"X-Admin-Token": "nope"}, http.StatusUnauthorized},
		{"header", map[string]string{"X-Admin-Token": testToken}, http.StatusOK},
		{"bearer", map[string]string{"Authorization": "Bearer " + testToken}, http.StatusOK},
		{"basic", map[string]string{"Authorization": "Basic " + testToken}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/api/admin/reports", nil, tt.headers)
			require.Equal(t, tt.want, rec.Code)
		})
	}

	// Auth runs before the report lookup
	rec := env.do(t, http.MethodPost, "/api/admin/reports/does-not-exist/approve", nil, map[string]string{"X-Admin-Token": "nope"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdmin_Moderation(t *testing.T) {
	env := newTestEnv(t)
	admin := map[string]string{"X-Admin-Token": testToken, "X-Reviewer": "alice"}

	rec := env.postJSON(t, "/api/community/report", validReport(), nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created map[string]string
	decode(t, rec, &created)
	id := created["id"]

	rec = env.do(t, http.MethodGet, "/api/admin/reports?status=pending", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Reports []model.CommunityReport `json:"reports"`
	}
	decode(t, rec, &list)
	require.Len(t, list.Reports, 1)

	rec = env.do(t, http.MethodPost, "/api/admin/reports/"+id+"/approve", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	var approved model.CommunityReport
	decode(t, rec, &approved)
	require.Equal(t, id, approved.ID)
	require.Equal(t, model.StatusApproved, approved.Status)
	require.Equal(t, "alice", approved.Reviewer)
	require.NotNil(t, approved.ReviewedAt)

	rec = env.do(t, http.MethodPost, "/api/admin/reports/"+id+"/reject", nil, admin)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/admin/reports/"+id, nil, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	var rep model.CommunityReport
	decode(t, rec, &rep)
	require.Equal(t, model.StatusApproved, rep.Status)
	require.Equal(t, "alice", rep.Reviewer)

	rec = env.do(t, http.MethodPost, "/api/admin/reports/missing/approve", nil, admin)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/admin/reports?status=bogus", nil, admin)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// Approved reports feed later checks
	rec = env.postJSON(t, "/api/check", map[string]string{"entity_type": "website", "entity_value": "https://shop.example"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var check model.Check
	decode(t, rec, &check)
	require.Equal(t, 1, check.Community.ApprovedCount)
	require.GreaterOrEqual(t, check.RiskLevel, model.TierMedium)
}

func TestUpload(t *testing.T) {
	env := newTestEnv(t)
	data := testPNG(t)

	upload := func() *httptest.ResponseRecorder {
		body, contentType := multipartBody(t, "file", "shot.png", data)
		return env.do(t, http.MethodPost, "/api/upload", body, map[string]string{"Content-Type": contentType})
	}

	rec := upload()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var first uploadResponse
	decode(t, rec, &first)
	require.Len(t, first.SHA256, 64)
	require.Equal(t, "/api/file/"+first.SHA256, first.URL)
	require.Equal(t, "image/png", first.MimeType)
	require.NotNil(t, first.PerceptualHash)

	rec = upload()
	require.Equal(t, http.StatusOK, rec.Code)
	var second uploadResponse
	decode(t, rec, &second)
	require.Equal(t, first.SHA256, second.SHA256)

	rec = env.do(t, http.MethodGet, first.URL, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	require.Equal(t, data, rec.Body.Bytes())

	rec = env.do(t, http.MethodGet, "/api/file/"+strings.Repeat("0", 64), nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpload_Rejects(t *testing.T) {
	env := newTestEnv(t)

	body, contentType := multipartBody(t, "file", "big.bin", bytes.Repeat([]byte{0x42}, int(env.files.MaxBytes())+10))
	rec := env.do(t, http.MethodPost, "/api/upload", body, map[string]string{"Content-Type": contentType})
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	body, contentType = multipartBody(t, "attachment", "shot.png", testPNG(t))
	rec = env.do(t, http.MethodPost, "/api/upload", body, map[string]string{"Content-Type": contentType})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmissionRateLimit(t *testing.T) {
	env := newTestEnv(t, func(o *Options) { o.Limiter = worker.NewLimiter(0.001, 1) })

	rec := env.postJSON(t, "/api/community/report", validReport(), nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.postJSON(t, "/api/community/report", validReport(), nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Reads are not throttled
	rec = env.do(t, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSubmissionRateLimit_IgnoresForwardedForFromClients(t *testing.T) {
	env := newTestEnv(t, func(o *Options) { o.Limiter = worker.NewLimiter(0.001, 1) })

	// httptest requests all come from 192.0.2.1, which is not a trusted proxy
	accepted := 0
	for i := range 10 {
		headers := map[string]string{
			"X-Forwarded-For": fmt.Sprintf("10.0.0.%d", i),
			"X-Real-IP":       fmt.Sprintf("10.0.1.%d", i),
		}
		if rec := env.postJSON(t, "/api/community/report", validReport(), headers); rec.Code == http.StatusCreated {
			accepted++
		} else {
			require.Equal(t, http.StatusTooManyRequests, rec.Code)
		}
	}
	require.Equal(t, 1, accepted)
}

func TestSubmissionRateLimit_TrustedProxy(t *testing.T) {
	proxies, err := ParseTrustedProxies([]string{"192.0.2.0/24"})
	require.NoError(t, err)
	env := newTestEnv(t, func(o *Options) {
		o.Limiter = worker.NewLimiter(0.001, 1)
		o.TrustedProxies = proxies
	})
	post := func(xff string) int {
		return env.postJSON(t, "/api/community/report", validReport(), map[string]string{"X-Forwarded-For": xff}).Code
	}

	require.Equal(t, http.StatusCreated, post("203.0.113.5"))
	require.Equal(t, http.StatusCreated, post("203.0.113.6"))
	require.Equal(t, http.StatusTooManyRequests, post("203.0.113.5"))

	// A spoofed leftmost entry does not change the client seen by the proxy
	require.Equal(t, http.StatusTooManyRequests, post("198.51.100.77, 203.0.113.6"))
}

func TestParseTrustedProxies(t *testing.T) {
	got, err := ParseTrustedProxies([]string{"10.0.0.0/8", " 192.0.2.10 ", "", "::1"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, "192.0.2.10/32", got[1].String())
	require.Equal(t, "::1/128", got[2].String())

	_, err = ParseTrustedProxies([]string{"not-an-ip"})
	require.Error(t, err)
}
