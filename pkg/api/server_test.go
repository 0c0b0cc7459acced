package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/james-see/mei2perf/internal/config"
	"github.com/james-see/mei2perf/internal/logging"
	"github.com/james-see/mei2perf/pkg/converter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const melody = `<mei xmlns="http://www.music-encoding.org/ns/mei"><music><body><mdiv xml:id="m1"><score>` +
	`<scoreDef meter.count="4" meter.unit="4"><staffGrp><staffDef n="1" label="Flute"/></staffGrp></scoreDef>` +
	`<section><measure n="1"><staff n="1"><layer n="1">` +
	`<note xml:id="n1" pname="g" oct="4" dur="2"/><note xml:id="n2" pname="a" oct="4" dur="2"/>` +
	`</layer></staff></measure></section></score></mdiv></body></music></mei>`

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer() *Server {
	return NewServer(&config.Config{Environment: "test", PPQ: config.DefaultPPQ, CacheSize: 4}, logging.Discard())
}

func upload(t *testing.T, srv *Server, target, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	router := newTestServer().Router()

	for _, path := range []string{"/health", "/api/v1/health"} {
		t.Run(path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

			require.Equal(t, http.StatusOK, rec.Code)
			assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "healthy", body["status"])
		})
	}
}

func TestRequestIDIsPropagated(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	newTestServer().Router().ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestListFormats(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer().Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/formats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"mei", "json", "midi"}, body["formats"])
	assert.Equal(t, converter.GetSupportedConversions(), body["conversions"])
}

func TestCORSPreflight(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer().Router().ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/v1/convert/mei2json", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestConvertToJSON(t *testing.T) {
	rec := upload(t, newTestServer(), "/api/v1/convert/mei2json?ppq=480", "tune.mei", melody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "attachment; filename=tune.json", rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))

	var body struct {
		PPQ       int `json:"ppq"`
		Movements []struct {
			ID string `json:"id"`
		} `json:"movements"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 480, body.PPQ)
	require.Len(t, body.Movements, 1)
	assert.Equal(t, "m1", body.Movements[0].ID)
}

func TestConvertToMIDI(t *testing.T) {
	rec := upload(t, newTestServer(), "/api/v1/convert/mei2midi", "tune.mei", melody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "audio/midi", rec.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=tune.mid", rec.Header().Get("Content-Disposition"))

	summary, err := converter.NewMIDIConverter().ParseMIDI(rec.Body.Bytes())
	require.NoError(t, err)
	require.Len(t, summary.Notes, 2)
	assert.Equal(t, uint8(67), summary.Notes[0].Key)
	assert.Equal(t, uint8(69), summary.Notes[1].Key)
}

func TestConvertIsCached(t *testing.T) {
	srv := newTestServer()

	first := upload(t, srv, "/api/v1/convert/mei2json", "a.mei", melody)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	second := upload(t, srv, "/api/v1/convert/mei2json", "b.mei", melody)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.Bytes(), second.Body.Bytes())

	// different parameters miss the cache
	third := upload(t, srv, "/api/v1/convert/mei2json?add_ids=true", "a.mei", melody)
	require.Equal(t, http.StatusOK, third.Code)
	assert.Equal(t, "MISS", third.Header().Get("X-Cache"))
	assert.Equal(t, 2, srv.cache.len())
}

func TestConvertRejectsBadRequests(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		content string
	}{
		{"not mei", "/api/v1/convert/mei2json", "MThd garbage"},
		{"bad ppq", "/api/v1/convert/mei2json?ppq=zero", melody},
		{"negative ppq", "/api/v1/convert/mei2json?ppq=-1", melody},
		{"bad flag", "/api/v1/convert/mei2json?channel10=maybe", melody},
		{"bad movement", "/api/v1/convert/mei2midi?movement=x", melody},
		{"movement out of range", "/api/v1/convert/mei2midi?movement=3", melody},
		{"malformed xml", "/api/v1/convert/mei2json", "<mei><music></mei>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := upload(t, newTestServer(), tt.target, "x.mei", tt.content)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestConvertRequiresFile(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer().Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/convert/mei2json", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecoverWithSentry(t *testing.T) {
	router := gin.New()
	router.Use(RecoverWithSentry())
	router.Use(RequestTracking())
	router.GET("/panic", func(c *gin.Context) { panic("boom") })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestResultCacheEvictsOldest(t *testing.T) {
	c := newResultCache(2)
	c.put("a", []byte("1"))
	c.put("b", []byte("2"))
	c.put("c", []byte("3"))

	_, ok := c.get("a")
	assert.False(t, ok)
	v, ok := c.get("c")
	assert.True(t, ok)
	assert.Equal(t, []byte("3"), v)
	assert.Equal(t, 2, c.len())

	disabled := newResultCache(0)
	disabled.put("a", []byte("1"))
	assert.Equal(t, 0, disabled.len())
}

func TestCacheKey(t *testing.T) {
	a := cacheKey([]byte("<mei/>"), "json")
	assert.Len(t, a, 64)
	assert.Equal(t, a, cacheKey([]byte("<mei/>"), "json"))
	assert.NotEqual(t, a, cacheKey([]byte("<mei/>"), "midi"))
	assert.NotEqual(t, a, cacheKey([]byte("<mei/"), ">json"))
}
