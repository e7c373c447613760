package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"base-distance/internal/config"
	"base-distance/internal/geocode"
	"base-distance/internal/pipeline"
	"github.com/stretchr/testify/require"
)

const (
	baseCSV    = "Name,Latitude,Longitude\nA,0,0\nB,10,10\n"
	subbaseCSV = "Name,Latitude,Longitude\nX,1,1\n"
)

func newTestServer(t *testing.T, adapter *geocode.Adapter, loginPass string) *Server {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Config{
		LoginUser:     "user",
		LoginPass:     loginPass,
		SessionSecret: "test-secret",
		UploadDir:     dir + "/uploads",
		OutputDir:     dir + "/output",
	}
	server, err := NewServer(cfg, pipeline.NewOrchestrator(), adapter)
	require.NoError(t, err)
	return server
}

func multipartRun(t *testing.T, fields map[string]string, files map[string]string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, content := range files {
		part, err := writer.CreateFormFile(name, name+".csv")
		require.NoError(t, err)
		_, err = io.WriteString(part, content)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())

	request, err := http.NewRequest(http.MethodPost, "/run", body)
	require.NoError(t, err)
	request.Header.Set("Content-Type", writer.FormDataContentType())
	return request
}

func decode(t *testing.T, recorder *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &out))
	return out
}

func serve(server *Server, request *http.Request) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, request)
	return recorder
}

func get(t *testing.T, server *Server, target string) *httptest.ResponseRecorder {
	request, err := http.NewRequest(http.MethodGet, target, nil)
	require.NoError(t, err)
	return serve(server, request)
}

func startJob(t *testing.T, server *Server, fields, files map[string]string) string {
	recorder := serve(server, multipartRun(t, fields, files))
	require.Equal(t, http.StatusAccepted, recorder.Code, recorder.Body.String())
	jobID, ok := decode(t, recorder)["job_id"].(string)
	require.True(t, ok)
	return jobID
}

func waitForJob(t *testing.T, server *Server, jobID string) map[string]interface{} {
	var status map[string]interface{}
	require.Eventually(t, func() bool {
		recorder := get(t, server, "/status?job_id="+jobID)
		if recorder.Code != http.StatusOK {
			return false
		}
		status = decode(t, recorder)
		return status["status"] != "running" && !server.orchestrator.Running() && !server.busy.Load()
	}, 5*time.Second, 10*time.Millisecond)
	return status
}

func TestRunRefusedWhileAccepted(t *testing.T) {
	server := newTestServer(t, nil, "")
	files := map[string]string{"base_file": baseCSV, "subbase_file": subbaseCSV}

	// an accepted run whose job has not yet taken the orchestrator
	server.busy.Store(true)
	recorder := serve(server, multipartRun(t, map[string]string{"mode": ModeLongLat}, files))
	require.Equal(t, http.StatusConflict, recorder.Code)

	server.busy.Store(false)
	jobID := startJob(t, server, map[string]string{"mode": ModeLongLat}, files)

	status := waitForJob(t, server, jobID)
	require.Equal(t, "done", status["status"])
	require.False(t, server.busy.Load())
}

func TestHealthz(t *testing.T) {
	server := newTestServer(t, nil, "")
	recorder := get(t, server, "/healthz")
	require.Equal(t, http.StatusOK, recorder.Code)
}

func TestRunLongLat(t *testing.T) {
	server := newTestServer(t, nil, "")

	recorder := get(t, server, "/closest")
	require.Equal(t, http.StatusConflict, recorder.Code)

	jobID := startJob(t, server,
		map[string]string{"mode": ModeLongLat, "radius": "200"},
		map[string]string{"base_file": baseCSV, "subbase_file": subbaseCSV})

	status := waitForJob(t, server, jobID)
	require.Equal(t, "done", status["status"])
	result := status["result"].(map[string]interface{})
	require.EqualValues(t, 1, result["rows"])
	require.EqualValues(t, 2, result["bases"])
	require.EqualValues(t, 1, result["radius_pairs"])
	files := result["files"].([]interface{})
	require.Len(t, files, 3)

	recorder = get(t, server, "/logs?job_id="+jobID)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Contains(t, recorder.Body.String(), "Base file loaded with 2 points.")

	recorder = get(t, server, "/closest")
	require.Equal(t, http.StatusOK, recorder.Code)
	body := decode(t, recorder)
	assignments := body["assignments"].([]interface{})
	require.Len(t, assignments, 1)
	first := assignments[0].(map[string]interface{})
	require.Equal(t, "A", first["closest_base"].(map[string]interface{})["name"])

	recorder = get(t, server, "/groups")
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Len(t, decode(t, recorder)["groups"].([]interface{}), 1)

	recorder = get(t, server, "/download-result/"+jobID+"_closest.csv")
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Contains(t, recorder.Body.String(), "X,1,1,A,0,0,97.71")
}

func TestRunValidationFailure(t *testing.T) {
	server := newTestServer(t, nil, "")

	jobID := startJob(t, server,
		map[string]string{"mode": ModeLongLat},
		map[string]string{"base_file": baseCSV, "subbase_file": "Name,Address\nShop,1 Main St\n"})

	status := waitForJob(t, server, jobID)
	require.Equal(t, "error", status["status"])
	require.Contains(t, status["error"], "Name, Latitude, Longitude")

	// the trigger is released, so a corrected run goes through
	jobID = startJob(t, server,
		map[string]string{"mode": ModeLongLat},
		map[string]string{"base_file": baseCSV, "subbase_file": subbaseCSV})
	require.Equal(t, "done", waitForJob(t, server, jobID)["status"])
}

func TestRunAddressMode(t *testing.T) {
	known := map[string]string{
		"Depot A, Origin": `{"lat":0,"lng":0}`,
		"Depot B, Far":    `{"lat":10,"lng":10}`,
		"Shop X, Near":    `{"lat":1,"lng":1}`,
	}
	var calls atomic.Int32
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		loc, ok := known[r.URL.Query().Get("q")]
		if !ok {
			fmt.Fprint(w, `{"results":[]}`)
			return
		}
		fmt.Fprintf(w, `{"results":[{"geometry":{"location":%s}}]}`, loc)
	}))
	defer proxy.Close()

	client := geocode.NewProxyClient(geocode.ProxyClientConfig{Endpoint: proxy.URL, Timeout: time.Second})
	server := newTestServer(t, geocode.NewAdapter(client, geocode.NewMemoryCache()), "")

	jobID := startJob(t, server,
		map[string]string{"mode": ModeAddress},
		map[string]string{
			"base_file":    "Name,City\nDepot A,Origin\nDepot B,Far\nDepot A,Origin\n",
			"subbase_file": "Name,City\nShop X,Near\nShop Y,Atlantis\n",
		})

	status := waitForJob(t, server, jobID)
	require.Equal(t, "done", status["status"], status["error"])
	require.EqualValues(t, 4, calls.Load())

	recorder := get(t, server, "/logs?job_id="+jobID)
	require.Contains(t, recorder.Body.String(), "[Subbase] Geocoding complete. (1 of 2 processed)")
	require.Contains(t, recorder.Body.String(), "[Subbase] Failed to geocode Shop Y (2).")
}

func TestRunBadRequests(t *testing.T) {
	server := newTestServer(t, nil, "")
	files := map[string]string{"base_file": baseCSV, "subbase_file": subbaseCSV}

	testCases := []struct {
		name   string
		fields map[string]string
		files  map[string]string
	}{
		{"BadMode", map[string]string{"mode": "polar"}, files},
		{"AddressWithoutGeocoder", map[string]string{"mode": ModeAddress}, files},
		{"BadRadius", map[string]string{"radius": "-3"}, files},
		{"MissingSubbase", map[string]string{}, map[string]string{"base_file": baseCSV}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			recorder := serve(server, multipartRun(t, tc.fields, tc.files))
			require.Equal(t, http.StatusBadRequest, recorder.Code)
			require.Equal(t, false, decode(t, recorder)["ok"])
		})
	}
}

func TestJobNotFound(t *testing.T) {
	server := newTestServer(t, nil, "")
	require.Equal(t, http.StatusNotFound, get(t, server, "/status?job_id=nope").Code)
	require.Equal(t, http.StatusNotFound, get(t, server, "/logs?job_id=nope").Code)
	require.Equal(t, http.StatusNotFound, get(t, server, "/download-result/missing.csv").Code)
}

func TestLoginRequired(t *testing.T) {
	server := newTestServer(t, nil, "pa55")

	require.Equal(t, http.StatusUnauthorized, get(t, server, "/closest").Code)

	login := func(pass string) *httptest.ResponseRecorder {
		form := url.Values{"username": {"user"}, "password": {pass}}
		request, err := http.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
		require.NoError(t, err)
		request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return serve(server, request)
	}

	require.Equal(t, http.StatusUnauthorized, login("wrong").Code)

	recorder := login("pa55")
	require.Equal(t, http.StatusOK, recorder.Code)
	cookies := recorder.Result().Cookies()
	require.NotEmpty(t, cookies)

	request, err := http.NewRequest(http.MethodGet, "/closest", nil)
	require.NoError(t, err)
	for _, c := range cookies {
		request.AddCookie(c)
	}
	require.Equal(t, http.StatusConflict, serve(server, request).Code)
}
