//go:build integration

// Package e2e_test drives the broker end to end over real HTTP, the same
// way coredhcp's own e2e_test stood up a real server and ran a real client
// against it instead of exercising handlers in-process.
package e2e_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dlr-eoc/min-creds/broker"
	"github.com/dlr-eoc/min-creds/config"
	"github.com/dlr-eoc/min-creds/httpapi"
)

func startTestServer(t *testing.T, cfg *config.Config) (*httptest.Server, *broker.Registry) {
	t.Helper()
	reg := broker.NewRegistry(cfg)
	srv := httptest.NewServer(httpapi.NewServer(reg, cfg.WebPath))
	t.Cleanup(srv.Close)
	return srv, reg
}

func postJSON(t *testing.T, url, token string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// TestSingleLeaseRoundTrip obtains a credential, checks the overview
// reflects it in use, then releases it.
func TestSingleLeaseRoundTrip(t *testing.T) {
	cfg := &config.Config{
		WebPath: "/",
		Services: map[string]config.Service{
			"db": {
				LeaseTimeoutSecs: 300,
				Credentials: []config.Credential{
					{User: "alice", Password: "hunter2", NumConcurrent: 1},
				},
			},
		},
		AccessTokens: []string{"tok1"},
	}
	srv, _ := startTestServer(t, cfg)

	resp := postJSON(t, srv.URL+"/get", "tok1", map[string]string{"service": "db"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var leaseResp struct {
		Lease    string `json:"lease"`
		User     string `json:"user"`
		Password string `json:"password"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&leaseResp))
	require.Equal(t, "alice", leaseResp.User)
	require.Equal(t, "hunter2", leaseResp.Password)

	overviewResp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	var ov struct {
		Services map[string]struct {
			CredentialsAvailable int `json:"credentials_available"`
			CredentialsInUse     int `json:"credentials_in_use"`
		} `json:"services"`
	}
	require.NoError(t, json.NewDecoder(overviewResp.Body).Decode(&ov))
	require.Equal(t, 0, ov.Services["db"].CredentialsAvailable)
	require.Equal(t, 1, ov.Services["db"].CredentialsInUse)

	releaseResp := postJSON(t, srv.URL+"/release", "tok1", map[string]string{"lease": leaseResp.Lease})
	require.Equal(t, http.StatusOK, releaseResp.StatusCode)
}

// TestUnknownServiceReturns404 requests a service the registry does not know about.
func TestUnknownServiceReturns404(t *testing.T) {
	cfg := &config.Config{WebPath: "/", AccessTokens: []string{"tok1"}}
	srv, _ := startTestServer(t, cfg)

	resp := postJSON(t, srv.URL+"/get", "tok1", map[string]string{"service": "nope"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var errResp struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	require.Equal(t, `unknown service "nope"`, errResp.Message)
}

// TestUnauthenticatedRequestIsRejected checks that /get requires a
// bearer token while the overview endpoint does not.
func TestUnauthenticatedRequestIsRejected(t *testing.T) {
	cfg := &config.Config{
		WebPath: "/",
		Services: map[string]config.Service{
			"db": {
				LeaseTimeoutSecs: 300,
				Credentials: []config.Credential{
					{User: "alice", Password: "hunter2", NumConcurrent: 1},
				},
			},
		},
		AccessTokens: []string{"tok1"},
	}
	srv, _ := startTestServer(t, cfg)

	resp := postJSON(t, srv.URL+"/get", "wrong-token", map[string]string{"service": "db"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	overviewResp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, overviewResp.StatusCode)
}

// TestExhaustionAndFIFO parks a second client behind a fully leased
// service and checks it is served the moment the first releases.
func TestExhaustionAndFIFO(t *testing.T) {
	cfg := &config.Config{
		WebPath: "/",
		Services: map[string]config.Service{
			"db": {
				LeaseTimeoutSecs: 300,
				Credentials: []config.Credential{
					{User: "alice", Password: "hunter2", NumConcurrent: 1},
				},
			},
		},
		AccessTokens: []string{"tok1"},
	}
	srv, _ := startTestServer(t, cfg)

	respA := postJSON(t, srv.URL+"/get", "tok1", map[string]string{"service": "db"})
	require.Equal(t, http.StatusOK, respA.StatusCode)
	var leaseA struct {
		Lease string `json:"lease"`
	}
	require.NoError(t, json.NewDecoder(respA.Body).Decode(&leaseA))

	done := make(chan struct{})
	var leaseB struct {
		User string `json:"user"`
	}
	go func() {
		defer close(done)
		respB := postJSON(t, srv.URL+"/get", "tok1", map[string]string{"service": "db"})
		_ = json.NewDecoder(respB.Body).Decode(&leaseB)
	}()

	time.Sleep(100 * time.Millisecond)

	releaseResp := postJSON(t, srv.URL+"/release", "tok1", map[string]string{"lease": leaseA.Lease})
	require.Equal(t, http.StatusOK, releaseResp.StatusCode)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("waiting client never received its lease")
	}
	require.Equal(t, "alice", leaseB.User)
}
