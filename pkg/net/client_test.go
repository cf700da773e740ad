package net

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHTTPClient(t *testing.T) {
	client, err := GetHTTPClient()
	require.NoError(t, err)
	assert.NotNil(t, client)
	assert.NotNil(t, client.Jar)
}

func TestGetOAuthClient(t *testing.T) {
	ctx := context.Background()
	client := GetOAuthClient(ctx, "test-token")
	assert.NotNil(t, client)
}

func TestPrintHTTPResponse_Nil(t *testing.T) {
	// should not panic
	PrintHTTPResponse(nil)
}

func TestPrintHTTPResponse_WithResponse(t *testing.T) {
	resp := &http.Response{
		StatusCode: 200,
		Header:     http.Header{},
		Body:       http.NoBody,
	}
	// should not panic
	PrintHTTPResponse(resp)
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/data.csv":
			_, _ = w.Write([]byte("group,outcome\na,1\n"))
		case "/broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, Download(srv.URL+"/data.csv", dest))

	b, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "group,outcome\na,1\n", string(b))

	err = Download(srv.URL+"/missing", filepath.Join(t.TempDir(), "missing.csv"))
	assert.ErrorIs(t, err, ErrorURLNotFound)

	err = Download(srv.URL+"/broken", filepath.Join(t.TempDir(), "broken.csv"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrorURLNotFound)
}

func TestPostFormJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.FormValue("client_id") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"device_code":"dev123","interval":5}`))
	}))
	defer srv.Close()

	var out struct {
		DeviceCode string `json:"device_code"`
		Interval   int    `json:"interval"`
	}
	form := url.Values{"client_id": {"abc"}}
	require.NoError(t, PostFormJSON(srv.URL, form, &out))
	assert.Equal(t, "dev123", out.DeviceCode)
	assert.Equal(t, 5, out.Interval)

	err := PostFormJSON(srv.URL, url.Values{}, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status")
}
