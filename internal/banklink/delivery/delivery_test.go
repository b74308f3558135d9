package delivery

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsLocalTarget(t *testing.T) {
	assert.True(t, IsLocalTarget("http://localhost/callback"))
	assert.True(t, IsLocalTarget("https://127.0.0.1:8080/callback"))
	assert.True(t, IsLocalTarget("http://LOCALHOST/x"))
	assert.False(t, IsLocalTarget("http://shop.example/callback"))
	assert.False(t, IsLocalTarget("http://localhost.example/callback"))
}

func TestDeliverPost(t *testing.T) {
	var gotBody string
	var gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		gotType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("THANKS"))
	}))
	defer srv.Close()

	d := NewDeliverer(time.Second, "banklink.test")
	res := d.Deliver(context.Background(), http.MethodPost, srv.URL, "a=1&b=2")

	require.True(t, res.Attempted)
	assert.Empty(t, res.Error)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "THANKS", res.Body)
	assert.Equal(t, "a=1&b=2", gotBody)
	assert.Equal(t, "application/x-www-form-urlencoded", gotType)
}

func TestDeliverConnectionFailure(t *testing.T) {
	d := NewDeliverer(200*time.Millisecond, "banklink.test")
	res := d.Deliver(context.Background(), http.MethodGet, "http://127.0.0.1:1/callback", "")

	assert.True(t, res.Attempted)
	assert.NotEmpty(t, res.Error)
	assert.Zero(t, res.StatusCode)
}

func TestDeliverDoesNotFollowRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "http://elsewhere.example/", http.StatusFound)
	}))
	defer srv.Close()

	d := NewDeliverer(time.Second, "banklink.test")
	res := d.Deliver(context.Background(), http.MethodGet, srv.URL, "")

	assert.Equal(t, http.StatusFound, res.StatusCode)
}
