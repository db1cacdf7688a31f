package fetch

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdok/muitiles/tile"
)

func testConfig() Config {
	return Config{UserAgent: "muitiles-test", Attempts: 3, Backoff: time.Millisecond, Timeout: 5 * time.Second, MinSize: MinTileSize}
}

var tileBody = bytes.Repeat([]byte{0x89}, 1000)

// statusSequence answers with the given statuses in turn, then keeps answering with the last one.
func statusSequence(t *testing.T, statuses ...int) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "muitiles-test", r.Header.Get("User-Agent"))
		n := int(atomic.AddInt32(&calls, 1))
		status := statuses[min(n, len(statuses))-1]
		w.WriteHeader(status)
		if status == http.StatusOK {
			_, _ = w.Write(tileBody)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestFetch(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []int
		wantCalls int32
		wantErr   bool
		status    int
	}{
		{name: "ok", statuses: []int{200}, wantCalls: 1},
		{name: "retry on 429", statuses: []int{429, 200}, wantCalls: 2},
		{name: "retry on 5xx", statuses: []int{503, 502, 200}, wantCalls: 3},
		{name: "gives up after 3", statuses: []int{500}, wantCalls: 3, wantErr: true, status: 500},
		{name: "404 fails immediately", statuses: []int{404}, wantCalls: 1, wantErr: true, status: 404},
		{name: "403 fails immediately", statuses: []int{403, 200}, wantCalls: 1, wantErr: true, status: 403},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, calls := statusSequence(t, tt.statuses...)
			body, err := NewHTTP(testConfig(), zerolog.Nop()).Fetch(context.Background(), srv.URL+"/13/1/2.png")
			assert.Equal(t, tt.wantCalls, atomic.LoadInt32(calls))
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, tileBody, body)
				return
			}
			var fetchErr *FetchError
			require.True(t, errors.As(err, &fetchErr))
			assert.Equal(t, tt.status, fetchErr.StatusCode)
			assert.Equal(t, int(tt.wantCalls), fetchErr.Attempts)
			assert.ErrorIs(t, err, ErrUnexpectedStatus)
		})
	}
}

func TestFetchTooSmall(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte("<html>busy</html>"))
	}))
	defer srv.Close()

	_, err := NewHTTP(testConfig(), zerolog.Nop()).Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrTooSmall)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetchCanceled(t *testing.T) {
	srv, _ := statusSequence(t, 503)
	cfg := testConfig()
	cfg.Backoff = time.Hour
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := NewHTTP(cfg, zerolog.Nop()).Fetch(ctx, srv.URL)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestURL(t *testing.T) {
	assert.Equal(t, "https://tile.openstreetmap.org/13/7536/4915.png",
		URL("https://tile.openstreetmap.org/{z}/{x}/{y}.png", tile.Index{Zoom: 13, X: 7536, Y: 4915}))
	assert.Equal(t, "https://a/{s}/2/1/0", URL("https://a/{s}/{z}/{x}/{y}", tile.Index{Zoom: 2, X: 1, Y: 0}))
	assert.Equal(t, "https://t0.tiles.test/tiles/a213.jpeg", URL("https://t0.tiles.test/tiles/a{q}.jpeg", tile.Index{Zoom: 3, X: 3, Y: 5}))
	assert.Equal(t, "https://t0.tiles.test/{q}", URL("https://t0.tiles.test/{q}", tile.Index{Zoom: 1, X: 5, Y: 0}))
}

func TestTemplate(t *testing.T) {
	tmpl, err := Template("osm", "")
	require.NoError(t, err)
	assert.Equal(t, "https://tile.openstreetmap.org/{z}/{x}/{y}.png", tmpl)

	tmpl, err = Template("osm", "https://example.com/{z}/{x}/{y}.jpg")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/{z}/{x}/{y}.jpg", tmpl)

	_, err = Template("watercolor", "")
	assert.ErrorIs(t, err, ErrUnknownStyle)

	_, err = Template("", "https://example.com/{z}/{x}.png")
	assert.Error(t, err)

	_, err = Template("", "https://example.com/a{q}.jpeg")
	assert.NoError(t, err)

	keys := []string{}
	for p := Styles.Oldest(); p != nil; p = p.Next() {
		keys = append(keys, p.Key)
	}
	assert.Equal(t, []string{"osm", "carto-light", "carto-dark"}, keys)
}

func TestSourceExtension(t *testing.T) {
	tests := map[string]string{
		"https://tile.openstreetmap.org/{z}/{x}/{y}.png": "png",
		"https://example.com/{z}/{x}/{y}.JPG?key=abc":    "jpg",
		"https://example.com/{z}/{x}/{y}.webp":           "webp",
		"https://example.com/tiles/{z}/{x}/{y}":          "png",
		"https://example.com/v1.2/{z}/{x}/{y}":           "png",
	}
	for tmpl, want := range tests {
		assert.Equal(t, want, SourceExtension(tmpl), tmpl)
	}
}
