package datasource

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ct "github.com/launchdarkly/go-configtypes"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/launchdarkly/go-server-sdk-core/datastore"
)

func mustOptURLAbsolute(t *testing.T, uri string) ct.OptURLAbsolute {
	t.Helper()
	o, err := ct.NewOptURLAbsoluteFromString(uri)
	require.NoError(t, err)
	return o
}

func sseHandler(events ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		for _, e := range events {
			fmt.Fprint(w, e)
			flusher.Flush()
		}
		<-r.Context().Done()
	}
}

func TestStreamingProcessorAppliesPutEvent(t *testing.T) {
	server := httptest.NewServer(sseHandler(
		"event: put\ndata: {\"data\":{\"flags\":{\"f1\":{\"key\":\"f1\",\"version\":7}},\"segments\":{}}}\n\n",
	))
	defer server.Close()

	store := datastore.NewMemoryStore()
	p := NewStreamingProcessor(store, server.Client(), nil, mustOptURLAbsolute(t, server.URL), ct.NewOptDuration(time.Millisecond), ldlog.NewDisabledLoggers())
	defer p.Close()

	ready := make(chan struct{})
	p.Start(ready)
	waitForReady(t, ready)

	assert.True(t, p.IsInitialized())
	item, err := store.Get(datastore.Features, "f1")
	require.NoError(t, err)
	assert.Equal(t, 7, item.Version)
}

func TestStreamingProcessorAppliesPatchAfterPut(t *testing.T) {
	server := httptest.NewServer(sseHandler(
		"event: put\ndata: {\"data\":{\"flags\":{},\"segments\":{}}}\n\n",
		"event: patch\ndata: {\"path\":\"/flags/f1\",\"data\":{\"key\":\"f1\",\"version\":2}}\n\n",
	))
	defer server.Close()

	store := datastore.NewMemoryStore()
	p := NewStreamingProcessor(store, server.Client(), nil, mustOptURLAbsolute(t, server.URL), ct.NewOptDuration(time.Millisecond), ldlog.NewDisabledLoggers())
	defer p.Close()

	ready := make(chan struct{})
	p.Start(ready)
	waitForReady(t, ready)

	require.Eventually(t, func() bool {
		item, err := store.Get(datastore.Features, "f1")
		return err == nil && item.Version == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStreamingProcessorStopsPermanentlyOn401(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	store := datastore.NewMemoryStore()
	p := NewStreamingProcessor(store, server.Client(), nil, mustOptURLAbsolute(t, server.URL), ct.NewOptDuration(time.Millisecond), ldlog.NewDisabledLoggers())
	defer p.Close()

	ready := make(chan struct{})
	p.Start(ready)
	waitForReady(t, ready)

	assert.False(t, p.IsInitialized())
}
