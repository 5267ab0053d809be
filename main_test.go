package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/angas/awattar-go/awattar"
	"github.com/angas/awattar-go/config"
	"github.com/angas/awattar-go/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		Awattar: config.AppConfigAwattar{TaxPercent: 19, ThresholdStart: "22", ThresholdEnd: "6"},
	}
}

func TestRunOnceReturnsError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	memory := store.NewMemory()

	err := runOnce(context.Background(), logger, awattar.New(ts.URL, "test"), memory, testConfig, 10*time.Millisecond)

	var remoteErr *awattar.RemoteError
	require.True(t, errors.As(err, &remoteErr), "the error is handed back instead of exiting")
	assert.Equal(t, http.StatusInternalServerError, remoteErr.StatusCode)
	assert.Empty(t, memory.Ids(""))
}

func TestRunOnce(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"object":"list","data":[]}`))
	}))
	defer ts.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	memory := store.NewMemory()

	start := time.Now()
	err := runOnce(context.Background(), logger, awattar.New(ts.URL, "test"), memory, testConfig, 50*time.Millisecond)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond, "waits for the exit delay")
	assert.Equal(t, []string{"Rawdata"}, memory.Ids(""))
}
