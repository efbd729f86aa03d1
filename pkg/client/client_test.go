package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomcpgo/photo_edit_session/pkg/adjust"
	"github.com/gomcpgo/photo_edit_session/pkg/types"
)

func TestReplicateClient_CreatePrediction(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"p1","status":"starting"}`))
	}))
	defer srv.Close()

	c := NewReplicateClient("tok", ReplicateOptions{BaseURL: srv.URL})

	pred, err := c.CreatePrediction(context.Background(), "owner/model:abc123", map[string]interface{}{"image": "x"})
	require.NoError(t, err)
	assert.Equal(t, "p1", pred.ID)
	assert.Equal(t, "/predictions", gotPath)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "abc123", gotBody["version"])

	_, err = c.CreatePrediction(context.Background(), "owner/model", map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, "/models/owner/model/predictions", gotPath)
}

func TestReplicateClient_Billing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"detail":"out of credit"}`))
	}))
	defer srv.Close()

	c := NewReplicateClient("tok", ReplicateOptions{BaseURL: srv.URL})
	_, err := c.CreatePrediction(context.Background(), "owner/model", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBilling))
	assert.Contains(t, err.Error(), "out of credit")
}

func TestReplicateClient_WaitForCompletion(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := types.StatusProcessing
		if polls.Add(1) >= 3 {
			status = types.StatusSucceeded
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "p1",
			"status": status,
			"output": "https://example.com/out.png",
		})
	}))
	defer srv.Close()

	c := NewReplicateClient("tok", ReplicateOptions{BaseURL: srv.URL, PollInterval: 5 * time.Millisecond})
	pred, err := c.WaitForCompletion(context.Background(), "p1", time.Second)
	require.NoError(t, err)
	assert.Equal(t, types.StatusSucceeded, pred.Status)
	assert.GreaterOrEqual(t, polls.Load(), int32(3))
}

func TestReplicateClient_WaitForFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"p1","status":"failed","error":{"message":"NSFW"}}`))
	}))
	defer srv.Close()

	c := NewReplicateClient("tok", ReplicateOptions{BaseURL: srv.URL, PollInterval: 5 * time.Millisecond})
	_, err := c.WaitForCompletion(context.Background(), "p1", time.Second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPredictionFailed))
	assert.Contains(t, err.Error(), "NSFW")
}

func TestReplicateClient_Cancel(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewReplicateClient("tok", ReplicateOptions{BaseURL: srv.URL})
	require.NoError(t, c.CancelPrediction(context.Background(), "p9"))
	assert.Equal(t, "/predictions/p9/cancel", gotPath)
}

func TestMockPredictionClient_Lifecycle(t *testing.T) {
	m := NewMockPredictionClient()
	m.SetResponseDelay(20 * time.Millisecond)

	pred, err := m.CreatePrediction(context.Background(), "model", map[string]interface{}{"k": "v"})
	require.NoError(t, err)

	done, err := m.WaitForCompletion(context.Background(), pred.ID, time.Second)
	require.NoError(t, err)
	assert.Equal(t, types.StatusSucceeded, done.Status)
	assert.NotNil(t, done.Output)

	pred2, err := m.CreatePrediction(context.Background(), "model", nil)
	require.NoError(t, err)
	require.NoError(t, m.CancelPrediction(context.Background(), pred2.ID))
	_, err = m.WaitForCompletion(context.Background(), pred2.ID, time.Second)
	assert.True(t, errors.Is(err, ErrPredictionCanceled))

	creates, cancels := m.Calls()
	assert.Len(t, creates, 2)
	assert.Equal(t, []string{pred2.ID}, cancels)
}

func TestHTTPEngine(t *testing.T) {
	var renderBody adjust.AdjustmentSet
	mux := http.NewServeMux()
	mux.HandleFunc("/render/preview", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&renderBody))
		_, _ = w.Write([]byte("raster"))
	})
	mux.HandleFunc("/render/full", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		http.Error(w, "engine busy", http.StatusServiceUnavailable)
	})
	mux.HandleFunc("/analysis/histogram", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(types.Histogram{Luma: []uint32{1, 2, 3}})
	})
	mux.HandleFunc("/analysis/waveform", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(types.Waveform{Width: 2, Height: 1, Data: []uint32{4, 5}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	e := NewHTTPEngine(srv.URL+"/", HTTPEngineOptions{})
	ctx := context.Background()

	set, err := adjust.New().SetScalar(adjust.Exposure, 1.5)
	require.NoError(t, err)
	raster, err := e.RenderPreview(ctx, set)
	require.NoError(t, err)
	assert.Equal(t, []byte("raster"), raster)
	assert.True(t, set.Equal(renderBody))

	_, err = e.RenderFullResolution(ctx, set)
	var engineErr *EngineError
	require.True(t, errors.As(err, &engineErr))
	assert.Equal(t, http.StatusServiceUnavailable, engineErr.Status)
	assert.Equal(t, "engine busy", engineErr.Message)

	h, err := e.RenderHistogram(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 2, 3}, h.Luma)

	w, err := e.RenderWaveform(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, w.Width)
}

func TestMockEngine_HoldAndRelease(t *testing.T) {
	m := NewMockEngine()
	m.HoldFullResolution(true, false)

	done := make(chan []byte, 1)
	go func() {
		raster, _ := m.RenderFullResolution(context.Background(), adjust.New())
		done <- raster
	}()

	require.Eventually(t, func() bool { return m.HeldFull() == 1 }, time.Second, time.Millisecond)
	select {
	case <-done:
		t.Fatal("held render returned early")
	default:
	}
	require.True(t, m.ReleaseFull(0))
	raster := <-done

	fp, err := adjust.New().Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, "full:"+fp, string(raster))
	assert.False(t, m.ReleaseFull(0))
}
