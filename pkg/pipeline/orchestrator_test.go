// Copyright 2025 Oshidora Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nakatsuka-k/oshidora-sub001/pkg/config"
	"github.com/nakatsuka-k/oshidora-sub001/pkg/crop"
	"github.com/nakatsuka-k/oshidora-sub001/pkg/ingest"
	"github.com/nakatsuka-k/oshidora-sub001/pkg/readiness"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAssetID = "fedcba9876543210fedcba9876543210"

// fakeBackend bundles an ingestion endpoint and a status endpoint.
type fakeBackend struct {
	mu       sync.Mutex
	creates  int
	body     []byte
	received int64

	statusChecks atomic.Int64
	readyAfter   atomic.Int64 // checks until readyToStream flips true
	unconfigured bool

	ingestSrv *httptest.Server
	statusSrv *httptest.Server
}

func newFakeBackend() *fakeBackend {
	f := &fakeBackend{}
	f.readyAfter.Store(1)
	f.ingestSrv = httptest.NewServer(http.HandlerFunc(f.handleIngest))
	f.statusSrv = httptest.NewServer(http.HandlerFunc(f.handleStatus))
	return f
}

func (f *fakeBackend) Close() {
	f.ingestSrv.Close()
	f.statusSrv.Close()
}

func (f *fakeBackend) handleIngest(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		f.mu.Lock()
		f.creates++
		f.mu.Unlock()
		w.Header().Set("Stream-Media-Id", testAssetID)
		w.Header().Set("Location", "/transfer/"+testAssetID)
		w.WriteHeader(http.StatusCreated)
	case http.MethodPatch:
		data, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.body = append(f.body, data...)
		f.received += int64(len(data))
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}
}

func (f *fakeBackend) handleStatus(w http.ResponseWriter, r *http.Request) {
	n := f.statusChecks.Add(1)
	w.Header().Set("Content-Type", "application/json")
	switch {
	case f.unconfigured:
		w.Write([]byte(`{"configured": false, "readyToStream": null, "status": null}`))
	case n >= f.readyAfter.Load():
		w.Write([]byte(`{"configured": true, "readyToStream": true, "status": "ready"}`))
	default:
		w.Write([]byte(`{"configured": true, "readyToStream": false, "status": "inprogress"}`))
	}
}

func testOrchestrator(t *testing.T, f *fakeBackend, mutateCfg func(*config.Config)) *Orchestrator {
	t.Helper()

	cfg := &config.Config{
		IngestURL:      f.ingestSrv.URL + "/media",
		StatusURL:      f.statusSrv.URL,
		MaxUploadBytes: 1 << 20,
		VideoTypes:     config.DefaultVideoTypes,
		ImageTypes:     config.DefaultImageTypes,
		PollInterval:   5 * time.Millisecond,
		PollDeadline:   time.Minute,
	}
	if mutateCfg != nil {
		mutateCfg(cfg)
	}

	engine, err := ingest.NewEngine(ingest.Options{
		Endpoint:     cfg.IngestURL,
		ChunkSize:    32,
		MaxBytes:     cfg.MaxUploadBytes,
		ChunkRetries: 2,
		RetryBase:    time.Millisecond,
	})
	require.NoError(t, err)

	sc, err := readiness.NewClient(cfg.StatusURL, "")
	require.NoError(t, err)
	poller := readiness.NewPoller(sc, cfg.PollInterval, cfg.PollDeadline)

	return newOrchestrator(cfg, engine, poller, nil)
}

func videoSource(data []byte) ingest.Source {
	return ingest.Source{
		Reader:      bytes.NewReader(data),
		Size:        int64(len(data)),
		ContentType: "video/mp4",
		Name:        "episode01.mp4",
	}
}

func collect(ch <-chan Update) []Update {
	var ups []Update
	for u := range ch {
		ups = append(ups, u)
	}
	return ups
}

func stages(ups []Update) []Stage {
	var out []Stage
	for _, u := range ups {
		if len(out) == 0 || out[len(out)-1] != u.Stage {
			out = append(out, u.Stage)
		}
	}
	return out
}

func TestOrchestrator_VideoHappyPath(t *testing.T) {
	f := newFakeBackend()
	defer f.Close()
	f.readyAfter.Store(3)

	o := testOrchestrator(t, f, nil)
	defer o.Close()

	data := bytes.Repeat([]byte{0xAB}, 100)
	ups := collect(o.UploadVideo(context.Background(), videoSource(data)))

	got := stages(ups)
	assert.Equal(t, []Stage{
		StageSelectingFile, StageCreating, StageUploading,
		StageDone, StagePolling, StageReady,
	}, got)

	last := ups[len(ups)-1]
	assert.Equal(t, testAssetID, last.AssetID)
	assert.Equal(t, KindNone, last.Failure)
	assert.Equal(t, data, f.body)
}

func TestOrchestrator_RejectsWrongContentType(t *testing.T) {
	f := newFakeBackend()
	defer f.Close()

	o := testOrchestrator(t, f, nil)
	defer o.Close()

	src := videoSource([]byte("x"))
	src.ContentType = "application/zip"
	ups := collect(o.UploadVideo(context.Background(), src))

	last := ups[len(ups)-1]
	assert.Equal(t, StageError, last.Stage)
	assert.Equal(t, KindValidation, last.Failure)
	assert.Zero(t, f.creates, "validation failures must not touch the network")
}

func TestOrchestrator_RejectsOversizedFile(t *testing.T) {
	f := newFakeBackend()
	defer f.Close()

	o := testOrchestrator(t, f, func(c *config.Config) { c.MaxUploadBytes = 10 })

	src := videoSource(bytes.Repeat([]byte{1}, 11))
	ups := collect(o.UploadVideo(context.Background(), src))

	last := ups[len(ups)-1]
	assert.Equal(t, StageError, last.Stage)
	assert.Equal(t, KindValidation, last.Failure)
	assert.Zero(t, f.creates)
}

func TestOrchestrator_PhotoCropsBeforeUpload(t *testing.T) {
	f := newFakeBackend()
	defer f.Close()

	o := testOrchestrator(t, f, nil)
	defer o.Close()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 200, 150))))

	ups := collect(o.UploadPhoto(context.Background(), &buf, "image/png",
		crop.Frame{Zoom: 1}, crop.Viewport{W: 64, H: 64}, "profile"))

	got := stages(ups)
	assert.Equal(t, []Stage{
		StageSelectingFile, StageCroppingImage, StageCreating,
		StageUploading, StageDone,
	}, got, "photos stop at Done, no transcode polling")

	// The uploaded bytes are the cropped JPEG, not the source PNG.
	require.GreaterOrEqual(t, len(f.body), 2)
	assert.Equal(t, []byte{0xFF, 0xD8}, f.body[:2])
}

func TestOrchestrator_PhotoDecodeFailure(t *testing.T) {
	f := newFakeBackend()
	defer f.Close()

	o := testOrchestrator(t, f, nil)
	defer o.Close()

	ups := collect(o.UploadPhoto(context.Background(), strings.NewReader("junk"),
		"image/png", crop.Frame{Zoom: 1}, crop.Viewport{W: 64, H: 64}, "p"))

	last := ups[len(ups)-1]
	assert.Equal(t, StageError, last.Stage)
	assert.Equal(t, KindDecode, last.Failure)
	assert.Zero(t, f.creates)
}

func TestOrchestrator_UnresolvedIdentifierWarnsInsteadOfPolling(t *testing.T) {
	// An ingestion endpoint that never exposes an identifier anywhere.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			w.Header().Set("Location", "/transfer/opaque")
			w.WriteHeader(http.StatusCreated)
		case http.MethodPatch:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	f := newFakeBackend()
	defer f.Close()
	o := testOrchestrator(t, f, func(c *config.Config) { c.IngestURL = srv.URL + "/media" })

	ups := collect(o.UploadVideo(context.Background(), videoSource([]byte("0123456789"))))

	last := ups[len(ups)-1]
	assert.Equal(t, StageDone, last.Stage)
	assert.Equal(t, KindIdentifierUnresolved, last.Failure)
	assert.Zero(t, f.statusChecks.Load(), "must not poll without an asset id")
}

func TestOrchestrator_UnconfiguredAssetIsTerminal(t *testing.T) {
	f := newFakeBackend()
	defer f.Close()
	f.unconfigured = true

	o := testOrchestrator(t, f, nil)
	defer o.Close()

	ups := collect(o.UploadVideo(context.Background(), videoSource([]byte("0123456789"))))

	last := ups[len(ups)-1]
	assert.Equal(t, StageError, last.Stage)
	assert.Equal(t, KindUnconfigured, last.Failure)
	assert.EqualValues(t, 1, f.statusChecks.Load(), "unconfigured is terminal, no further polling")
}

func TestOrchestrator_PollDeadlineSurfacesTimeout(t *testing.T) {
	f := newFakeBackend()
	defer f.Close()
	f.readyAfter.Store(1 << 30) // never ready

	o := testOrchestrator(t, f, func(c *config.Config) {
		c.PollInterval = 5 * time.Millisecond
		c.PollDeadline = 40 * time.Millisecond
	})
	defer o.Close()

	ups := collect(o.UploadVideo(context.Background(), videoSource([]byte("0123456789"))))

	last := ups[len(ups)-1]
	assert.Equal(t, StagePollTimeout, last.Stage)
	assert.Equal(t, KindPollTimeout, last.Failure)
	for _, u := range ups {
		assert.NotEqual(t, StageReady, u.Stage)
	}
}

func TestOrchestrator_NewUploadCancelsPreviousCampaign(t *testing.T) {
	f := newFakeBackend()
	defer f.Close()
	f.readyAfter.Store(1 << 30) // first campaign polls forever

	o := testOrchestrator(t, f, nil)
	defer o.Close()

	first := o.UploadVideo(context.Background(), videoSource([]byte("0123456789")))

	// Let the first campaign reach Polling.
	var sawPolling bool
	var firstUps []Update
	for u := range first {
		firstUps = append(firstUps, u)
		if u.Stage == StagePolling {
			sawPolling = true
			break
		}
	}
	require.True(t, sawPolling)

	f.readyAfter.Store(0) // second campaign gets an immediate ready
	second := o.UploadVideo(context.Background(), videoSource([]byte("0123456789")))

	// The stale probe is cancelled: campaign one ends with Cancelled.
	for u := range first {
		firstUps = append(firstUps, u)
	}
	last := firstUps[len(firstUps)-1]
	assert.Equal(t, StageCancelled, last.Stage)

	secondUps := collect(second)
	assert.Equal(t, StageReady, secondUps[len(secondUps)-1].Stage)
}

func TestOrchestrator_NewUploadAtDoneCancelsPendingProbe(t *testing.T) {
	// Two campaigns with distinct assets: the first asset never
	// transcodes, the second is ready at once. The second upload starts
	// the instant the first emits Done — inside the window between the
	// first campaign's transfer finishing and its probe starting.
	assetA := strings.Repeat("a", 32)
	assetB := strings.Repeat("b", 32)

	var creates atomic.Int64
	ingestSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			id := assetA
			if creates.Add(1) > 1 {
				id = assetB
			}
			w.Header().Set("Stream-Media-Id", id)
			w.Header().Set("Location", "/transfer/"+id)
			w.WriteHeader(http.StatusCreated)
		case http.MethodPatch:
			io.Copy(io.Discard, r.Body)
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer ingestSrv.Close()

	statusSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(r.URL.Path, assetA) {
			w.Write([]byte(`{"configured": true, "readyToStream": false, "status": "inprogress"}`))
			return
		}
		w.Write([]byte(`{"configured": true, "readyToStream": true, "status": "ready"}`))
	}))
	defer statusSrv.Close()

	f := newFakeBackend()
	defer f.Close()
	o := testOrchestrator(t, f, func(c *config.Config) {
		c.IngestURL = ingestSrv.URL + "/media"
		c.StatusURL = statusSrv.URL
	})
	defer o.Close()

	first := o.UploadVideo(context.Background(), videoSource([]byte("0123456789")))

	var firstUps []Update
	var second <-chan Update
	for u := range first {
		firstUps = append(firstUps, u)
		if u.Stage == StageDone && second == nil {
			second = o.UploadVideo(context.Background(), videoSource([]byte("0123456789")))
		}
	}
	require.NotNil(t, second)

	// The superseded campaign ends in Cancelled, not PollTimeout: its
	// probe was cancelled before the second session entered Creating.
	assert.Equal(t, StageCancelled, firstUps[len(firstUps)-1].Stage)

	secondUps := collect(second)
	last := secondUps[len(secondUps)-1]
	assert.Equal(t, StageReady, last.Stage)
	assert.Equal(t, assetB, last.AssetID)
	for _, u := range secondUps {
		assert.NotEqual(t, assetA, u.AssetID, "stale asset leaked into the new campaign")
	}
}

func TestOrchestrator_CancelMidUpload(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			w.Header().Set("Location", "/transfer/"+testAssetID)
			w.WriteHeader(http.StatusCreated)
		case http.MethodPatch:
			<-block
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	f := newFakeBackend()
	defer f.Close()
	o := testOrchestrator(t, f, func(c *config.Config) { c.IngestURL = srv.URL + "/media" })

	ch := o.UploadVideo(context.Background(), videoSource(bytes.Repeat([]byte{1}, 100)))

	var ups []Update
	for u := range ch {
		ups = append(ups, u)
		if u.Stage == StageCreating {
			o.Cancel()
			close(block)
		}
	}

	assert.Equal(t, StageCancelled, ups[len(ups)-1].Stage)
}

func TestOrchestrator_UnauthorizedLatchFiresOnce(t *testing.T) {
	f := newFakeBackend()
	defer f.Close()
	o := testOrchestrator(t, f, nil)

	assert.True(t, o.Unauthorized())
	assert.False(t, o.Unauthorized(), "repeat signals are suppressed for the session")

	o.ResetSessionSignals()
	assert.True(t, o.Unauthorized())
}

func TestKind_MessagesAreStableAndDistinct(t *testing.T) {
	kinds := []Kind{
		KindValidation, KindTransport, KindIdentifierUnresolved,
		KindPollCheck, KindPollTimeout, KindUnconfigured,
		KindDecode, KindEncode,
	}

	seen := map[string]Kind{}
	for _, k := range kinds {
		msg := k.Message()
		require.NotEmpty(t, msg, "kind %q needs a message key", k)
		prev, dup := seen[msg]
		require.False(t, dup, "kinds %q and %q share message %q", prev, k, msg)
		seen[msg] = k
	}
	assert.Empty(t, KindNone.Message())
}
