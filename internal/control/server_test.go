package control

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Iron-Ham/haunt/internal/errors"
	"github.com/Iron-Ham/haunt/internal/orchestrator"
	"github.com/Iron-Ham/haunt/internal/presence"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
)

type fakeEngine struct {
	mu      sync.Mutex
	posted  []orchestrator.Signal
	inputs  []string
	args    [][]string
	stopped bool
}

func (f *fakeEngine) Post(_ context.Context, sig orchestrator.Signal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopped {
		return errors.ErrEngineStopped
	}
	f.posted = append(f.posted, sig)
	return nil
}

func (f *fakeEngine) Do(_ context.Context, input string, args ...string) (orchestrator.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopped {
		return orchestrator.Reply{}, errors.ErrEngineStopped
	}
	f.inputs = append(f.inputs, input)
	f.args = append(f.args, args)
	if input == "dance" {
		err := fmt.Errorf("%w: %q", errors.ErrUnknownCommand, input)
		return orchestrator.Reply{Err: err}, err
	}
	return orchestrator.Reply{Action: input, OK: true, Message: "done"}, nil
}

func (f *fakeEngine) Snapshot() orchestrator.Snapshot {
	return orchestrator.Snapshot{State: "HIDDEN", Mode: "BUSY", MoodLabel: "calm", Mood: 0.5}
}

func (f *fakeEngine) lastPosted() orchestrator.Signal {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.posted) == 0 {
		return nil
	}
	return f.posted[len(f.posted)-1]
}

func newTestServer(t *testing.T, cfg Config) (*fakeEngine, *Client) {
	t.Helper()
	eng := &fakeEngine{}
	srv := httptest.NewServer(NewServer(cfg, eng, nil).Handler())
	t.Cleanup(srv.Close)
	return eng, NewClient(srv.URL, srv.Client())
}

func TestCommand(t *testing.T) {
	eng, client := newTestServer(t, Config{})
	ctx := context.Background()

	reply, err := client.Command(ctx, "summon")
	if err != nil {
		t.Fatalf("Command failed: %v", err)
	}
	if !reply.OK || reply.Action != "summon" {
		t.Errorf("Expected ok summon reply, got %+v", reply)
	}

	if _, err := client.Command(ctx, "comment", "what", "is", "this"); err != nil {
		t.Fatalf("Command failed: %v", err)
	}
	if _, err := client.Command(ctx, "come here"); err != nil {
		t.Fatalf("Command failed: %v", err)
	}

	if diff := cmp.Diff([]string{"summon", "comment", "come here"}, eng.inputs); diff != "" {
		t.Errorf("inputs mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"what", "is", "this"}, eng.args[1]); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestCommand_Unknown(t *testing.T) {
	_, client := newTestServer(t, Config{})

	_, err := client.Command(context.Background(), "dance")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", apiErr.StatusCode)
	}
	if !strings.Contains(apiErr.Message, "unknown command") {
		t.Errorf("Expected unknown command message, got %q", apiErr.Message)
	}
}

func TestEngineStopped(t *testing.T) {
	eng, client := newTestServer(t, Config{})
	eng.stopped = true

	_, err := client.Command(context.Background(), "status")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503, got %v", err)
	}
}

func TestStatus(t *testing.T) {
	_, client := newTestServer(t, Config{})

	snap, err := client.Status(context.Background())
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if snap.State != "HIDDEN" || snap.MoodLabel != "calm" {
		t.Errorf("Expected HIDDEN/calm snapshot, got %+v", snap)
	}
}

func TestCameraRoutes(t *testing.T) {
	eng, client := newTestServer(t, Config{})
	ctx := context.Background()

	sample := presence.Sample{FaceDetected: true, Expression: "happy", Score: 0.9}
	if err := client.SendSample(ctx, sample); err != nil {
		t.Fatalf("SendSample failed: %v", err)
	}
	got, ok := eng.lastPosted().(orchestrator.CameraSample)
	if !ok {
		t.Fatalf("Expected CameraSample, got %T", eng.lastPosted())
	}
	if diff := cmp.Diff(sample, got.Sample); diff != "" {
		t.Errorf("sample mismatch (-want +got):\n%s", diff)
	}

	if err := client.ReportCameraError(ctx, "device busy"); err != nil {
		t.Fatalf("ReportCameraError failed: %v", err)
	}
	failed, ok := eng.lastPosted().(orchestrator.CameraFailed)
	if !ok {
		t.Fatalf("Expected CameraFailed, got %T", eng.lastPosted())
	}
	if !strings.Contains(failed.Err.Error(), "device busy") {
		t.Errorf("Expected cause to mention device busy, got %v", failed.Err)
	}
}

func TestConfigRoute(t *testing.T) {
	eng, client := newTestServer(t, Config{})
	ctx := context.Background()

	threshold := "4m"
	off := false
	fields, err := client.ApplyConfig(ctx, ConfigRequest{IdleThreshold: &threshold, CameraEnabled: &off, InvasionEnabled: &off})
	if err != nil {
		t.Fatalf("ApplyConfig failed: %v", err)
	}
	if diff := cmp.Diff([]string{"trigger.idle_threshold", "vision.camera_enabled", "invasion.enabled"}, fields); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
	applied, ok := eng.lastPosted().(orchestrator.ApplyRuntimeConfig)
	if !ok {
		t.Fatalf("Expected ApplyRuntimeConfig, got %T", eng.lastPosted())
	}
	if *applied.Patch.IdleThreshold != 4*time.Minute {
		t.Errorf("Expected 4m threshold, got %v", *applied.Patch.IdleThreshold)
	}

	bad := "10s"
	_, err = client.ApplyConfig(ctx, ConfigRequest{IdleThreshold: &bad})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("Expected 400 for a short threshold, got %v", err)
	}

	garbage := "soon"
	_, err = client.ApplyConfig(ctx, ConfigRequest{AutoDismiss: &garbage})
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("Expected 400 for an unparseable duration, got %v", err)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	eng := &fakeEngine{}
	srv := httptest.NewServer(NewServer(Config{}, eng, nil).Handler())
	defer srv.Close()

	if err := NewClient(srv.URL, srv.Client()).Health(context.Background()); err != nil {
		t.Fatalf("Health failed: %v", err)
	}

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 from /metrics, got %d", resp.StatusCode)
	}
}

func TestRateLimit(t *testing.T) {
	_, client := newTestServer(t, Config{RateLimit: 2})
	ctx := context.Background()

	var limited bool
	for range 5 {
		_, err := client.Status(ctx)
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Error("Expected requests beyond the limit to be rejected")
	}
}

func TestServe_Shutdown(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	s := NewServer(Config{}, &fakeEngine{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	client := NewClient(ln.Addr().String(), &http.Client{Transport: &http.Transport{DisableKeepAlives: true}})
	if err := client.Health(context.Background()); err != nil {
		t.Fatalf("Health failed: %v", err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
