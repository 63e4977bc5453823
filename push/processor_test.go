package push

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-loop-client/core"
)

type stubReader struct {
	versions []int
	err      error
	calls    []core.CallSummary
}

func (r *stubReader) CallsInfo(_ context.Context, req core.CallsInfoRequest) ([]core.CallSummary, error) {
	if req.Version != nil {
		r.versions = append(r.versions, *req.Version)
	}
	if r.err != nil {
		return nil, r.err
	}
	return r.calls, nil
}

func TestParseNotification(t *testing.T) {
	n, err := ParseNotification([]byte("version=42\n"))
	if err != nil || n.Version != 42 {
		t.Fatalf("expected version 42, got %#v (%v)", n, err)
	}
	if _, err := ParseNotification([]byte("other=1")); !core.IsMissingParameter(err) {
		t.Fatalf("expected missing version error, got %v", err)
	}
	for _, body := range []string{"version=abc", "version=-3", "%zz"} {
		if _, err := ParseNotification([]byte(body)); core.MapError(err).TextCode != core.ErrorInvalidData {
			t.Fatalf("expected invalid data for %q, got %v", body, err)
		}
	}
}

func TestProcessor_FetchesNewVersionsOnly(t *testing.T) {
	reader := &stubReader{calls: []core.CallSummary{{CallID: "c1"}}}
	var handled []int
	processor, err := NewProcessor(reader, func(_ context.Context, version int, calls []core.CallSummary) error {
		if len(calls) != 1 || calls[0].CallID != "c1" {
			t.Errorf("unexpected calls %#v", calls)
		}
		handled = append(handled, version)
		return nil
	})
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}

	for _, version := range []int{3, 3, 2, 5} {
		if _, err := processor.Process(context.Background(), Notification{Version: version}); err != nil {
			t.Fatalf("process %d: %v", version, err)
		}
	}
	if len(reader.versions) != 2 || reader.versions[0] != 3 || reader.versions[1] != 5 {
		t.Fatalf("unexpected lookups %#v", reader.versions)
	}
	if len(handled) != 2 {
		t.Fatalf("expected two handled versions, got %#v", handled)
	}
	if last, ok := processor.LastVersion(); !ok || last != 5 {
		t.Fatalf("expected last version 5, got %d (%v)", last, ok)
	}
}

func TestProcessor_StaleOutcomeIsMarked(t *testing.T) {
	processor, _ := NewProcessor(&stubReader{}, nil)
	_, _ = processor.Process(context.Background(), Notification{Version: 1})

	outcome, err := processor.Process(context.Background(), Notification{Version: 1})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if outcome.Processed || outcome.Metadata["stale"] != true {
		t.Fatalf("expected stale outcome, got %#v", outcome)
	}
}

func TestProcessor_FailedLookupIsRetried(t *testing.T) {
	reader := &stubReader{err: errors.New("offline")}
	processor, _ := NewProcessor(reader, nil)

	if _, err := processor.Process(context.Background(), Notification{Version: 7}); err == nil {
		t.Fatalf("expected lookup error")
	}
	if _, ok := processor.LastVersion(); ok {
		t.Fatalf("failed lookup must not advance the version")
	}

	reader.err = nil
	outcome, err := processor.Process(context.Background(), Notification{Version: 7})
	if err != nil || !outcome.Processed {
		t.Fatalf("expected retry to process, got %#v (%v)", outcome, err)
	}
}

func TestProcessor_HandlerErrorIsReturned(t *testing.T) {
	boom := errors.New("boom")
	processor, _ := NewProcessor(&stubReader{}, func(context.Context, int, []core.CallSummary) error {
		return boom
	})
	if _, err := processor.Process(context.Background(), Notification{Version: 1}); !errors.Is(err, boom) {
		t.Fatalf("expected handler error, got %v", err)
	}
}

func TestNewProcessor_RequiresReader(t *testing.T) {
	if _, err := NewProcessor(nil, nil); !core.IsMissingParameter(err) {
		t.Fatalf("expected missing reader error, got %v", err)
	}
}

func TestBurstController_Modes(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	coalesce := NewBurstController(BurstOptions{Mode: BurstModeCoalesce, Window: time.Second, Now: clock})
	if ok, _ := coalesce.Allow(Notification{Version: 1}); !ok {
		t.Fatalf("expected first notification allowed")
	}
	now = now.Add(500 * time.Millisecond)
	ok, metadata := coalesce.Allow(Notification{Version: 1})
	if ok || metadata["coalesced"] != true {
		t.Fatalf("expected coalesced drop, got %v %#v", ok, metadata)
	}
	now = now.Add(600 * time.Millisecond)
	if ok, _ := coalesce.Allow(Notification{Version: 1}); !ok {
		t.Fatalf("expected coalesce window to close")
	}

	debounce := NewBurstController(BurstOptions{Mode: "DEBOUNCE", Window: time.Second, Now: clock})
	_, _ = debounce.Allow(Notification{Version: 2})
	now = now.Add(800 * time.Millisecond)
	if ok, metadata := debounce.Allow(Notification{Version: 2}); ok || metadata["debounced"] != true {
		t.Fatalf("expected debounced drop")
	}
	now = now.Add(800 * time.Millisecond)
	if ok, _ := debounce.Allow(Notification{Version: 2}); ok {
		t.Fatalf("expected debounce window to restart on drop")
	}

	none := NewBurstController(BurstOptions{Mode: "unknown"})
	for i := 0; i < 3; i++ {
		if ok, _ := none.Allow(Notification{Version: 9}); !ok {
			t.Fatalf("expected none mode to allow everything")
		}
	}
}

func TestProcessor_RedeliveryAfterFailedLookupIsNotCoalesced(t *testing.T) {
	reader := &stubReader{err: errors.New("offline")}
	burst := NewBurstController(BurstOptions{Mode: BurstModeCoalesce, Window: time.Minute})
	processor, _ := NewProcessor(reader, nil, WithBurstController(burst))

	_, err := processor.Process(context.Background(), Notification{Version: 4})
	if err == nil {
		t.Fatalf("expected lookup error")
	}
	if got := core.MapError(err).TextCode; got != core.ErrorExternalFailure {
		t.Fatalf("expected external failure text code, got %q", got)
	}

	reader.err = nil
	outcome, err := processor.Process(context.Background(), Notification{Version: 4})
	if err != nil {
		t.Fatalf("process redelivery: %v", err)
	}
	if !outcome.Processed {
		t.Fatalf("expected redelivery to be processed, got %#v", outcome)
	}
	if len(reader.versions) != 2 {
		t.Fatalf("expected two lookups, got %d", len(reader.versions))
	}
}

func TestBurstController_ForgetReopensWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	burst := NewBurstController(BurstOptions{Mode: BurstModeCoalesce, Window: time.Minute, Now: func() time.Time { return now }})
	if ok, _ := burst.Allow(Notification{Version: 8}); !ok {
		t.Fatalf("expected first delivery allowed")
	}
	if ok, _ := burst.Allow(Notification{Version: 8}); ok {
		t.Fatalf("expected repeat inside the window to be dropped")
	}
	burst.Forget(8)
	if ok, _ := burst.Allow(Notification{Version: 8}); !ok {
		t.Fatalf("expected forgotten version to be allowed")
	}
}
