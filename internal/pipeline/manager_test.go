package pipeline

import (
	"context"
	"testing"
	"time"

	"fluxbatch/internal/domain"
	"fluxbatch/internal/profile"
)

func newTestManager(t *testing.T, fetcher *scriptedFetcher, interval time.Duration) (*Manager, *orchFixture) {
	t.Helper()
	f := &orchFixture{
		uploader:  &fakeUploader{},
		submitter: &fakeSubmitter{},
		fetcher:   fetcher,
		recorder:  &fakeRecorder{},
	}
	f.orch = New(Options{
		Uploader:    f.uploader,
		Submitter:   f.submitter,
		Poller:      NewPoller(fetcher, interval, 10, testLogger()),
		Recorder:    f.recorder,
		Credentials: staticCredentials{token: "tok"},
		Builder:     profile.NewBuilder(profile.NewTemplateLoader(t.TempDir())),
		Logger:      testLogger(),
	})
	return NewManager(f.orch, testLogger()), f
}

func waitForIdle(t *testing.T, m *Manager) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if !m.Running() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("manager still running after deadline")
}

func TestManagerRejectsConcurrentRuns(t *testing.T) {
	// A huge poll interval parks the run until we cancel it.
	m, _ := newTestManager(t, &scriptedFetcher{}, time.Hour)
	m.Queue().Add(domain.WorkItem{Filename: "x"})

	plan := Plan{Profile: profile.Generate, Knobs: profile.Knobs{Prompt: "p"}}
	if err := m.Start(context.Background(), plan); err != nil {
		t.Fatalf("start: %v", err)
	}

	// The run goroutine needs a moment to reach the poll wait.
	deadline := time.Now().Add(5 * time.Second)
	for !m.Running() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	if err := m.Start(context.Background(), plan); err != domain.ErrRunActive {
		t.Fatalf("second start err = %v, want ErrRunActive", err)
	}

	if !m.Cancel() {
		t.Fatalf("cancel should report an active run")
	}
	waitForIdle(t, m)

	if st := m.Status(); st.Running || st.LastError != "" {
		t.Fatalf("status after cancel = %+v, want idle with no error", st)
	}
	item, _ := m.Queue().Get(m.Queue().IDs()[0])
	if item.Status != domain.StatusPending {
		t.Fatalf("item status = %s, want pending after cancel", item.Status)
	}
}

func TestManagerRecordsRunError(t *testing.T) {
	m, _ := newTestManager(t, succeedAfter(0), time.Millisecond)

	// Unknown profile fails the run before any item work.
	if err := m.Start(context.Background(), Plan{Profile: profile.Name("sharpen")}); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForIdle(t, m)

	if st := m.Status(); st.LastError == "" {
		t.Fatalf("expected last error to be recorded")
	}
}

func TestManagerSuccessfulRunClearsError(t *testing.T) {
	m, _ := newTestManager(t, succeedAfter(0), time.Millisecond)
	m.Queue().Add(domain.WorkItem{Filename: "x"})

	plan := Plan{Profile: profile.Generate, Knobs: profile.Knobs{Prompt: "p"}}
	if err := m.Start(context.Background(), plan); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForIdle(t, m)

	if st := m.Status(); st.LastError != "" {
		t.Fatalf("last error = %q, want empty", st.LastError)
	}
	if m.Cancel() {
		t.Fatalf("cancel with no active run should report false")
	}
}
