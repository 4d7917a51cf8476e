package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"fluxbatch/internal/domain"
	"fluxbatch/internal/infra"
	"fluxbatch/internal/profile"
)

// Plan describes one batch run: which profile drives the submission payload,
// the user's knobs, and how many variants to generate per item.
type Plan struct {
	Profile  profile.Name  `json:"profile"`
	Knobs    profile.Knobs `json:"knobs"`
	Variants int           `json:"variants"`
}

// Options collects the orchestrator's collaborators.
type Options struct {
	Uploader    Uploader
	Submitter   Submitter
	Poller      *Poller
	Recorder    Recorder
	Credentials CredentialSource
	Builder     *profile.Builder
	Logger      infra.Logger
}

// Orchestrator drives each pending work item through
// upload -> submit -> poll -> record, strictly in that order, one item at a
// time in queue order. It is the queue's single writer while a run is active.
type Orchestrator struct {
	uploader    Uploader
	submitter   Submitter
	poller      *Poller
	recorder    Recorder
	credentials CredentialSource
	builder     *profile.Builder
	logger      infra.Logger
}

func New(opts Options) *Orchestrator {
	return &Orchestrator{
		uploader:    opts.Uploader,
		submitter:   opts.Submitter,
		poller:      opts.Poller,
		recorder:    opts.Recorder,
		credentials: opts.Credentials,
		builder:     opts.Builder,
		logger:      opts.Logger,
	}
}

// Run processes every pending item in the queue. Items already succeeded or
// failed are skipped, so a re-run retries only what the user reset or added.
// A failure on one item is recorded on that item and does not stop the run;
// cancellation stops the whole run, resetting the in-flight item to pending.
// The credential is resolved eagerly so a misconfigured batch fails before
// any network activity.
func (o *Orchestrator) Run(ctx context.Context, queue *domain.Queue, plan Plan, sig *Signal) error {
	spec, err := profile.Lookup(plan.Profile)
	if err != nil {
		return err
	}
	token, err := o.credentials.Token(ctx)
	if err != nil {
		return fmt.Errorf("resolve credential: %w", err)
	}
	if strings.TrimSpace(token) == "" {
		return domain.ErrMissingCredential
	}
	variants := plan.Variants
	if variants < 1 {
		variants = 1
	}

	o.logger.Info().
		Str("profile", string(plan.Profile)).
		Int("variants", variants).
		Int("queued", queue.Len()).
		Msg("batch: run started")

	for _, id := range queue.IDs() {
		if sig.Canceled() {
			return ErrCanceled
		}
		item, ok := queue.Get(id)
		if !ok || item.Status != domain.StatusPending {
			continue
		}

		if err := o.processItem(ctx, queue, item, spec, plan, token, variants, sig); err != nil {
			if errors.Is(err, ErrCanceled) {
				o.resetItem(queue, id)
				o.logger.Info().Str("item_id", id).Msg("batch: run canceled, item reset to pending")
				return ErrCanceled
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				o.resetItem(queue, id)
				return err
			}
			o.failItem(queue, id, err)
			continue
		}
	}

	o.logger.Info().Msg("batch: run finished")
	return nil
}

func (o *Orchestrator) processItem(ctx context.Context, queue *domain.Queue, item domain.WorkItem, spec profile.Spec, plan Plan, token string, variants int, sig *Signal) error {
	o.logger.Info().
		Str("item_id", item.ID).
		Str("filename", item.Filename).
		Msg("batch: picked item")

	remoteURL := item.RemoteURL
	if item.HasSource() && remoteURL == "" {
		if sig.Canceled() {
			return ErrCanceled
		}
		o.setStatus(queue, item.ID, domain.StatusUploading)
		url, err := o.uploader.Upload(ctx, item.SourceData, item.Filename, item.MIME)
		if err != nil {
			return fmt.Errorf("upload asset: %w", err)
		}
		remoteURL = url
		queue.Mutate(item.ID, func(w *domain.WorkItem) {
			w.RemoteURL = url
			w.Status = domain.StatusUploaded
		})
		o.record(ctx, domain.GalleryEntry{
			URL:      url,
			Filename: item.Filename,
			Kind:     domain.KindUploaded,
			Tool:     spec.Tool,
		})
	}
	if spec.NeedsSource && remoteURL == "" {
		return fmt.Errorf("profile %s: item has no source image", spec.Name)
	}

	req, err := o.builder.Build(plan.Profile, plan.Knobs, remoteURL)
	if err != nil {
		return fmt.Errorf("build request payload: %w", err)
	}
	queue.Mutate(item.ID, func(w *domain.WorkItem) {
		w.Params = req.Input
	})

	produced := 0
	for v := 1; v <= variants; v++ {
		if sig.Canceled() {
			return ErrCanceled
		}

		o.setStatus(queue, item.ID, domain.StatusSubmitting)
		handle, err := o.submitter.Submit(ctx, token, req)
		if err != nil {
			return fmt.Errorf("submit job: %w", err)
		}

		o.setStatus(queue, item.ID, domain.StatusPolling)
		outputs, err := o.poller.Poll(ctx, token, handle, sig)
		if err != nil {
			if errors.Is(err, ErrCanceled) {
				return ErrCanceled
			}
			return fmt.Errorf("variant %d: %w", v, err)
		}

		// Publish partial outputs as they land so observers can render
		// incremental progress.
		queue.Mutate(item.ID, func(w *domain.WorkItem) {
			w.Outputs = append(w.Outputs, outputs...)
		})
		for _, url := range outputs {
			produced++
			o.record(ctx, domain.GalleryEntry{
				URL:      url,
				Filename: generatedFilename(item.Filename, produced),
				Kind:     domain.KindGenerated,
				Tool:     spec.Tool,
				Prompt:   strings.TrimSpace(plan.Knobs.Prompt),
			})
		}
	}

	if produced == 0 {
		return errors.New("job succeeded without outputs")
	}
	o.setStatus(queue, item.ID, domain.StatusSucceeded)
	o.logger.Info().
		Str("item_id", item.ID).
		Int("outputs", produced).
		Msg("batch: item succeeded")
	return nil
}

// record persists a gallery entry; a store failure is logged but never fails
// the item that produced the artifact.
func (o *Orchestrator) record(ctx context.Context, entry domain.GalleryEntry) {
	entry.ID = uuid.NewString()
	entry.Timestamp = time.Now()
	if err := o.recorder.Add(ctx, entry); err != nil {
		o.logger.Error().Err(err).
			Str("url", entry.URL).
			Msg("batch: record gallery entry failed")
	}
}

func (o *Orchestrator) setStatus(queue *domain.Queue, id string, status domain.ItemStatus) {
	queue.Mutate(id, func(w *domain.WorkItem) {
		w.Status = status
	})
}

// resetItem returns a canceled in-flight item to pending so a resumed run
// retries it. Outputs already produced stay recorded.
func (o *Orchestrator) resetItem(queue *domain.Queue, id string) {
	queue.Mutate(id, func(w *domain.WorkItem) {
		w.Status = domain.StatusPending
		w.Err = ""
	})
}

func (o *Orchestrator) failItem(queue *domain.Queue, id string, err error) {
	queue.Mutate(id, func(w *domain.WorkItem) {
		w.Status = domain.StatusFailed
		w.Err = err.Error()
	})
	o.logger.Error().Err(err).Str("item_id", id).Msg("batch: item failed")
}

func generatedFilename(source string, n int) string {
	base := strings.TrimSuffix(source, filepath.Ext(source))
	if base == "" {
		base = "generated"
	}
	return fmt.Sprintf("%s_gen%d.jpg", base, n)
}
