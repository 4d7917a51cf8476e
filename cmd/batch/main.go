package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fluxbatch/internal/domain"
	"fluxbatch/internal/infra"
	"fluxbatch/internal/pipeline"
	"fluxbatch/internal/profile"
	"fluxbatch/internal/providers/cloudinary"
	"fluxbatch/internal/providers/replicate"
	"fluxbatch/internal/storage"
)

func main() {
	var (
		profileName = flag.String("profile", string(profile.Canny), "processing profile: canny, upscale or generate")
		prompt      = flag.String("prompt", "", "text prompt for prompt-driven profiles")
		variants    = flag.Int("variants", 1, "outputs to generate per item")
		model       = flag.String("model", "", "model variant for the generate profile")
		steps       = flag.Int("steps", 0, "inference steps, 0 uses the profile default")
		guidance    = flag.Float64("guidance", 0, "guidance scale, 0 uses the profile default")
		aspect      = flag.String("aspect", "", "aspect ratio for the generate profile")
		tileSize    = flag.Int("tile", 0, "upscale tile size, 0 uses the profile default")
		denoise     = flag.Int("denoise", 0, "upscale denoise strength in percent")
		outDir      = flag.String("out", "", "download produced images into this directory")
	)
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	spec, err := profile.Lookup(profile.Name(*profileName))
	if err != nil {
		logger.Fatal().Str("profile", *profileName).Msg("batch: unknown profile")
	}

	queue := domain.NewQueue()
	for _, path := range flag.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Fatal().Err(err).Str("path", path).Msg("batch: failed to read input")
		}
		queue.Add(domain.WorkItem{
			Filename:   filepath.Base(path),
			MIME:       mimeTypeOf(path),
			SourceData: data,
		})
	}
	if queue.Len() == 0 {
		if spec.NeedsSource {
			logger.Fatal().Msg("batch: profile requires at least one input image")
		}
		// Prompt-only profiles still need one item to drive the run.
		queue.Add(domain.WorkItem{Filename: "generated"})
	}

	uploads := cloudinary.NewUploader(cloudinary.Options{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		BaseURL:   cfg.CloudinaryBaseURL,
		Logger:    &logger,
	})
	predictions := replicate.NewClient(replicate.Options{
		BaseURL: cfg.ReplicateBaseURL,
		Logger:  &logger,
	})
	credentials := storage.NewMemoryCredentials(cfg.ReplicateToken)
	gallery := storage.NewMemoryGallery(cfg.GalleryMaxEntries)

	orch := pipeline.New(pipeline.Options{
		Uploader:  pipeline.CloudinaryUploader{Client: uploads},
		Submitter: pipeline.ReplicateJobs{Client: predictions},
		Poller: pipeline.NewPoller(
			pipeline.ReplicateJobs{Client: predictions},
			cfg.PollInterval,
			cfg.PollMaxAttempts,
			logger,
		),
		Recorder:    gallery,
		Credentials: credentials,
		Builder:     profile.NewBuilder(profile.NewTemplateLoader(cfg.TemplateDir)),
		Logger:      logger,
	})

	plan := pipeline.Plan{
		Profile:  spec.Name,
		Variants: *variants,
		Knobs: profile.Knobs{
			Prompt:         *prompt,
			Steps:          *steps,
			Guidance:       *guidance,
			Model:          *model,
			AspectRatio:    *aspect,
			TileSize:       *tileSize,
			DenoisePercent: *denoise,
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sig := pipeline.NewSignal()
	go func() {
		<-ctx.Done()
		sig.Cancel()
	}()

	start := time.Now()
	runErr := orch.Run(context.Background(), queue, plan, sig)
	switch {
	case runErr == nil:
	case errors.Is(runErr, pipeline.ErrCanceled):
		logger.Info().Msg("batch: run canceled")
	default:
		logger.Fatal().Err(runErr).Msg("batch: run failed")
	}

	succeeded, failed, outputs := summarize(queue)
	logger.Info().
		Int("succeeded", succeeded).
		Int("failed", failed).
		Int("outputs", outputs).
		Dur("elapsed", time.Since(start)).
		Msg("batch: run finished")

	if *outDir != "" && outputs > 0 {
		if err := download(context.Background(), queue, *outDir, logger); err != nil {
			logger.Fatal().Err(err).Msg("batch: download failed")
		}
	}

	if failed > 0 {
		os.Exit(1)
	}
}

func summarize(queue *domain.Queue) (succeeded, failed, outputs int) {
	for _, item := range queue.Snapshot() {
		switch item.Status {
		case domain.StatusSucceeded:
			succeeded++
		case domain.StatusFailed:
			failed++
		}
		outputs += len(item.Outputs)
	}
	return succeeded, failed, outputs
}

func download(ctx context.Context, queue *domain.Queue, dir string, logger infra.Logger) error {
	store, err := storage.NewFileStore(dir)
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: 2 * time.Minute}

	for _, item := range queue.Snapshot() {
		base := strings.TrimSuffix(item.Filename, filepath.Ext(item.Filename))
		if base == "" {
			base = item.ID
		}
		for i, url := range item.Outputs {
			data, err := fetch(ctx, client, url)
			if err != nil {
				logger.Warn().Err(err).Str("url", url).Msg("batch: skipping output download")
				continue
			}
			name := base + "_gen" + strconv.Itoa(i+1) + ".jpg"
			path, err := store.Write(ctx, name, data)
			if err != nil {
				return err
			}
			logger.Info().Str("path", path).Msg("batch: saved output")
		}
	}
	return nil
}

func fetch(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func mimeTypeOf(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "application/octet-stream"
}
