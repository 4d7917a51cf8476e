package pipeline

import (
	"context"
	"time"

	"fluxbatch/internal/profile"
	"fluxbatch/internal/providers/cloudinary"
	"fluxbatch/internal/providers/replicate"
)

// ReplicateJobs adapts the Replicate client to the Submitter and
// StatusFetcher capability contracts.
type ReplicateJobs struct {
	Client *replicate.Client
}

func (r ReplicateJobs) Submit(ctx context.Context, token string, req *profile.Request) (JobHandle, error) {
	prediction, err := r.Client.CreatePrediction(ctx, token, req.Version, req.Input)
	if err != nil {
		return JobHandle{}, err
	}
	return JobHandle{ID: prediction.ID, CreatedAt: time.Now()}, nil
}

func (r ReplicateJobs) Fetch(ctx context.Context, token, jobID string) (JobUpdate, error) {
	prediction, err := r.Client.GetPrediction(ctx, token, jobID)
	if err != nil {
		return JobUpdate{}, err
	}
	return JobUpdate{
		Status: prediction.Status,
		Output: prediction.Output,
		Error:  prediction.Error,
	}, nil
}

// CloudinaryUploader adapts the Cloudinary client to the Uploader contract.
type CloudinaryUploader struct {
	Client *cloudinary.Uploader
}

func (c CloudinaryUploader) Upload(ctx context.Context, data []byte, filename, mimeType string) (string, error) {
	result, err := c.Client.Upload(ctx, data, filename, mimeType)
	if err != nil {
		return "", err
	}
	return result.SecureURL, nil
}
