package handlers

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"fluxbatch/pkg/zip"
)

const archiveFilename = "processed_images.zip"

// DownloadArchive bundles every generated output of the current queue into a
// single zip. Output images are fetched from the provider's CDN on demand;
// an item whose fetch fails is skipped rather than sinking the whole archive.
func (a *App) DownloadArchive(w http.ResponseWriter, r *http.Request) {
	items := a.Batch.Queue().Snapshot()

	var assets []zip.Asset
	for _, item := range items {
		base := strings.TrimSuffix(item.Filename, filepath.Ext(item.Filename))
		if base == "" {
			base = item.ID
		}
		for i, url := range item.Outputs {
			data, err := a.fetchOutput(r, url)
			if err != nil {
				a.Logger.Warn().Err(err).Str("url", url).Msg("archive: skipping output")
				continue
			}
			assets = append(assets, zip.Asset{
				Filename: base + "_gen" + strconv.Itoa(i+1) + ".jpg",
				Data:     data,
			})
		}
	}
	if len(assets) == 0 {
		a.jsonError(w, http.StatusNotFound, "no generated outputs to download")
		return
	}

	archive, err := zip.Archive(assets)
	if err != nil {
		a.jsonError(w, http.StatusInternalServerError, "failed to build archive")
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+archiveFilename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(archive)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(archive); err != nil {
		a.Logger.Error().Err(err).Msg("archive: write response")
	}
}

func (a *App) fetchOutput(r *http.Request, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.Fetch.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
