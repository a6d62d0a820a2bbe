package training

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"heart-predictor/internal/dataset"
)

// SourceOptions says where training data comes from.
type SourceOptions struct {
	Path   string
	URL    string
	Target string
	// Synthetic skips the file and the download and generates SyntheticRows records.
	Synthetic     bool
	SyntheticRows int
	Seed          int64
}

// Acquire loads Path, downloading it from URL first when it does not exist. If the download
// fails the synthetic dataset is used instead, with a warning.
func Acquire(ctx context.Context, dl *dataset.Downloader, opts SourceOptions) (*dataset.Dataset, error) {
	if opts.Synthetic {
		return synthetic(opts), nil
	}

	csvOpts := dataset.Options{Target: opts.Target}
	if _, err := os.Stat(opts.Path); err == nil {
		return dataset.LoadFile(opts.Path, csvOpts)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat dataset: %w", err)
	}

	if opts.URL == "" || dl == nil {
		return nil, fmt.Errorf("dataset %s not found and no download URL configured", opts.Path)
	}

	if err := dl.FetchTo(ctx, opts.URL, opts.Path); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn().Err(err).Msg("Could not download dataset, generating synthetic sample for demonstration")
		return synthetic(opts), nil
	}
	return dataset.LoadFile(opts.Path, csvOpts)
}

func synthetic(opts SourceOptions) *dataset.Dataset {
	rows := opts.SyntheticRows
	if rows <= 0 {
		rows = 303
	}
	return dataset.Synthetic(rows, opts.Seed)
}
