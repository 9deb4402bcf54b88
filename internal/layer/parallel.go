package layer

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"

	"github.com/beetlebugorg/zoning/internal/errdefs"
)

// Source names one layer file to load.
type Source struct {
	Name string
	Path string

	// IDFields overrides LoadOptions.IDFields for this source.
	IDFields []string

	// Optional sources that do not exist yield a nil layer instead of an error.
	Optional bool
}

// LoadAll loads several layers concurrently with a bounded worker pool.
//
// Results are returned in the same order as sources. A missing Optional
// source leaves a nil entry. Any other error cancels outstanding work and
// is returned; layers that were already loaded are discarded.
//
// Example:
//
//	layers, err := layer.LoadAll(ctx, []layer.Source{
//	    {Name: "parcels", Path: "data/parcels.geojson", IDFields: []string{"APN"}},
//	    {Name: "zoning", Path: "data/zoning.geojson"},
//	}, opts, 0)
func LoadAll(ctx context.Context, sources []Source, opts LoadOptions, workers int) ([]*Layer, error) {
	if len(sources) == 0 {
		return []*Layer{}, nil
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(sources) {
		workers = len(sources)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type loadResult struct {
		index int
		layer *Layer
		err   error
	}

	jobs := make(chan int, len(sources))
	results := make(chan loadResult, len(sources))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range jobs {
				if err := ctx.Err(); err != nil {
					results <- loadResult{index: index, err: err}
					continue
				}
				src := sources[index]
				o := opts
				o.Name = src.Name
				if src.IDFields != nil {
					o.IDFields = src.IDFields
				}
				l, err := Load(src.Path, o)
				if err != nil && src.Optional && errors.Is(err, errdefs.ErrNotFound) {
					logger(opts).Warn("optional layer missing", "layer", src.Name, "path", src.Path)
					err = nil
				}
				results <- loadResult{index: index, layer: l, err: err}
			}
		}()
	}

	for i := range sources {
		jobs <- i
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	layers := make([]*Layer, len(sources))
	var firstErr error
	for r := range results {
		if r.err != nil {
			if firstErr == nil {
				firstErr = r.err
				cancel()
			}
			continue
		}
		layers[r.index] = r.layer
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return layers, nil
}

func logger(opts LoadOptions) *slog.Logger {
	if opts.Logger != nil {
		return opts.Logger
	}
	return slog.Default()
}
