package storage

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// DeleteAll removes every object in paths with at most concurrency deletes
// in flight. The first failure cancels the remaining deletes.
func DeleteAll(ctx context.Context, store ObjectStorage, paths []string, concurrency int) error {
	if concurrency <= 0 {
		concurrency = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, p := range paths {
		objectPath := p
		g.Go(func() error {
			if err := store.Delete(gctx, objectPath); err != nil {
				return fmt.Errorf("delete %s: %w", objectPath, err)
			}
			return nil
		})
	}

	return g.Wait()
}
