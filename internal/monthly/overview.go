package monthly

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"saldo/internal/core"
	"saldo/internal/log"
)

// YearOverview summarizes every month of year that has data, in calendar
// order. Online the months are fetched concurrently; months the remote
// store cannot serve fall back to the offline cache and the remote error
// is returned alongside the partial result. Offline everything comes from
// the offline cache.
func YearOverview(ctx context.Context, deps Deps, year int, online bool) ([]core.MonthOverview, error) {
	deps = deps.withDefaults()
	if deps.Identity == nil {
		return nil, nil
	}
	user, ok := deps.Identity.UserID(ctx)
	if !ok || user == "" {
		return nil, nil
	}
	if err := (core.MonthKey{UserID: user, Year: year, Month: 1}).Validate(); err != nil {
		return nil, err
	}

	var (
		mu       sync.Mutex
		found    [12]*core.MonthDataset
		failures []error
	)
	fromCache := func(k core.MonthKey) {
		d, ok, err := deps.Cache.Get(k)
		if err != nil || !ok {
			return
		}
		mu.Lock()
		found[k.Month-1] = &d
		mu.Unlock()
	}

	if !online {
		for m := 1; m <= 12; m++ {
			fromCache(core.MonthKey{UserID: user, Year: year, Month: m})
		}
		return collect(year, found), nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for m := 1; m <= 12; m++ {
		k := core.MonthKey{UserID: user, Year: year, Month: m}
		g.Go(func() error {
			rctx, cancel := context.WithTimeout(gctx, deps.Timeout)
			defer cancel()
			d, err := deps.Remote.GetMonth(rctx, k)
			switch {
			case errors.Is(err, core.ErrNotFound):
				return nil
			case err != nil:
				// one unreachable month must not cancel the others
				mu.Lock()
				failures = append(failures, fmt.Errorf("%s: %w", k, err))
				mu.Unlock()
				fromCache(k)
				return nil
			}
			d = core.Recompute(d)
			mu.Lock()
			found[m-1] = &d
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := collect(year, found)
	if len(failures) > 0 {
		err := fmt.Errorf("%w: %w", core.ErrRemoteUnavailable, errors.Join(failures...))
		deps.Logger.WarnContext(ctx, "Year overview served partly from offline cache",
			log.FieldUserID, user, log.FieldYear, year, "failed_months", len(failures))
		return out, err
	}
	return out, nil
}

func collect(year int, found [12]*core.MonthDataset) []core.MonthOverview {
	out := make([]core.MonthOverview, 0, 12)
	for i, d := range found {
		if d != nil {
			out = append(out, core.Summarize(year, i+1, *d))
		}
	}
	return out
}
