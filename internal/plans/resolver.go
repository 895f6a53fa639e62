package plans

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/ErezMalka/bite-checkout-signing/internal/domain"
	"golang.org/x/sync/singleflight"
)

// PlanRow is one stored payment-plan entry.
type PlanRow struct {
	ProductID    int64
	Installments int
	SurchargePct float64
}

// Store is the external plan store. Implementations may fail; the resolver
// degrades to the default schedule instead of propagating the error.
type Store interface {
	FetchPlans(ctx context.Context, productIDs []int64) ([]PlanRow, error)
}

type Resolver struct {
	store Store
	cache ScheduleCache
	sfg   singleflight.Group // Prevents duplicate batch fetches for the same product set
}

func NewResolver(store Store, cache ScheduleCache) *Resolver {
	return &Resolver{
		store: store,
		cache: cache,
	}
}

// Resolve returns a schedule for every requested product. Products without
// stored plan rows get the default schedule, and if the store fetch fails
// every missing product degrades to the default schedule. The returned map
// always has an entry per requested product; Resolve never fails.
func (r *Resolver) Resolve(ctx context.Context, productIDs []int64) map[int64]domain.PaymentPlanSchedule {
	result := make(map[int64]domain.PaymentPlanSchedule, len(productIDs))

	var missing []int64
	for _, id := range productIDs {
		if _, seen := result[id]; seen {
			continue
		}
		if r.cache != nil {
			schedule, err := r.cache.Get(ctx, id)
			if err == nil {
				result[id] = schedule
				continue
			}
			if !errors.Is(err, ErrCacheMiss) {
				log.Printf("plan cache get error: %v \n", err)
			}
		}
		missing = append(missing, id)
	}

	if len(missing) == 0 {
		return result
	}

	v, err, _ := r.sfg.Do(batchKey(missing), func() (interface{}, error) {
		rows, errFetch := r.store.FetchPlans(ctx, missing)
		if errFetch != nil {
			return nil, errFetch
		}
		return groupRows(rows), nil
	})

	if err != nil {
		// Degraded mode: the checkout continues on the default schedule.
		log.Printf("plan fetch failed, using default schedule: %v \n", err)
		for _, id := range missing {
			result[id] = domain.DefaultSchedule()
		}
		return result
	}

	fetched := v.(map[int64]domain.PaymentPlanSchedule)
	for _, id := range missing {
		schedule, ok := fetched[id]
		if !ok {
			schedule = domain.DefaultSchedule()
		}
		result[id] = schedule

		if r.cache != nil {
			id, schedule := id, schedule
			go func() {
				cacheCtx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				if errSet := r.cache.Set(cacheCtx, id, schedule); errSet != nil {
					log.Printf("plan cache set error: %v \n", errSet)
				}
			}()
		}
	}

	return result
}

func groupRows(rows []PlanRow) map[int64]domain.PaymentPlanSchedule {
	grouped := make(map[int64]domain.PaymentPlanSchedule)
	for _, row := range rows {
		if grouped[row.ProductID] == nil {
			grouped[row.ProductID] = make(domain.PaymentPlanSchedule)
		}
		grouped[row.ProductID][row.Installments] = row.SurchargePct
	}
	return grouped
}

func batchKey(ids []int64) string {
	sorted := make([]int64, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, ",")
}
