// Package resolve maps a citizen's district text to the representative the
// message should be routed to. Matching is deliberately loose: districts are
// free text typed on a feature phone, so either side containing the other
// counts as a match.
package resolve

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/civcon/ussd-engine/internal/model"
	"github.com/civcon/ussd-engine/internal/repo"
)

const cacheKey = "ussd:mps"

type Resolver struct {
	rdb      *redis.Client
	mps      repo.MPRepository
	cacheTTL time.Duration
	fallback model.Recipient
}

func New(rdb *redis.Client, mps repo.MPRepository, cacheTTL time.Duration, fallbackName, fallbackPhone string) *Resolver {
	return &Resolver{
		rdb:      rdb,
		mps:      mps,
		cacheTTL: cacheTTL,
		fallback: model.Recipient{
			Name:     fallbackName,
			Phone:    fallbackPhone,
			Fallback: true,
		},
	}
}

// Resolve finds the best-matching representative for district, or the
// configured fallback identity. It never returns an error: any failure to
// load the MP list degrades to the fallback so the conversation can finish.
func (r *Resolver) Resolve(ctx context.Context, district string) model.Recipient {
	mps, err := r.loadMPs(ctx)
	if err != nil {
		slog.Warn("mp list unavailable, routing to fallback", "err", err)
		return r.fallback
	}

	want := normalizeDistrict(district)
	if want == "" {
		return r.fallback
	}

	for _, mp := range mps {
		have := normalizeDistrict(mp.DistrictID)
		if have == "" {
			continue
		}
		if strings.Contains(have, want) || strings.Contains(want, have) {
			id := mp.ID
			return model.Recipient{
				MPID:  &id,
				Name:  mp.Name,
				Phone: mp.PhoneNumber,
			}
		}
	}
	return r.fallback
}

// Refresh forces the cached MP list to be rebuilt from the database.
// Called periodically by the scheduler.
func (r *Resolver) Refresh(ctx context.Context) error {
	mps, err := r.mps.ListAll(ctx)
	if err != nil {
		return err
	}
	return r.cacheSet(ctx, mps)
}

func (r *Resolver) loadMPs(ctx context.Context) ([]model.MP, error) {
	raw, err := r.rdb.Get(ctx, cacheKey).Bytes()
	if err == nil {
		var mps []model.MP
		if err := json.Unmarshal(raw, &mps); err == nil {
			return mps, nil
		}
		slog.Warn("mp cache undecodable, falling back to database")
	} else if err != redis.Nil {
		slog.Warn("mp cache read failed, falling back to database", "err", err)
	}

	mps, err := r.mps.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.cacheSet(ctx, mps); err != nil {
		slog.Warn("mp cache write failed", "err", err)
	}
	return mps, nil
}

func (r *Resolver) cacheSet(ctx context.Context, mps []model.MP) error {
	b, err := json.Marshal(mps)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, cacheKey, b, r.cacheTTL).Err()
}

func normalizeDistrict(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "district", "")
	return strings.TrimSpace(s)
}
