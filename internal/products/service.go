package products

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/backoffice-backend/internal/expiry"
	"github.com/angelmondragon/backoffice-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/backoffice-backend/pkg/errors"
	"github.com/angelmondragon/backoffice-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/backoffice-backend/pkg/redis"
	"github.com/angelmondragon/backoffice-backend/pkg/types"
)

const DefaultCacheTTL = 5 * time.Minute

type productStore interface {
	FindByCode(ctx context.Context, code string) (*models.Product, error)
	ListExpiring(ctx context.Context, until time.Time) ([]models.Product, error)
}

// Cache is the subset of the Redis client used for cache-aside lookups.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	ProductCodeKey(code string) string
}

type ServiceParams struct {
	Repo     productStore
	Cache    Cache
	CacheTTL time.Duration
	WarnDays int
	Logger   *logger.Logger
	Now      func() time.Time
}

// Service resolves scan codes against the catalog.
type Service struct {
	repo     productStore
	cache    Cache
	cacheTTL time.Duration
	warnDays int
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "product repository required")
	}
	ttl := params.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	warnDays := params.WarnDays
	if warnDays <= 0 {
		warnDays = expiry.DefaultWarnDays
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:     params.Repo,
		cache:    params.Cache,
		cacheTTL: ttl,
		warnDays: warnDays,
		logg:     params.Logger,
		now:      now,
	}, nil
}

// LookupByCode returns the product record for a scan code. Unknown and
// inactive products are NOT_FOUND; storage failures are DEPENDENCY_ERROR.
func (s *Service) LookupByCode(ctx context.Context, code string) (types.ProductRecord, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return types.ProductRecord{}, pkgerrors.New(pkgerrors.CodeValidation, "code is required")
	}

	if record, ok := s.cached(ctx, code); ok {
		return record, nil
	}

	product, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.ProductRecord{}, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return types.ProductRecord{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find product by code")
	}
	if !product.IsActive {
		return types.ProductRecord{}, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}

	record := recordFromModel(product)
	s.store(ctx, code, record)
	return record, nil
}

// ListExpiring returns active products expiring within withinDays days,
// including those already expired. A non-positive window uses the
// configured warning threshold.
func (s *Service) ListExpiring(ctx context.Context, withinDays int) ([]ExpiringProduct, error) {
	if withinDays <= 0 {
		withinDays = s.warnDays
	}
	now := s.now()
	y, m, d := now.Date()
	until := time.Date(y, m, d, 0, 0, 0, 0, now.Location()).AddDate(0, 0, withinDays+1).UTC()

	rows, err := s.repo.ListExpiring(ctx, until)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list expiring products")
	}

	out := make([]ExpiringProduct, 0, len(rows))
	for i := range rows {
		p := &rows[i]
		if p.ExpiresAt == nil {
			continue
		}
		days := expiry.DaysRemaining(now, *p.ExpiresAt)
		if days > withinDays {
			continue
		}
		out = append(out, ExpiringProduct{
			ID:            p.ID,
			Code:          p.Code,
			Name:          p.Name,
			ExpiresAt:     *p.ExpiresAt,
			DaysRemaining: days,
			Status:        expiry.Classify(days, s.warnDays),
			OnHandQty:     onHand(p),
		})
	}
	return out, nil
}

func (s *Service) cached(ctx context.Context, code string) (types.ProductRecord, bool) {
	if s.cache == nil {
		return types.ProductRecord{}, false
	}
	raw, err := s.cache.Get(ctx, s.cache.ProductCodeKey(code))
	if err != nil {
		if !pkgredis.IsMiss(err) {
			s.warn(ctx, code, "product cache read failed", err)
		}
		return types.ProductRecord{}, false
	}
	var record types.ProductRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		s.warn(ctx, code, "product cache entry unreadable", err)
		return types.ProductRecord{}, false
	}
	return record, true
}

func (s *Service) store(ctx context.Context, code string, record types.ProductRecord) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, s.cache.ProductCodeKey(code), string(payload), s.cacheTTL); err != nil {
		s.warn(ctx, code, "product cache write failed", err)
	}
}

func (s *Service) warn(ctx context.Context, code, msg string, err error) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"scan_code": code,
		"error":     err.Error(),
	})
	s.logg.Warn(logCtx, msg)
}
