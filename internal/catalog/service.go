// Package catalog serves the product listing the storefront sells from.
package catalog

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/juzeexs/lanches-bebidas/internal/domain"
	"github.com/juzeexs/lanches-bebidas/internal/search"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const DefaultCacheTTL = time.Minute

// Service caches the product listing and searches it.
type Service struct {
	repo   RepoInterface
	scorer *search.Scorer
	ttl    time.Duration
	logger *zap.Logger

	sfg      singleflight.Group // Prevents cache stampede
	mu       sync.RWMutex
	cached   []domain.Product
	cachedAt time.Time
	now      func() time.Time
}

func NewService(repo RepoInterface, scorer *search.Scorer, ttl time.Duration, logger *zap.Logger) *Service {
	if scorer == nil {
		scorer = search.Default()
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:   repo,
		scorer: scorer,
		ttl:    ttl,
		logger: logger.Named("catalog"),
		now:    time.Now,
	}
}

// List returns every product in catalog order.
func (s *Service) List(ctx context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	if s.cached != nil && s.now().Sub(s.cachedAt) < s.ttl {
		products := s.cached
		s.mu.RUnlock()
		return products, nil
	}
	s.mu.RUnlock()

	v, err, _ := s.sfg.Do("products", func() (interface{}, error) {
		products, err := s.repo.ListProducts(ctx)
		if err != nil {
			s.logger.Error("list products failed", zap.Error(err))
			return nil, err
		}
		if products == nil {
			products = []domain.Product{}
		}

		s.mu.Lock()
		s.cached = products
		s.cachedAt = s.now()
		s.mu.Unlock()
		return products, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Product), nil
}

func (s *Service) Get(ctx context.Context, id int64) (domain.Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// Search ranks the catalog against query. Short queries return the whole
// catalog in order.
func (s *Service) Search(ctx context.Context, query string) ([]domain.Product, error) {
	products, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]search.Record, len(products))
	for i, p := range products {
		records[i] = search.Record{
			Title:       p.Name,
			Description: strings.TrimSpace(p.Description + " " + p.Category),
		}
	}

	matches := s.scorer.Filter(query, records)
	out := make([]domain.Product, 0, len(matches))
	for _, m := range matches {
		out = append(out, products[m.Index])
	}
	return out, nil
}
