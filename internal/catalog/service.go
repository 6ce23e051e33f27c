package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aromahaus/storefront-client/pkg/cache"
	"github.com/aromahaus/storefront-client/pkg/logger"
)

// Product is the catalog card shape rendered in product grids.
type Product struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	Price      decimal.Decimal `json:"price"`
	Images     []string        `json:"images,omitempty"`
	Sizes      []string        `json:"sizes,omitempty"`
	Gender     string          `json:"gender,omitempty"`
	Category   string          `json:"category,omitempty"`
	InStock    bool            `json:"inStock"`
	IsTrending bool            `json:"isTrending,omitempty"`
	IsFeatured bool            `json:"isFeatured,omitempty"`
	Rating     float64         `json:"rating,omitempty"`
}

// HeroBanner is one rotating banner on the home screen.
type HeroBanner struct {
	ID       string `json:"_id"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
	Link     string `json:"link,omitempty"`
}

// Filters narrows FilterProducts. Zero-valued fields are not applied.
type Filters struct {
	Gender   string
	Size     string
	MinPrice decimal.Decimal
	MaxPrice decimal.Decimal
}

// Page is one page of filtered products.
type Page struct {
	Products    []Product `json:"products"`
	TotalCount  int       `json:"totalCount"`
	TotalPages  int       `json:"totalPages"`
	CurrentPage int       `json:"currentPage"`
	HasNextPage bool      `json:"hasNextPage"`
	HasPrevPage bool      `json:"hasPrevPage"`
}

const (
	defaultPageSize = 6

	allProductsQuery = `*[_type == "product"]{
  "id": coalesce(id, _id),
  title,
  "price": coalesce(salePrice, originalPrice, price),
  "images": images[].asset->url,
  sizes,
  gender,
  "category": category->title,
  inStock,
  isTrending,
  isFeatured,
  rating
}`

	productsByCategoryQuery = `*[_type == "product" && lower(category->title) == lower($categoryTitle)]{
  "id": coalesce(id, _id),
  title,
  "price": coalesce(salePrice, originalPrice, price),
  "images": images[].asset->url,
  sizes,
  gender,
  "category": category->title,
  inStock,
  isTrending,
  isFeatured,
  rating
}`

	heroBannersQuery = `*[_type == "heroBanner"] | order(order asc){
  _id,
  title,
  subtitle,
  "imageUrl": image.asset->url,
  link
}`
)

type ServiceParams struct {
	Content  *ContentClient
	Cache    cache.Cache
	CacheTTL time.Duration
	Logger   *logger.Logger
}

// Service is the read side of the product catalog.
type Service interface {
	AllProducts(ctx context.Context) ([]Product, error)
	ProductsByCategory(ctx context.Context, category string) ([]Product, error)
	FilterProducts(ctx context.Context, filters Filters, page, pageSize int) (*Page, error)
	HeroBanners(ctx context.Context) ([]HeroBanner, error)
}

type service struct {
	content  *ContentClient
	cache    cache.Cache
	cacheTTL time.Duration
	logger   *logger.Logger
}

func NewService(params ServiceParams) Service {
	ttl := params.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &service{
		content:  params.Content,
		cache:    params.Cache,
		cacheTTL: ttl,
		logger:   params.Logger,
	}
}

func (s *service) AllProducts(ctx context.Context) ([]Product, error) {
	var products []Product
	err := s.cached(ctx, cache.Key("catalog", "products"), &products, func(out any) error {
		return s.content.Fetch(ctx, allProductsQuery, nil, out)
	})
	return products, err
}

func (s *service) ProductsByCategory(ctx context.Context, category string) ([]Product, error) {
	category = strings.TrimSpace(category)
	var products []Product
	err := s.cached(ctx, cache.Key("catalog", "category", strings.ToLower(category)), &products, func(out any) error {
		return s.content.Fetch(ctx, productsByCategoryQuery, map[string]any{"categoryTitle": category}, out)
	})
	return products, err
}

func (s *service) HeroBanners(ctx context.Context) ([]HeroBanner, error) {
	var banners []HeroBanner
	err := s.cached(ctx, cache.Key("catalog", "hero"), &banners, func(out any) error {
		return s.content.Fetch(ctx, heroBannersQuery, nil, out)
	})
	return banners, err
}

// FilterProducts narrows and paginates the catalog. Filtering happens on the
// full cached product list rather than per-filter content queries, so every
// filter combination shares one cache entry.
func (s *service) FilterProducts(ctx context.Context, filters Filters, page, pageSize int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}

	products, err := s.AllProducts(ctx)
	if err != nil {
		return nil, err
	}

	matched := make([]Product, 0, len(products))
	for _, product := range products {
		if matches(product, filters) {
			matched = append(matched, product)
		}
	}

	total := len(matched)
	totalPages := (total + pageSize - 1) / pageSize
	start := (page - 1) * pageSize
	end := start + pageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	return &Page{
		Products:    matched[start:end],
		TotalCount:  total,
		TotalPages:  totalPages,
		CurrentPage: page,
		HasNextPage: end < total,
		HasPrevPage: start > 0,
	}, nil
}

func matches(product Product, filters Filters) bool {
	if filters.Gender != "" {
		found := false
		for _, gender := range strings.Split(filters.Gender, ",") {
			if strings.EqualFold(strings.TrimSpace(gender), product.Gender) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filters.Size != "" {
		found := false
		for _, size := range strings.Split(filters.Size, ",") {
			for _, have := range product.Sizes {
				if strings.EqualFold(strings.TrimSpace(size), have) {
					found = true
					break
				}
			}
		}
		if !found {
			return false
		}
	}
	if !filters.MinPrice.IsZero() && product.Price.LessThan(filters.MinPrice) {
		return false
	}
	if !filters.MaxPrice.IsZero() && product.Price.GreaterThan(filters.MaxPrice) {
		return false
	}
	return true
}

// cached reads through the cache: hit decodes the stored blob, miss runs
// fetch and stores its result. Cache trouble degrades to a direct fetch.
func (s *service) cached(ctx context.Context, key string, out any, fetch func(out any) error) error {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key); err == nil {
			if err := json.Unmarshal(raw, out); err == nil {
				return nil
			}
		} else if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn(s.logger.WithField(ctx, "key", key), "catalog cache read failed")
		}
	}

	if err := fetch(out); err != nil {
		return fmt.Errorf("catalog fetch %s: %w", key, err)
	}

	if s.cache != nil {
		raw, err := json.Marshal(out)
		if err == nil {
			if err := s.cache.Set(ctx, key, raw, s.cacheTTL); err != nil {
				s.logger.Warn(s.logger.WithField(ctx, "key", key), "catalog cache write failed")
			}
		}
	}
	return nil
}
