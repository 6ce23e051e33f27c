package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/aromahaus/storefront-client/pkg/cache"
	"github.com/aromahaus/storefront-client/pkg/config"
	"github.com/aromahaus/storefront-client/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test"})
}

func contentFixture() []map[string]any {
	return []map[string]any{
		{"id": "P1", "title": "Eau de Parfum", "price": 899, "sizes": []string{"50ML", "100ML"}, "gender": "female", "inStock": true},
		{"id": "P2", "title": "Cologne", "price": 450, "sizes": []string{"100ML"}, "gender": "male", "inStock": true},
		{"id": "P3", "title": "Body Mist", "price": 250, "sizes": []string{"50ML"}, "gender": "female", "inStock": false},
	}
}

func startContent(t *testing.T, hits *int) *ContentClient {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			*hits++
		}
		if !strings.HasPrefix(r.URL.Path, "/v2023-01-01/data/query/production") {
			t.Fatalf("unexpected content path %s", r.URL.Path)
		}
		query := r.URL.Query().Get("query")

		var result any = contentFixture()
		if strings.Contains(query, "heroBanner") {
			result = []map[string]any{{"_id": "h1", "title": "New Season"}}
		}
		if strings.Contains(query, "$categoryTitle") {
			result = contentFixture()[:1]
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"result": result})
	}))
	t.Cleanup(server.Close)

	client, err := NewContentClient(config.ContentConfig{
		BaseURL:    server.URL,
		Dataset:    "production",
		APIVersion: "2023-01-01",
	}, testLogger())
	if err != nil {
		t.Fatalf("building content client: %v", err)
	}
	return client
}

func newTestService(t *testing.T, hits *int) Service {
	t.Helper()
	return NewService(ServiceParams{
		Content: startContent(t, hits),
		Cache:   cache.NewMemory(),
		Logger:  testLogger(),
	})
}

func TestAllProductsReadsThroughCache(t *testing.T) {
	ctx := context.Background()
	hits := 0
	service := newTestService(t, &hits)

	products, err := service.AllProducts(ctx)
	if err != nil {
		t.Fatalf("all products: %v", err)
	}
	if len(products) != 3 {
		t.Fatalf("expected 3 products, got %d", len(products))
	}
	if !products[0].Price.Equal(decimal.NewFromInt(899)) {
		t.Fatalf("unexpected price %s", products[0].Price)
	}

	if _, err := service.AllProducts(ctx); err != nil {
		t.Fatalf("second read: %v", err)
	}
	if hits != 1 {
		t.Fatalf("expected one content hit with a warm cache, got %d", hits)
	}
}

func TestProductsByCategory(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t, nil)

	products, err := service.ProductsByCategory(ctx, "Perfume")
	if err != nil {
		t.Fatalf("products by category: %v", err)
	}
	if len(products) != 1 || products[0].ID != "P1" {
		t.Fatalf("unexpected products %+v", products)
	}
}

func TestHeroBanners(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t, nil)

	banners, err := service.HeroBanners(ctx)
	if err != nil {
		t.Fatalf("hero banners: %v", err)
	}
	if len(banners) != 1 || banners[0].Title != "New Season" {
		t.Fatalf("unexpected banners %+v", banners)
	}
}

func TestFilterProducts(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t, nil)

	tests := []struct {
		name    string
		filters Filters
		wantIDs []string
	}{
		{name: "no filters", filters: Filters{}, wantIDs: []string{"P1", "P2", "P3"}},
		{name: "by gender", filters: Filters{Gender: "female"}, wantIDs: []string{"P1", "P3"}},
		{name: "by size", filters: Filters{Size: "100ML"}, wantIDs: []string{"P1", "P2"}},
		{name: "by price window", filters: Filters{MinPrice: decimal.NewFromInt(300), MaxPrice: decimal.NewFromInt(500)}, wantIDs: []string{"P2"}},
		{name: "gender list", filters: Filters{Gender: "male,female"}, wantIDs: []string{"P1", "P2", "P3"}},
	}

	for _, tt := range tests {
		page, err := service.FilterProducts(ctx, tt.filters, 1, 10)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if len(page.Products) != len(tt.wantIDs) {
			t.Fatalf("%s: expected %d products, got %d", tt.name, len(tt.wantIDs), len(page.Products))
		}
		for i, id := range tt.wantIDs {
			if page.Products[i].ID != id {
				t.Fatalf("%s: expected %s at %d, got %s", tt.name, id, i, page.Products[i].ID)
			}
		}
	}
}

func TestFilterProductsPagination(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t, nil)

	page, err := service.FilterProducts(ctx, Filters{}, 1, 2)
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if page.TotalCount != 3 || page.TotalPages != 2 {
		t.Fatalf("unexpected paging %+v", page)
	}
	if len(page.Products) != 2 || !page.HasNextPage || page.HasPrevPage {
		t.Fatalf("unexpected first page %+v", page)
	}

	page, err = service.FilterProducts(ctx, Filters{}, 2, 2)
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(page.Products) != 1 || page.HasNextPage || !page.HasPrevPage {
		t.Fatalf("unexpected second page %+v", page)
	}

	// Pages past the end come back empty rather than failing.
	page, err = service.FilterProducts(ctx, Filters{}, 9, 2)
	if err != nil {
		t.Fatalf("overrun page: %v", err)
	}
	if len(page.Products) != 0 {
		t.Fatalf("expected empty overrun page, got %+v", page.Products)
	}
}
