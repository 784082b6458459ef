package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/plutus-market/plutus-server/dal/do"
	"github.com/plutus-market/plutus-server/errcode"
	"github.com/plutus-market/plutus-server/service"

	"gorm.io/gorm"
)

// countingProductService records lookups so tests can observe cache hits.
type countingProductService struct {
	service.ProductService
	lookups  int
	products map[string]*do.ProductInfo
}

func (c *countingProductService) GetProductByID(ctx context.Context, tx *gorm.DB, id string) (*do.ProductInfo, error) {
	c.lookups++
	info, ok := c.products[id]
	if !ok {
		return nil, errcode.ErrProductNotFound
	}
	return info, nil
}

func TestCatalog_GetProduct(t *testing.T) {
	ps := &countingProductService{
		products: map[string]*do.ProductInfo{
			"p-1": {ID: "p-1", Name: "widget", Price: "0.05", MerchantAddress: "0x52908400098527886E0F7030069857D2E4169EE7"},
		},
	}
	c, err := New(nil, ps, 4)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	t.Run("miss_then_hit", func(t *testing.T) {
		first, err := c.GetProduct(ctx, "p-1")
		if err != nil {
			t.Fatal(err)
		}
		second, err := c.GetProduct(ctx, "p-1")
		if err != nil {
			t.Fatal(err)
		}
		if first.Price != "0.05" || second.Price != "0.05" {
			t.Errorf("unexpected summaries %+v %+v", first, second)
		}
		if ps.lookups != 1 {
			t.Errorf("expected 1 lookup, got %v", ps.lookups)
		}
	})

	t.Run("not_found_uncached", func(t *testing.T) {
		_, err := c.GetProduct(ctx, "missing")
		if !errors.Is(err, errcode.ErrProductNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
		_, err = c.GetProduct(ctx, "missing")
		if !errors.Is(err, errcode.ErrProductNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
	})

	t.Run("invalidate", func(t *testing.T) {
		before := ps.lookups
		c.Invalidate("p-1")
		if _, err := c.GetProduct(ctx, "p-1"); err != nil {
			t.Fatal(err)
		}
		if ps.lookups != before+1 {
			t.Errorf("expected reload after invalidate")
		}
	})
}
