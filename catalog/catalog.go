// Package catalog caches product lookups in front of the database. Orders
// read the catalog far more often than merchants change it, so a small
// in-memory LRU absorbs the read traffic; writes invalidate.
package catalog

import (
	"context"

	"github.com/plutus-market/plutus-server/model"
	"github.com/plutus-market/plutus-server/service"

	lru "github.com/hashicorp/golang-lru"
	"gorm.io/gorm"
)

const defaultCacheSize = 512

type Catalog struct {
	db             *gorm.DB
	productService service.ProductService
	cache          *lru.Cache
}

func New(db *gorm.DB, productService service.ProductService, size int) (*Catalog, error) {
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Catalog{
		db:             db,
		productService: productService,
		cache:          cache,
	}, nil
}

// GetProduct returns the cached summary of a product, loading and caching
// it on a miss.
func (c *Catalog) GetProduct(ctx context.Context, id string) (*model.ProductSummary, error) {
	if cached, ok := c.cache.Get(id); ok {
		return cached.(*model.ProductSummary), nil
	}

	info, err := c.productService.GetProductByID(ctx, c.db, id)
	if err != nil {
		return nil, err
	}
	summary := &model.ProductSummary{
		ID:              info.ID,
		Name:            info.Name,
		Price:           info.Price,
		MerchantAddress: info.MerchantAddress,
	}
	c.cache.Add(id, summary)
	return summary, nil
}

// Invalidate drops a product from the cache. Called after any listing
// mutation so readers never see a stale price for longer than one write.
func (c *Catalog) Invalidate(id string) {
	c.cache.Remove(id)
	log.Tracef("Invalidated catalog entry %v", id)
}

// Purge empties the cache.
func (c *Catalog) Purge() {
	c.cache.Purge()
}
