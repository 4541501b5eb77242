package productapi

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/yungbote/foodlens/internal/domain/product"
)

type Source interface {
	Lookup(ctx context.Context, barcode string) product.Lookup
}

// Cached keeps found products for the lifetime of the session and collapses
// concurrent lookups of the same code into one request. Misses are not
// cached: a product may be added to the database while the app is open.
// A size of zero or less keeps no records; concurrent lookups still share
// one request.
type Cached struct {
	src   Source
	cache *lru.Cache[string, product.Record]
	group singleflight.Group
}

func NewCached(src Source, size int) (*Cached, error) {
	if src == nil {
		return nil, fmt.Errorf("source required")
	}
	c := &Cached{src: src}
	if size <= 0 {
		return c, nil
	}
	cache, err := lru.New[string, product.Record](size)
	if err != nil {
		return nil, err
	}
	c.cache = cache
	return c, nil
}

func (c *Cached) Lookup(ctx context.Context, barcode string) product.Lookup {
	if c.cache != nil {
		if rec, ok := c.cache.Get(barcode); ok {
			return product.Lookup{Found: true, Record: copyRecord(rec)}
		}
	}
	v, _, _ := c.group.Do(barcode, func() (interface{}, error) {
		res := c.src.Lookup(ctx, barcode)
		if res.Found && c.cache != nil {
			c.cache.Add(barcode, res.Record)
		}
		return res, nil
	})
	res := v.(product.Lookup)
	res.Record = copyRecord(res.Record)
	return res
}

func (c *Cached) Len() int {
	if c.cache == nil {
		return 0
	}
	return c.cache.Len()
}

func copyRecord(rec product.Record) product.Record {
	rec.Ingredients = append([]string(nil), rec.Ingredients...)
	return rec
}
