// Package catalog is the offline product table consulted after a remote miss.
package catalog

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/foodlens/internal/domain/product"
)

// GenericDisclaimer accompanies the generic record so the user knows the
// assessment is not about the product they scanned.
const GenericDisclaimer = "Note: this exact product was not found in our database, so this is a generic approximation of a typical packaged food, not the scanned product."

//go:embed catalog.yaml
var builtin []byte

type file struct {
	Generic  product.Record   `yaml:"generic"`
	Products []product.Record `yaml:"products"`
}

type Catalog struct {
	byCode  map[string]product.Record
	generic product.Record
}

// Default returns the catalog compiled into the binary.
func Default() *Catalog {
	c, err := Parse(builtin)
	if err != nil {
		panic(fmt.Sprintf("catalog: builtin data invalid: %v", err))
	}
	return c
}

// Parse builds a catalog from a YAML document.
func Parse(raw []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	if strings.TrimSpace(f.Generic.Name) == "" {
		return nil, fmt.Errorf("catalog: generic record requires a name")
	}
	c := &Catalog{
		byCode:  make(map[string]product.Record, len(f.Products)),
		generic: f.Generic,
	}
	for _, p := range f.Products {
		code := strings.TrimSpace(p.Barcode)
		if code == "" {
			return nil, fmt.Errorf("catalog: product %q has no barcode", p.Name)
		}
		if _, dup := c.byCode[code]; dup {
			return nil, fmt.Errorf("catalog: duplicate barcode %s", code)
		}
		p.Barcode = code
		c.byCode[code] = p
	}
	return c, nil
}

// Lookup matches the exact code only.
func (c *Catalog) Lookup(code string) (product.Record, bool) {
	rec, ok := c.byCode[strings.TrimSpace(code)]
	if !ok {
		return product.Record{}, false
	}
	rec.Ingredients = append([]string(nil), rec.Ingredients...)
	return rec, true
}

func (c *Catalog) Generic() product.Record {
	rec := c.generic
	rec.Ingredients = append([]string(nil), rec.Ingredients...)
	return rec
}

func (c *Catalog) Len() int { return len(c.byCode) }
