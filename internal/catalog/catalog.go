package catalog

import (
	"fmt"
	"os"

	"github.com/Dream-Merchants-VIT/my-bid/internal/models"
	"gopkg.in/yaml.v3"
)

// Material is one catalog entry. At least one bundle price must be set.
type Material struct {
	ID               string `json:"id" yaml:"id"`
	Name             string `json:"name" yaml:"name"`
	LargeBundlePrice *int   `json:"largeBundlePrice" yaml:"large_bundle_price"`
	SmallBundlePrice *int   `json:"smallBundlePrice" yaml:"small_bundle_price"`
}

// BundlePrice returns the price for the requested bundle type, or nil if the
// material is not sold in that bundle size.
func (m *Material) BundlePrice(bundleType models.BundleType) *int {
	if bundleType == models.BundleTypeLarge {
		return m.LargeBundlePrice
	}
	return m.SmallBundlePrice
}

// Catalog is the static table of auctionable materials. Pure data, immutable
// after construction.
type Catalog struct {
	materials []Material
	byID      map[string]*Material
}

// New builds a catalog and validates every entry.
func New(materials []Material) (*Catalog, error) {
	c := &Catalog{
		materials: materials,
		byID:      make(map[string]*Material, len(materials)),
	}
	for i := range materials {
		m := &c.materials[i]
		if m.ID == "" {
			return nil, fmt.Errorf("catalog entry %d has no id", i)
		}
		if _, dup := c.byID[m.ID]; dup {
			return nil, fmt.Errorf("duplicate material id %q", m.ID)
		}
		if m.LargeBundlePrice == nil && m.SmallBundlePrice == nil {
			return nil, fmt.Errorf("material %q has no bundle price", m.ID)
		}
		c.byID[m.ID] = m
	}
	return c, nil
}

// LoadFile reads a catalog from a yaml file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var doc struct {
		Materials []Material `yaml:"materials"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file: %w", err)
	}
	return New(doc.Materials)
}

// FindMaterial returns the material with the given id, or nil.
func (c *Catalog) FindMaterial(id string) *Material {
	return c.byID[id]
}

// Materials returns all catalog entries.
func (c *Catalog) Materials() []Material {
	return c.materials
}

func price(v int) *int { return &v }

// Default returns the built-in raw materials catalog used when no catalog
// file is configured.
func Default() *Catalog {
	c, err := New([]Material{
		{ID: "bricks", Name: "Bricks", LargeBundlePrice: price(50), SmallBundlePrice: price(30)},
		{ID: "cement", Name: "Cement", LargeBundlePrice: price(60), SmallBundlePrice: price(40)},
		{ID: "steel", Name: "Steel", LargeBundlePrice: price(120), SmallBundlePrice: price(60)},
		{ID: "wood", Name: "Wood", LargeBundlePrice: price(70), SmallBundlePrice: price(40)},
		{ID: "glass", Name: "Glass", LargeBundlePrice: price(180), SmallBundlePrice: price(120)},
		{ID: "medical-supplies", Name: "Medical Supplies", SmallBundlePrice: price(300)},
		{ID: "pipes", Name: "Pipes", SmallBundlePrice: price(100)},
		{ID: "wires", Name: "Wires", SmallBundlePrice: price(140)},
		{ID: "furniture", Name: "Furniture", SmallBundlePrice: price(200)},
		{ID: "tiles", Name: "Tiles", SmallBundlePrice: price(300)},
		{ID: "marble-granite", Name: "Marble/Granite", SmallBundlePrice: price(250)},
	})
	if err != nil {
		panic(err) // built-in catalog is known valid
	}
	return c
}
