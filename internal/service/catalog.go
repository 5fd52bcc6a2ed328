package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/bike-sales-counter/internal/model"
	"github.com/iliyamo/bike-sales-counter/internal/repository"
	"github.com/iliyamo/bike-sales-counter/internal/utils"
)

// Catalog is the mutation and query surface for components and brands.
// Every successful mutation schedules a cache refresh.
type Catalog struct {
	components *repository.ComponentRepo
	brands     *repository.BrandRepo
	cache      *CatalogCache
	log        *zap.Logger
}

func NewCatalog(components *repository.ComponentRepo, brands *repository.BrandRepo, cache *CatalogCache, log *zap.Logger) *Catalog {
	return &Catalog{components: components, brands: brands, cache: cache, log: log}
}

// ListAll reads every component straight from the store.
func (s *Catalog) ListAll(ctx context.Context) ([]model.Component, error) {
	return s.components.List(ctx)
}

// ListByCategory reads one category straight from the store.
func (s *Catalog) ListByCategory(ctx context.Context, cat model.Category) ([]model.Component, error) {
	if !cat.Valid() {
		return nil, invalid("unknown category %q", cat)
	}
	return s.components.ListByCategory(ctx, cat)
}

// Browse serves the shopper listing from the snapshot cache, optionally
// filtered by category.
func (s *Catalog) Browse(ctx context.Context, cat model.Category) ([]model.Component, error) {
	if cat != "" && !cat.Valid() {
		return nil, invalid("unknown category %q", cat)
	}
	all, err := s.cache.Components(ctx)
	if err != nil {
		return nil, err
	}
	if cat == "" {
		return all, nil
	}
	out := make([]model.Component, 0, len(all))
	for _, c := range all {
		if c.Category == cat {
			out = append(out, c)
		}
	}
	return out, nil
}

// Get loads one component from the store.
func (s *Catalog) Get(ctx context.Context, key model.ComponentKey) (model.Component, error) {
	return s.components.Get(ctx, key)
}

// AddComponent validates c and inserts it with its category row as one
// unit. An existing (brand, serial) yields ErrDuplicate, an unknown brand
// ErrForeignKey.
func (s *Catalog) AddComponent(ctx context.Context, c model.Component) (model.Component, error) {
	c.Name = strings.ToUpper(strings.TrimSpace(c.Name))
	if err := validateComponent(c); err != nil {
		return model.Component{}, err
	}
	if err := s.components.Create(ctx, c); err != nil {
		return model.Component{}, fmt.Errorf("add component %d/%d: %w", c.BrandID, c.Serial, err)
	}
	s.log.Info("component added",
		zap.Int64("brand_id", c.BrandID), zap.Int64("serial", c.Serial), zap.String("category", string(c.Category)))
	s.cache.RefreshAsync()
	return s.components.Get(ctx, c.Key())
}

func validateComponent(c model.Component) error {
	if !c.Category.Valid() {
		return invalid("unknown category %q", c.Category)
	}
	if c.BrandID <= 0 || c.Serial <= 0 {
		return invalid("brand and serial must be positive")
	}
	if c.Name == "" {
		return invalid("name is required")
	}
	if c.Price < 0 {
		return invalid("price must not be negative")
	}
	if c.Quantity < 0 {
		return invalid("quantity must not be negative")
	}
	set := 0
	for _, p := range []bool{c.FrameSet != nil, c.Handlebar != nil, c.Wheel != nil} {
		if p {
			set++
		}
	}
	if set != 1 {
		return invalid("exactly one of frame_set, handlebar or wheel must be given")
	}
	switch c.Category {
	case model.CategoryFrameSet:
		if c.FrameSet == nil {
			return invalid("frame_set attributes are required")
		}
		if c.FrameSet.Size <= 0 || c.FrameSet.Gears <= 0 {
			return invalid("frame size and gears must be positive")
		}
	case model.CategoryHandlebar:
		if c.Handlebar == nil {
			return invalid("handlebar attributes are required")
		}
		if !model.ValidHandlebarStyle(c.Handlebar.Style) {
			return invalid("unknown handlebar style %q", c.Handlebar.Style)
		}
	case model.CategoryWheel:
		if c.Wheel == nil {
			return invalid("wheel attributes are required")
		}
		if c.Wheel.Diameter <= 0 {
			return invalid("wheel diameter must be positive")
		}
		if !model.ValidWheelStyle(c.Wheel.Style) {
			return invalid("unknown wheel style %q", c.Wheel.Style)
		}
		if !model.ValidBrakes(c.Wheel.Brakes) {
			return invalid("unknown brakes %q", c.Wheel.Brakes)
		}
	}
	return nil
}

// UpdateQuantity overwrites the quantity on hand. Negative values are
// rejected before reaching the store.
func (s *Catalog) UpdateQuantity(ctx context.Context, key model.ComponentKey, qty int64) error {
	if qty < 0 {
		return invalid("quantity must not be negative")
	}
	if err := s.components.UpdateQuantity(ctx, key, qty); err != nil {
		return fmt.Errorf("update quantity %d/%d: %w", key.BrandID, key.Serial, err)
	}
	s.cache.RefreshAsync()
	return nil
}

// Delete removes a component and its category row. Components attached to
// an order cannot be deleted (ErrForeignKey).
func (s *Catalog) Delete(ctx context.Context, key model.ComponentKey) error {
	if err := s.components.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete component %d/%d: %w", key.BrandID, key.Serial, err)
	}
	s.cache.RefreshAsync()
	return nil
}

// ListBrands returns every brand.
func (s *Catalog) ListBrands(ctx context.Context) ([]model.Brand, error) {
	return s.brands.List(ctx)
}

// AddBrand creates a brand and returns it with its generated id.
func (s *Catalog) AddBrand(ctx context.Context, name string) (model.Brand, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return model.Brand{}, invalid("brand name is required")
	}
	b, err := s.brands.Create(ctx, name)
	if err != nil {
		return model.Brand{}, fmt.Errorf("add brand %q: %w", name, err)
	}
	return b, nil
}

// Quote prices a prospective bike: frame set, handlebars, a pair of wheels
// and the assembly fee.
func (s *Catalog) Quote(ctx context.Context, frame, handlebar, wheel model.ComponentKey) (model.Quote, error) {
	parts, err := s.resolve(ctx, frame, handlebar, wheel)
	if err != nil {
		return model.Quote{}, err
	}
	q := model.Quote{AssemblyFee: model.AssemblyFee}
	for _, c := range parts {
		line := model.QuoteLine{Description: c.DisplayName(), Quantity: c.RequiredDraw(), Amount: c.LinePrice()}
		q.Lines = append(q.Lines, line)
		q.Total += line.Amount
	}
	q.Total += q.AssemblyFee
	q.Formatted = utils.FormatMoney(q.Total)
	return q, nil
}

// resolve loads the three components and checks each one is of the
// category its slot requires.
func (s *Catalog) resolve(ctx context.Context, frame, handlebar, wheel model.ComponentKey) ([3]model.Component, error) {
	var out [3]model.Component
	slots := [3]struct {
		key model.ComponentKey
		cat model.Category
	}{
		{frame, model.CategoryFrameSet},
		{handlebar, model.CategoryHandlebar},
		{wheel, model.CategoryWheel},
	}
	for i, slot := range slots {
		c, err := s.components.Get(ctx, slot.key)
		if err != nil {
			return out, fmt.Errorf("%s %d/%d: %w", slot.cat, slot.key.BrandID, slot.key.Serial, err)
		}
		if c.Category != slot.cat {
			return out, invalid("component %d/%d is a %s, not a %s", slot.key.BrandID, slot.key.Serial, c.Category, slot.cat)
		}
		out[i] = c
	}
	return out, nil
}
