package model

import "github.com/iliyamo/bike-sales-counter/internal/utils"

// Category discriminates the three component kinds a bike is built from.
// The value is set by the store query that loaded the component, so callers
// switch on it instead of probing which detail pointer is non-nil.
type Category string

const (
	CategoryFrameSet  Category = "frameset"
	CategoryHandlebar Category = "handlebar"
	CategoryWheel     Category = "wheel"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryFrameSet, CategoryHandlebar, CategoryWheel:
		return true
	}
	return false
}

// Handlebar styles, wheel styles and brake kinds accepted by the catalog.
const (
	HandlebarStraight = "STRAIGHT"
	HandlebarHigh     = "HIGH"
	HandlebarDropped  = "DROPPED"

	WheelRoad     = "ROAD"
	WheelMountain = "MOUNTAIN"
	WheelHybrid   = "HYBRID"

	BrakesRim  = "RIM"
	BrakesDisk = "DISK"
)

// ValidHandlebarStyle reports whether s names a handlebar style.
func ValidHandlebarStyle(s string) bool {
	return s == HandlebarStraight || s == HandlebarHigh || s == HandlebarDropped
}

// ValidWheelStyle reports whether s names a wheel style.
func ValidWheelStyle(s string) bool {
	return s == WheelRoad || s == WheelMountain || s == WheelHybrid
}

// ValidBrakes reports whether s names a brake kind.
func ValidBrakes(s string) bool {
	return s == BrakesRim || s == BrakesDisk
}

// ComponentKey identifies a component by brand and serial.
type ComponentKey struct {
	BrandID int64 `json:"brand_id" db:"brand_id"`
	Serial  int64 `json:"serial" db:"serial"`
}

// FrameSetSpec holds the frame-set specific attributes.
type FrameSetSpec struct {
	Shocks bool `json:"shocks"`
	Size   int  `json:"size"`
	Gears  int  `json:"gears"`
}

// HandlebarSpec holds the handlebar specific attributes.
type HandlebarSpec struct {
	Style string `json:"style"`
}

// WheelSpec holds the wheel specific attributes.
type WheelSpec struct {
	Diameter int    `json:"diameter"`
	Style    string `json:"style"`
	Brakes   string `json:"brakes"`
}

// Component is a catalog entry. Exactly one of FrameSet, Handlebar or Wheel
// is set and it always matches Category. Price is in pence.
//
// Fields:
//  Category  – which kind of component this is.
//  BrandID   – brands.brand_id.
//  BrandName – brands.brand_name, joined for display.
//  Serial    – manufacturer serial, unique per brand.
//  Name      – model name.
//  Price     – unit price in pence.
//  Quantity  – quantity on hand, never negative.
type Component struct {
	Category  Category       `json:"category"`
	BrandID   int64          `json:"brand_id"`
	BrandName string         `json:"brand_name"`
	Serial    int64          `json:"serial"`
	Name      string         `json:"name"`
	Price     int64          `json:"price"`
	Quantity  int64          `json:"quantity"`
	FrameSet  *FrameSetSpec  `json:"frame_set,omitempty"`
	Handlebar *HandlebarSpec `json:"handlebar,omitempty"`
	Wheel     *WheelSpec     `json:"wheel,omitempty"`
}

// Key returns the (brand, serial) identity of the component.
func (c Component) Key() ComponentKey {
	return ComponentKey{BrandID: c.BrandID, Serial: c.Serial}
}

// RequiredDraw is the stock one bike consumes: wheels come in pairs.
func (c Component) RequiredDraw() int64 {
	return DrawFor(c.Category)
}

// DrawFor returns the per-bike draw for a category.
func DrawFor(cat Category) int64 {
	if cat == CategoryWheel {
		return 2
	}
	return 1
}

// DisplayName renders the shopper facing name, e.g. "Raleigh Pro Wheels".
func (c Component) DisplayName() string {
	var suffix string
	switch c.Category {
	case CategoryFrameSet:
		suffix = "Frame Set"
	case CategoryHandlebar:
		suffix = "Handlebars"
	case CategoryWheel:
		suffix = "Wheels"
	}
	return c.BrandName + " " + utils.TitleCase(c.Name) + " " + suffix
}

// LinePrice is the price of the component as it appears on a bike quote.
func (c Component) LinePrice() int64 {
	return c.Price * c.RequiredDraw()
}

// Brand is a row of the brands table.
type Brand struct {
	ID   int64  `json:"brand_id" db:"brand_id"`
	Name string `json:"brand_name" db:"brand_name"`
}
