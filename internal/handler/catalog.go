package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/bike-sales-counter/internal/model"
	"github.com/iliyamo/bike-sales-counter/internal/service"
	"github.com/iliyamo/bike-sales-counter/internal/utils"
)

// CatalogHandler serves component browsing, quotes and catalog upkeep.
type CatalogHandler struct {
	Catalog *service.Catalog
	Cache   *service.CatalogCache
	Log     *zap.Logger
}

func NewCatalogHandler(cat *service.Catalog, cache *service.CatalogCache, log *zap.Logger) *CatalogHandler {
	return &CatalogHandler{Catalog: cat, Cache: cache, Log: log}
}

type keyReq struct {
	BrandID int64 `json:"brand_id" validate:"required,gt=0"`
	Serial  int64 `json:"serial" validate:"required,gt=0"`
}

func (k keyReq) key() model.ComponentKey {
	return model.ComponentKey{BrandID: k.BrandID, Serial: k.Serial}
}

type quoteReq struct {
	FrameSet  keyReq `json:"frame_set"`
	Handlebar keyReq `json:"handlebar"`
	Wheel     keyReq `json:"wheel"`
}

type componentReq struct {
	Category  string               `json:"category" validate:"required,oneof=frameset handlebar wheel"`
	BrandID   int64                `json:"brand_id" validate:"required,gt=0"`
	Serial    int64                `json:"serial" validate:"required,gt=0"`
	Name      string               `json:"name" validate:"required,max=128"`
	Price     string               `json:"price" validate:"required"` // "12.34" or "£12.34"
	Quantity  int64                `json:"quantity" validate:"gte=0"`
	FrameSet  *model.FrameSetSpec  `json:"frame_set"`
	Handlebar *model.HandlebarSpec `json:"handlebar"`
	Wheel     *model.WheelSpec     `json:"wheel"`
}

type quantityReq struct {
	Quantity *int64 `json:"quantity" validate:"required"`
}

type brandReq struct {
	Name string `json:"name" validate:"required,max=64"`
}

type componentResp struct {
	model.Component
	DisplayName    string `json:"display_name"`
	FormattedPrice string `json:"formatted_price"`
}

func toComponentResp(c model.Component) componentResp {
	return componentResp{Component: c, DisplayName: c.DisplayName(), FormattedPrice: utils.FormatMoney(c.Price)}
}

func pathKey(c echo.Context) (model.ComponentKey, error) {
	brand, err := paramInt(c, "brand")
	if err != nil {
		return model.ComponentKey{}, err
	}
	serial, err := paramInt(c, "serial")
	if err != nil {
		return model.ComponentKey{}, err
	}
	return model.ComponentKey{BrandID: brand, Serial: serial}, nil
}

// List serves the catalog snapshot, optionally filtered by ?category=.
func (h *CatalogHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	comps, err := h.Catalog.Browse(ctx, model.Category(c.QueryParam("category")))
	if err != nil {
		return fail(c, h.Log, err)
	}
	out := make([]componentResp, 0, len(comps))
	for _, comp := range comps {
		out = append(out, toComponentResp(comp))
	}
	return c.JSON(http.StatusOK, out)
}

// Get reads one component from the store.
func (h *CatalogHandler) Get(c echo.Context) error {
	key, err := pathKey(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	comp, err := h.Catalog.Get(ctx, key)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toComponentResp(comp))
}

func (h *CatalogHandler) Brands(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	brands, err := h.Catalog.ListBrands(ctx)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, brands)
}

// Quote prices a prospective bike without placing an order.
func (h *CatalogHandler) Quote(c echo.Context) error {
	var req quoteReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	q, err := h.Catalog.Quote(ctx, req.FrameSet.key(), req.Handlebar.key(), req.Wheel.key())
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, q)
}

func (h *CatalogHandler) AddComponent(c echo.Context) error {
	var req componentReq
	if err := bind(c, &req); err != nil {
		return err
	}
	price, err := utils.ParseMoney(req.Price)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	comp, err := h.Catalog.AddComponent(ctx, model.Component{
		Category:  model.Category(req.Category),
		BrandID:   req.BrandID,
		Serial:    req.Serial,
		Name:      req.Name,
		Price:     price,
		Quantity:  req.Quantity,
		FrameSet:  req.FrameSet,
		Handlebar: req.Handlebar,
		Wheel:     req.Wheel,
	})
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, toComponentResp(comp))
}

func (h *CatalogHandler) UpdateQuantity(c echo.Context) error {
	key, err := pathKey(c)
	if err != nil {
		return err
	}
	var req quantityReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Catalog.UpdateQuantity(ctx, key, *req.Quantity); err != nil {
		return fail(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *CatalogHandler) DeleteComponent(c echo.Context) error {
	key, err := pathKey(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Catalog.Delete(ctx, key); err != nil {
		return fail(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *CatalogHandler) AddBrand(c echo.Context) error {
	var req brandReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	b, err := h.Catalog.AddBrand(ctx, req.Name)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, b)
}

// Refresh reloads the catalog snapshot synchronously.
func (h *CatalogHandler) Refresh(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Cache.Refresh(ctx); err != nil {
		return fail(c, h.Log, err)
	}
	_, at := h.Cache.Snapshot()
	return c.JSON(http.StatusOK, echo.Map{"refreshed_at": at})
}
