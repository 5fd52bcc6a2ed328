package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/bike-sales-counter/internal/middleware"
	"github.com/iliyamo/bike-sales-counter/internal/model"
	"github.com/iliyamo/bike-sales-counter/internal/service"
	"github.com/iliyamo/bike-sales-counter/internal/utils"
)

// OrderHandler serves order placement, lookup and staff progression.
type OrderHandler struct {
	Ledger    *service.Ledger
	Lifecycle *service.Lifecycle
	Log       *zap.Logger
}

func NewOrderHandler(l *service.Ledger, lc *service.Lifecycle, log *zap.Logger) *OrderHandler {
	return &OrderHandler{Ledger: l, Lifecycle: lc, Log: log}
}

type identityReq struct {
	Forename string `json:"forename" validate:"required,max=64"`
	Surname  string `json:"surname" validate:"required,max=64"`
	HouseNum int    `json:"house_num" validate:"required,gt=0"`
	Postcode string `json:"postcode" validate:"required,max=10"`
}

func (r identityReq) identity() model.Identity {
	return model.Identity{Forename: r.Forename, Surname: r.Surname, HouseNum: r.HouseNum, Postcode: r.Postcode}
}

type placeOrderReq struct {
	identityReq
	Road      string `json:"road" validate:"max=128"`
	City      string `json:"city" validate:"max=128"`
	BikeName  string `json:"bike_name" validate:"required,max=128"`
	FrameSet  keyReq `json:"frame_set"`
	Handlebar keyReq `json:"handlebar"`
	Wheel     keyReq `json:"wheel"`
}

type bikeNameReq struct {
	BikeName string `json:"bike_name" validate:"required,max=128"`
}

type orderResp struct {
	model.OrderInfo
	Total          int64  `json:"total"`
	FormattedTotal string `json:"formatted_total"`
}

func toOrderResp(oi model.OrderInfo) orderResp {
	return orderResp{OrderInfo: oi, Total: oi.Total(), FormattedTotal: utils.FormatMoney(oi.Total())}
}

func toOrderResps(ois []model.OrderInfo) []orderResp {
	out := make([]orderResp, 0, len(ois))
	for _, oi := range ois {
		out = append(out, toOrderResp(oi))
	}
	return out
}

// Place registers the shopper when unknown and creates a PENDING order.
func (h *OrderHandler) Place(c echo.Context) error {
	var req placeOrderReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	oi, err := h.Ledger.PlaceOrder(ctx, service.PlaceOrderInput{
		Identity: req.identity(),
		Road:     req.Road,
		City:     req.City,
		BikeName: req.BikeName,
		Parts: service.OrderParts{
			FrameSet:  req.FrameSet.key(),
			Handlebar: req.Handlebar.key(),
			Wheel:     req.Wheel.key(),
		},
	})
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, toOrderResp(oi))
}

// Lookup lists the orders of the shopper with the given name and address.
func (h *OrderHandler) Lookup(c echo.Context) error {
	var req identityReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	ois, err := h.Ledger.GetByCustomerIdentity(ctx, req.identity())
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toOrderResps(ois))
}

func (h *OrderHandler) Get(c echo.Context) error {
	n, err := paramInt(c, "number")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	oi, err := h.Ledger.GetByOrderNumber(ctx, n)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toOrderResp(oi))
}

// List returns all orders, or those in ?status=.
func (h *OrderHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	var (
		ois []model.OrderInfo
		err error
	)
	if st := c.QueryParam("status"); st != "" {
		ois, err = h.Ledger.ListByStatus(ctx, model.Status(st))
	} else {
		ois, err = h.Ledger.GetAll(ctx)
	}
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toOrderResps(ois))
}

// Progress advances the order one step on behalf of the logged in staff member.
func (h *OrderHandler) Progress(c echo.Context) error {
	n, err := paramInt(c, "number")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	st, err := h.Lifecycle.ProgressOrder(ctx, n, middleware.Username(c))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"order_number": n, "status": st})
}

// Missing lists the components short of stock for the order.
func (h *OrderHandler) Missing(c echo.Context) error {
	n, err := paramInt(c, "number")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	comps, err := h.Lifecycle.MissingComponents(ctx, n)
	if err != nil {
		return fail(c, h.Log, err)
	}
	out := make([]componentResp, 0, len(comps))
	for _, comp := range comps {
		out = append(out, toComponentResp(comp))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) Rename(c echo.Context) error {
	n, err := paramInt(c, "number")
	if err != nil {
		return err
	}
	var req bikeNameReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Ledger.UpdateBikeName(ctx, n, req.BikeName); err != nil {
		return fail(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *OrderHandler) Delete(c echo.Context) error {
	n, err := paramInt(c, "number")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Ledger.DeleteOrder(ctx, n); err != nil {
		return fail(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}
