package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/bike-sales-counter/internal/model"
	"github.com/iliyamo/bike-sales-counter/internal/service"
)

// CustomerHandler lets staff browse and correct customer records.
type CustomerHandler struct {
	Directory *service.Directory
	Log       *zap.Logger
}

func NewCustomerHandler(d *service.Directory, log *zap.Logger) *CustomerHandler {
	return &CustomerHandler{Directory: d, Log: log}
}

type customerReq struct {
	Forename  string `json:"forename" validate:"required,max=64"`
	Surname   string `json:"surname" validate:"required,max=64"`
	AddressID int64  `json:"address_id" validate:"required,gt=0"`
}

type addressReq struct {
	Postcode string `json:"postcode" validate:"required,max=10"`
	HouseNum int    `json:"house_num" validate:"required,gt=0"`
	Road     string `json:"road" validate:"required,max=128"`
	City     string `json:"city" validate:"required,max=128"`
}

func (h *CustomerHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	all, err := h.Directory.ListCustomers(ctx)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, all)
}

// Update overwrites the customer's name and address reference.
func (h *CustomerHandler) Update(c echo.Context) error {
	id, err := paramInt(c, "id")
	if err != nil {
		return err
	}
	var req customerReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	err = h.Directory.UpdateCustomer(ctx, model.Customer{ID: id, AddressID: req.AddressID, Forename: req.Forename, Surname: req.Surname})
	if err != nil {
		return fail(c, h.Log, err)
	}
	ci, err := h.Directory.GetCustomer(ctx, id)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, ci)
}

// UpdateAddress moves the customer to a new address. The response names
// whether an existing address was reused, a shared one forked or the
// customer's own one edited.
func (h *CustomerHandler) UpdateAddress(c echo.Context) error {
	id, err := paramInt(c, "id")
	if err != nil {
		return err
	}
	var req addressReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	ci, outcome, err := h.Directory.UpdateCustomerAddress(ctx, id, service.AddressInput{
		Postcode: req.Postcode, HouseNum: req.HouseNum, Road: req.Road, City: req.City,
	})
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"customer": ci, "outcome": outcome})
}
