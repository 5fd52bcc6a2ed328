package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/bike-sales-counter/internal/config"
	"github.com/iliyamo/bike-sales-counter/internal/handler"
	"github.com/iliyamo/bike-sales-counter/internal/metrics"
	"github.com/iliyamo/bike-sales-counter/internal/queue"
	"github.com/iliyamo/bike-sales-counter/internal/repository"
	"github.com/iliyamo/bike-sales-counter/internal/router"
	"github.com/iliyamo/bike-sales-counter/internal/service"
	"github.com/iliyamo/bike-sales-counter/internal/testutil"
)

const secret = "test-secret"

type api struct {
	t  *testing.T
	e  *echo.Echo
	db *sqlx.DB
	f  testutil.Fixture
}

func newAPI(t *testing.T) *api {
	t.Helper()
	db := testutil.NewDB(t)
	f := testutil.Seed(t, db)
	log := zap.NewNop()
	m := metrics.New(prometheus.NewRegistry())

	components := repository.NewComponentRepo(db)
	customers := repository.NewCustomerRepo(db)
	orders := repository.NewOrderRepo(db)
	cache := service.NewCatalogCache(components, config.CatalogConfig{Staleness: time.Minute}, nil, log, m)
	catalog := service.NewCatalog(components, repository.NewBrandRepo(db), cache, log)
	directory := service.NewDirectory(db, repository.NewAddressRepo(db), customers, log)
	ledger := service.NewLedger(db, orders, components, customers, directory, queue.NopPublisher{}, m, log)
	lifecycle := service.NewLifecycle(db, orders, components, cache, queue.NopPublisher{}, m, log)
	accounts := service.NewAccounts(repository.NewStaffRepo(db), repository.NewTokenRepo(db), secret, 15, 7, log)

	_, err := accounts.CreateStaff(context.Background(), "alice", []byte("correct horse"))
	require.NoError(t, err)

	e := router.New(config.Config{JWTSecret: secret}, db, nil, log, m, router.Handlers{
		Auth:      handler.NewAuthHandler(accounts, log),
		Catalog:   handler.NewCatalogHandler(catalog, cache, log),
		Orders:    handler.NewOrderHandler(ledger, lifecycle, log),
		Customers: handler.NewCustomerHandler(directory, log),
	})
	return &api{t: t, e: e, db: db, f: f}
}

func (a *api) do(method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

type session struct {
	Access  struct{ Token string } `json:"access"`
	Refresh struct{ Token string } `json:"refresh"`
}

func (a *api) login() session {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/v1/auth/login", "", echo.Map{"username": "alice", "password": "correct horse"})
	require.Equal(a.t, http.StatusOK, rec.Code, rec.Body.String())
	var s session
	decode(a.t, rec, &s)
	return s
}

func (a *api) key(serial int64) echo.Map {
	return echo.Map{"brand_id": a.f.BrandID, "serial": serial}
}

func (a *api) orderBody() echo.Map {
	return echo.Map{
		"forename": "ada", "surname": "lovelace", "house_num": 12, "postcode": "s10 3ag",
		"road": "Western Bank", "city": "Sheffield",
		"bike_name": "Commuter",
		"frame_set": a.key(a.f.FrameSet),
		"handlebar": a.key(a.f.Handlebar),
		"wheel":     a.key(a.f.Wheel),
	}
}

type orderView struct {
	Order struct {
		OrderNumber int64  `json:"order_number"`
		Status      string `json:"status"`
		Staff       string `json:"staff"`
		BikeName    string `json:"bike_name"`
	} `json:"order"`
	Customer struct {
		ID int64 `json:"customer_id"`
	} `json:"customer"`
	FormattedTotal string `json:"formatted_total"`
}

func (a *api) place() orderView {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/v1/orders", "", a.orderBody())
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	var ov orderView
	decode(a.t, rec, &ov)
	return ov
}

func TestHealth(t *testing.T) {
	a := newAPI(t)

	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/healthz", "", nil).Code)
	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/readyz", "", nil).Code)
	rec := a.do(http.MethodGet, "/healthz", "", nil)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestBrowseComponents(t *testing.T) {
	a := newAPI(t)

	rec := a.do(http.MethodGet, "/v1/components?category=wheel", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var wheels []struct {
		Serial         int64  `json:"serial"`
		FormattedPrice string `json:"formatted_price"`
	}
	decode(t, rec, &wheels)
	require.Len(t, wheels, 1)
	assert.Equal(t, a.f.Wheel, wheels[0].Serial)
	assert.Equal(t, "£35.00", wheels[0].FormattedPrice)

	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, "/v1/components?category=saddle", "", nil).Code)

	path := fmt.Sprintf("/v1/components/%d/%d", a.f.BrandID, a.f.FrameSet)
	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, path, "", nil).Code)
	path = fmt.Sprintf("/v1/components/%d/9999", a.f.BrandID)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, path, "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, "/v1/components/x/1", "", nil).Code)

	rec = a.do(http.MethodGet, "/v1/brands", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "RALEIGH")
}

func TestQuote(t *testing.T) {
	a := newAPI(t)

	rec := a.do(http.MethodPost, "/v1/quote", "", echo.Map{
		"frame_set": a.key(a.f.FrameSet), "handlebar": a.key(a.f.Handlebar), "wheel": a.key(a.f.Wheel),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var q struct {
		Total     int64  `json:"total"`
		Formatted string `json:"formatted_total"`
	}
	decode(t, rec, &q)
	assert.Equal(t, int64(37000), q.Total)
	assert.Equal(t, "£370.00", q.Formatted)

	rec = a.do(http.MethodPost, "/v1/quote", "", echo.Map{
		"frame_set": a.key(a.f.Wheel), "handlebar": a.key(a.f.Handlebar), "wheel": a.key(a.f.FrameSet),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodPost, "/v1/quote", "", echo.Map{"handlebar": a.key(a.f.Handlebar)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlaceAndLookupOrder(t *testing.T) {
	a := newAPI(t)

	ov := a.place()
	assert.Equal(t, "PENDING", ov.Order.Status)
	assert.Equal(t, "£370.00", ov.FormattedTotal)

	again := a.place()
	assert.Equal(t, ov.Customer.ID, again.Customer.ID)
	assert.NotEqual(t, ov.Order.OrderNumber, again.Order.OrderNumber)

	rec := a.do(http.MethodPost, "/v1/orders/lookup", "", echo.Map{
		"forename": "Ada", "surname": "LOVELACE", "house_num": 12, "postcode": "S103AG",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var list []orderView
	decode(t, rec, &list)
	assert.Len(t, list, 2)

	rec = a.do(http.MethodGet, fmt.Sprintf("/v1/orders/%d", ov.Order.OrderNumber), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/v1/orders/1000000000", "", nil).Code)
}

func TestPlaceOrderRejectsBadInput(t *testing.T) {
	a := newAPI(t)

	body := a.orderBody()
	delete(body, "bike_name")
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPost, "/v1/orders", "", body).Code)

	body = a.orderBody()
	body["postcode"] = "nowhere"
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPost, "/v1/orders", "", body).Code)

	body = a.orderBody()
	body["wheel"] = a.key(9999)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodPost, "/v1/orders", "", body).Code)

	assert.Equal(t, 0, testutil.Count(t, a.db, "orders", "1 = 1"))
}

func TestStaffProgressesOrder(t *testing.T) {
	a := newAPI(t)
	ov := a.place()
	progress := fmt.Sprintf("/v1/staff/orders/%d/progress", ov.Order.OrderNumber)

	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodPost, progress, "", nil).Code)

	s := a.login()
	rec := a.do(http.MethodPost, progress, s.Access.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, fmt.Sprintf(`{"order_number":%d,"status":"CONFIRMED"}`, ov.Order.OrderNumber), rec.Body.String())

	missing := fmt.Sprintf("/v1/staff/orders/%d/missing", ov.Order.OrderNumber)
	rec = a.do(http.MethodGet, missing, s.Access.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = a.do(http.MethodPost, progress, s.Access.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "FULFILLED")
	assert.Equal(t, int64(testutil.Stock-2), testutil.StockOf(t, a.db, a.f.BrandID, a.f.Wheel))

	assert.Equal(t, http.StatusUnprocessableEntity, a.do(http.MethodPost, progress, s.Access.Token, nil).Code)

	rec = a.do(http.MethodGet, "/v1/staff/orders?status=FULFILLED", s.Access.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []orderView
	decode(t, rec, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "alice", list[0].Order.Staff)

	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, "/v1/staff/orders?status=LOST", s.Access.Token, nil).Code)
}

func TestStaffProgressInsufficientStock(t *testing.T) {
	a := newAPI(t)
	ov := a.place()
	s := a.login()
	progress := fmt.Sprintf("/v1/staff/orders/%d/progress", ov.Order.OrderNumber)
	require.Equal(t, http.StatusOK, a.do(http.MethodPost, progress, s.Access.Token, nil).Code)

	testutil.SetStock(t, a.db, a.f.BrandID, a.f.Wheel, 1)
	rec := a.do(http.MethodGet, fmt.Sprintf("/v1/staff/orders/%d/missing", ov.Order.OrderNumber), s.Access.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "SPEED")

	assert.Equal(t, http.StatusUnprocessableEntity, a.do(http.MethodPost, progress, s.Access.Token, nil).Code)
	assert.Equal(t, int64(testutil.Stock), testutil.StockOf(t, a.db, a.f.BrandID, a.f.FrameSet))
}

func TestStaffRenamesAndDeletesOrder(t *testing.T) {
	a := newAPI(t)
	ov := a.place()
	s := a.login()
	base := fmt.Sprintf("/v1/staff/orders/%d", ov.Order.OrderNumber)

	assert.Equal(t, http.StatusNoContent, a.do(http.MethodPatch, base+"/bike-name", s.Access.Token, echo.Map{"bike_name": "Weekend"}).Code)
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPatch, base+"/bike-name", s.Access.Token, echo.Map{"bike_name": ""}).Code)

	rec := a.do(http.MethodGet, fmt.Sprintf("/v1/orders/%d", ov.Order.OrderNumber), "", nil)
	var got orderView
	decode(t, rec, &got)
	assert.Equal(t, "Weekend", got.Order.BikeName)

	assert.Equal(t, http.StatusNoContent, a.do(http.MethodDelete, base, s.Access.Token, nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodDelete, base, s.Access.Token, nil).Code)
}

func TestStaffMaintainsCatalog(t *testing.T) {
	a := newAPI(t)
	s := a.login()

	comp := echo.Map{
		"category": "handlebar", "brand_id": a.f.BrandID, "serial": 2002,
		"name": "riser", "price": "£12.50", "quantity": 3,
		"handlebar": echo.Map{"style": "HIGH"},
	}
	rec := a.do(http.MethodPost, "/v1/staff/components", s.Access.Token, comp)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Name  string `json:"name"`
		Price int64  `json:"price"`
	}
	decode(t, rec, &created)
	assert.Equal(t, "RISER", created.Name)
	assert.Equal(t, int64(1250), created.Price)

	assert.Equal(t, http.StatusConflict, a.do(http.MethodPost, "/v1/staff/components", s.Access.Token, comp).Code)

	comp["serial"] = 2003
	comp["price"] = "twelve"
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPost, "/v1/staff/components", s.Access.Token, comp).Code)

	qty := fmt.Sprintf("/v1/staff/components/%d/%d/quantity", a.f.BrandID, a.f.Wheel)
	assert.Equal(t, http.StatusNoContent, a.do(http.MethodPatch, qty, s.Access.Token, echo.Map{"quantity": 4}).Code)
	assert.Equal(t, int64(4), testutil.StockOf(t, a.db, a.f.BrandID, a.f.Wheel))
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPatch, qty, s.Access.Token, echo.Map{}).Code)
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPatch, qty, s.Access.Token, echo.Map{"quantity": -1}).Code)

	a.place()
	frame := fmt.Sprintf("/v1/staff/components/%d/%d", a.f.BrandID, a.f.FrameSet)
	assert.Equal(t, http.StatusConflict, a.do(http.MethodDelete, frame, s.Access.Token, nil).Code)
	spare := fmt.Sprintf("/v1/staff/components/%d/2002", a.f.BrandID)
	assert.Equal(t, http.StatusNoContent, a.do(http.MethodDelete, spare, s.Access.Token, nil).Code)

	rec = a.do(http.MethodPost, "/v1/staff/brands", s.Access.Token, echo.Map{"name": "dawes"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, http.StatusConflict, a.do(http.MethodPost, "/v1/staff/brands", s.Access.Token, echo.Map{"name": "Dawes"}).Code)

	rec = a.do(http.MethodPost, "/v1/staff/catalog/refresh", s.Access.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "refreshed_at")
}

func TestStaffUpdatesCustomers(t *testing.T) {
	a := newAPI(t)
	ov := a.place()
	s := a.login()
	base := fmt.Sprintf("/v1/staff/customers/%d", ov.Customer.ID)

	rec := a.do(http.MethodPut, base+"/address", s.Access.Token, echo.Map{
		"postcode": "LS1 4AP", "house_num": 3, "road": "Park Row", "city": "Leeds",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var moved struct {
		Outcome  string `json:"outcome"`
		Customer struct {
			Address struct {
				ID       int64  `json:"address_id"`
				Postcode string `json:"postcode"`
			} `json:"address"`
		} `json:"customer"`
	}
	decode(t, rec, &moved)
	assert.Equal(t, service.AddressMutated, moved.Outcome)
	assert.Equal(t, "LS14AP", moved.Customer.Address.Postcode)

	rec = a.do(http.MethodPut, base, s.Access.Token, echo.Map{
		"forename": "Augusta", "surname": "King", "address_id": moved.Customer.Address.ID,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "AUGUSTA")

	rec = a.do(http.MethodPut, base, s.Access.Token, echo.Map{"forename": "A", "surname": "K", "address_id": 999})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(http.MethodGet, "/v1/staff/customers", s.Access.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var all []json.RawMessage
	decode(t, rec, &all)
	assert.Len(t, all, 1)
}

func TestAuthSession(t *testing.T) {
	a := newAPI(t)

	rec := a.do(http.MethodPost, "/v1/auth/login", "", echo.Map{"username": "alice", "password": "wrong horse"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPost, "/v1/auth/login", "", echo.Map{"username": "alice"}).Code)

	s := a.login()
	rec = a.do(http.MethodGet, "/v1/me", s.Access.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"alice"`)

	rec = a.do(http.MethodPost, "/v1/auth/refresh", "", echo.Map{"refresh_token": s.Refresh.Token})
	require.Equal(t, http.StatusOK, rec.Code)
	var next session
	decode(t, rec, &next)
	assert.NotEqual(t, s.Refresh.Token, next.Refresh.Token)

	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodPost, "/v1/auth/refresh", "", echo.Map{"refresh_token": s.Refresh.Token}).Code)
	assert.Equal(t, http.StatusNoContent, a.do(http.MethodPost, "/v1/auth/logout", "", echo.Map{"refresh_token": next.Refresh.Token}).Code)
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodPost, "/v1/auth/refresh", "", echo.Map{"refresh_token": next.Refresh.Token}).Code)
}

func TestErrorShape(t *testing.T) {
	a := newAPI(t)

	rec := a.do(http.MethodGet, "/v1/components/x/1", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"invalid brand"}`, rec.Body.String())

	rec = a.do(http.MethodPost, "/v1/auth/login", "", echo.Map{"username": "alice"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Password: failed required"}`, rec.Body.String())
}
