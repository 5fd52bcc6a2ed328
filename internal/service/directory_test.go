package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/bike-sales-counter/internal/model"
	"github.com/iliyamo/bike-sales-counter/internal/testutil"
)

func TestRegisterCustomerSharesAddress(t *testing.T) {
	h := newHarness(t)

	a := h.register(t, "Ada", "Lovelace", "s10 3ag", 12)
	b := h.register(t, "Charles", "Babbage", "S10 3AG", 12)

	assert.Equal(t, "S103AG", a.Address.Postcode)
	assert.Equal(t, "WESTERN BANK", a.Address.RoadName)
	assert.Equal(t, a.Address.ID, b.Address.ID)
	assert.Equal(t, 1, testutil.Count(t, h.db, "addresses", "1 = 1"))
}

func TestRegisterCustomerValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	cases := map[string]NewCustomer{
		"bad postcode": {Forename: "A", Surname: "B", Address: AddressInput{Postcode: "nowhere", HouseNum: 1, Road: "R", City: "C"}},
		"no house":     {Forename: "A", Surname: "B", Address: AddressInput{Postcode: "S10 3AG", Road: "R", City: "C"}},
		"no road":      {Forename: "A", Surname: "B", Address: AddressInput{Postcode: "S10 3AG", HouseNum: 1, City: "C"}},
		"no surname":   {Forename: "A", Address: AddressInput{Postcode: "S10 3AG", HouseNum: 1, Road: "R", City: "C"}},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := h.directory.RegisterCustomer(ctx, in)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
	assert.Equal(t, 0, testutil.Count(t, h.db, "customers", "1 = 1"))
}

func TestFindCustomerSanitisesIdentity(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	want := h.register(t, "Ada", "Lovelace", "S10 3AG", 12)

	got, err := h.directory.FindCustomer(ctx, model.Identity{Forename: " ada", Surname: "LOVELACE ", HouseNum: 12, Postcode: "s103ag"})
	require.NoError(t, err)
	assert.Equal(t, want.Customer.ID, got.Customer.ID)
	assert.Equal(t, "12 Western Bank", got.Address.Lines()[0])

	_, err = h.directory.FindCustomer(ctx, model.Identity{Forename: "Ada", Surname: "Lovelace", HouseNum: 13, Postcode: "S103AG"})
	assert.ErrorIs(t, err, ErrCustomerNotFound)
}

func TestFindAddress(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.register(t, "Ada", "Lovelace", "S10 3AG", 12)

	a, err := h.directory.FindAddress(ctx, "s10 3ag", 12)
	require.NoError(t, err)
	assert.Equal(t, "SHEFFIELD", a.CityName)

	_, err = h.directory.FindAddress(ctx, "S10 3AG", 99)
	assert.ErrorIs(t, err, ErrAddressNotFound)

	_, err = h.directory.CreateAddress(ctx, AddressInput{Postcode: "S10 3AG", HouseNum: 12, Road: "Elm", City: "York"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestUpdateCustomerAddressForksSharedAddress(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.register(t, "Ada", "Lovelace", "S10 3AG", 12)
	b := h.register(t, "Charles", "Babbage", "S10 3AG", 12)

	moved, outcome, err := h.directory.UpdateCustomerAddress(ctx, a.Customer.ID,
		AddressInput{Postcode: "LS1 4AP", HouseNum: 3, Road: "Park Row", City: "Leeds"})
	require.NoError(t, err)
	assert.Equal(t, AddressForked, outcome)
	assert.NotEqual(t, b.Address.ID, moved.Address.ID)
	assert.Equal(t, "LS14AP", moved.Address.Postcode)

	stay, err := h.directory.GetCustomer(ctx, b.Customer.ID)
	require.NoError(t, err)
	assert.Equal(t, b.Address, stay.Address)
}

func TestUpdateCustomerAddressMutatesSoleOccupancy(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.register(t, "Ada", "Lovelace", "S10 3AG", 12)

	moved, outcome, err := h.directory.UpdateCustomerAddress(ctx, a.Customer.ID,
		AddressInput{Postcode: "LS1 4AP", HouseNum: 3, Road: "Park Row", City: "Leeds"})
	require.NoError(t, err)
	assert.Equal(t, AddressMutated, outcome)
	assert.Equal(t, a.Address.ID, moved.Address.ID)
	assert.Equal(t, "PARK ROW", moved.Address.RoadName)
	assert.Equal(t, 1, testutil.Count(t, h.db, "addresses", "1 = 1"))
}

func TestUpdateCustomerAddressReusesExisting(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.register(t, "Ada", "Lovelace", "S10 3AG", 12)
	d := h.register(t, "Grace", "Hopper", "LS1 4AP", 3)

	moved, outcome, err := h.directory.UpdateCustomerAddress(ctx, a.Customer.ID,
		AddressInput{Postcode: "ls1 4ap", HouseNum: 3, Road: "Ignored", City: "Ignored"})
	require.NoError(t, err)
	assert.Equal(t, AddressReused, outcome)
	assert.Equal(t, d.Address.ID, moved.Address.ID)
	assert.Equal(t, d.Address.RoadName, moved.Address.RoadName)
}

func TestUpdateCustomerAddressUnknownCustomer(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.directory.UpdateCustomerAddress(context.Background(), 404,
		AddressInput{Postcode: "LS1 4AP", HouseNum: 3, Road: "Park Row", City: "Leeds"})
	assert.ErrorIs(t, err, ErrCustomerNotFound)
}

func TestUpdateCustomer(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.register(t, "Ada", "Lovelace", "S10 3AG", 12)

	c := a.Customer
	c.Surname = "King"
	require.NoError(t, h.directory.UpdateCustomer(ctx, c))
	got, err := h.directory.GetCustomer(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "KING", got.Customer.Surname)

	c.AddressID = 999
	assert.ErrorIs(t, h.directory.UpdateCustomer(ctx, c), ErrAddressNotFound)

	c.ID = 999
	c.AddressID = a.Address.ID
	assert.ErrorIs(t, h.directory.UpdateCustomer(ctx, c), ErrCustomerNotFound)

	all, err := h.directory.ListCustomers(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
