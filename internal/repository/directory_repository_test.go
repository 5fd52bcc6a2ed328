package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/bike-sales-counter/internal/model"
	"github.com/iliyamo/bike-sales-counter/internal/testutil"
)

func TestAddressRepoFindAndOccupants(t *testing.T) {
	db := testutil.NewDB(t)
	ci := seedCustomer(t, db)
	addresses := NewAddressRepo(db)
	ctx := context.Background()

	a, err := addresses.Find(ctx, "S103AG", 12)
	require.NoError(t, err)
	assert.Equal(t, ci.Address, a)

	_, err = addresses.Find(ctx, "S103AG", 13)
	assert.ErrorIs(t, err, ErrNotFound)

	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()
	locked, err := addresses.LockTx(ctx, tx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a, locked)
	n, err := addresses.OccupantsTx(ctx, tx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	dup := model.Address{Postcode: "S103AG", HouseNum: 12, RoadName: "X", CityName: "Y"}
	assert.ErrorIs(t, addresses.CreateTx(ctx, tx, &dup), ErrDuplicate)
}

func TestCustomerRepoIdentityAndUpdate(t *testing.T) {
	db := testutil.NewDB(t)
	ci := seedCustomer(t, db)
	customers := NewCustomerRepo(db)
	ctx := context.Background()

	got, err := customers.FindByIdentity(ctx, model.Identity{Forename: "ADA", Surname: "LOVELACE", HouseNum: 12, Postcode: "S103AG"})
	require.NoError(t, err)
	assert.Equal(t, ci, got)

	_, err = customers.FindByIdentity(ctx, model.Identity{Forename: "ADA", Surname: "BYRON", HouseNum: 12, Postcode: "S103AG"})
	assert.ErrorIs(t, err, ErrNotFound)

	c := ci.Customer
	c.Surname = "KING"
	require.NoError(t, customers.Update(ctx, c))
	require.NoError(t, customers.Update(ctx, c)) // unchanged values still succeed

	reloaded, err := customers.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "KING", reloaded.Customer.Surname)

	c.AddressID = 999
	assert.ErrorIs(t, customers.Update(ctx, c), ErrForeignKey)

	missing := model.Customer{ID: 999, AddressID: ci.Address.ID, Forename: "A", Surname: "B"}
	assert.ErrorIs(t, customers.Update(ctx, missing), ErrNotFound)

	list, err := customers.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestBrandRepo(t *testing.T) {
	db := testutil.NewDB(t)
	brands := NewBrandRepo(db)
	ctx := context.Background()

	b, err := brands.Create(ctx, " TREK ")
	require.NoError(t, err)
	assert.NotZero(t, b.ID)
	assert.Equal(t, "TREK", b.Name)

	_, err = brands.Create(ctx, "TREK")
	assert.ErrorIs(t, err, ErrDuplicate)

	got, err := brands.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b, got)

	_, err = brands.Get(ctx, b.ID+100)
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := brands.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.Brand{b}, list)
}
