package model

import (
	"strconv"

	"github.com/iliyamo/bike-sales-counter/internal/utils"
)

// Address is a postal address that may be shared by several customers
// living together. Postcode is stored sanitised (upper case, alphanumeric
// only) and names are stored upper case.
type Address struct {
	ID       int64  `json:"address_id" db:"address_id"`
	Postcode string `json:"postcode" db:"postcode"`
	HouseNum int    `json:"house_num" db:"house_num"`
	RoadName string `json:"road_name" db:"road_name"`
	CityName string `json:"city_name" db:"city_name"`
}

// Lines renders the address as three display lines.
func (a Address) Lines() []string {
	return []string{
		strconv.Itoa(a.HouseNum) + " " + utils.TitleCase(a.RoadName),
		utils.TitleCase(a.CityName),
		utils.FormatPostcode(a.Postcode),
	}
}

// String joins the display lines with commas.
func (a Address) String() string {
	l := a.Lines()
	return l[0] + ", " + l[1] + ", " + l[2]
}

// Customer references exactly one address; the address is not owned.
type Customer struct {
	ID        int64  `json:"customer_id" db:"customer_id"`
	AddressID int64  `json:"address_id" db:"address_id"`
	Forename  string `json:"forename" db:"forename"`
	Surname   string `json:"surname" db:"surname"`
}

// Name is the title-cased full name.
func (c Customer) Name() string {
	return utils.TitleCase(c.Forename + " " + c.Surname)
}

// CustomerInfo pairs a customer with the address it points at.
type CustomerInfo struct {
	Customer Customer `json:"customer"`
	Address  Address  `json:"address"`
}

// Identity is what a shopper types to find their own orders.
type Identity struct {
	Forename string `json:"forename"`
	Surname  string `json:"surname"`
	HouseNum int    `json:"house_num"`
	Postcode string `json:"postcode"`
}
