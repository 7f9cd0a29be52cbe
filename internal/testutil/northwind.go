// Package testutil seeds a miniature Northwind database for tests.
package testutil

import (
	"testing"

	"askdb/internal/store"
)

const northwindDDL = `
CREATE TABLE Categories (
	CategoryID   INTEGER PRIMARY KEY,
	CategoryName TEXT,
	Description  TEXT
);
CREATE TABLE Products (
	ProductID   INTEGER PRIMARY KEY,
	ProductName TEXT,
	CategoryID  INTEGER REFERENCES Categories(CategoryID),
	UnitPrice   REAL
);
CREATE TABLE Customers (
	CustomerID  TEXT PRIMARY KEY,
	CompanyName TEXT,
	Country     TEXT
);
CREATE TABLE Orders (
	OrderID    INTEGER PRIMARY KEY,
	CustomerID TEXT REFERENCES Customers(CustomerID),
	OrderDate  TEXT
);
CREATE TABLE "Order Details" (
	OrderID   INTEGER REFERENCES Orders(OrderID),
	ProductID INTEGER REFERENCES Products(ProductID),
	UnitPrice REAL,
	Quantity  INTEGER,
	Discount  REAL
);

INSERT INTO Categories VALUES
	(1, 'Beverages', 'Soft drinks, coffees, teas'),
	(2, 'Condiments', 'Sweet and savory sauces');
INSERT INTO Products VALUES
	(1, 'Chai', 1, 18.0),
	(2, 'Chang', 1, 19.0),
	(3, 'Aniseed Syrup', 2, 10.0),
	(4, 'Chef Anton''s Cajun Seasoning', 2, 22.0);
INSERT INTO Customers VALUES
	('ALFKI', 'Alfreds Futterkiste', 'Germany'),
	('ANATR', 'Ana Trujillo Emparedados', 'Mexico');
INSERT INTO Orders VALUES
	(10001, 'ALFKI', '1997-06-04'),
	(10002, 'ALFKI', '1997-12-10'),
	(10003, 'ANATR', '1997-06-20');
INSERT INTO "Order Details" VALUES
	(10001, 1, 18.0, 10, 0.0),
	(10001, 3, 10.0, 5, 0.1),
	(10002, 2, 19.0, 20, 0.0),
	(10003, 1, 18.0, 8, 0.05),
	(10003, 4, 22.0, 2, 0.0);
`

// Northwind opens an in-memory store seeded with a small slice of the
// Northwind dataset and closes it when the test ends.
func Northwind(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if _, err := s.DB().Exec(northwindDDL); err != nil {
		t.Fatalf("seed northwind: %v", err)
	}
	return s
}
