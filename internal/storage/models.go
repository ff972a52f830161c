package storage

import "database/sql"

type Category struct {
	ID        string
	Name      string
	Label     string
	Type      string
	Icon      string
	SortOrder int64
}

type Transaction struct {
	ID          string
	Type        string
	Category    string
	AmountCents int64
	Description string
	OccurredAt  string
	CreatedBy   sql.NullString
}

type Product struct {
	ID                 string
	Name               string
	NameBn             string
	Category           string
	PurchasePriceCents int64
	SalePriceMinCents  int64
	SalePriceMaxCents  int64
	CurrentStock       int64
	MinStock           int64
}

type InventoryLog struct {
	ID             string
	ProductID      string
	Type           string
	Quantity       int64
	UnitPriceCents int64
	TotalCents     int64
	OccurredAt     string
}
