package core

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	TypeIncome  TxType = "income"
	TypeExpense TxType = "expense"
)

const (
	StockIn  Direction = "in"
	StockOut Direction = "out"
)

type (
	// TxType is the side of the ledger a transaction or category belongs to.
	TxType string

	// Direction is the movement of stock for an inventory adjustment.
	Direction string

	Category struct {
		ID        string `json:"id,omitempty"`
		Name      string `json:"name"`
		Label     string `json:"label"`
		Type      TxType `json:"type"`
		Icon      string `json:"icon,omitempty"`
		SortOrder int    `json:"sort_order"`
	}

	// CategoryPatch carries the fields of a category update. Nil fields are left untouched.
	CategoryPatch struct {
		Name      *string
		Label     *string
		Type      *TxType
		Icon      *string
		SortOrder *int
	}

	// Draft is a transaction that has not been stored yet.
	Draft struct {
		Type        TxType    `json:"type"`
		Category    string    `json:"category"`
		Amount      Money     `json:"amount"`
		Description string    `json:"description,omitempty"`
		Timestamp   time.Time `json:"timestamp,omitempty"`
	}

	Transaction struct {
		ID          string    `json:"id"`
		Type        TxType    `json:"type"`
		Category    string    `json:"category"`
		Amount      Money     `json:"amount"`
		Description string    `json:"description,omitempty"`
		Timestamp   time.Time `json:"timestamp"`
		CreatedBy   *string   `json:"created_by"`
	}

	// TransactionPatch carries a partial corrective edit.
	TransactionPatch struct {
		Type        *TxType    `json:"type,omitempty"`
		Category    *string    `json:"category,omitempty"`
		Amount      *Money     `json:"amount,omitempty"`
		Description *string    `json:"description,omitempty"`
		Timestamp   *time.Time `json:"timestamp,omitempty"`
	}

	// TransactionFilter narrows a transaction select. Zero values match everything.
	TransactionFilter struct {
		From     time.Time
		To       time.Time
		Category string
		Type     TxType
		Limit    int
	}

	Product struct {
		ID            string `json:"id,omitempty"`
		Name          string `json:"name"`
		NameBn        string `json:"name_bn,omitempty"`
		Category      string `json:"category"`
		PurchasePrice Money  `json:"purchase_price"`
		SalePriceMin  Money  `json:"sale_price_min"`
		SalePriceMax  Money  `json:"sale_price_max"`
		CurrentStock  int64  `json:"current_stock"`
		MinStock      int64  `json:"min_stock"`
	}

	InventoryLog struct {
		ID         string    `json:"id"`
		ProductID  string    `json:"product_id"`
		Type       Direction `json:"type"`
		Quantity   int64     `json:"quantity"`
		UnitPrice  Money     `json:"unit_price"`
		TotalPrice Money     `json:"total_price"`
		Timestamp  time.Time `json:"timestamp"`
	}
)

var (
	ErrInvalidType      = errors.New("type must be income or expense")
	ErrInvalidDirection = errors.New("direction must be in or out")
	ErrEmptyName        = errors.New("empty name")
	ErrEmptyLabel       = errors.New("empty label")
	ErrEmptyCategory    = errors.New("empty category")
	ErrInvalidQuantity  = errors.New("quantity must be positive")

	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
)

// MaxDescriptionLen bounds a transaction description in characters.
const MaxDescriptionLen = 200

func (t TxType) Valid() bool {
	return t == TypeIncome || t == TypeExpense
}

func (d Direction) Valid() bool {
	return d == StockIn || d == StockOut
}

// LedgerType returns the transaction type recorded for a stock movement:
// a purchase (in) is an expense, a sale (out) is income.
func (d Direction) LedgerType() TxType {
	if d == StockIn {
		return TypeExpense
	}
	return TypeIncome
}

// Apply returns stock after moving quantity in this direction. There is no floor at zero.
func (d Direction) Apply(stock, quantity int64) int64 {
	if d == StockIn {
		return stock + quantity
	}
	return stock - quantity
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return Validation(ErrEmptyName)
	}
	if strings.TrimSpace(c.Label) == "" {
		return Validation(ErrEmptyLabel)
	}
	if !c.Type.Valid() {
		return Validation(ErrInvalidType)
	}
	return nil
}

// Apply copies the non-nil patch fields onto c.
func (p CategoryPatch) Apply(c *Category) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Label != nil {
		c.Label = *p.Label
	}
	if p.Type != nil {
		c.Type = *p.Type
	}
	if p.Icon != nil {
		c.Icon = *p.Icon
	}
	if p.SortOrder != nil {
		c.SortOrder = *p.SortOrder
	}
}

func (d Draft) Validate() error {
	if !d.Type.Valid() {
		return Validation(ErrInvalidType)
	}
	if strings.TrimSpace(d.Category) == "" {
		return Validation(ErrEmptyCategory)
	}
	if err := d.Amount.Validate(); err != nil {
		return Validation(err)
	}
	if utf8.RuneCountInString(d.Description) > MaxDescriptionLen {
		return Validation(ErrDescriptionTooLong)
	}
	return nil
}

// Transaction builds the unsaved record for this draft.
func (d Draft) Transaction(createdBy *string) Transaction {
	return Transaction{
		Type:        d.Type,
		Category:    d.Category,
		Amount:      d.Amount,
		Description: d.Description,
		Timestamp:   d.Timestamp,
		CreatedBy:   createdBy,
	}
}

// Draft returns the fields of t that a re-insert would copy.
func (t Transaction) Draft() Draft {
	return Draft{
		Type:        t.Type,
		Category:    t.Category,
		Amount:      t.Amount,
		Description: t.Description,
		Timestamp:   t.Timestamp,
	}
}

func (p TransactionPatch) Validate() error {
	if p.Type != nil && !p.Type.Valid() {
		return Validation(ErrInvalidType)
	}
	if p.Category != nil && strings.TrimSpace(*p.Category) == "" {
		return Validation(ErrEmptyCategory)
	}
	if p.Amount != nil {
		if err := p.Amount.Validate(); err != nil {
			return Validation(err)
		}
	}
	return nil
}

// Apply copies the non-nil patch fields onto t.
func (p TransactionPatch) Apply(t *Transaction) {
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Timestamp != nil {
		t.Timestamp = *p.Timestamp
	}
}

// Match reports whether t passes the filter, ignoring Limit.
func (f TransactionFilter) Match(t Transaction) bool {
	if !f.From.IsZero() && t.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !t.Timestamp.Before(f.To) {
		return false
	}
	if f.Category != "" && t.Category != f.Category {
		return false
	}
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	return true
}

func (p Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return Validation(ErrEmptyName)
	}
	if strings.TrimSpace(p.Category) == "" {
		return Validation(ErrEmptyCategory)
	}
	if p.SalePriceMax.Cents > 0 && p.SalePriceMax.Cents < p.SalePriceMin.Cents {
		return Validation(errors.New("sale_price_max below sale_price_min"))
	}
	return nil
}

// LowStock reports whether the product is at or under its reorder threshold.
func (p Product) LowStock() bool {
	return p.CurrentStock <= p.MinStock
}
