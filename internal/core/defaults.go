package core

// defaultCategories is the seed set offered when the backing store holds no
// categories. Order is the presentation order.
var defaultCategories = []Category{
	{Name: "photocopy", Label: "Photocopy", Type: TypeIncome, Icon: "copy"},
	{Name: "printing", Label: "Printing", Type: TypeIncome, Icon: "printer"},
	{Name: "lamination", Label: "Lamination", Type: TypeIncome, Icon: "layers"},
	{Name: "stationery_sale", Label: "Stationery Sale", Type: TypeIncome, Icon: "shopping-bag"},
	{Name: "form_filling", Label: "Online Form Filling", Type: TypeIncome, Icon: "file-text"},
	{Name: "paper_purchase", Label: "Paper Purchase", Type: TypeExpense, Icon: "file"},
	{Name: "toner_ink", Label: "Toner & Ink", Type: TypeExpense, Icon: "droplet"},
	{Name: "stationery_purchase", Label: "Stationery Purchase", Type: TypeExpense, Icon: "package"},
	{Name: "electricity", Label: "Electricity Bill", Type: TypeExpense, Icon: "zap"},
	{Name: "rent", Label: "Shop Rent", Type: TypeExpense, Icon: "home"},
	{Name: "salary", Label: "Staff Salary", Type: TypeExpense, Icon: "users"},
	{Name: "internet", Label: "Internet", Type: TypeExpense, Icon: "wifi"},
	{Name: "maintenance", Label: "Machine Maintenance", Type: TypeExpense, Icon: "tool"},
	{Name: "transport", Label: "Transport", Type: TypeExpense, Icon: "truck"},
	{Name: "misc_expense", Label: "Other Expense", Type: TypeExpense, Icon: "more-horizontal"},
}

// DefaultCategories returns a fresh copy of the seed categories with sort
// orders assigned by position. The copies carry no id.
func DefaultCategories() []Category {
	out := make([]Category, len(defaultCategories))
	for i, c := range defaultCategories {
		c.SortOrder = i
		out[i] = c
	}
	return out
}
