package models

// OrderSequence is the single-row counter behind the human-readable order
// number. The row is locked inside the checkout transaction so concurrent
// inserts cannot mint the same number.
type OrderSequence struct {
	ID        int   `gorm:"column:id;primaryKey"`
	NextValue int64 `gorm:"column:next_value;not null;default:1"`
}

func (OrderSequence) TableName() string {
	return "order_sequences"
}

// InvoiceSequence is a per-year counter for invoice numbers, locked the
// same way as OrderSequence.
type InvoiceSequence struct {
	ID        int   `gorm:"column:id;primaryKey"`
	Year      int   `gorm:"column:year;not null"`
	NextValue int64 `gorm:"column:next_value;not null;default:1"`
}

func (InvoiceSequence) TableName() string {
	return "invoice_sequences"
}
