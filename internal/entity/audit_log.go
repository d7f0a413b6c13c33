package entity

// AuditLog is the immutable record of every admin-triggered state
// transition. Rows are only ever inserted.
type AuditLog struct {
	Base

	Actor  string `gorm:"index"`
	Action string `gorm:"index"`

	RefType string
	RefID   string `gorm:"index"`

	Before Map
	After  Map
}
