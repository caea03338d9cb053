package enums

// RecordState is the explicit soft-delete tag carried by wallets,
// transactions and domain entities.
type RecordState string

const (
	RecordStateActive  RecordState = "ACTIVE"
	RecordStateDeleted RecordState = "DELETED"
)

func (s RecordState) IsValid() bool {
	return s == RecordStateActive || s == RecordStateDeleted
}

// Scope tells a query whether soft-deleted rows are visible. Every read
// path takes one so the choice is never implicit.
type Scope int

const (
	ScopeActive Scope = iota
	ScopeIncludeDeleted
)
