package models

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/tradeledger-backend/pkg/enums"
)

// assignIdentity fills the primary key and soft-delete tag for new rows so
// inserts behave the same on Postgres and SQLite.
func assignIdentity(id *uuid.UUID, state *enums.RecordState) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
	if state != nil && *state == "" {
		*state = enums.RecordStateActive
	}
}
