package model

import "github.com/google/uuid"

// assignID gives a record a random id before insert unless the caller already
// chose one. Ids are generated here rather than by the database so the same
// models work on postgres and sqlite.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
