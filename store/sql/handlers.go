package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

func ruleHandlers() repository.ModelHandlers[*ruleRecord] {
	return repository.ModelHandlers[*ruleRecord]{
		NewRecord: func() *ruleRecord {
			return &ruleRecord{}
		},
		GetID: func(record *ruleRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *ruleRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *ruleRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func crossReferenceHandlers() repository.ModelHandlers[*crossReferenceRecord] {
	return repository.ModelHandlers[*crossReferenceRecord]{
		NewRecord: func() *crossReferenceRecord {
			return &crossReferenceRecord{}
		},
		GetID: func(record *crossReferenceRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *crossReferenceRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *crossReferenceRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func assessmentHandlers() repository.ModelHandlers[*assessmentRecord] {
	return repository.ModelHandlers[*assessmentRecord]{
		NewRecord: func() *assessmentRecord {
			return &assessmentRecord{}
		},
		GetID: func(record *assessmentRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *assessmentRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *assessmentRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func alertHandlers() repository.ModelHandlers[*alertRecord] {
	return repository.ModelHandlers[*alertRecord]{
		NewRecord: func() *alertRecord {
			return &alertRecord{}
		},
		GetID: func(record *alertRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *alertRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *alertRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

// Run rows are keyed by caller-supplied batch ids, so GetID only maps
// cleanly when the id happens to be a UUID; the identifier hooks carry
// the real key.
func runHandlers() repository.ModelHandlers[*runRecordRow] {
	return repository.ModelHandlers[*runRecordRow]{
		NewRecord: func() *runRecordRow {
			return &runRecordRow{}
		},
		GetID: func(record *runRecordRow) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.BatchID)
		},
		SetID: func(record *runRecordRow, id uuid.UUID) {
			if record == nil {
				return
			}
			record.BatchID = id.String()
		},
		GetIdentifier: func() string {
			return "batch_id"
		},
		GetIdentifierValue: func(record *runRecordRow) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.BatchID)
		},
	}
}

func inventoryHandlers() repository.ModelHandlers[*inventoryRecord] {
	return repository.ModelHandlers[*inventoryRecord]{
		NewRecord: func() *inventoryRecord {
			return &inventoryRecord{}
		},
		GetID: func(record *inventoryRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *inventoryRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *inventoryRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}
