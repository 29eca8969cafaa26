// Package db - persistence layer
package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alwitt/lexvault/models"
	"github.com/oklog/ulid/v2"
	"gorm.io/datatypes"
)

/*
RecordAuditEvent record a new audit event

	@param ctx context.Context - execution context
	@param eventType models.AuditEventTypeENUMType - event type
	@param actorID string - account triggering the event
	@param documentID string - related document, may be empty
	@param metadata interface{} - event metadata, may be nil
	@returns the event entry
*/
func (d *databaseImpl) RecordAuditEvent(
	ctx context.Context,
	eventType models.AuditEventTypeENUMType,
	actorID string,
	documentID string,
	metadata interface{},
) (models.AuditEvent, error) {
	newEntry := AuditEventDBEntry{
		AuditEvent: models.AuditEvent{
			ID:         ulid.Make().String(),
			EventType:  eventType,
			ActorID:    actorID,
			DocumentID: documentID,
		},
	}

	if metadata != nil {
		if err := d.validator.Struct(metadata); err != nil {
			return models.AuditEvent{}, fmt.Errorf(
				"new audit event '%s' metadata entry is not valid [%w]", eventType, err,
			)
		}

		metadataStr, err := json.Marshal(metadata)
		if err != nil {
			return models.AuditEvent{}, fmt.Errorf(
				"new audit event '%s' metadata serialization failed [%w]", eventType, err,
			)
		}
		newEntry.Metadata = datatypes.JSON(metadataStr)
	}

	if err := d.validator.Struct(&newEntry); err != nil {
		return models.AuditEvent{}, fmt.Errorf(
			"new audit event '%s' entry is not valid [%w]", eventType, err,
		)
	}

	if tmp := d.db.WithContext(ctx).Create(&newEntry); tmp.Error != nil {
		return models.AuditEvent{}, fmt.Errorf(
			"new audit event '%s' insert failed [%w]", eventType, tmp.Error,
		)
	}

	return newEntry.AuditEvent, nil
}

/*
ListAuditEvents list captured audit events

	@param ctx context.Context - execution context
	@param filters AuditEventQueryFilter - entry listing filter
	@return list of audit events
*/
func (d *databaseImpl) ListAuditEvents(
	ctx context.Context, filters AuditEventQueryFilter,
) ([]models.AuditEvent, error) {
	query := d.db.WithContext(ctx).Model(&AuditEventDBEntry{})

	if len(filters.EventTypes) > 0 {
		query = query.Where("type in ?", filters.EventTypes)
	}
	if filters.ActorID != nil {
		query = query.Where("actor_id = ?", *filters.ActorID)
	}
	if filters.DocumentID != nil {
		query = query.Where("document_id = ?", *filters.DocumentID)
	}
	if filters.EventsAfter != nil {
		query = query.Where("created_at >= ?", *filters.EventsAfter)
	}
	if filters.EventsBefore != nil {
		query = query.Where("created_at <= ?", *filters.EventsBefore)
	}

	query = applyPaging(query, filters.CommonListEntryQueryFilter)

	// ULIDs sort by creation time
	query = query.Order("id")

	var entries []AuditEventDBEntry
	if tmp := query.Find(&entries); tmp.Error != nil {
		return nil, fmt.Errorf("failed to list captured audit events [%w]", tmp.Error)
	}

	result := []models.AuditEvent{}
	for _, entry := range entries {
		result = append(result, entry.AuditEvent)
	}

	return result, nil
}
