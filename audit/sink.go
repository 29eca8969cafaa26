// Package audit - fire-and-forget audit event sinks
package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alwitt/goutils"
	"github.com/alwitt/lexvault/db"
	"github.com/alwitt/lexvault/models"
	"github.com/apex/log"
)

// Event one audit event
//
// Metadata must never carry key text or plain text.
type Event struct {
	// Type event type
	Type models.AuditEventTypeENUMType
	// ActorID the account which triggered the event
	ActorID string
	// DocumentID related document, may be empty
	DocumentID string
	// Metadata one of the models.Audit* metadata structures, may be nil
	Metadata interface{}
}

// Sink accepts audit events
//
// Emit never fails from the caller's point of view. A sink which is unable to record an
// event reports it through its own logging.
type Sink interface {
	/*
		Emit record an audit event

			@param ctx context.Context - execution context
			@param event Event - the event
	*/
	Emit(ctx context.Context, event Event)
}

// ========================================================================================

// dbSink records events in the audit_events table
type dbSink struct {
	goutils.Component
	persistence db.Client
}

/*
NewDBSink define an audit sink backed by the database

	@param persistence db.Client - DB client
	@returns sink
*/
func NewDBSink(persistence db.Client) Sink {
	return &dbSink{
		Component: goutils.Component{
			LogTags: log.Fields{"package": "lexvault", "module": "audit", "component": "db-sink"},
			LogTagModifiers: []goutils.LogMetadataModifier{
				goutils.ModifyLogMetadataByRestRequestParam,
			},
		},
		persistence: persistence,
	}
}

func (s *dbSink) Emit(ctx context.Context, event Event) {
	logTags := s.GetLogTagsForContext(ctx)
	if err := s.persistence.UseDatabase(
		ctx, func(ctx context.Context, dbClient db.Database) error {
			_, err := dbClient.RecordAuditEvent(
				ctx, event.Type, event.ActorID, event.DocumentID, event.Metadata,
			)
			return err
		},
	); err != nil {
		log.
			WithError(err).
			WithFields(logTags).
			WithField("event-type", event.Type).
			WithField("actor", event.ActorID).
			Error("Failed to record audit event")
	}
}

// ========================================================================================

// logSink writes events to the application log
type logSink struct {
	goutils.Component
	level log.Level
}

/*
NewLogSink define an audit sink which writes to the application log

	@param level log.Level - level to log the events at
	@returns sink
*/
func NewLogSink(level log.Level) Sink {
	return &logSink{
		Component: goutils.Component{
			LogTags: log.Fields{"package": "lexvault", "module": "audit", "component": "log-sink"},
			LogTagModifiers: []goutils.LogMetadataModifier{
				goutils.ModifyLogMetadataByRestRequestParam,
			},
		},
		level: level,
	}
}

func (s *logSink) Emit(ctx context.Context, event Event) {
	entry := log.
		WithFields(s.GetLogTagsForContext(ctx)).
		WithField("event-type", event.Type).
		WithField("actor", event.ActorID)
	if event.DocumentID != "" {
		entry = entry.WithField("document", event.DocumentID)
	}
	if event.Metadata != nil {
		if encoded, err := json.Marshal(event.Metadata); err == nil {
			entry = entry.WithField("metadata", string(encoded))
		}
	}
	msg := fmt.Sprintf("AUDIT %s", event.Type)
	switch s.level {
	case log.DebugLevel:
		entry.Debug(msg)
	case log.WarnLevel:
		entry.Warn(msg)
	default:
		entry.Info(msg)
	}
}

// ========================================================================================

// multiSink fans an event out to several sinks
type multiSink []Sink

// NewMultiSink define a sink which forwards every event to each of the given sinks
func NewMultiSink(sinks ...Sink) Sink {
	return multiSink(sinks)
}

func (s multiSink) Emit(ctx context.Context, event Event) {
	for _, sink := range s {
		sink.Emit(ctx, event)
	}
}

// ========================================================================================

type nopSink struct{}

// NewNopSink define a sink which drops every event
func NewNopSink() Sink {
	return nopSink{}
}

func (nopSink) Emit(context.Context, Event) {}
