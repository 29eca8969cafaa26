package audit_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/alwitt/lexvault/audit"
	"github.com/alwitt/lexvault/db"
	mockaudit "github.com/alwitt/lexvault/mocks/audit"
	"github.com/alwitt/lexvault/models"
	"github.com/apex/log"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm/logger"
)

func TestDBSink(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()

	testDB := fmt.Sprintf("/tmp/lexvault_ut_%s.db", ulid.Make().String())
	persistence, err := db.NewConnection(db.GetSqliteDialector(testDB), logger.Error)
	assert.Nil(err)
	assert.Nil(persistence.RunSQLInTransaction(utCtx, db.DefineTables))

	uut := audit.NewDBSink(persistence)

	actor := uuid.NewString()
	docID := uuid.NewString()

	uut.Emit(utCtx, audit.Event{
		Type:       models.AuditEventTypeDecryptFailed,
		ActorID:    actor,
		DocumentID: docID,
		Metadata: models.AuditDecryptRelated{
			Outcome:   models.DecryptionWrongKey,
			KeySource: models.KeySourceManual,
		},
	})

	// Invalid metadata is dropped without disturbing the caller
	uut.Emit(utCtx, audit.Event{
		Type:    models.AuditEventTypeKeyGenerated,
		ActorID: actor,
		Metadata: models.AuditKeyGenerated{
			Mode: models.KeyModeAuto, Fingerprint: "not hex",
		},
	})

	assert.Nil(persistence.UseDatabase(utCtx, func(ctx context.Context, dbClient db.Database) error {
		events, err := dbClient.ListAuditEvents(ctx, db.AuditEventQueryFilter{ActorID: &actor})
		assert.Nil(err)
		assert.Len(events, 1)
		if len(events) == 1 {
			assert.Equal(models.AuditEventTypeDecryptFailed, events[0].EventType)
			assert.Equal(docID, events[0].DocumentID)
		}
		return nil
	}))
}

func TestMultiSink(t *testing.T) {
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()

	sink1 := mockaudit.NewSink(t)
	sink2 := mockaudit.NewSink(t)

	event := audit.Event{
		Type:    models.AuditEventTypeKeyShareAccessed,
		ActorID: uuid.NewString(),
		Metadata: models.AuditKeyShareRelated{
			ShareID: uuid.NewString(), Recipient: uuid.NewString(),
		},
	}

	sink1.On("Emit", mock.Anything, event).Return().Once()
	sink2.On("Emit", mock.Anything, event).Return().Once()

	uut := audit.NewMultiSink(sink1, sink2, audit.NewLogSink(log.InfoLevel), audit.NewNopSink())
	uut.Emit(utCtx, event)
}
