package ingest_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"unify/internal/entity/merge"
	"unify/internal/identifier"
	idmemory "unify/internal/identifier/store/memory"
	"unify/internal/ingest"
	"unify/internal/ingest/models"
	"unify/internal/ingest/store/memory"
	id "unify/pkg/domain"
	dErrors "unify/pkg/domain-errors"
	"unify/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	ctx         context.Context
	now         time.Time
	identifiers *idmemory.Store
	svc         *ingest.Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.now = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.identifiers = idmemory.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.svc = ingest.NewService(
		memory.NewRunStore(), memory.NewRecordStore(),
		s.identifiers, merge.NewMemoryTx(), logger, repairMetrics, "1",
	)
}

func (s *ServiceSuite) startRun() *models.Run {
	run, err := s.svc.StartRun(s.ctx, "clinic-export")
	s.Require().NoError(err)
	return run
}

func (s *ServiceSuite) TestStartRunBeginsRunning() {
	run := s.startRun()
	s.Equal(models.RunStateRunning, run.State)
	s.Equal("clinic-export", run.Source)
	s.Equal(s.now, run.StartedAt)
	s.False(run.ID.IsNil())
}

func (s *ServiceSuite) TestStartRunRequiresSource() {
	_, err := s.svc.StartRun(s.ctx, "")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ServiceSuite) TestStageRecordFillsDefaults() {
	run := s.startRun()

	rec, err := s.svc.StageRecord(s.ctx, &models.RawRecord{
		RunID:          run.ID,
		SourceRecordID: "row-17",
		EntityType:     id.EntityTypePerson,
		Attributes:     map[string]string{"name": "Ada Byrne"},
	})
	s.Require().NoError(err)
	s.False(rec.ID.IsNil())
	s.Equal("clinic-export", rec.Source)
	s.Equal(s.now, rec.CreatedAt)
}

func (s *ServiceSuite) TestStageRecordAttachesNormalizedIdentifiers() {
	run := s.startRun()
	entityID := id.NewEntityID()

	_, err := s.svc.StageRecord(s.ctx, &models.RawRecord{
		RunID:          run.ID,
		SourceRecordID: "row-17",
		EntityType:     id.EntityTypePerson,
		EntityID:       entityID,
		Attributes: map[string]string{
			"name":  "Ada Byrne",
			"email": "  Ada.Byrne@Example.COM ",
			"phone": "(555) 867-5309",
		},
	})
	s.Require().NoError(err)

	idents, err := s.identifiers.ListByEntity(s.ctx, entityID)
	s.Require().NoError(err)
	s.Require().Len(idents, 2)
	byKind := map[identifier.Kind]identifier.Identifier{}
	for _, ident := range idents {
		byKind[ident.Kind] = ident
	}
	s.Equal("ada.byrne@example.com", byKind[identifier.KindEmail].Value)
	s.Equal("+15558675309", byKind[identifier.KindPhone].Value)
	s.True(byKind[identifier.KindEmail].Verified)
}

func (s *ServiceSuite) TestStageRecordMalformedContactIsSuspect() {
	run := s.startRun()
	entityID := id.NewEntityID()

	rec, err := s.svc.StageRecord(s.ctx, &models.RawRecord{
		RunID:          run.ID,
		SourceRecordID: "row-18",
		EntityType:     id.EntityTypePerson,
		EntityID:       entityID,
		Attributes: map[string]string{
			"email": "not-an-email",
			"phone": "(555) 867-5309",
		},
	})
	s.Require().NoError(err, "a bad contact value must not abort the row")
	s.True(rec.Suspect)

	idents, err := s.identifiers.ListByEntity(s.ctx, entityID)
	s.Require().NoError(err)
	s.Require().Len(idents, 1, "only the valid value attaches")
	s.Equal(identifier.KindPhone, idents[0].Kind)
	s.False(idents[0].Verified, "identifiers from suspect records stay unverified")
}

func (s *ServiceSuite) TestStageRecordUnlinkedAttachesNothing() {
	run := s.startRun()

	_, err := s.svc.StageRecord(s.ctx, &models.RawRecord{
		RunID:          run.ID,
		SourceRecordID: "row-19",
		EntityType:     id.EntityTypePerson,
		Attributes:     map[string]string{"email": "ada.byrne@example.com"},
	})
	s.Require().NoError(err)

	owners, err := s.identifiers.FindOwners(s.ctx, identifier.KindEmail, "ada.byrne@example.com")
	s.Require().NoError(err)
	s.Empty(owners)
}

func (s *ServiceSuite) TestStageRecordRejectsDuplicateSourceRecord() {
	run := s.startRun()
	rec := &models.RawRecord{
		RunID:          run.ID,
		SourceRecordID: "row-17",
		EntityType:     id.EntityTypePerson,
	}
	_, err := s.svc.StageRecord(s.ctx, rec)
	s.Require().NoError(err)

	_, err = s.svc.StageRecord(s.ctx, &models.RawRecord{
		RunID:          run.ID,
		SourceRecordID: "row-17",
		EntityType:     id.EntityTypePerson,
	})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestStageRecordRequiresRunningRun() {
	run := s.startRun()
	s.Require().NoError(s.svc.CompleteRun(s.ctx, run.ID))

	_, err := s.svc.StageRecord(s.ctx, &models.RawRecord{
		RunID:          run.ID,
		SourceRecordID: "row-1",
		EntityType:     id.EntityTypePerson,
	})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestStageRecordRejectsUnknownEntityType() {
	run := s.startRun()

	_, err := s.svc.StageRecord(s.ctx, &models.RawRecord{
		RunID:          run.ID,
		SourceRecordID: "row-1",
		EntityType:     id.EntityType("spaceship"),
	})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ServiceSuite) TestCompleteRunIsFinal() {
	run := s.startRun()
	s.Require().NoError(s.svc.CompleteRun(s.ctx, run.ID))

	err := s.svc.FailRun(s.ctx, run.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestGetRunReturnsCounts() {
	run := s.startRun()
	for i, suspect := range []bool{false, false, true} {
		_, err := s.svc.StageRecord(s.ctx, &models.RawRecord{
			RunID:          run.ID,
			SourceRecordID: string(rune('a' + i)),
			EntityType:     id.EntityTypeAnimal,
			Suspect:        suspect,
		})
		s.Require().NoError(err)
	}

	got, counts, err := s.svc.GetRun(s.ctx, run.ID)
	s.Require().NoError(err)
	s.Equal(run.ID, got.ID)
	s.EqualValues(3, counts.Total)
	s.EqualValues(1, counts.Suspect)
}

func (s *ServiceSuite) TestGetRunUnknownIsNotFound() {
	_, _, err := s.svc.GetRun(s.ctx, id.NewRunID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
