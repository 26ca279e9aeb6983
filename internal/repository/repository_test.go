package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/entity"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(context.Background(), Config{DSN: ":memory:"}, nil)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	t.Cleanup(db.Close)
	return db
}

func newSession(t *testing.T, db *DB) *entity.ExtractionSession {
	t.Helper()
	s := &entity.ExtractionSession{ProjectID: "contracts", Tool: constants.ToolKindAI, TotalRecords: 120}
	require.NoError(t, NewSessionRepository(db, nil).Create(context.Background(), s))
	return s
}

func strPtr(s string) *string { return &s }

func TestLoadTables(t *testing.T) {
	for _, name := range []string{"extraction_session", "session_batch", "field_validation", "document"} {
		tbl, ok := tables[name]
		require.True(t, ok, name)
		require.NotEmpty(t, tbl.def.PrimaryKey, name)
		assert.Equal(t, "id", tbl.def.PrimaryKey[0].Name)
	}
	assert.NotEmpty(t, tables["field_validation"].def.Indexes)
}

func TestValidate_UsesSchemaValidators(t *testing.T) {
	assert.NoError(t, validate("extraction_session", "status", "in_progress"))
	err := validate("extraction_session", "status", "paused")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrValidation))

	assert.Error(t, validate("field_validation", "confidence_score", 101.0))
	assert.Error(t, validate("session_batch", "batch_number", 0))
	assert.NoError(t, validate("field_validation", "collection_name", nil))
}

func TestSessionRepository_CreateGetStatus(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewSessionRepository(db, nil)

	s := newSession(t, db)
	got, err := repo.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.SessionStatusInProgress, got.Status)
	assert.Equal(t, 120, got.TotalRecords)

	require.NoError(t, repo.SetStatus(ctx, s.ID, constants.SessionStatusFailed))
	got, err = repo.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.SessionStatusFailed, got.Status)

	_, err = repo.Get(ctx, uuid.New())
	assert.True(t, errors.Is(err, common.ErrNotFound))

	list, err := repo.ListByProject(ctx, "contracts")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestBatchRepository_AppendAndResume(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	s := newSession(t, db)
	batches := NewBatchRepository(db, nil)
	validations := NewValidationRepository(db, nil)

	n, err := batches.NextBatchNumber(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	b1 := &entity.SessionBatch{SessionID: s.ID, BatchNumber: 1, StartIndex: 1, EndIndex: 50,
		ExtractionPrompt: "prompt", AIResponse: "{}", InputTokenCount: 1000, OutputTokenCount: 200}
	vals := []entity.FieldValidation{
		{FieldType: constants.FieldKindSchemaField, FieldID: "f1", FieldName: "Title", ExtractedValue: strPtr("MSA"),
			ConfidenceScore: 92, ValidationStatus: constants.ValidationStatusVerified, BatchNumber: 1},
		{FieldType: constants.FieldKindCollectionProperty, FieldID: "p1", FieldName: "Name", CollectionName: "Parties",
			ConfidenceScore: 60, ValidationStatus: constants.ValidationStatusPending, RecordIndex: 1, BatchNumber: 1,
			Flags: []string{"confidence_clamped"}},
	}
	require.NoError(t, batches.AppendSucceeded(ctx, b1, vals))

	b2 := &entity.SessionBatch{SessionID: s.ID, BatchNumber: 2, StartIndex: 51, EndIndex: 100,
		ExtractionPrompt: "prompt", AIResponse: "garbage", InputTokenCount: 900, OutputTokenCount: 10,
		ErrorKind: string(common.KindNoJSONFound), ErrorMessage: "no json"}
	require.NoError(t, batches.AppendFailed(ctx, b2))

	extracted, err := batches.ExtractedCount(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, extracted, "failed batches do not advance the resume point")

	n, err = batches.NextBatchNumber(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	list, err := batches.List(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, constants.BatchStatusSucceeded, list[0].Status)
	assert.Equal(t, 2, list[0].ValidationCount)
	assert.Equal(t, constants.BatchStatusFailed, list[1].Status)
	assert.Equal(t, "NoJsonFound", list[1].ErrorKind)

	got, err := NewSessionRepository(db, nil).Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 1900, got.InputTokenCount)
	assert.Equal(t, 210, got.OutputTokenCount)

	stored, err := validations.ListBySession(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	require.NotNil(t, stored[0].ExtractedValue)
	assert.Equal(t, "MSA", *stored[0].ExtractedValue)
	assert.Nil(t, stored[1].ExtractedValue)
	assert.Equal(t, []string{"confidence_clamped"}, stored[1].Flags)

	verified, err := validations.VerifiedFieldIDs(ctx, s.ID)
	require.NoError(t, err)
	assert.Contains(t, verified, "f1")
	assert.NotContains(t, verified, "p1")
}

func TestBatchRepository_DuplicateRecordRollsBack(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	s := newSession(t, db)
	batches := NewBatchRepository(db, nil)

	dup := entity.FieldValidation{FieldType: constants.FieldKindCollectionProperty, FieldID: "p1", FieldName: "Name",
		ConfidenceScore: 90, ValidationStatus: constants.ValidationStatusVerified, BatchNumber: 1}
	b := &entity.SessionBatch{SessionID: s.ID, BatchNumber: 1, StartIndex: 1, EndIndex: 5, ExtractionPrompt: "p"}
	err := batches.AppendSucceeded(ctx, b, []entity.FieldValidation{dup, dup})
	require.Error(t, err)

	list, err := batches.List(ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestDocumentRepository(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	s := newSession(t, db)
	repo := NewDocumentRepository(db, nil)

	docs := []entity.Document{
		{Name: "a.pdf", Format: constants.PDF, ExtractedText: "alpha", Meta: entity.DocumentMeta{Pages: 2}},
		{Name: "b.xlsx", Format: constants.XLSX, ExtractedText: "beta", Meta: entity.DocumentMeta{Sheets: []string{"S1"}}},
		{Name: "broken.docx", Format: constants.DOCX, Error: "zip: not a valid zip file"},
	}
	require.NoError(t, repo.AddAll(ctx, s.ID, docs))

	got, err := repo.List(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "a.pdf", got[0].Name)
	assert.Equal(t, 2, got[0].Meta.Pages)
	assert.Equal(t, []string{"S1"}, got[1].Meta.Sheets)
	assert.Equal(t, "zip: not a valid zip file", got[2].Error)
}
