package export

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/entity"
	"github.com/joseph-ayodele/docextract/internal/repository"
)

func setupTestDB(t *testing.T) *repository.DB {
	t.Helper()

	db, err := repository.Open(context.Background(), repository.Config{DSN: ":memory:"}, nil)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	t.Cleanup(db.Close)
	return db
}

func strPtr(s string) *string { return &s }

func TestSessionXLSX(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	sessions := repository.NewSessionRepository(db, nil)
	batches := repository.NewBatchRepository(db, nil)
	validations := repository.NewValidationRepository(db, nil)

	s := &entity.ExtractionSession{ProjectID: "invoices", Tool: constants.ToolKindAI, TotalRecords: 2}
	require.NoError(t, sessions.Create(ctx, s))

	b1 := &entity.SessionBatch{SessionID: s.ID, BatchNumber: 1, StartIndex: 1, EndIndex: 2, InputTokenCount: 100, OutputTokenCount: 40}
	require.NoError(t, batches.AppendSucceeded(ctx, b1, []entity.FieldValidation{
		{
			FieldType: constants.FieldKindSchemaField, FieldID: "f_total", FieldName: "Total",
			ExtractedValue: strPtr("12.50"), ConfidenceScore: 92, ValidationStatus: constants.ValidationStatusVerified,
			DocumentSource: "invoice.pdf", BatchNumber: 1,
		},
		{
			FieldType: constants.FieldKindCollectionProperty, FieldID: "p_desc", FieldName: "Description",
			CollectionName: "Line items", ConfidenceScore: 40, ValidationStatus: constants.ValidationStatusPending,
			RecordIndex: 1, BatchNumber: 1, Flags: []string{"confidence_not_numeric"},
		},
	}))
	b2 := &entity.SessionBatch{SessionID: s.ID, BatchNumber: 2, StartIndex: 3, EndIndex: 3,
		ErrorKind: string(common.KindNoJSONFound), ErrorMessage: "no JSON in response"}
	require.NoError(t, batches.AppendFailed(ctx, b2))

	out, err := NewService(sessions, batches, validations, nil).SessionXLSX(ctx, s.ID)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{validationsSheet, batchesSheet}, f.GetSheetList())

	rows, err := f.GetRows(validationsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Field ID", rows[0][4])
	assert.Equal(t, "f_total", rows[1][4])
	assert.Equal(t, "12.50", rows[1][6])
	assert.Equal(t, "verified", rows[1][8])
	assert.Equal(t, "Line items", rows[2][3])
	assert.Equal(t, "confidence_not_numeric", rows[2][10])

	brows, err := f.GetRows(batchesSheet)
	require.NoError(t, err)
	require.Len(t, brows, 3)
	assert.Equal(t, "succeeded", brows[1][3])
	assert.Equal(t, "failed", brows[2][3])
	assert.Equal(t, string(common.KindNoJSONFound), brows[2][7])
}

func TestSessionXLSX_UnknownSession(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(repository.NewSessionRepository(db, nil), repository.NewBatchRepository(db, nil),
		repository.NewValidationRepository(db, nil), nil)
	_, err := svc.SessionXLSX(context.Background(), uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab…", truncate("abcdef", 3))
	assert.Equal(t, "éé…", truncate("éééé", 3))
}

func TestWriteRow_Errors(t *testing.T) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	require.NoError(t, writeRow(f, "Sheet1", 1, []any{"ok"}))
	assert.Error(t, writeRow(f, "Missing", 1, []any{"x"}), "unknown sheet")
	assert.Error(t, writeRow(f, "Sheet1", 0, []any{"x"}), "row numbers start at 1")
	assert.Error(t, writeBatches(f, []entity.SessionBatch{{BatchNumber: 1}}), "batches sheet was never created")
}
