package repository

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"research-chatbot/internal/model"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestReplaceForDocumentDeletesThenInserts(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewChunkRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `chunks`").
		WithArgs("doc-1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("INSERT INTO `chunks`").
		WillReturnResult(sqlmock.NewResult(1, 2))
	mock.ExpectCommit()

	chunks := []model.Chunk{
		{DocumentID: "doc-1", Ordinal: 0, Text: "first", CharLength: 5, Embedding: "[0.1,0.2]", CreatedAt: time.Now()},
		{DocumentID: "doc-1", Ordinal: 1, Text: "second", StartOffset: 5, CharLength: 6, Embedding: "[0.3,0.4]", CreatedAt: time.Now()},
	}
	require.NoError(t, repo.ReplaceForDocument("doc-1", chunks))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceForDocumentEmptySetOnlyDeletes(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewChunkRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `chunks`").
		WithArgs("doc-1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	require.NoError(t, repo.ReplaceForDocument("doc-1", nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceForDocumentRollsBackOnInsertFailure(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewChunkRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `chunks`").
		WithArgs("doc-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO `chunks`").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := repo.ReplaceForDocument("doc-1", []model.Chunk{
		{DocumentID: "doc-1", Text: "only", CharLength: 4},
	})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAllReturnsChunks(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewChunkRepository(db)

	rows := sqlmock.NewRows([]string{"id", "document_id", "ordinal", "text", "start_offset", "char_length", "embedding", "created_at"}).
		AddRow(1, "doc-1", 0, "alpha", 0, 5, "[1,0,0]", time.Now()).
		AddRow(2, "doc-1", 1, "beta", 5, 4, "[0,1,0]", time.Now())
	mock.ExpectQuery("SELECT \\* FROM `chunks`").WillReturnRows(rows)

	chunks, err := repo.ListAll()
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, []float32{1, 0, 0}, chunks[0].EmbeddingVector())
	assert.NoError(t, mock.ExpectationsWereMet())
}
