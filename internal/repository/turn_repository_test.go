package repository

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListRecentBySessionIDReturnsChronologicalOrder(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTurnRepository(db)

	// the query asks for newest first; the repo reverses to chronological
	rows := sqlmock.NewRows([]string{"id", "session_id", "query", "response", "tool_used", "citations", "created_at"}).
		AddRow(3, "s1", "q3", "r3", "rag", "[]", time.Now()).
		AddRow(2, "s1", "q2", "r2", "math", "[]", time.Now()).
		AddRow(1, "s1", "q1", "r1", "rag", "[]", time.Now())
	mock.ExpectQuery("SELECT \\* FROM `turns`").
		WithArgs("s1", 10).
		WillReturnRows(rows)

	turns, err := repo.ListRecentBySessionID("s1", 10)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, "q1", turns[0].Query)
	assert.Equal(t, "q2", turns[1].Query)
	assert.Equal(t, "q3", turns[2].Query)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestToolUsageAggregates(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTurnRepository(db)

	rows := sqlmock.NewRows([]string{"tool_used", "n"}).
		AddRow("rag", 5).
		AddRow("math", 2)
	mock.ExpectQuery("SELECT tool_used, COUNT\\(\\*\\) AS n FROM `turns`").
		WithArgs("s1").
		WillReturnRows(rows)

	usage, err := repo.ToolUsage("s1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"rag": 5, "math": 2}, usage)
	assert.NoError(t, mock.ExpectationsWereMet())
}
