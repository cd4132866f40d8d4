package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"research-chatbot/internal/cache"
	"research-chatbot/internal/model"
	"research-chatbot/internal/repository"
)

type recordingPublisher struct {
	published []*model.Turn
	err       error
}

func (p *recordingPublisher) Publish(ctx context.Context, turn *model.Turn) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, turn)
	return nil
}

type managerFixture struct {
	manager   *Manager
	mock      sqlmock.Sqlmock
	cache     *cache.HistoryCache
	publisher *recordingPublisher
}

func newManagerFixture(t *testing.T, window int, publisher *recordingPublisher) *managerFixture {
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

	mr := miniredis.RunT(t)
	redisCli := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisCli.Close() })
	historyCache := cache.NewHistoryCache(redisCli, time.Minute, 5*time.Second)

	var pub TurnPublisher
	if publisher != nil {
		pub = publisher
	}
	manager := NewManager(
		repository.NewSessionRepository(db),
		repository.NewTurnRepository(db),
		historyCache,
		pub,
		window,
		zap.NewNop(),
	)
	return &managerFixture{manager: manager, mock: mock, cache: historyCache, publisher: publisher}
}

func makeTurns(n int) []model.Turn {
	turns := make([]model.Turn, n)
	for i := range turns {
		turns[i] = model.Turn{
			SessionID: "s1",
			Query:     fmt.Sprintf("q%d", i+1),
			Response:  fmt.Sprintf("r%d", i+1),
			ToolUsed:  "rag",
		}
	}
	return turns
}

func TestContextClampsCachedWindow(t *testing.T) {
	f := newManagerFixture(t, 10, nil)
	ctx := context.Background()

	require.NoError(t, f.cache.Set(ctx, "s1", makeTurns(12)))

	turns, err := f.manager.Context(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, turns, 10)
	// window keeps the most recent turns
	assert.Equal(t, "q3", turns[0].Query)
	assert.Equal(t, "q12", turns[9].Query)
}

func TestContextCacheMissFallsBackToDatabase(t *testing.T) {
	f := newManagerFixture(t, 10, nil)
	ctx := context.Background()

	rows := sqlmock.NewRows([]string{"id", "session_id", "query", "response", "tool_used", "citations", "created_at"}).
		AddRow(2, "s1", "q2", "r2", "rag", "[]", time.Now()).
		AddRow(1, "s1", "q1", "r1", "math", "[]", time.Now())
	f.mock.ExpectQuery("SELECT \\* FROM `turns`").
		WithArgs("s1", 10).
		WillReturnRows(rows)

	turns, err := f.manager.Context(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "q1", turns[0].Query)
	assert.Equal(t, "q2", turns[1].Query)
	assert.NoError(t, f.mock.ExpectationsWereMet())

	// the rebuilt window was written back to the cache
	cached, err := f.cache.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, cached, 2)
}

func TestAppendPublishesAndMarksDirty(t *testing.T) {
	publisher := &recordingPublisher{}
	f := newManagerFixture(t, 10, publisher)
	ctx := context.Background()

	require.NoError(t, f.cache.Set(ctx, "s1", makeTurns(2)))

	// touch session activity after a successful publish
	f.mock.ExpectBegin()
	f.mock.ExpectExec("UPDATE `sessions`").WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	turn := &model.Turn{SessionID: "s1", Query: "q", Response: "r", ToolUsed: "rag"}
	require.NoError(t, f.manager.Append(ctx, turn))

	require.Len(t, publisher.published, 1)
	assert.False(t, publisher.published[0].CreatedAt.IsZero())

	// cached window is invalidated until the worker flushes the turn
	cached, err := f.cache.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, cached)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestAppendFallsBackToSynchronousWrite(t *testing.T) {
	publisher := &recordingPublisher{err: errors.New("broker down")}
	f := newManagerFixture(t, 10, publisher)
	ctx := context.Background()

	f.mock.ExpectBegin()
	f.mock.ExpectExec("INSERT INTO `turns`").WillReturnResult(sqlmock.NewResult(1, 1))
	f.mock.ExpectCommit()
	f.mock.ExpectBegin()
	f.mock.ExpectExec("UPDATE `sessions`").WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	turn := &model.Turn{SessionID: "s1", Query: "q", Response: "r", ToolUsed: "math"}
	require.NoError(t, f.manager.Append(ctx, turn))

	assert.Empty(t, publisher.published)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCreateSessionAssignsUUID(t *testing.T) {
	f := newManagerFixture(t, 10, nil)

	f.mock.ExpectBegin()
	f.mock.ExpectExec("INSERT INTO `sessions`").WillReturnResult(sqlmock.NewResult(1, 1))
	f.mock.ExpectCommit()

	session, err := f.manager.CreateSession(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, session.SessionID, 36)
	assert.Equal(t, "user-1", session.UserID)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestGetSessionNotFound(t *testing.T) {
	f := newManagerFixture(t, 10, nil)

	f.mock.ExpectQuery("SELECT \\* FROM `sessions`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "session_id", "user_id", "created_at", "last_activity"}))

	_, err := f.manager.GetSession(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestDeleteSessionRemovesTurnsAndCache(t *testing.T) {
	f := newManagerFixture(t, 10, nil)
	ctx := context.Background()

	require.NoError(t, f.cache.Set(ctx, "s1", makeTurns(3)))

	f.mock.ExpectQuery("SELECT \\* FROM `sessions`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "session_id", "user_id", "created_at", "last_activity"}).
			AddRow(1, "s1", "user-1", time.Now(), time.Now()))
	f.mock.ExpectBegin()
	f.mock.ExpectExec("DELETE FROM `turns`").
		WithArgs("s1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	f.mock.ExpectCommit()
	f.mock.ExpectBegin()
	f.mock.ExpectExec("DELETE FROM `sessions`").
		WithArgs("s1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	require.NoError(t, f.manager.DeleteSession(ctx, "s1"))
	assert.NoError(t, f.mock.ExpectationsWereMet())

	// the cached window is gone too
	cached, err := f.cache.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestDeleteSessionNotFound(t *testing.T) {
	f := newManagerFixture(t, 10, nil)

	f.mock.ExpectQuery("SELECT \\* FROM `sessions`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "session_id", "user_id", "created_at", "last_activity"}))

	err := f.manager.DeleteSession(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestLockEntryEvictedWhenIdle(t *testing.T) {
	f := newManagerFixture(t, 10, nil)

	unlock := f.manager.Lock("s1")
	f.manager.mu.Lock()
	assert.Len(t, f.manager.locks, 1)
	f.manager.mu.Unlock()

	released := make(chan struct{})
	go func() {
		u := f.manager.Lock("s1")
		u()
		close(released)
	}()

	// the entry stays while a second goroutine waits on it
	require.Eventually(t, func() bool {
		f.manager.mu.Lock()
		defer f.manager.mu.Unlock()
		l, ok := f.manager.locks["s1"]
		return ok && l.refs == 2
	}, time.Second, 5*time.Millisecond)

	unlock()
	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("waiting locker never acquired after release")
	}

	f.manager.mu.Lock()
	assert.Empty(t, f.manager.locks)
	f.manager.mu.Unlock()
}

func TestLockSerializesPerSession(t *testing.T) {
	f := newManagerFixture(t, 10, nil)

	unlock := f.manager.Lock("s1")
	acquired := make(chan struct{})
	go func() {
		u := f.manager.Lock("s1")
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first still held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second lock never acquired after release")
	}

	// a different session is not blocked
	done := make(chan struct{})
	go func() {
		u := f.manager.Lock("s2")
		u()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("independent session lock blocked")
	}
}
