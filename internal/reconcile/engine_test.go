package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"complaintsync/internal/complaint"
	"complaintsync/internal/config"
	"complaintsync/internal/logger"
	"complaintsync/internal/storage"
	"complaintsync/internal/storage/storagetest"
	"complaintsync/internal/timestamp"
)

var kst = time.FixedZone("KST", 9*60*60)

// memSession is an in-memory check-then-write session.
type memSession struct {
	rows      map[string]complaint.Complaint
	calls     []string
	existsErr error
	insertErr error
	updateErr error
	block     bool // block until ctx is done
	vanish    bool // report the row, then lose it before the write
}

func newMem() *memSession {
	return &memSession{rows: map[string]complaint.Complaint{}}
}

func (m *memSession) Exists(ctx context.Context, id string) (bool, error) {
	m.calls = append(m.calls, "exists")
	if m.block {
		<-ctx.Done()
		return false, ctx.Err()
	}
	if m.existsErr != nil {
		return false, m.existsErr
	}
	if m.vanish {
		delete(m.rows, id)
		return true, nil
	}
	_, ok := m.rows[id]
	return ok, nil
}

func (m *memSession) Get(_ context.Context, id string) (*complaint.Complaint, error) {
	c, ok := m.rows[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &c, nil
}

func (m *memSession) Insert(_ context.Context, c *complaint.Complaint) error {
	m.calls = append(m.calls, "insert")
	if m.insertErr != nil {
		return m.insertErr
	}
	if _, ok := m.rows[c.ID]; ok {
		return fmt.Errorf("%w: %s", storage.ErrDuplicateKey, c.ID)
	}
	m.rows[c.ID] = *c
	return nil
}

func (m *memSession) Update(_ context.Context, c *complaint.Complaint) error {
	m.calls = append(m.calls, "update")
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.rows[c.ID]; !ok {
		return fmt.Errorf("update %s: %w", c.ID, storage.ErrNotFound)
	}
	m.rows[c.ID] = *c
	return nil
}

func (m *memSession) Release() {}

// upsertSession adds a native upsert on top of memSession.
type upsertSession struct {
	*memSession
}

func (u upsertSession) Upsert(_ context.Context, c *complaint.Complaint) (bool, error) {
	u.calls = append(u.calls, "upsert")
	_, existed := u.rows[c.ID]
	u.rows[c.ID] = *c
	return !existed, nil
}

func observed() (*logger.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return logger.FromZap(zap.New(core)), logs
}

func record(id string) *complaint.Complaint {
	return &complaint.Complaint{
		ID:            id,
		ComplaintDate: time.Date(2025, 5, 12, 15, 5, 0, 0, kst),
		LastEditDate:  time.Date(2025, 5, 12, 15, 5, 0, 0, kst),
		Title:         "예약 오류",
	}
}

func TestReconcile_CheckThenWriteIsIdempotent(t *testing.T) {
	sess := newMem()
	e := NewEngine(config.UpsertCheck, time.Second, nil)

	first := e.Reconcile(context.Background(), sess, record("CALL-1"))
	afterFirst := sess.rows["CALL-1"]
	second := e.Reconcile(context.Background(), sess, record("CALL-1"))

	assert.Equal(t, Inserted, first.Kind)
	assert.Equal(t, Updated, second.Kind)
	assert.Equal(t, afterFirst, sess.rows["CALL-1"])
	assert.Equal(t, []string{"exists", "insert", "exists", "update"}, sess.calls)
}

func TestReconcile_NativeUpsert(t *testing.T) {
	mem := newMem()
	sess := upsertSession{mem}
	e := NewEngine(config.UpsertNative, time.Second, nil)

	assert.Equal(t, Inserted, e.Reconcile(context.Background(), sess, record("CALL-2")).Kind)
	assert.Equal(t, Updated, e.Reconcile(context.Background(), sess, record("CALL-2")).Kind)
	assert.Equal(t, []string{"upsert", "upsert"}, mem.calls)
}

func TestReconcile_CheckStrategyIgnoresUpserter(t *testing.T) {
	mem := newMem()
	e := NewEngine(config.UpsertCheck, time.Second, nil)

	e.Reconcile(context.Background(), upsertSession{mem}, record("CALL-3"))
	assert.Equal(t, []string{"exists", "insert"}, mem.calls)
}

func TestReconcile_SkipsMissingID(t *testing.T) {
	log, logs := observed()
	sess := newMem()
	e := NewEngine(config.UpsertCheck, time.Second, log)

	for _, id := range []string{"", complaint.MissingID} {
		out := e.Reconcile(context.Background(), sess, record(id))
		assert.Equal(t, Skipped, out.Kind)
		assert.NoError(t, out.Err)
	}
	assert.Empty(t, sess.calls, "storage is never touched")
	assert.Empty(t, sess.rows)

	skipped := logs.FilterMessage("Record skipped").All()
	require.Len(t, skipped, 2)
	assert.Equal(t, "skipped", skipped[1].ContextMap()["outcome"])
	assert.Equal(t, complaint.MissingID, skipped[1].ContextMap()["id"])
	assert.Zero(t, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
}

func TestReconcile_ClassifiesFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*memSession)
		class Class
		level zapcore.Level
	}{
		{"value too long", func(m *memSession) { m.insertErr = fmt.Errorf("%w: tel", storage.ErrValueTooLong) }, ValueTooLong, zapcore.WarnLevel},
		{"duplicate key", func(m *memSession) { m.insertErr = fmt.Errorf("%w: race", storage.ErrDuplicateKey) }, DuplicateKey, zapcore.WarnLevel},
		{"generic fault", func(m *memSession) { m.existsErr = errors.New("bad connection") }, Fault, zapcore.ErrorLevel},
		{"timeout", func(m *memSession) { m.block = true }, Timeout, zapcore.ErrorLevel},
		{"row deleted before update", func(m *memSession) { m.vanish = true }, Fault, zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, logs := observed()
			sess := newMem()
			tt.setup(sess)
			e := NewEngine(config.UpsertCheck, 20*time.Millisecond, log)

			out := e.Reconcile(context.Background(), sess, record("CALL-9"))
			assert.Equal(t, Failed, out.Kind)
			assert.Equal(t, tt.class, out.Class)
			assert.Error(t, out.Err)
			assert.Empty(t, sess.rows, "a failed record leaves no row")

			entries := logs.FilterLevelExact(tt.level).All()
			require.Len(t, entries, 1)
			fields := entries[0].ContextMap()
			assert.Equal(t, "CALL-9", fields["id"])
			assert.Equal(t, tt.class.String(), fields["class"])
		})
	}
}

func TestReconcile_FinishesAfterCancel(t *testing.T) {
	sess := newMem()
	e := NewEngine(config.UpsertCheck, time.Second, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := e.Reconcile(ctx, sess, record("CALL-4"))
	assert.Equal(t, Inserted, out.Kind, "a started record completes despite cancellation")
}

func TestReconcile_RecoversPanic(t *testing.T) {
	e := NewEngine(config.UpsertCheck, time.Second, nil)
	var sess *memSession // nil map access panics

	out := e.Reconcile(context.Background(), sess, record("CALL-5"))
	assert.Equal(t, Failed, out.Kind)
	assert.Equal(t, Fault, out.Class)
}

func TestReconcile_SQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := storagetest.Open(t)
	sess, err := db.Acquire(ctx)
	require.NoError(t, err)
	defer sess.Release()

	schema, err := complaint.DefaultSchema()
	require.NoError(t, err)
	m := complaint.NewMapper(schema, timestamp.New(kst, nil))

	row := map[string]string{
		"ID-2":   "CALL-100",
		"접수일시":   "2025년 5월 12일 오후 3:05",
		"최종편집일시": "2025년 5월 12일 오후 3:05",
		"문의상세":   strings.Repeat("민", 1500),
	}
	c := m.FromRow(row)

	e := NewEngine(config.UpsertNative, time.Second, nil)
	require.Equal(t, Inserted, e.Reconcile(ctx, sess, &c).Kind)
	stored, err := sess.Get(ctx, "CALL-100")
	require.NoError(t, err)

	again := m.FromRow(row)
	require.Equal(t, Updated, e.Reconcile(ctx, sess, &again).Kind)
	restored, err := sess.Get(ctx, "CALL-100")
	require.NoError(t, err)

	assert.Equal(t, 1000, utf8.RuneCountInString(restored.Content))
	assert.Equal(t, stored.Content, restored.Content)
	assert.True(t, stored.ComplaintDate.Equal(restored.ComplaintDate))
	assert.Equal(t, 15, restored.ComplaintDate.In(kst).Hour())
}

func TestSummary(t *testing.T) {
	s := NewSummary("import")
	require.NotEmpty(t, s.RunID)

	s.Add(Outcome{ID: "a", Kind: Inserted})
	s.Add(Outcome{ID: "b", Kind: Updated})
	s.Add(Outcome{ID: "", Kind: Skipped})
	s.Add(Outcome{ID: "c", Kind: Failed, Class: Fault, Err: errors.New("x")})
	s.Add(ParseFailure("d", errors.New("bad row")))
	s.Finish()

	assert.Equal(t, 5, s.Total())
	assert.Equal(t, 2, s.Failed)
	require.Len(t, s.Failures, 2)
	assert.Equal(t, Parse, s.Failures[1].Class)
	assert.GreaterOrEqual(t, s.Duration(), time.Duration(0))
	assert.Contains(t, s.LogFields(), "run_id")
	assert.NotEqual(t, s.RunID, NewSummary("import").RunID)
}
