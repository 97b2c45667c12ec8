package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "complaintsync/internal/errors"
	"complaintsync/internal/logger"
	"complaintsync/internal/reconcile"
	"complaintsync/internal/storage"
	"complaintsync/internal/syncer"
)

func sqliteEnv(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "complaints.db")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", path)
	t.Setenv("LOG_MODE", "prod")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("TELEGRAM_CHAT_ID", "")
	t.Setenv("REDIS_URL", "")
	return path
}

func execute(t *testing.T, args ...string) error {
	t.Helper()
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	return cmd.ExecuteContext(context.Background())
}

func TestRootCommand_Subcommands(t *testing.T) {
	cmd := NewRootCommand()
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"import", "sync", "migrate"}, names)

	sync, _, err := cmd.Find([]string{"sync"})
	require.NoError(t, err)
	assert.NotNil(t, sync.Flags().Lookup("once"))
	assert.NotNil(t, sync.Flags().Lookup("all"))
}

func TestMigrateThenImport(t *testing.T) {
	dbPath := sqliteEnv(t)

	csvPath := filepath.Join(t.TempDir(), "export.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(
		"ID-2,접수일시,최종편집일시,민원내용\n"+
			"CALL-1,2025년 5월 12일 오후 3:05,,예약 불가\n"+
			"CALL-1,2025년 5월 12일 오후 3:05,,예약 완료\n"), 0o644))

	require.NoError(t, execute(t, "migrate"))
	require.NoError(t, execute(t, "import", "--file", csvPath))

	cfg, err := loadConfig(&RootOptions{})
	require.NoError(t, err)
	require.Equal(t, dbPath, cfg.DBPath)
	db, err := storage.Open(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	defer db.Close()
	sess, err := db.Acquire(context.Background())
	require.NoError(t, err)
	defer sess.Release()

	got, err := sess.Get(context.Background(), "CALL-1")
	require.NoError(t, err)
	assert.Equal(t, "예약 완료", got.Title)
}

func TestImport_MissingFile(t *testing.T) {
	sqliteEnv(t)
	require.NoError(t, execute(t, "migrate"))
	err := execute(t, "import", "--file", filepath.Join(t.TempDir(), "missing.csv"))
	assert.ErrorContains(t, err, "failed to open import file")
}

func TestSync_RequiresCredentials(t *testing.T) {
	sqliteEnv(t)
	t.Setenv("NOTION_API_KEY", "")
	t.Setenv("NOTION_DATABASE_ID", "")

	err := execute(t, "sync", "--once")
	require.Error(t, err)
	assert.True(t, apperrors.IsConfigError(err))
}

func TestSync_RejectsIntervalLongerThanWindow(t *testing.T) {
	sqliteEnv(t)
	t.Setenv("NOTION_API_KEY", "secret")
	t.Setenv("NOTION_DATABASE_ID", "db")
	t.Setenv("SYNC_WINDOW", "5m")
	t.Setenv("SYNC_INTERVAL", "10m")

	err := execute(t, "sync", "--once")
	var cfgErr *apperrors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "SYNC_INTERVAL", cfgErr.Key)
}

func TestReport_RecordsRuns(t *testing.T) {
	sqliteEnv(t)
	cfg, err := loadConfig(&RootOptions{})
	require.NoError(t, err)
	a, err := newApp(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	s := reconcile.NewSummary(syncer.Driver)
	s.Add(reconcile.Outcome{ID: "CALL-1", Kind: reconcile.Failed, Class: reconcile.Fault, Err: errors.New("boom")})
	s.Finish()
	a.report(context.Background(), s, nil)
	assert.Equal(t, 1, a.monitor.GetStatus().Runs[syncer.Driver].Failed)

	a.report(context.Background(), reconcile.NewSummary(syncer.Driver), apperrors.NewFetchError("query", errors.New("503")))
	assert.Equal(t, "degraded", a.monitor.GetStatus().Status)

	// Skipped runs leave the last recorded run untouched.
	a.report(context.Background(), reconcile.NewSummary(syncer.Driver), syncer.ErrRunInProgress)
	assert.Contains(t, a.monitor.GetStatus().Runs[syncer.Driver].Status, "503")
}

func TestErrorType(t *testing.T) {
	assert.Equal(t, "Database Connect Failure", errorType(apperrors.NewConnectError("x", nil)))
	assert.Equal(t, "Page Store Fetch Failure", errorType(apperrors.NewFetchError("x", nil)))
	assert.Equal(t, "Configuration Error", errorType(apperrors.NewConfigError("K", "x")))
	assert.Equal(t, "Run Failure", errorType(errors.New("x")))
}
