package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/zipshift-backend/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	require.NoError(t, err)
	require.Len(t, matches, 1, "expected one %s migration", suffix)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	return string(data)
}

func TestMigrationDirectoryIsValid(t *testing.T) {
	require.NoError(t, migrate.ValidateDir("migrations"))
}

func TestParcelsMigrationGuardsLegsAndMoney(t *testing.T) {
	content := readMigration(t, "create_parcels")
	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS parcels",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_parcels_tracking_number",
		"pickup_credited boolean NOT NULL DEFAULT false",
		"delivery_credited boolean NOT NULL DEFAULT false",
		"CHECK (cod_cents >= 0)",
		"CHECK (NOT pickup_credited OR pickup_rider_id IS NOT NULL)",
		"DROP TABLE IF EXISTS parcels",
	} {
		assert.Contains(t, content, sub)
	}
}

func TestBillingMigrationKeepsPendingCodNonNegative(t *testing.T) {
	content := readMigration(t, "create_billing")
	for _, sub := range []string{
		"merchant_id uuid PRIMARY KEY",
		"CHECK (pending_cod_cents >= 0)",
		"REFERENCES billing_ledgers(merchant_id)",
		"DROP TABLE IF EXISTS billing_ledgers",
	} {
		assert.Contains(t, content, sub)
	}
}

func TestTrackingEventsAreAppendOnly(t *testing.T) {
	content := readMigration(t, "create_tracking_events")
	assert.Contains(t, content, "BEFORE UPDATE OR DELETE ON tracking_events")
}

func TestEnumMigrationMatchesCanonicalStatuses(t *testing.T) {
	content := readMigration(t, "create_enums")
	for _, status := range []string{"unpaid", "paid", "ready-to-pickup", "in-transit", "reached-service-center", "ready-for-delivery", "delivered", "cancelled"} {
		assert.True(t, strings.Contains(content, "'"+status+"'"), status)
	}
	assert.NotContains(t, content, "'shipped'")
}

func TestEmbeddedMigrationsMatchDirectory(t *testing.T) {
	entries, err := migrate.Migrations.ReadDir("migrations")
	require.NoError(t, err)

	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	require.NoError(t, err)
	assert.Len(t, entries, len(onDisk))
}

func TestCreateSQLMigrationSanitizesAndValidates(t *testing.T) {
	dir := t.TempDir()

	path, err := migrate.CreateSQLMigration(dir, "  Add Payout Index! ")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "_add_payout_index.sql"), path)
	require.NoError(t, migrate.ValidateDir(dir))

	_, err = migrate.CreateSQLMigration(dir, "!!!")
	require.Error(t, err)
}

func TestValidateDirRejectsBrokenFiles(t *testing.T) {
	cases := map[string]string{
		"20260101000000_bad name.sql":   "-- +goose Up\n-- +goose Down\n",
		"20260101000000_no_down.sql":    "-- +goose Up\nSELECT 1;\n",
		"20260101000000_reversed.sql":   "-- +goose Down\n-- +goose Up\n",
		"20260101000000_unbalanced.sql": "-- +goose Up\n-- +goose StatementBegin\n-- +goose Down\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
			assert.Error(t, migrate.ValidateDir(dir))
		})
	}
}
