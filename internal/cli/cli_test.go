package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/Konsultn-Engineering/linsql/errs"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRootCommandFlags(t *testing.T) {
	cmd := NewRootCmd()

	assert.Equal(t, "linsql", cmd.Use)
	for _, flag := range []string{"config", "dialect", "url", "pool-size", "verbose"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), "flag %q should exist", flag)
	}

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"ping", "types", "render"})
}

func TestTypesCommand(t *testing.T) {
	out, err := run(t, "types")
	require.NoError(t, err)
	for _, want := range []string{"mariadb", "postgres", "h2", "JSONB", "CHAR(36)", "BIGINT"} {
		assert.Contains(t, out, want)
	}

	out, err = run(t, "types", "--dialect", "postgres")
	require.NoError(t, err)
	assert.Contains(t, out, "JSONB")
	assert.NotContains(t, out, "mariadb")
}

func TestRenderCommand(t *testing.T) {
	out, err := run(t, "render")
	require.NoError(t, err)
	assert.Contains(t, out, "-- mariadb\nSELECT `id`, `name` FROM `users`")
	assert.Contains(t, out, `ORDER BY "id" ASC LIMIT 10 OFFSET 20`)
	assert.Contains(t, out, `ORDER BY "id" ASC OFFSET 20 ROWS FETCH NEXT 10 ROWS ONLY`)

	out, err = run(t, "render", "--dialect", "h2", "--limit", "5", "--offset", "0", "--verbose")
	require.NoError(t, err)
	assert.NotContains(t, out, "-- postgres")
	assert.Contains(t, out, "FETCH NEXT 5 ROWS ONLY")
	assert.Contains(t, out, "pattern")
}

func TestUnknownDialect(t *testing.T) {
	_, err := run(t, "render", "--dialect", "oracle")
	assert.ErrorIs(t, err, errs.ErrUnsupportedDialectFeature)
}

func TestPingCommand(t *testing.T) {
	t.Setenv("LINSQL_DRIVER", "sqlite")
	url := "file:" + filepath.Join(t.TempDir(), "ping.db")

	out, err := run(t, "ping", "--dialect", "mariadb", "--url", url, "--pool-size", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "OK mariadb")
	assert.Contains(t, out, "pool: size=1 active=0")

	_, err = run(t, "ping", "--dialect", "mariadb")
	assert.Error(t, err, "url is required")
}
