package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: \":9090\"\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "app.db", cfg.Database.DSN())
	assert.Equal(t, 25, cfg.Feed.PostsPerPage)
	assert.Equal(t, 10*time.Minute, cfg.JWT.ResetExpireTime)
	assert.Equal(t, "user-events", cfg.Kafka.Topics.UserEvents)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "jwt:\n  secret: from-file\n")
	t.Setenv("SECRET_KEY", "from-env")
	t.Setenv("DATABASE_URL", "sqlite:///tmp/blog.db")
	t.Setenv("MICROBLOG_FEED_POSTS_PER_PAGE", "10")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, "tmp/blog.db", cfg.Database.DSN())
	assert.Equal(t, 10, cfg.Feed.PostsPerPage)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	path := writeConfig(t, "database:\n  driver: mysql\n")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestPostgresDSN(t *testing.T) {
	c := DatabaseConfig{Driver: "postgres", Host: "db", Port: 5432, User: "u", Password: "p", DBName: "blog", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=blog sslmode=disable", c.DSN())
}

func TestWriteDefaultIsLoadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configs", "config.yaml")
	require.NoError(t, WriteDefault(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "post-events", cfg.Kafka.Topics.PostEvents)
	assert.Equal(t, 100, cfg.Feed.MaxPageSize)
}

func TestLoadPicksDriverFromDatabaseURL(t *testing.T) {
	path := writeConfig(t, "server:\n  port: \":8080\"\n")

	for _, url := range []string{"postgres://u:p@db:5432/blog", "postgresql://u:p@db:5432/blog"} {
		t.Setenv("DATABASE_URL", url)
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "postgres", cfg.Database.Driver)
		assert.Equal(t, url, cfg.Database.DSN())
	}

	t.Setenv("DATABASE_URL", "sqlite:///var/blog.db")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "var/blog.db", cfg.Database.DSN())
}

func TestLoadRejectsDriverConflictingWithURL(t *testing.T) {
	path := writeConfig(t, "database:\n  driver: sqlite\n")
	t.Setenv("DATABASE_URL", "postgres://u:secret@db:5432/blog")

	_, err := Load(path)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret")
}

func TestLoadRejectsUnknownURLScheme(t *testing.T) {
	path := writeConfig(t, "server:\n  port: \":8080\"\n")
	t.Setenv("DATABASE_URL", "mysql://u:secret@db/blog")

	_, err := Load(path)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret")
}

func TestLoadExplicitPostgresDriver(t *testing.T) {
	path := writeConfig(t, "database:\n  driver: postgres\n  host: db\n  user: u\n  dbname: blog\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Contains(t, cfg.Database.DSN(), "host=db")
}
