package config

import (
	"os"
	"path/filepath"
)

const defaultConfig = `server:
  port: ":8080"
  mode: "debug"
  read_timeout: 30s
  write_timeout: 30s
  rate_limit: 50
  rate_burst: 100

database:
  # driver defaults to sqlite, or follows the scheme of DATABASE_URL.
  path: "app.db"
  # driver: "postgres"
  # host: "localhost"
  # port: 5432
  # user: "microblog"
  # password: "microblog"
  # dbname: "microblog"
  # sslmode: "disable"
  max_open_conns: 25
  max_idle_conns: 5

redis:
  host: "localhost"
  port: 6379
  password: ""
  db: 0
  pool_size: 20
  min_idle_conns: 5

kafka:
  brokers:
    - "localhost:9092"
  topics:
    user_events: "user-events"
    post_events: "post-events"
  group_id: "microblog-worker"

jwt:
  secret: "change-me"
  expire_time: 24h
  reset_expire_time: 10m

feed:
  posts_per_page: 25
  max_page_size: 100

log:
  level: "info"
  format: "json"
`

// WriteDefault writes a starter config file to path, creating its directory.
func WriteDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(defaultConfig), 0o644)
}
