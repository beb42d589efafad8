package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validPublic = `
log:
  level: debug
http:
  addr: ":8080"
  allowed_origins: ["http://localhost:8081"]
store:
  backend: memory
  request_timeout: 3s
events:
  topics:
    registration.approved: staffhub.registrations
jwt_ttl: 1h
moderation_rate_limit: 2
`

func writeConfig(t *testing.T, public, private string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "public.yaml"), []byte(public), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "private.yaml"), []byte(private), 0o600))
	return dir
}

func TestMustLoad(t *testing.T) {
	dir := writeConfig(t, validPublic, "jwt_key: 'k'\n")

	cfg := MustLoad(dir)
	assert.Equal(t, "memory", cfg.Public.Store.Backend)
	assert.Equal(t, 3*time.Second, cfg.StoreTimeout())
	assert.Equal(t, time.Hour, cfg.JwtTTL())
	assert.Equal(t, "k", cfg.JwtKey())
	assert.Equal(t, "staffhub.registrations", cfg.Public.Events.Topics["registration.approved"])
	assert.Equal(t, 2.0, cfg.Public.ModerationRateLimit)
}

func TestMustLoad_RequiredFields(t *testing.T) {
	// jwt_key is intentionally missing
	dir := writeConfig(t, validPublic, "identity_pepper: ''\n")

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic due to missing required field, got none")
		}
	}()

	_ = MustLoad(dir)
}

func TestMustLoad_EnvOverrides(t *testing.T) {
	dir := writeConfig(t, validPublic, "jwt_key: 'from-file'\n")
	t.Setenv("STAFFHUB_JWT_KEY", "from-env")
	t.Setenv("STAFFHUB_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg := MustLoad(dir)
	assert.Equal(t, "from-env", cfg.JwtKey())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Public.Events.Brokers)
}

func TestMustLoad_DotEnv(t *testing.T) {
	dir := writeConfig(t, validPublic, "jwt_key: 'from-file'\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("STAFFHUB_IDENTITY_PEPPER=cGVwcGVy\n"), 0o600))
	// godotenv never overrides a variable that is already set, even to ""
	t.Setenv("STAFFHUB_IDENTITY_PEPPER", "")
	os.Unsetenv("STAFFHUB_IDENTITY_PEPPER")

	cfg := MustLoad(dir)
	assert.Equal(t, "cGVwcGVy", cfg.Private.IdentityPepper)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Public: Public{
				Http:   Http{Addr: ":8080"},
				Store:  Store{Backend: "memory"},
				JwtTTL: time.Hour,
			},
			Private: Private{JwtKey: "k"},
		}
	}

	t.Run("memory ok", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := base()
		cfg.Public.Store.Backend = "firebase"
		assert.Error(t, cfg.Validate())
	})

	t.Run("postgres needs connection settings", func(t *testing.T) {
		cfg := base()
		cfg.Public.Store.Backend = "postgres"
		assert.Error(t, cfg.Validate())
		cfg.Private.Pg = Pg{Host: "localhost", Port: 5432, Dbname: "staffhub"}
		assert.NoError(t, cfg.Validate())
	})

	t.Run("redis needs url", func(t *testing.T) {
		cfg := base()
		cfg.Public.Store.Backend = "redis"
		assert.Error(t, cfg.Validate())
		cfg.Private.Redis.Url = "redis://localhost:6379/0"
		assert.NoError(t, cfg.Validate())
	})
}
