package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	testCases := []struct {
		name        string
		content     string
		env         map[string]string
		expectError bool
		check       func(t *testing.T, cfg *Config)
	}{
		{
			name: "Full file",
			content: `token: abc
log_level: debug
http_timeout: 30s
maps:
  path: /srv/maps
  user: gmodserver
fastdl:
  path: /var/www/fastdl/maps
  user: www
`,
			check: func(t *testing.T, cfg *Config) {
				require.Equal(t, "abc", cfg.Token)
				require.Equal(t, LogLevelDebug, cfg.LogLevel)
				require.Equal(t, 30*time.Second, cfg.HTTPTimeout)
				require.Equal(t, "/srv/maps", cfg.Maps.Path)
				require.Equal(t, "www", cfg.FastDL.User)
				require.Equal(t, defaultDownloadDir, cfg.Staging.DownloadDir)
				require.Equal(t, defaultMirrorURL, cfg.Mirror.URL)
				require.Equal(t, defaultRole, cfg.Role)
			},
		},
		{
			name: "Token from environment",
			content: `token: from-file
maps: {path: /m, user: a}
fastdl: {path: /f, user: b}
`,
			env: map[string]string{EnvToken: "from-env", EnvRedisURL: "redis://localhost:6379/1"},
			check: func(t *testing.T, cfg *Config) {
				require.Equal(t, "from-env", cfg.Token)
				require.Equal(t, "redis://localhost:6379/1", cfg.RedisURL)
			},
		},
		{
			name: "Missing token",
			content: `maps: {path: /m, user: a}
fastdl: {path: /f, user: b}
`,
			expectError: true,
		},
		{
			name: "Unknown log level",
			content: `token: abc
log_level: loud
maps: {path: /m, user: a}
fastdl: {path: /f, user: b}
`,
			expectError: true,
		},
		{
			name:        "Missing trees",
			content:     "token: abc\n",
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			t.Setenv(EnvToken, "")
			t.Setenv(EnvRedisURL, "")
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			path := filepath.Join(t.TempDir(), "config.yml")
			require.NoError(t, os.WriteFile(path, []byte(tc.content), 0o644))

			cfg, err := Load(path)
			if tc.expectError {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			tc.check(t, cfg)
		})
	}
}

func TestLoadTokenFromDotEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(EnvToken, "")
	require.NoError(t, os.Unsetenv(EnvToken))

	require.NoError(t, os.WriteFile(defaultEnvFile, []byte(EnvToken+"=dotenv-token\n"), 0o600))
	require.NoError(t, os.WriteFile("config.yml", []byte("maps: {path: /m, user: a}\nfastdl: {path: /f, user: b}\n"), 0o644))

	cfg, err := Load("config.yml")
	require.NoError(t, err)
	require.Equal(t, "dotenv-token", cfg.Token)
}

func TestMustLoadPanics(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(EnvToken, "")

	require.Panics(t, func() { MustLoad("missing.yml") })
}
