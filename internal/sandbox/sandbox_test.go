package sandbox

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeguard/codeguard/internal/config"
	"github.com/codeguard/codeguard/internal/logger"
)

func TestParseLastJSON(t *testing.T) {
	tests := []struct {
		name   string
		stdout string
		wantOK bool
		check  func(t *testing.T, doc map[string]interface{})
	}{
		{
			name:   "single json line",
			stdout: `{"success": true}`,
			wantOK: true,
			check: func(t *testing.T, doc map[string]interface{}) {
				assert.Equal(t, true, doc["success"])
			},
		},
		{
			name:   "interleaved user prints",
			stdout: "debug line\nanother print\n{\"success\": false, \"error_type\": \"NameError\"}\n",
			wantOK: true,
			check: func(t *testing.T, doc map[string]interface{}) {
				assert.Equal(t, "NameError", doc["error_type"])
			},
		},
		{
			name:   "json followed by trailing noise takes last parseable",
			stdout: "{\"first\": 1}\nnoise at the end",
			wantOK: true,
			check: func(t *testing.T, doc map[string]interface{}) {
				assert.Equal(t, float64(1), doc["first"])
			},
		},
		{
			name:   "braces that are not json",
			stdout: "{not json}\n",
			wantOK: false,
		},
		{
			name:   "no json at all",
			stdout: "hello\nworld\n",
			wantOK: false,
		},
		{
			name:   "empty output",
			stdout: "",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, ok := ParseLastJSON(tt.stdout)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK && tt.check != nil {
				tt.check(t, doc)
			}
		})
	}
}

func TestDeniedImport(t *testing.T) {
	tests := []struct {
		name   string
		source string
		denied string
	}{
		{"plain import", "import os\nprint(os.getcwd())", "os"},
		{"from import", "from subprocess import run\nrun(['ls'])", "subprocess"},
		{"aliased", "import socket as s", "socket"},
		{"clean", "import math\nprint(math.pi)", ""},
		{"name mentions but no import", "osval = 1\nprint(osval)", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.denied, deniedImport(tt.source))
		})
	}
}

func TestSubprocessRefusesDeniedImports(t *testing.T) {
	exec := newSubprocessExecutor(config.Default().Sandbox, logger.Nop())

	res, err := exec.Run(context.Background(), "import socket\nprint('hi')", "")
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Contains(t, res.SkipReason, "socket")
	assert.Equal(t, "subprocess", res.Backend)
}

func TestDisabledBackendSkips(t *testing.T) {
	cfg := config.Default().Sandbox
	cfg.Backend = config.SandboxDisabled

	exec, err := New(cfg, logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, "disabled", exec.Backend())

	res, err := exec.Run(context.Background(), "print(1)", "")
	require.NoError(t, err)
	assert.True(t, res.Skipped)
}

func TestUnknownBackendRejected(t *testing.T) {
	cfg := config.Default().Sandbox
	cfg.Backend = "chroot"

	_, err := New(cfg, logger.Nop())
	assert.Error(t, err)
}
