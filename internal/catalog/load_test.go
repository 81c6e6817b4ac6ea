package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tunectl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadValid(t *testing.T) {
	path := writeCatalog(t, `
version: 1
variables:
  worker_connections: "4096"
services:
  - name: nginx
    config_path: /etc/nginx/nginx.conf
    check_command: ["nginx", "-t", "-c", "{path}"]
    reload_command: ["systemctl", "reload", "nginx"]
settings:
  - id: net.core.somaxconn
    backend: sysctl
    value: 65535
  - id: nginx.worker_connections
    backend: service
    service: nginx
    key: worker_connections
    value: 4096
  - id: io-scheduler-rules
    backend: file
    path: /etc/udev/rules.d/60-ioschedulers.rules
    template: |
      ACTION=="add|change", KERNEL=="nvme[0-9]*", ATTR{queue/scheduler}="none"
`)

	cat, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cat.Settings, 3)
	assert.Equal(t, BackendSysctl, cat.Settings[0].Backend)
	assert.Equal(t, "worker_connections", cat.Settings[1].DirectiveKey())

	svc, ok := cat.ServiceByName("nginx")
	require.True(t, ok)
	assert.Equal(t, AssignSpace, svc.AssignStyle())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeCatalog(t, "settings: [not: closed\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateErrors(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "bad version",
			yaml: "version: 2\nsettings:\n  - id: a\n    backend: sysctl\n    value: 1\n",
			want: "unsupported version",
		},
		{
			name: "no settings",
			yaml: "version: 1\n",
			want: "at least one setting is required",
		},
		{
			name: "duplicate ids",
			yaml: "version: 1\nsettings:\n  - {id: a, backend: sysctl, value: 1}\n  - {id: a, backend: sysctl, value: 2}\n",
			want: "duplicate setting id",
		},
		{
			name: "unknown backend",
			yaml: "version: 1\nsettings:\n  - {id: a, backend: cron, value: 1}\n",
			want: "unknown backend",
		},
		{
			name: "service without declaration",
			yaml: "version: 1\nsettings:\n  - {id: a, backend: service, service: redis, value: 1}\n",
			want: "undeclared service",
		},
		{
			name: "sysctl without value",
			yaml: "version: 1\nsettings:\n  - {id: a, backend: sysctl}\n",
			want: "requires 'value'",
		},
		{
			name: "file without template",
			yaml: "version: 1\nsettings:\n  - {id: a, backend: file, path: /etc/x}\n",
			want: "requires one of 'template' or 'template_file'",
		},
		{
			name: "file with both templates",
			yaml: "version: 1\nsettings:\n  - {id: a, backend: file, path: /etc/x, template: t, template_file: f}\n",
			want: "mutually exclusive",
		},
		{
			name: "bad mode",
			yaml: "version: 1\nsettings:\n  - {id: a, backend: file, path: /etc/x, template: t, mode: \"99z\"}\n",
			want: "invalid mode",
		},
		{
			name: "bad assign style",
			yaml: "version: 1\nservices:\n  - {name: s, config_path: /etc/s.conf, assign: arrows}\nsettings:\n  - {id: a, backend: service, service: s, value: 1}\n",
			want: "invalid assign style",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeCatalog(t, tc.yaml)
			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestFileModeDefault(t *testing.T) {
	mode, err := Setting{}.FileMode()
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), mode)

	mode, err = Setting{Mode: "0600"}.FileMode()
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), mode)
}
