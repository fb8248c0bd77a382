package flagx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name         string
		args         []string
		allowedFlags []string
		want         []string
	}{
		{
			name:         "short flag with separate value",
			args:         []string{"-c", "conf.toml", "sync", "warehouses"},
			allowedFlags: []string{"-c", "--config"},
			want:         []string{"-c", "conf.toml"},
		},
		{
			name:         "long flag with equals",
			args:         []string{"--config=alt.json", "status"},
			allowedFlags: []string{"-c", "--config"},
			want:         []string{"--config=alt.json"},
		},
		{
			name:         "unknown flags and positionals ignored",
			args:         []string{"voucher", "supply", "--warehouse", "2", "--field=3"},
			allowedFlags: []string{"-c", "--config"},
			want:         []string{},
		},
		{
			name:         "flag without value at end is kept",
			args:         []string{"-c"},
			allowedFlags: []string{"-c"},
			want:         []string{"-c"},
		},
		{
			name:         "next dash token is not a value",
			args:         []string{"-i", "--server=http://x"},
			allowedFlags: []string{"-i", "--server"},
			want:         []string{"-i", "--server=http://x"},
		},
		{
			name:         "several allowed flags keep order",
			args:         []string{"-a", "http://api.local/", "push", "--db", "f.db", "--other", "x"},
			allowedFlags: []string{"-a", "--db"},
			want:         []string{"-a", "http://api.local/", "--db", "f.db"},
		},
		{
			name:         "empty args",
			args:         nil,
			allowedFlags: []string{"-c"},
			want:         []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, tt.allowedFlags))
		})
	}
}

func TestConfigFile(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"short", []string{"-c", "/etc/fieldsync.toml", "status"}, "/etc/fieldsync.toml"},
		{"long with equals", []string{"sync", "--config=/tmp/c.json"}, "/tmp/c.json"},
		{"single dash long", []string{"-config", "a.json"}, "a.json"},
		{"last wins", []string{"-c", "1.json", "--config", "2.json"}, "2.json"},
		{"absent", []string{"-a", "http://x", "push"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ConfigFile(tt.args))
		})
	}
}
