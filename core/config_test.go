package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewConfig(t *testing.T) {
	tests := []struct {
		name      string
		env       map[string]string
		wantDebug bool
		wantPort  string
	}{
		{name: "defaults", env: map[string]string{"ENV": "qa"}, wantDebug: false, wantPort: "5000"},
		{name: "dev defaults", env: map[string]string{"ENV": "dev"}, wantDebug: true, wantPort: "5000"},
		{name: "unprefixed", env: map[string]string{"ENV": "qa", "DEBUG": "1", "PORT": "8080"}, wantDebug: true, wantPort: "8080"},
		{name: "unprefixed false", env: map[string]string{"ENV": "dev", "DEBUG": "false"}, wantDebug: false, wantPort: "5000"},
		{name: "invalid ignored", env: map[string]string{"ENV": "qa", "DEBUG": "lol"}, wantDebug: false, wantPort: "5000"},
		{
			name:      "prefixed wins",
			env:       map[string]string{"ENV": "qa", "DEBUG": "true", "QA_DEBUG": "false", "PORT": "8080", "QA_SERVER_PORT": "9000"},
			wantDebug: false,
			wantPort:  "9000",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{"DEBUG", "PORT", "QA_DEBUG", "QA_SERVER_PORT", "DEV_DEBUG", "DEV_SERVER_PORT"} {
				t.Setenv(key, "")
			}
			for key, val := range tt.env {
				t.Setenv(key, val)
			}

			conf := NewConfig()
			assert.Equal(t, tt.wantDebug, conf.Debug)
			assert.Equal(t, tt.wantPort, conf.Server.Port)
		})
	}
}
