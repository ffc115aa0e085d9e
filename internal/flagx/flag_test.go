package flagx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		allowed []string
		want    []string
	}{
		{
			name:    "separate value",
			args:    []string{"-c", "conf.yaml", "-a", "localhost"},
			allowed: []string{"-c"},
			want:    []string{"-c", "conf.yaml"},
		},
		{
			name:    "equals form",
			args:    []string{"--config=alt.json", "-a", "localhost"},
			allowed: []string{"--config"},
			want:    []string{"--config=alt.json"},
		},
		{
			name:    "unknown flags and positionals dropped",
			args:    []string{"-x", "1", "--y=2", "positional"},
			allowed: []string{"-c"},
			want:    []string{},
		},
		{
			name:    "flag at the end without value",
			args:    []string{"-d"},
			allowed: []string{"-d"},
			want:    []string{"-d"},
		},
		{
			name:    "next token is a flag, not a value",
			args:    []string{"-c", "-b", "bucket"},
			allowed: []string{"-c", "-b"},
			want:    []string{"-c", "-b", "bucket"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, tt.allowed))
		})
	}
}

func TestConfigFileFlag(t *testing.T) {
	assert.Equal(t, "a.yaml", ConfigFileFrom([]string{"-a", ":1", "-c", "a.yaml"}))
	assert.Equal(t, "b.json", ConfigFileFrom([]string{"-config=b.json"}))
	assert.Equal(t, "c.json", ConfigFileFrom([]string{"--config", "c.json"}))
	assert.Equal(t, "", ConfigFileFrom([]string{"-a", ":1"}))
}
