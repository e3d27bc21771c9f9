package domain

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings("/home/user/.migrato")

	assert.Equal(t, filepath.Join("/home/user/.migrato", "data", "site.db"), s.DatabasePath)
	assert.Equal(t, filepath.Join("/home/user/.migrato", "transfer"), s.TransferDir)
	assert.False(t, s.Prune)
	assert.Equal(t, 0, s.MaxFailures)
	assert.Equal(t, 1, s.WriteBurst)
	assert.NoError(t, s.Validate())
}

func TestSettings_Validate(t *testing.T) {
	valid := DefaultSettings("/tmp/m")

	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"empty database path", func(s *Settings) { s.DatabasePath = "" }},
		{"empty transfer dir", func(s *Settings) { s.TransferDir = "" }},
		{"negative max failures", func(s *Settings) { s.MaxFailures = -1 }},
		{"negative write rate", func(s *Settings) { s.WriteRate = -2 }},
		{"rate without burst", func(s *Settings) { s.WriteRate = 5; s.WriteBurst = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid
			tt.mutate(&s)
			err := s.Validate()
			assert.True(t, errors.Is(err, ErrInvalidInput))
		})
	}
}
