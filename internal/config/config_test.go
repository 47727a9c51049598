package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAdminIDs(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected []int64
	}{
		{
			name:     "Plain list",
			raw:      "123,456",
			expected: []int64{123, 456},
		},
		{
			name:     "Spaces and empty entries",
			raw:      " 123 , ,456,",
			expected: []int64{123, 456},
		},
		{
			name:     "Garbage entries skipped",
			raw:      "abc,-5,0,789",
			expected: []int64{789},
		},
		{
			name:     "Empty input",
			raw:      "",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseAdminIDs(tt.raw))
		})
	}
}

func TestIsAdmin(t *testing.T) {
	cfg := &Config{AdminIDs: []int64{100, 200}}

	assert.True(t, cfg.IsAdmin(100))
	assert.True(t, cfg.IsAdmin(200))
	assert.False(t, cfg.IsAdmin(300))
}

func TestIsSupportedCrypto(t *testing.T) {
	for _, c := range SupportedCryptos {
		assert.True(t, IsSupportedCrypto(c.Ticker))
	}

	assert.False(t, IsSupportedCrypto("doge"))
	assert.False(t, IsSupportedCrypto("BTC"))
	assert.False(t, IsSupportedCrypto(""))
}
