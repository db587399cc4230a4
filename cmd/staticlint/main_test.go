package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnabled(t *testing.T) {
	tests := []struct {
		name     string
		analyzer string
		patterns []string
		want     bool
	}{
		{name: "exact", analyzer: "SA1000", patterns: []string{"SA1000"}, want: true},
		{name: "prefix", analyzer: "SA4010", patterns: []string{"SA4*"}, want: true},
		{name: "other prefix", analyzer: "SA1000", patterns: []string{"SA4*"}, want: false},
		{name: "no patterns", analyzer: "SA1000", want: false},
		{name: "exact does not match prefix", analyzer: "SA10000", patterns: []string{"SA1000"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, enabled(tt.analyzer, tt.patterns))
		})
	}
}

func TestDefaultConfigEnablesStaticcheck(t *testing.T) {
	assert.True(t, enabled("SA5000", defaultConfig().Staticcheck))
	assert.False(t, enabled("ST1005", defaultConfig().Stylecheck))
}
