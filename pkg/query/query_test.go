// Copyright (c) 2026 Albumin. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package query_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/albumin/pkg/query"
)

func TestStringList(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
		ok   bool
	}{
		{"empty", "", nil, true},
		{"json array", `["jazz", " rock "]`, []string{"jazz", "rock"}, true},
		{"comma list", "jazz, rock,,", []string{"jazz", "rock"}, true},
		{"broken json", `["jazz"`, nil, false},
		{"json of numbers", `[1,2]`, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := query.StringList(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBool(t *testing.T) {
	assert.True(t, query.Bool("true"))
	assert.True(t, query.Bool("1"))
	assert.True(t, query.Bool(" YES "))
	assert.False(t, query.Bool(""))
	assert.False(t, query.Bool("false"))
}
