package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCmd(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		args     []string
		wantErr  string
		wantPath string
	}{
		{
			name:    "valid index",
			content: testIndex,
		},
		{
			name:     "docs not an array",
			content:  `{"docs": "nope"}`,
			wantErr:  "parse search index",
			wantPath: "/docs",
		},
		{
			name:     "record field wrong type",
			content:  `{"docs": [{"location": "a/", "title": 7}]}`,
			wantErr:  "parse search index",
			wantPath: "/docs/0/title",
		},
		{
			name:    "syntax error",
			content: `{"docs": [`,
			wantErr: "parse search index",
		},
		{
			name:    "strict rejects unknown category",
			content: `{"docs": [{"location": "a/", "page": "A", "title": "A", "text": "", "category": "macro"}]}`,
			args:    []string{"--strict"},
			wantErr: "unknown categories",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			file := writeIndex(t, tt.content)

			args := append([]string{"validate", file, "--json"}, tt.args...)
			output, err := run(t, args...)

			var result validateResult
			require.NoError(t, json.Unmarshal([]byte(output), &result))

			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.True(t, result.Valid)
				assert.Equal(t, 5, result.Records)
				assert.Equal(t, 2, result.Categories["page"])
				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.False(t, result.Valid)
			assert.Equal(t, tt.wantPath, result.ErrorPath)
		})
	}
}

func TestValidateCmd_Text(t *testing.T) {
	isolate(t)
	file := writeIndex(t, `{"docs": [{"location": "a/", "page": "A", "title": "A", "category": "macro"}]}`)

	output, err := run(t, "validate", file)

	require.NoError(t, err)
	assert.Contains(t, output, "1 records")
	assert.Contains(t, output, "Warning: 1 missing fields, 1 unknown categories")
}

func TestValidateCmd_MissingFile(t *testing.T) {
	isolate(t)

	_, err := run(t, "validate", "does-not-exist.js")

	require.Error(t, err)
}

func TestValidateCmd_RequiresFile(t *testing.T) {
	_, err := run(t, "validate")

	require.Error(t, err)
}
