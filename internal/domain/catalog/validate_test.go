package catalog_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"moopoint/chat-api/internal/domain/catalog"
)

func TestValidateArgs(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url":   map[string]any{"type": "string"},
			"limit": map[string]any{"type": "integer"},
		},
		"required": []any{"url"},
	}

	tests := []struct {
		name    string
		args    map[string]any
		wantErr bool
	}{
		{
			name: "valid arguments",
			args: map[string]any{"url": "http://example.com", "limit": float64(5)},
		},
		{
			name:    "missing required field",
			args:    map[string]any{"limit": float64(5)},
			wantErr: true,
		},
		{
			name:    "wrong type",
			args:    map[string]any{"url": float64(42)},
			wantErr: true,
		},
		{
			name: "extra fields pass without additionalProperties",
			args: map[string]any{"url": "http://example.com", "extra": true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := catalog.ValidateArgs(schema, tt.args)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateArgs_EmptySchemaAcceptsAnything(t *testing.T) {
	assert.NoError(t, catalog.ValidateArgs(nil, map[string]any{"whatever": 1}))
	assert.NoError(t, catalog.ValidateArgs(map[string]any{}, nil))
}
