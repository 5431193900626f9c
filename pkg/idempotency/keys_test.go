package idempotency

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{name: "empty key is optional", key: "", wantErr: false},
		{name: "uuid-style key", key: "550e8400-e29b-41d4-a716-446655440000", wantErr: false},
		{name: "alphanumeric key", key: "order-2024-000123", wantErr: false},
		{name: "at max length", key: strings.Repeat("k", MaxKeyLength), wantErr: false},
		{name: "over max length", key: strings.Repeat("k", MaxKeyLength+1), wantErr: true},
		{name: "embedded space", key: "key with space", wantErr: true},
		{name: "control character", key: "key\x00null", wantErr: true},
		{name: "non-ascii", key: "clé-idempotente", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKey(tt.key)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
