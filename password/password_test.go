package password

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPlaceholder_PHCShape(t *testing.T) {
	h, err := NewPlaceholder()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(h, "$argon2id$v=19$m=65536,t=1,p=1$"))

	parts := strings.Split(h, "$")
	require.Len(t, parts, 6)
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	require.NoError(t, err)
	require.Len(t, salt, 16)
	sum, err := base64.RawStdEncoding.DecodeString(parts[5])
	require.NoError(t, err)
	require.Len(t, sum, 32)
}

func TestNewPlaceholder_Unique(t *testing.T) {
	a, err := NewPlaceholder()
	require.NoError(t, err)
	b, err := NewPlaceholder()
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}
