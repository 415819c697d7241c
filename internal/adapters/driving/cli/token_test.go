package cli

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenCmd_PrintsToken(t *testing.T) {
	defer setupServices(Services{Tokens: &mockTokenIssuer{token: "abc.def.ghi"}})()

	out, err := execute("token", "alice")
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", strings.TrimSpace(out))
}

func TestTokenCmd_Error(t *testing.T) {
	defer setupServices(Services{Tokens: &mockTokenIssuer{err: errors.New("no secret")}})()

	_, err := execute("token", "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "issue token: no secret")
}

func TestTokenCmd_NotConfigured(t *testing.T) {
	defer setupServices(Services{})()

	_, err := execute("token", "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token issuer not configured")
}
