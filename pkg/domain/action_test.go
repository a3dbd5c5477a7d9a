package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "authguard/pkg/domain-errors"
)

func TestParseAction(t *testing.T) {
	for _, in := range []string{"login", " register "} {
		a, err := ParseAction(in)
		require.NoError(t, err)
		assert.Contains(t, Actions(), a)
	}

	for _, in := range []string{"", "LOGIN", "logout", "login;drop"} {
		_, err := ParseAction(in)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), in)
	}
}
