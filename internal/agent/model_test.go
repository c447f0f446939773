package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewModel_DisabledWithoutKey(t *testing.T) {
	model, err := NewModel(ModelOptions{Model: "grok-3-mini"})

	require.NoError(t, err)
	assert.Nil(t, model)
}

func TestNewModel_WithKey(t *testing.T) {
	model, err := NewModel(ModelOptions{APIKey: "test-key", Model: "grok-3-mini", BaseURL: "http://localhost:1/v1"})

	require.NoError(t, err)
	assert.NotNil(t, model)
}
