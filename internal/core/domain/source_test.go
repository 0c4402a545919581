package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jiraType() *ConnectorType {
	return &ConnectorType{
		ID: "jira",
		ConfigKeys: []ConfigKey{
			{Key: "base_url", Required: true},
			{Key: "token", Required: true, Secret: true},
			{Key: "email"},
		},
	}
}

func TestSource_Validate_OK(t *testing.T) {
	src := Source{
		Name:     "jira",
		Type:     "jira",
		Index:    "jira-issues",
		Settings: map[string]string{"base_url": "https://x.atlassian.net", "token": "t"},
	}

	assert.NoError(t, src.Validate(jiraType()))
}

func TestSource_Validate_MissingIndex(t *testing.T) {
	src := Source{Name: "jira", Type: "jira"}

	err := src.Validate(jiraType())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMisconfigured))
	assert.Contains(t, err.Error(), "no index name")
}

func TestSource_Validate_MissingRequiredSettings(t *testing.T) {
	src := Source{
		Name:     "jira",
		Type:     "jira",
		Index:    "jira-issues",
		Settings: map[string]string{"token": "   "},
	}

	err := src.Validate(jiraType())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMisconfigured))
	assert.Contains(t, err.Error(), "base_url, token")
}

func TestSource_Validate_UnknownType(t *testing.T) {
	src := Source{Name: "x", Type: "gitlab", Index: "x"}

	err := src.Validate(nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMisconfigured))
	assert.True(t, errors.Is(err, ErrUnsupportedType))
}

func TestSource_Setting(t *testing.T) {
	src := Source{Settings: map[string]string{"page_size": " 50 ", "empty": ""}}

	assert.Equal(t, "50", src.Setting("page_size", "100"))
	assert.Equal(t, "100", src.Setting("empty", "100"))
	assert.Equal(t, "x", src.Setting("missing", "x"))
}
