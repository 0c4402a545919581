package connectors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
	"github.com/custodia-labs/sercha-sync/internal/core/ports/driven"
)

type factoryMockConnector struct {
	name string
}

func (m *factoryMockConnector) Type() string       { return "mock" }
func (m *factoryMockConnector) SourceName() string { return m.name }
func (m *factoryMockConnector) Close() error       { return nil }
func (m *factoryMockConnector) Fetch(_ context.Context) (<-chan domain.RawDocument, <-chan error) {
	docs := make(chan domain.RawDocument)
	errs := make(chan error)
	close(docs)
	close(errs)
	return docs, errs
}

func TestRegisterDefaults(t *testing.T) {
	f := NewFactory()
	RegisterDefaults(f)

	assert.Equal(t, []string{"confluence", "github", "jira"}, f.SupportedTypes())

	ct, ok := f.ConnectorType("jira")
	require.True(t, ok)
	assert.Equal(t, "Jira", ct.Name)
	assert.NotEmpty(t, ct.ConfigKeys)

	_, ok = f.ConnectorType("dropbox")
	assert.False(t, ok)
}

func TestFactory_Create(t *testing.T) {
	f := NewFactory()
	RegisterDefaults(f)

	conn, err := f.Create(context.Background(), domain.Source{
		Name:  "eng-jira",
		Type:  "jira",
		Index: "eng",
		Settings: map[string]string{
			"base_url":    "https://acme.atlassian.net",
			"project_key": "ENG",
			"token":       "secret",
		},
	})
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, "jira", conn.Type())
	assert.Equal(t, "eng-jira", conn.SourceName())
}

func TestFactory_CreateErrors(t *testing.T) {
	f := NewFactory()
	RegisterDefaults(f)

	_, err := f.Create(context.Background(), domain.Source{Name: "x", Type: "dropbox"})
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)

	_, err = f.Create(context.Background(), domain.Source{Name: "x", Type: "github", Settings: map[string]string{"repos": "acme/api"}})
	assert.ErrorIs(t, err, domain.ErrMisconfigured)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.Create(ctx, domain.Source{Name: "x", Type: "jira"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFactory_RegisterCustom(t *testing.T) {
	f := NewFactory()
	f.Register(domain.ConnectorType{ID: "mock", Name: "Mock"}, func(s domain.Source) (driven.Connector, error) {
		return &factoryMockConnector{name: s.Name}, nil
	})

	conn, err := f.Create(context.Background(), domain.Source{Name: "m", Type: "mock"})
	require.NoError(t, err)
	assert.Equal(t, "m", conn.SourceName())
	assert.Equal(t, []string{"mock"}, f.SupportedTypes())
}
