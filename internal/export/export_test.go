package export

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPostgres_OptionsOverrideDefaults(t *testing.T) {
	p, err := NewPostgres(
		WithPostgresHost("db.internal"),
		WithPostgresPort("5433"),
		WithPostgresCredentials("backup", "s3cret"),
		WithPostgresDatabase("app"),
		WithPostgresTimeout(time.Minute),
	)
	require.NoError(t, err)

	assert.Equal(t, "db.internal", p.Host)
	assert.Equal(t, "5433", p.Port)
	assert.Equal(t, "backup", p.Username)
	assert.Equal(t, "app", p.Database)
	assert.Equal(t, "custom", p.Method) // default dump format
	assert.Equal(t, time.Minute, p.Timeout)
	assert.Equal(t, KindRelational, p.Kind())
	assert.Equal(t, "app", p.Store())
}

func TestNewPostgres_EmptyOptionsKeepDefaults(t *testing.T) {
	p, err := NewPostgres(
		WithPostgresHost(""),
		WithPostgresPort(""),
		WithPostgresMethod(""),
	)
	require.NoError(t, err)

	assert.Equal(t, "localhost", p.Host)
	assert.Equal(t, "5432", p.Port)
	assert.Equal(t, "custom", p.Method)
}

func TestNewMongoDB_OptionsOverrideDefaults(t *testing.T) {
	m, err := NewMongoDB(
		WithMongoHost("mongo.internal"),
		WithMongoPort("27018"),
		WithMongoCredentials("backup", "s3cret"),
		WithMongoDatabase("app"),
	)
	require.NoError(t, err)

	assert.Equal(t, "mongo.internal", m.Host)
	assert.Equal(t, "27018", m.Port)
	assert.Equal(t, "app", m.Database)
	assert.Equal(t, KindDocument, m.Kind())
}
