package singer

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextReturnsRecords(t *testing.T) {
	input := strings.Join([]string{
		`{"type": "SCHEMA", "stream": "products", "schema": {"type": "object"}, "key_properties": ["id"]}`,
		`{"type": "RECORD", "stream": "products", "record": {"name": "Widget", "stockLevel": 10}}`,
		`{"type": "STATE", "value": {"bookmarks": {}}}`,
		`{"type": "RECORD", "stream": "suppliers", "record": {"name": "Acme"}}`,
	}, "\n")

	reader := NewReader(strings.NewReader(input))
	ctx := context.Background()

	rec, err := reader.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "products", rec.Stream)
	assert.Equal(t, "Widget", rec.Data["name"])

	rec, err = reader.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "suppliers", rec.Stream)

	_, err = reader.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)

	assert.True(t, reader.SeenSchema("products"))
	assert.False(t, reader.SeenSchema("suppliers"))
}

func TestNextSkipsMalformedLines(t *testing.T) {
	input := strings.Join([]string{
		`this is not json`,
		``,
		`{"type": "RECORD"}`,
		`{"type": "SOMETHING_ELSE", "stream": "products"}`,
		`{"type": "RECORD", "stream": "products", "record": {"name": "Widget"}}`,
	}, "\n")

	reader := NewReader(strings.NewReader(input))
	rec, err := reader.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Widget", rec.Data["name"])

	_, err = reader.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestNextHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reader := NewReader(strings.NewReader(`{"type": "RECORD", "stream": "products", "record": {}}`))
	_, err := reader.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNextEmptyInput(t *testing.T) {
	reader := NewReader(strings.NewReader(""))
	_, err := reader.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}
