package summary

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/optiply-target/internal/core/domain"
)

func TestRender(t *testing.T) {
	out := Render(map[string]domain.StreamSummary{
		"products":  {Success: 3, Fail: 1, Existing: 2},
		"suppliers": {Updated: 4},
	})

	assert.Contains(t, out, "Processing Summary")
	assert.Contains(t, out, "products")
	assert.Contains(t, out, "suppliers")
	assert.Contains(t, out, "created: 3")
	assert.Contains(t, out, "failed: 1")
	assert.Contains(t, out, "existing: 2")
	assert.Contains(t, out, "updated: 4")
	assert.Contains(t, out, "total: 10 records")
}

func TestRenderEmpty(t *testing.T) {
	out := Render(nil)
	assert.Contains(t, out, "Processing Summary")
	assert.Contains(t, out, "total: 0 records")
}

func TestRenderStreamsSorted(t *testing.T) {
	out := Render(map[string]domain.StreamSummary{
		"suppliers": {},
		"products":  {},
	})
	assert.Less(t, strings.Index(out, "products"), strings.Index(out, "suppliers"))
}
