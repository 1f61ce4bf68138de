package base

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitByCategory(t *testing.T) {
	batch := MessageBatch{
		{Category: "a", Message: "1"},
		{Category: "b", Message: "2"},
		{Category: "a", Message: "3"},
	}

	groups := batch.SplitByCategory()
	assert.Equal(t, MessageBatch{{Category: "a", Message: "1"}, {Category: "a", Message: "3"}}, groups["a"])
	assert.Equal(t, MessageBatch{{Category: "b", Message: "2"}}, groups["b"])

	assert.Equal(t, []string{"a", "b"}, batch.Categories())
	assert.Equal(t, 3, batch.Bytes())
}

func TestStoreBaseStatus(t *testing.T) {
	sb := NewStoreBase("foo", "test", false)
	assert.Equal(t, "foo", sb.Category())
	assert.Equal(t, "test", sb.Type())
	assert.Empty(t, sb.Status())

	sb.SetStatus("something broke")
	assert.Equal(t, "something broke", sb.Status())

	sb.ClearStatus()
	assert.Empty(t, sb.Status())
}
