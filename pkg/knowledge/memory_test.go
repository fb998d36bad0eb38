package knowledge

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededIndex() *MemoryIndex {
	index := NewMemoryIndex()
	index.Add(Entry{ID: "k1", MerchantID: "m1", Title: "营业时间", Category: "store", Content: "我们每天 9:00-21:00 营业。"})
	index.Add(Entry{ID: "k2", MerchantID: "m1", Title: "退款政策", Category: "policy", Content: "收到商品 7 天内可申请退款。"})
	index.Add(Entry{ID: "k3", MerchantID: "m1", Title: "shipping info", Category: "logistics", Content: "Orders ship within 2 business days."})
	index.Add(Entry{ID: "k4", MerchantID: "m2", Title: "退款政策", Category: "policy", Content: "其他商家的政策。"})

	return index
}

func TestMemoryIndex_FindsChineseEntries(t *testing.T) {
	index := seededIndex()

	result, err := index.Search(context.Background(), "m1", "请问退款怎么办理", 3, 2000)
	require.NoError(t, err)
	require.NotEmpty(t, result.Sources)
	assert.Equal(t, "k2", result.Sources[0].ID)
	assert.Contains(t, result.Text, "退款")
}

func TestMemoryIndex_FindsEnglishEntries(t *testing.T) {
	index := seededIndex()

	result, err := index.Search(context.Background(), "m1", "when do you ship orders", 3, 2000)
	require.NoError(t, err)
	require.NotEmpty(t, result.Sources)
	assert.Equal(t, "k3", result.Sources[0].ID)
}

func TestMemoryIndex_ScopedToMerchant(t *testing.T) {
	index := seededIndex()

	result, err := index.Search(context.Background(), "m2", "退款", 3, 2000)
	require.NoError(t, err)
	require.Len(t, result.Sources, 1)
	assert.Equal(t, "k4", result.Sources[0].ID)
}

func TestMemoryIndex_NoMatchReturnsEmpty(t *testing.T) {
	index := seededIndex()

	result, err := index.Search(context.Background(), "m1", "zzzz", 3, 2000)
	require.NoError(t, err)
	assert.Empty(t, result.Sources)
	assert.Empty(t, result.Text)
}

func TestMemoryIndex_RespectsLimitAndMaxChars(t *testing.T) {
	index := NewMemoryIndex()
	for _, id := range []string{"a", "b", "c", "d"} {
		index.Add(Entry{ID: id, MerchantID: "m1", Title: "shipping " + id, Content: "shipping details for entry " + id})
	}

	result, err := index.Search(context.Background(), "m1", "shipping", 2, 2000)
	require.NoError(t, err)
	assert.Len(t, result.Sources, 2)

	tiny, err := index.Search(context.Background(), "m1", "shipping", 4, 10)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(tiny.Text), 10)
}

func TestMemoryIndex_TruncationKeepsValidUTF8(t *testing.T) {
	index := NewMemoryIndex()
	index.Add(Entry{
		ID: "k1", MerchantID: "m1", Title: "退款政策", Category: "policy",
		Content: strings.Repeat("收到商品七天内可申请退款。", 40),
	})

	// A budget that lands mid-rune must back up to the previous boundary.
	for _, maxChars := range []int{10, 11, 12, 50, 100} {
		result, err := index.Search(context.Background(), "m1", "退款", 3, maxChars)
		require.NoError(t, err)
		require.NotEmpty(t, result.Text)
		assert.True(t, utf8.ValidString(result.Text), "maxChars=%d", maxChars)
		assert.LessOrEqual(t, len(result.Text), maxChars)
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "退款", truncate("退款政策", 7))
	assert.Equal(t, "退款", truncate("退款政策", 8))
	assert.Equal(t, "退款政策", truncate("退款政策", 12))
	assert.Equal(t, "abc", truncate("abcdef", 3))
	assert.Equal(t, "", truncate("退款", 0))
}
