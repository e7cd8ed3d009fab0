package source

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadJSONL(t *testing.T) {
	input := strings.Join([]string{
		`{"id":"a1","title":"Bond refinancing notes","text":"The PPP structure...","content_type":"meeting_notes"}`,
		``,
		`{"id":"a2","text":"short","content_type":"web_clipping","url":"https://example.com/x"}`,
	}, "\n")

	items, err := ReadJSONL(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a1", items[0].ID)
	assert.Equal(t, "meeting_notes", items[0].ContentType)
	assert.Equal(t, "https://example.com/x", items[1].URL)
}

func TestReadJSONLRejectsMalformedLine(t *testing.T) {
	input := "{\"id\":\"a1\",\"text\":\"ok\"}\n{not json}\n"

	_, err := ReadJSONL(context.Background(), strings.NewReader(input))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestReadJSONLRequiresID(t *testing.T) {
	_, err := ReadJSONL(context.Background(), strings.NewReader(`{"text":"orphan"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no id")
}
