package themes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"curator/internal/models"
)

func testHierarchy(t *testing.T) *Hierarchy {
	t.Helper()
	h, err := NewHierarchy(HierarchySpec{
		Nodes: []NodeSpec{
			{
				Name: "infrastructure",
				Children: []NodeSpec{
					{
						Name:     "financing",
						Aliases:  []string{"PPP", "public private partnership"},
						Keywords: []string{"financing", "investment", "funding"},
					},
					{Name: "transport", Keywords: []string{"rail", "road", "transit"}},
				},
			},
			{
				Name:     "technology",
				Children: []NodeSpec{{Name: "machine learning", Aliases: []string{"ML"}}},
			},
		},
	})
	require.NoError(t, err)
	return h
}

func TestClassify_ExactAliasMatch(t *testing.T) {
	c := NewClassifier(testHierarchy(t))

	got := c.Classify("item-1", []models.ThemeHint{{Label: "PPP", Confidence: 0.8}})

	require.Len(t, got, 1)
	assert.Equal(t, "infrastructure/financing", got[0].NodePath)
	assert.Equal(t, models.MatchExact, got[0].Method)
	assert.Equal(t, 0.8, got[0].Confidence, "exact match keeps the full hint confidence")
	assert.True(t, got[0].Primary)
}

func TestClassify_ExactMatchIsCaseInsensitive(t *testing.T) {
	c := NewClassifier(testHierarchy(t))

	got := c.Classify("item-1", []models.ThemeHint{{Label: "machine LEARNING", Confidence: 0.9}})

	require.Len(t, got, 1)
	assert.Equal(t, "technology/machine learning", got[0].NodePath)
	assert.Equal(t, models.MatchExact, got[0].Method)
}

func TestClassify_KeywordCoverage(t *testing.T) {
	c := NewClassifier(testHierarchy(t))

	// Hint contains 2 of the 3 financing keywords: coverage 2/3.
	got := c.Classify("item-2", []models.ThemeHint{
		{Label: "infrastructure investment and funding strategies", Confidence: 0.9},
	})

	require.Len(t, got, 1)
	assert.Equal(t, "infrastructure/financing", got[0].NodePath)
	assert.Equal(t, models.MatchKeyword, got[0].Method)
	assert.InDelta(t, 0.9*2.0/3.0, got[0].Confidence, 1e-9)
}

func TestClassify_FuzzyMatch(t *testing.T) {
	c := NewClassifier(testHierarchy(t))

	// No exact or keyword hit; token overlap with the alias
	// "public private partnership" is 3/4 = 0.75 >= floor.
	got := c.Classify("item-3", []models.ThemeHint{
		{Label: "private public partnership models", Confidence: 0.6},
	})

	require.Len(t, got, 1)
	assert.Equal(t, "infrastructure/financing", got[0].NodePath)
	assert.Equal(t, models.MatchFuzzy, got[0].Method)
	assert.InDelta(t, 0.6*0.75, got[0].Confidence, 1e-9)
}

func TestClassify_FallbackToMiscellaneous(t *testing.T) {
	c := NewClassifier(testHierarchy(t))

	got := c.Classify("item-4", []models.ThemeHint{
		{Label: "completely unrelated gibberish", Confidence: 0.9},
	})

	require.Len(t, got, 1)
	assert.Equal(t, DefaultMiscPath, got[0].NodePath)
	assert.Equal(t, models.MatchFallback, got[0].Method)
	assert.Equal(t, DefaultFallbackConfidence, got[0].Confidence)
	assert.True(t, got[0].Primary)
}

func TestClassify_RankingAndPrimary(t *testing.T) {
	c := NewClassifier(testHierarchy(t))

	got := c.Classify("item-5", []models.ThemeHint{
		{Label: "PPP", Confidence: 0.95},
		{Label: "rail and road transit planning", Confidence: 0.5},
	})

	require.Len(t, got, 2)
	assert.Equal(t, "infrastructure/financing", got[0].NodePath)
	assert.True(t, got[0].Primary)
	assert.Equal(t, "infrastructure/transport", got[1].NodePath)
	assert.False(t, got[1].Primary)
}

func TestClassify_DuplicateNodeKeepsHighestConfidence(t *testing.T) {
	c := NewClassifier(testHierarchy(t))

	got := c.Classify("item-6", []models.ThemeHint{
		{Label: "PPP", Confidence: 0.4},
		{Label: "public private partnership", Confidence: 0.9},
	})

	require.Len(t, got, 1)
	assert.Equal(t, 0.9, got[0].Confidence)
}

func TestTokenSetJaccard(t *testing.T) {
	assert.Equal(t, 1.0, TokenSetJaccard("alpha beta", "Beta Alpha"))
	assert.InDelta(t, 1.0/3.0, TokenSetJaccard("alpha beta", "beta gamma"), 1e-9)
	assert.Equal(t, 0.0, TokenSetJaccard("", "anything"))
	assert.InDelta(t, 0.5, TokenSetJaccard("machine learning", "learning"), 1e-9)
}
