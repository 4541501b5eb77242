package product

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitIngredients(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "section with trailing blocks",
			in:   "Parle-G. Ingredients: Wheat Flour, Sugar, Edible Vegetable Oil (Palm), Invert Syrup. Allergen info: contains wheat.",
			want: []string{"Wheat Flour", "Sugar", "Edible Vegetable Oil (Palm)", "Invert Syrup"},
		},
		{
			name: "plain list",
			in:   "water, salt,  a , citric acid",
			want: []string{"water", "salt", "citric acid"},
		},
		{
			name: "multiline label",
			in:   "INGREDIENTS:\nrice,\nlentils\nNUTRITION FACTS per 100g",
			want: []string{"rice", "lentils"},
		},
		{name: "empty", in: "   ", want: nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, SplitIngredients(tc.in))
		})
	}
}

func TestComposePrompt(t *testing.T) {
	got := ComposePrompt(Record{Name: "Maggi Noodles", Brand: "Nestle", Ingredients: []string{"Wheat flour", "Palm oil"}})
	require.Equal(t, "Analyze this product: Maggi Noodles (Nestle)\nIngredients: Wheat flour, Palm oil", got)

	got = ComposePrompt(Record{Name: "Parle-G Biscuits", Brand: "Parle"})
	require.Equal(t, "Analyze this product: Parle-G Biscuits", got)
}

func TestResultText(t *testing.T) {
	require.True(t, Result{Kind: KindLocalMatch}.IsPrompt())
	require.False(t, Result{Kind: KindAIStructured}.IsPrompt())
	require.Equal(t, "sorry", Result{Kind: KindFailure, Failure: "sorry"}.Text())
	require.Equal(t, "n", Result{Kind: KindAINarrative, Narrative: "n"}.Text())
}
