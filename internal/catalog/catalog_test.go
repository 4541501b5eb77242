package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefault_KnownBarcode(t *testing.T) {
	c := Default()
	rec, ok := c.Lookup("8901719101014")
	require.True(t, ok)
	require.Equal(t, "Parle-G Original Glucose Biscuits", rec.Name)
	require.Contains(t, rec.Ingredients, "Invert Syrup")
}

func TestDefault_Miss(t *testing.T) {
	c := Default()
	_, ok := c.Lookup("012345678905")
	require.False(t, ok)
	require.Equal(t, "Packaged Food Product", c.Generic().Name)
	require.NotEmpty(t, c.Generic().Ingredients)
}

func TestLookup_ReturnsCopies(t *testing.T) {
	c := Default()
	rec, _ := c.Lookup("8901719101014")
	rec.Ingredients[0] = "changed"
	again, _ := c.Lookup("8901719101014")
	require.Equal(t, "Wheat Flour (Atta)", again.Ingredients[0])
}

func TestParse_Rejects(t *testing.T) {
	_, err := Parse([]byte("generic: {name: ''}\n"))
	require.Error(t, err)

	_, err = Parse([]byte("generic: {name: g}\nproducts:\n  - {barcode: '1', name: a}\n  - {barcode: '1', name: b}\n"))
	require.Error(t, err)
}
