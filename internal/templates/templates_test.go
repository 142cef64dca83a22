package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testCatalog() Catalog {
	return Catalog{
		{UID: "tpl_sold", Name: "Modern Just Sold Flyer"},
		{UID: "tpl_listed", Name: "Just Listed Announcement"},
		{UID: "tpl_open", Name: "Open House Invite"},
		{UID: "tpl_plain", Name: "Property Showcase"},
	}
}

func TestFilterByCategoryKeyword(t *testing.T) {
	filtered := testCatalog().FilterByCategory(CategoryJustSold)
	assert.Len(t, filtered, 1)
	assert.Equal(t, "tpl_sold", filtered[0].UID)
}

func TestFilterByCategoryNoKeywordReturnsAll(t *testing.T) {
	assert.Len(t, testCatalog().FilterByCategory(CategoryGeneralAd), 4)
	assert.Len(t, testCatalog().FilterByCategory(CategoryOther), 4)
}

func TestFilterByCategoryNoMatchFallsBack(t *testing.T) {
	catalog := Catalog{{UID: "a", Name: "Business Card"}}
	assert.Len(t, catalog.FilterByCategory(CategoryOpenHouse), 1)
}

func TestByUID(t *testing.T) {
	tmpl, ok := testCatalog().ByUID("tpl_open")
	assert.True(t, ok)
	assert.Equal(t, "Open House Invite", tmpl.Name)

	_, ok = testCatalog().ByUID("nope")
	assert.False(t, ok)
}

func TestParseCategoryDefaultsToGeneral(t *testing.T) {
	assert.Equal(t, CategoryJustSold, ParseCategory(" Just_Sold "))
	assert.Equal(t, CategoryGeneralAd, ParseCategory("banana"))
	assert.Equal(t, CategoryGeneralAd, ParseCategory(""))
}

func TestHasLayerCaseInsensitive(t *testing.T) {
	tmpl := Template{Layers: []Layer{{Name: "Address", Type: "text"}}}
	assert.True(t, tmpl.HasLayer("address"))
	assert.False(t, tmpl.HasLayer("price"))
}

func TestLayerIsText(t *testing.T) {
	assert.True(t, Layer{Name: "a", Type: "text"}.IsText())
	assert.True(t, Layer{Name: "a"}.IsText())
	assert.False(t, Layer{Name: "a", Type: "image"}.IsText())
}
