package scraper

import (
	"testing"

	"github.com/RevoLand/amazon-client/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const productPage = `<html><body>
<span class="nav-logo-locale">.com.tr</span>
<div id="title">
  <span id="productTitle">
    Kablosuz Kulaklık
  </span>
</div>
<input type="hidden" id="ASIN" value="B08N5WRWNW">
<div id="imgTagWrapperId"><img id="landingImage" src="https://m.media-amazon.com/images/I/x.jpg"></div>


<div id="globalStoreBadgePopoverInsideBuybox_feature_div">Amazon Global</div>
<div id="mir-layout-DELIVERY_BLOCK-slot-DELIVERY_MESSAGE"><a>Ücretsiz kargo</a></div>
<div id="corePrice_feature_div"><span class="a-offscreen">1.234,56TL</span></div>
<div id="availability_feature_div"><div id="availability">Stokta sadece 3 adet kaldı</div></div>
<div id="merchant-info"><span>
Satıcı A</span><span>ignored</span></div>
</body></html>`

func TestExtractProduct_FullPage(t *testing.T) {
	snapshot, err := ExtractProduct(productPage)
	require.NoError(t, err)

	assert.True(t, snapshot.IsValid())
	assert.Equal(t, "Kablosuz Kulaklık", snapshot.Title)
	assert.Equal(t, "B08N5WRWNW", snapshot.ASIN)
	require.NotNil(t, snapshot.Image)
	assert.Equal(t, "https://m.media-amazon.com/images/I/x.jpg", *snapshot.Image)
	assert.Equal(t, ".com.tr", snapshot.Locale)
	assert.False(t, snapshot.PrimeOnly)
	assert.True(t, snapshot.Abroad)
	assert.Equal(t, "Ücretsiz kargo", snapshot.ShippingFee)
	require.NotNil(t, snapshot.Price)
	assert.InDelta(t, 1234.56, *snapshot.Price, 0.0001)
	assert.Equal(t, "Stokta sadece 3 adet kaldı", snapshot.StockText)
	require.NotNil(t, snapshot.Stock)
	assert.Equal(t, 3, *snapshot.Stock)
	assert.Equal(t, "Satıcı A", snapshot.Seller)
}

func TestExtractProduct_MissingIdentifierIsInvalid(t *testing.T) {
	snapshot, err := ExtractProduct(`<html><body><span id="productTitle">x</span></body></html>`)
	require.NoError(t, err)

	assert.Equal(t, models.MissingIdentifier, snapshot.ASIN)
	assert.False(t, snapshot.IsValid())
	assert.Nil(t, snapshot.Image)
	assert.Nil(t, snapshot.Price)
	assert.Nil(t, snapshot.Stock)
}

func TestExtractProduct_FallbackChains(t *testing.T) {
	html := `<html><body>
<span class="nav-logo-locale">.us</span>
<input id="ASIN" value="B000000001">
<img id="imgBlkFront" src="front.jpg">
<div id="tryPrimeButton_"></div>
<div id="corePrice_desktop"><span data-a-color="price"><span class="a-offscreen">$1,099.00</span></span></div>
<form id="addToCart"><div id="availability">In Stock.</div></form>
<div tabular-attribute-name="Sold by"><span>Shop B</span></div>
</body></html>`

	snapshot, err := ExtractProduct(html)
	require.NoError(t, err)

	assert.Equal(t, ".com", snapshot.Locale)
	require.NotNil(t, snapshot.Image)
	assert.Equal(t, "front.jpg", *snapshot.Image)
	assert.True(t, snapshot.PrimeOnly)
	assert.False(t, snapshot.Abroad)
	require.NotNil(t, snapshot.Price)
	assert.InDelta(t, 1099.0, *snapshot.Price, 0.0001)
	assert.Equal(t, "In Stock.", snapshot.StockText)
	assert.Nil(t, snapshot.Stock)
	assert.Equal(t, "Shop B", snapshot.Seller)
}

func TestExtractCaptchaImage(t *testing.T) {
	html := "<html><body>\n\n\n<form action=\"/errors/validateCaptcha\">\n  \n<img src=\"https://images-na.ssl-images-amazon.com/captcha/abc.jpg\">\n<input id=\"captchacharacters\"></form></body></html>"

	src, err := ExtractCaptchaImage(html)
	require.NoError(t, err)
	assert.Equal(t, "https://images-na.ssl-images-amazon.com/captcha/abc.jpg", src)
}

func TestCollapseBlankLines(t *testing.T) {
	assert.Equal(t, "a<b>\tc", collapseBlankLines("a\n\n<b>\n   \n\tc"))
	assert.Equal(t, "a\nb", collapseBlankLines("a\nb"))
}
