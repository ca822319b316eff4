package scraper

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/RevoLand/amazon-client/internal/models"
)

var blankLines = regexp.MustCompile(`\n\s*\n`)

var (
	priceSelectors = []string{
		`#booksHeaderSection #price`,
		`#price_inside_buybox`,
		`#corePrice_feature_div .a-offscreen`,
	}

	stockSelectors = []string{
		`#availability_feature_div > #availability`,
		`form#addToCart #availability`,
	}

	// Tried in order; storefronts label the seller row in their own language
	sellerSelectors = []string{
		`#merchant-info span`,
		`div[tabular-attribute-name="Venditore"] span`,
		`div[tabular-attribute-name="Sold by"] span`,
		`div[tabular-attribute-name="Vendu par"] span`,
		`div[tabular-attribute-name="Vendido por"] span`,
		`div[tabular-attribute-name="Verkauf durch"] span`,
		`div[tabular-attribute-name="Satıcı"] span`,
	}
)

// collapseBlankLines drops blank lines from rendered markup before parsing
func collapseBlankLines(html string) string {
	return blankLines.ReplaceAllString(html, "")
}

func parseDocument(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(collapseBlankLines(html)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page markup: %w", err)
	}
	return doc, nil
}

// ExtractProduct parses a rendered product page into a snapshot.
// The snapshot is returned even when it is invalid; callers check IsValid.
func ExtractProduct(html string) (*models.ProductSnapshot, error) {
	doc, err := parseDocument(html)
	if err != nil {
		return nil, err
	}

	locale := strings.TrimSpace(doc.Find(".nav-logo-locale").Text())
	stockText := firstText(doc, stockSelectors, false)

	snapshot := &models.ProductSnapshot{
		Title:       trimNewLines(doc.Find("#title #productTitle").Text()),
		ASIN:        extractASIN(doc),
		Image:       extractImage(doc),
		Locale:      locale,
		PrimeOnly:   doc.Find("#tryPrimeButton_").Length() > 0,
		Abroad:      doc.Find("#globalStoreBadgePopoverInsideBuybox_feature_div").Text() != "",
		ShippingFee: doc.Find("#mir-layout-DELIVERY_BLOCK-slot-DELIVERY_MESSAGE a").Text(),
		Price:       NormalizePrice(extractPriceText(doc), locale),
		StockText:   stockText,
		Stock:       StockCount(stockText),
		Seller:      trimNewLines(firstText(doc, sellerSelectors, true)),
	}

	if snapshot.Locale == ".us" {
		snapshot.Locale = ".com"
	}

	return snapshot, nil
}

// ExtractCaptchaImage returns the challenge image source of a captcha page
func ExtractCaptchaImage(html string) (string, error) {
	doc, err := parseDocument(html)
	if err != nil {
		return "", err
	}
	src, _ := doc.Find("form img").Attr("src")
	return src, nil
}

func extractASIN(doc *goquery.Document) string {
	value, exists := doc.Find("#ASIN").Attr("value")
	if !exists {
		return models.MissingIdentifier
	}
	return value
}

func extractImage(doc *goquery.Document) *string {
	for _, selector := range []string{`#imgTagWrapperId #landingImage`, `#imgBlkFront`} {
		if src, exists := doc.Find(selector).Attr("src"); exists && src != "" {
			return &src
		}
	}
	return nil
}

func extractPriceText(doc *goquery.Document) string {
	if text := firstText(doc, priceSelectors, false); text != "" {
		return text
	}
	return doc.Find(`#corePrice_desktop span[data-a-color='price'] .a-offscreen`).First().Text()
}

// firstText returns the text of the first selector that yields any.
// With firstOnly, only the first matched node is read.
func firstText(doc *goquery.Document, selectors []string, firstOnly bool) string {
	for _, selector := range selectors {
		selection := doc.Find(selector)
		if firstOnly {
			selection = selection.First()
		}
		if text := selection.Text(); strings.TrimSpace(text) != "" {
			return text
		}
	}
	return ""
}

func trimNewLines(text string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, "\n", ""))
}
