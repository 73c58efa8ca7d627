package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"jellyneo/idb/internal/document"
	"jellyneo/idb/internal/domain"
)

const dateLayout = "January 2, 2006"

var (
	rowDateRegex    = regexp.MustCompile(`[A-Za-z]+ \d+, \d+`)
	noticeDateRegex = regexp.MustCompile(`[A-Za-z]+ \d+, \d{4}`)
	// "12,000 NP" -> 12,000. The amount must not continue a longer digit run,
	// so "12345 NP" is not thousands-grouped and does not match.
	priceRegex = regexp.MustCompile(`(?:^|[^\d,])(\d{1,3}(?:,\d{3})*)[ \x{00A0}]?NP\b`)
)

// Name returns the text of the page's first <h1>, untrimmed.
func Name(doc *document.Document) (string, error) {
	h1, ok := doc.FindFirst("h1")
	if !ok {
		return "", domain.MissingField("name")
	}
	return h1.Text(), nil
}

// ImageURL returns the Open Graph image of the page.
func ImageURL(doc *document.Document) (string, error) {
	image, ok := doc.FindMeta("og:image")
	if !ok {
		return "", domain.MissingField("image")
	}
	return image, nil
}

// PriceHistory returns every well-formed price row in document order.
// Rows without a recognisable date or price are dropped; a page without a
// pricing container yields an empty history.
func PriceHistory(doc *document.Document) domain.PriceHistory {
	history := domain.PriceHistory{}

	container, ok := doc.FindFirst("div", "pricing-row-container")
	if !ok {
		log.Debug("No pricing container on page")
		return history
	}

	for i, row := range document.FindAllIn(container, "div", "price-row") {
		entry, ok := priceRow(row)
		if !ok {
			log.Debugf("Skipping price row %d: %q", i, strings.TrimSpace(row.Text()))
			continue
		}
		history = append(history, entry)
	}

	return history
}

func priceRow(row *goquery.Selection) (domain.PriceEntry, bool) {
	dateSpan, ok := document.FindFirstIn(row, "span", "price-date")
	if !ok {
		return domain.PriceEntry{}, false
	}
	date, ok := parseDate(rowDateRegex, dateSpan.Text())
	if !ok {
		return domain.PriceEntry{}, false
	}

	priceText := strings.Replace(row.Text(), dateSpan.Text(), " ", 1)
	price, ok := parsePrice(priceText)
	if !ok {
		return domain.PriceEntry{}, false
	}

	return domain.PriceEntry{Date: date, Price: price}, true
}

func parseDate(re *regexp.Regexp, text string) (time.Time, bool) {
	match := re.FindString(text)
	if match == "" {
		return time.Time{}, false
	}
	date, err := time.Parse(dateLayout, match)
	if err != nil {
		return time.Time{}, false
	}
	return date, true
}

// parsePrice normalises a raw NP amount into thousands of NP.
func parsePrice(text string) (decimal.Decimal, bool) {
	matches := priceRegex.FindStringSubmatch(text)
	if len(matches) < 2 {
		return decimal.Decimal{}, false
	}
	raw, err := strconv.ParseInt(strings.ReplaceAll(matches[1], ",", ""), 10, 64)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return decimal.New(raw, -3), true
}

// InflationNotice returns the inflation banner, or nil when the page has none.
// A banner that is present must carry both a percentage and a date.
func InflationNotice(doc *document.Document) (*domain.InflationNotice, error) {
	notice, ok := doc.FindFirst("div", "alert-box", "inflated")
	if !ok {
		return nil, nil
	}

	strong, ok := document.FindFirstIn(notice, "strong")
	if !ok {
		return nil, &domain.MalformedNoticeError{Reason: "no emphasised percentage"}
	}

	date, ok := parseDate(noticeDateRegex, notice.Text())
	if !ok {
		return nil, &domain.MalformedNoticeError{Reason: "no observed date"}
	}

	return &domain.InflationNotice{
		PercentIncrease: strong.Text(),
		ObservedDate:    date,
	}, nil
}
