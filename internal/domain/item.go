package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ItemID identifies an item in the Jellyneo Item Database. Always positive.
type ItemID int64

func (id ItemID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseItemID validates user input and converts it to an ItemID.
func ParseItemID(raw string) (ItemID, error) {
	trimmed := strings.TrimSpace(raw)
	n, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, &ValidationError{Input: raw, Reason: "ID must be an integer"}
	}
	if n <= 0 {
		return 0, &ValidationError{Input: raw, Reason: "ID must be positive"}
	}
	return ItemID(n), nil
}

// Validate reports whether id may be sent to the item database.
func (id ItemID) Validate() error {
	if id <= 0 {
		return &ValidationError{Input: id.String(), Reason: "ID must be positive"}
	}
	return nil
}

type PriceEntry struct {
	Date  time.Time       `json:"date"`
	Price decimal.Decimal `json:"price"` // thousands of NP
}

// Float64 returns the price for charting collaborators that cannot take decimals.
func (e PriceEntry) Float64() float64 {
	f, _ := e.Price.Float64()
	return f
}

// PriceHistory is kept in document order, which the site publishes newest first.
type PriceHistory []PriceEntry

type InflationNotice struct {
	PercentIncrease string    `json:"percent_increase"`
	ObservedDate    time.Time `json:"observed_date"`
}

type ItemRecord struct {
	ID              ItemID           `json:"id"`
	Name            string           `json:"name"`
	ImageURL        string           `json:"image_url"`
	PriceHistory    PriceHistory     `json:"price_history"`
	InflationNotice *InflationNotice `json:"inflation_notice,omitempty"`
}

// Latest returns the first published entry, if any.
func (r *ItemRecord) Latest() (PriceEntry, bool) {
	if r == nil || len(r.PriceHistory) == 0 {
		return PriceEntry{}, false
	}
	return r.PriceHistory[0], true
}

// Inflated reports whether the page currently shows an inflation notice.
func (r *ItemRecord) Inflated() bool {
	return r != nil && r.InflationNotice != nil
}
