package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/aluiziolira/go-books-catalog/models"
)

var quantityPattern = regexp.MustCompile(`\((\d+) available\)`)

// ValidateBook ensures a book is complete enough to be stored.
func ValidateBook(b *models.Book) error {
	if b == nil {
		return fmt.Errorf("book is nil")
	}
	if strings.TrimSpace(b.ID) == "" {
		return fmt.Errorf("book missing id")
	}
	if strings.TrimSpace(b.Title) == "" {
		return fmt.Errorf("book missing title for %s", b.ID)
	}
	if strings.TrimSpace(b.CategoryID) == "" {
		return fmt.Errorf("book missing category for %s", b.ID)
	}
	if b.Price < 0 {
		return fmt.Errorf("book %s has negative price", b.ID)
	}
	if b.Rating < 0 || b.Rating > 5 {
		return fmt.Errorf("book %s rating %d out of range", b.ID, b.Rating)
	}
	if b.StockQuantity != nil && *b.StockQuantity < 0 {
		return fmt.Errorf("book %s has negative stock quantity", b.ID)
	}
	return nil
}

// NormalizeTitle trims and lower-cases a title or category name.
func NormalizeTitle(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// NormalizePrice removes the currency symbol and surrounding whitespace.
func NormalizePrice(price string) string {
	price = strings.TrimSpace(price)
	price = strings.TrimFunc(price, func(r rune) bool {
		return !unicode.IsDigit(r) && r != '.'
	})
	return strings.TrimSpace(price)
}

// ParsePrice converts a displayed price such as "£51.77" to a number.
func ParsePrice(text string) (float64, error) {
	normalized := NormalizePrice(text)
	if normalized == "" {
		return 0, fmt.Errorf("empty price %q", text)
	}
	value, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", text, err)
	}
	if value < 0 {
		return 0, fmt.Errorf("negative price %q", text)
	}
	return value, nil
}

// NormalizeAvailability trims spacing from the availability text.
func NormalizeAvailability(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// InStock reports whether the availability text announces stock.
func InStock(availability string) bool {
	return strings.Contains(NormalizeAvailability(availability), "In stock")
}

// StockQuantity extracts N from "(N available)". It returns nil when the
// text states no exact count.
func StockQuantity(availability string) *int {
	match := quantityPattern.FindStringSubmatch(availability)
	if match == nil {
		return nil
	}
	value, err := strconv.Atoi(match[1])
	if err != nil {
		return nil
	}
	return &value
}

// RatingToNumeric converts the textual rating to a numeric scale.
func RatingToNumeric(rating string) int {
	switch strings.TrimSpace(rating) {
	case "One":
		return 1
	case "Two":
		return 2
	case "Three":
		return 3
	case "Four":
		return 4
	case "Five":
		return 5
	default:
		return 0
	}
}
