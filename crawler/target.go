package crawler

import (
	"fmt"
	"strings"
)

// Mode selects what a crawl covers.
type Mode int

const (
	// ModeAuto resumes the general catalog after the last logged page.
	ModeAuto Mode = iota
	// ModePage crawls one general catalog page.
	ModePage
	// ModeCategory sweeps every listing page of one category.
	ModeCategory
)

func (m Mode) String() string {
	switch m {
	case ModePage:
		return "page"
	case ModeCategory:
		return "category"
	default:
		return "auto"
	}
}

// Target is a validated crawl request. The zero value is Auto.
type Target struct {
	mode       Mode
	page       int
	categoryID string
}

// ByPage targets one general catalog page (1-based).
func ByPage(page int) Target {
	return Target{mode: ModePage, page: page}
}

// ByCategory targets a stored category.
func ByCategory(id string) Target {
	return Target{mode: ModeCategory, categoryID: id}
}

// Auto lets the resume planner pick the page.
func Auto() Target {
	return Target{mode: ModeAuto}
}

// NewTarget builds a target from the optional request fields. Setting both
// is rejected with ErrInvalidTarget; setting neither selects Auto.
func NewTarget(page *int, category *string) (Target, error) {
	var t Target
	switch {
	case page != nil && category != nil:
		return Target{}, fmt.Errorf("%w: page and category are mutually exclusive", ErrInvalidTarget)
	case page != nil:
		t = ByPage(*page)
	case category != nil:
		t = ByCategory(*category)
	default:
		t = Auto()
	}
	if err := t.validate(); err != nil {
		return Target{}, err
	}
	return t, nil
}

// Mode reports which kind of crawl t selects.
func (t Target) Mode() Mode { return t.mode }

// Page is the requested page for ModePage targets.
func (t Target) Page() int { return t.page }

// CategoryID is the requested category for ModeCategory targets.
func (t Target) CategoryID() string { return t.categoryID }

func (t Target) validate() error {
	switch t.mode {
	case ModePage:
		if t.page < 1 {
			return fmt.Errorf("%w: page must be >= 1, got %d", ErrInvalidTarget, t.page)
		}
	case ModeCategory:
		if strings.TrimSpace(t.categoryID) == "" {
			return fmt.Errorf("%w: empty category id", ErrInvalidTarget)
		}
	}
	return nil
}
