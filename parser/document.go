package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Link is an anchor found in a catalog document. Href is left relative to the
// document it came from.
type Link struct {
	Name string
	Href string
}

// ItemCard holds the raw fields of one product card on a listing page.
type ItemCard struct {
	Href         string
	Title        string
	Price        string
	Rating       string
	Availability string
	ImageSrc     string
}

// ListCategoryLinks returns every leaf category of the side navigation.
func ListCategoryLinks(doc *goquery.Document) []Link {
	var links []Link
	doc.Find(".side_categories ul.nav-list > li > ul > li").Each(func(_ int, li *goquery.Selection) {
		anchor := li.Find("a").First()
		href, _ := anchor.Attr("href")
		name := strings.TrimSpace(anchor.Text())
		if href == "" || name == "" {
			return
		}
		links = append(links, Link{Name: name, Href: strings.TrimSpace(href)})
	})
	return links
}

// ListItemCards returns the product cards of a listing page in document order.
func ListItemCards(doc *goquery.Document) []ItemCard {
	var cards []ItemCard
	doc.Find("article.product_pod").Each(func(_ int, s *goquery.Selection) {
		anchor := s.Find("h3 a").First()
		href, _ := anchor.Attr("href")
		title, _ := anchor.Attr("title")
		if strings.TrimSpace(title) == "" {
			title = anchor.Text()
		}

		rating := ""
		if class, ok := s.Find("p.star-rating").First().Attr("class"); ok {
			if parts := strings.Fields(class); len(parts) > 1 {
				rating = parts[1]
			}
		}

		availability := s.Find("p.instock.availability").First().Text()
		if strings.TrimSpace(availability) == "" {
			availability = s.Find("p.availability").First().Text()
		}

		image, _ := s.Find("img").First().Attr("src")

		cards = append(cards, ItemCard{
			Href:         strings.TrimSpace(href),
			Title:        strings.TrimSpace(title),
			Price:        strings.TrimSpace(s.Find("p.price_color").First().Text()),
			Rating:       rating,
			Availability: NormalizeAvailability(availability),
			ImageSrc:     strings.TrimSpace(image),
		})
	})
	return cards
}

// ItemDetailCategory returns the category link of a product detail page,
// which is the deepest linked entry of its breadcrumb trail.
func ItemDetailCategory(doc *goquery.Document) (Link, bool) {
	anchors := doc.Find("ul.breadcrumb li a")
	if anchors.Length() < 3 {
		return Link{}, false
	}
	anchor := anchors.Last()
	href, _ := anchor.Attr("href")
	if strings.TrimSpace(href) == "" {
		return Link{}, false
	}
	return Link{Name: strings.TrimSpace(anchor.Text()), Href: strings.TrimSpace(href)}, true
}

// ItemDetailAvailability returns the availability line of a product detail page.
func ItemDetailAvailability(doc *goquery.Document) string {
	return NormalizeAvailability(doc.Find(".product_main p.availability").First().Text())
}

// NextPageLink returns the pager's "next" href, if the page has one.
func NextPageLink(doc *goquery.Document) (string, bool) {
	href, ok := doc.Find("li.next a").First().Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" {
		return "", false
	}
	return href, true
}
