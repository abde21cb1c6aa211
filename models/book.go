// Package models defines the catalog records shared by the crawler, store and API.
package models

import "time"

// Category is a leaf category of the source catalog.
type Category struct {
	ID          string     `db:"category_id" json:"category_id"`
	Name        string     `db:"category_name" json:"category_name"`
	URL         string     `db:"category_url" json:"category_url"`
	RefreshedAt *time.Time `db:"refreshed_at" json:"refreshed_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// Book is a catalog item. Price is in the source currency, Rating is 0..5
// with 0 meaning the source rating could not be read.
type Book struct {
	ID            string    `db:"book_id" json:"book_id"`
	Title         string    `db:"title" json:"title"`
	Price         float64   `db:"price" json:"price"`
	Rating        int       `db:"rating" json:"rating"`
	ImageURL      string    `db:"img" json:"img"`
	InStock       bool      `db:"stock" json:"stock"`
	StockQuantity *int      `db:"stock_quantity" json:"stock_quantity,omitempty"`
	CategoryID    string    `db:"category_id" json:"category_id"`
	CategoryName  *string   `db:"category_name" json:"category_name,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// CrawlLogEntry records one completed crawl invocation. At most one of Page
// and CategoryID is set.
type CrawlLogEntry struct {
	ID           string    `db:"id" json:"id"`
	BooksAdded   int       `db:"number_of_books" json:"number_of_books"`
	Page         *int      `db:"page" json:"page,omitempty"`
	CategoryID   *string   `db:"category_id" json:"category_id,omitempty"`
	CategoryName *string   `db:"category_name" json:"category_name,omitempty"`
	ScrapedAt    time.Time `db:"scraped_at" json:"scraped_at"`
}

// BookUpdate carries the optional fields of a partial book update.
type BookUpdate struct {
	Title         *string  `json:"title"`
	Price         *float64 `json:"price" binding:"omitempty,min=0"`
	Rating        *int     `json:"rating" binding:"omitempty,min=0,max=5"`
	ImageURL      *string  `json:"img"`
	InStock       *bool    `json:"stock"`
	StockQuantity *int     `json:"stock_quantity" binding:"omitempty,min=0"`
	CategoryID    *string  `json:"category_id"`
}

// CategoryUpdate carries the optional fields of a partial category update.
type CategoryUpdate struct {
	Name *string `json:"category_name"`
	URL  *string `json:"category_url"`
}
