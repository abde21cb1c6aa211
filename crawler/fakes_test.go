package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aluiziolira/go-books-catalog/config"
	"github.com/aluiziolira/go-books-catalog/database"
	"github.com/aluiziolira/go-books-catalog/models"
	"github.com/aluiziolira/go-books-catalog/scraper"
)

const testRoot = "http://example.test"

// fakeFetcher serves registered documents and answers 404 for anything else.
type fakeFetcher struct {
	mu     sync.Mutex
	pages  map[string]string
	errs   map[string]error
	calls  map[string]int
	before func(rawURL string)
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		pages: make(map[string]string),
		errs:  make(map[string]error),
		calls: make(map[string]int),
	}
}

func (f *fakeFetcher) serve(rawURL, html string) {
	f.pages[rawURL] = html
}

func (f *fakeFetcher) fail(rawURL string, err error) {
	f.errs[rawURL] = err
}

func (f *fakeFetcher) Fetch(ctx context.Context, rawURL string) (*scraper.Page, error) {
	if f.before != nil {
		f.before(rawURL)
	}

	f.mu.Lock()
	f.calls[rawURL]++
	html, ok := f.pages[rawURL]
	fetchErr := f.errs[rawURL]
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fetchErr != nil {
		return nil, scraper.FetchError{URL: rawURL, Err: fetchErr}
	}
	if !ok {
		return nil, scraper.FetchError{URL: rawURL, Err: scraper.ErrNotFound{Err: errors.New("Not Found")}}
	}
	return scraper.NewPage(rawURL, strings.NewReader(html))
}

func (f *fakeFetcher) callsTo(rawURL string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[rawURL]
}

func (f *fakeFetcher) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

// fakeStore is an in-memory stand-in for the three repositories.
type fakeStore struct {
	mu         sync.Mutex
	categories map[string]*models.Category
	books      map[string]*models.Book
	logs       []models.CrawlLogEntry
	insertErr  error
	// lostRace makes InsertIfAbsent report the id as taken, as when another
	// writer inserts it between the existence check and the insert.
	lostRace bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		categories: make(map[string]*models.Category),
		books:      make(map[string]*models.Book),
	}
}

func (s *fakeStore) stores() Stores {
	return Stores{
		Categories: fakeCategoryStore{s},
		Books:      fakeBookStore{s},
		Logs:       fakeLogStore{s},
	}
}

func (s *fakeStore) addCategory(id, name string) {
	s.categories[id] = &models.Category{ID: id, Name: name, URL: testRoot + "/catalogue/category/books/" + id + "/index.html"}
}

func (s *fakeStore) logPage(page int, added int) {
	p := page
	s.logs = append(s.logs, models.CrawlLogEntry{Page: &p, BooksAdded: added})
}

func (s *fakeStore) bookIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.books))
	for id := range s.books {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type fakeCategoryStore struct{ s *fakeStore }

func (f fakeCategoryStore) FindByID(_ context.Context, id string) (*models.Category, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	c, ok := f.s.categories[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	clone := *c
	return &clone, nil
}

func (f fakeCategoryStore) CreateIfAbsent(_ context.Context, c *models.Category) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if _, ok := f.s.categories[c.ID]; ok {
		return false, nil
	}
	clone := *c
	f.s.categories[c.ID] = &clone
	return true, nil
}

func (f fakeCategoryStore) MarkRefreshed(_ context.Context, id string, at time.Time) (*models.Category, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	c, ok := f.s.categories[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	c.RefreshedAt = &at
	clone := *c
	return &clone, nil
}

type fakeBookStore struct{ s *fakeStore }

func (f fakeBookStore) FindByID(_ context.Context, id string) (*models.Book, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	b, ok := f.s.books[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	clone := *b
	return &clone, nil
}

func (f fakeBookStore) InsertIfAbsent(_ context.Context, b *models.Book) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.insertErr != nil {
		return false, f.s.insertErr
	}
	if f.s.lostRace {
		return false, nil
	}
	if _, ok := f.s.categories[b.CategoryID]; !ok {
		return false, database.ErrForeignKey
	}
	if _, ok := f.s.books[b.ID]; ok {
		return false, nil
	}
	clone := *b
	f.s.books[b.ID] = &clone
	return true, nil
}

type fakeLogStore struct{ s *fakeStore }

func (f fakeLogStore) Create(_ context.Context, e *models.CrawlLogEntry) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if e.Page != nil && e.CategoryID != nil {
		return errors.New("both page and category set")
	}
	e.ID = fmt.Sprintf("log-%d", len(f.s.logs)+1)
	f.s.logs = append(f.s.logs, *e)
	return nil
}

func (f fakeLogStore) LastPage(context.Context) (int, bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	last, found := 0, false
	for _, e := range f.s.logs {
		if e.CategoryID == nil && e.Page != nil && *e.Page > last {
			last, found = *e.Page, true
		}
	}
	return last, found, nil
}

func (f fakeLogStore) PageLogged(_ context.Context, page int) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, e := range f.s.logs {
		if e.CategoryID == nil && e.Page != nil && *e.Page == page {
			return true, nil
		}
	}
	return false, nil
}

func newTestEngine(t *testing.T, fetcher PageFetcher, store *fakeStore) *Engine {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.BaseURL = testRoot + "/"
	cfg.CategoryCacheSize = 4
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEngine(cfg, fetcher, store.stores(), scraper.NewMetrics(), logger)
}

// card is one product card of a test listing page.
type card struct {
	href         string
	title        string
	price        string
	rating       string
	availability string
}

func listingHTML(next string, cards ...card) string {
	var b strings.Builder
	b.WriteString(`<html><body><section><ol class="row">`)
	for _, c := range cards {
		fmt.Fprintf(&b, `<li><article class="product_pod">
  <div class="image_container"><a href="%[1]s"><img src="../media/cache/cover.jpg"></a></div>
  <p class="star-rating %[3]s"></p>
  <h3><a href="%[1]s" title="%[2]s">%[2]s</a></h3>
  <div class="product_price"><p class="price_color">%[4]s</p>
  <p class="instock availability">%[5]s</p></div>
</article></li>`, c.href, c.title, c.rating, c.price, c.availability)
	}
	b.WriteString(`</ol>`)
	if next != "" {
		fmt.Fprintf(&b, `<ul class="pager"><li class="next"><a href="%s">next</a></li></ul>`, next)
	}
	b.WriteString(`</section></body></html>`)
	return b.String()
}

func detailHTML(categoryHref, categoryName, availability string) string {
	return fmt.Sprintf(`<html><body>
<ul class="breadcrumb">
  <li><a href="../../index.html">Home</a></li>
  <li><a href="../category/books_1/index.html">Books</a></li>
  <li><a href="%s">%s</a></li>
  <li class="active">Item</li>
</ul>
<div class="product_main"><p class="instock availability">%s</p></div>
</body></html>`, categoryHref, categoryName, availability)
}

func pageURL(n int) string {
	return fmt.Sprintf("%s/catalogue/page-%d.html", testRoot, n)
}

func detailURL(bookID string) string {
	return testRoot + "/catalogue/" + bookID + "/index.html"
}

func categoryURL(id string) string {
	return testRoot + "/catalogue/category/books/" + id + "/index.html"
}

// serveBook registers a detail page that places bookID in categoryID.
func serveBook(f *fakeFetcher, bookID, categoryID, availability string) {
	f.serve(detailURL(bookID), detailHTML("../category/books/"+categoryID+"/index.html", categoryID, availability))
}
