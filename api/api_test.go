package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aluiziolira/go-books-catalog/api"
	"github.com/aluiziolira/go-books-catalog/crawler"
	"github.com/aluiziolira/go-books-catalog/database"
	"github.com/aluiziolira/go-books-catalog/models"
	"github.com/aluiziolira/go-books-catalog/scraper"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCrawler struct {
	runs     []crawler.Target
	runErr   error
	discover []*models.Category
}

func (m *mockCrawler) DiscoverCategories(context.Context) ([]*models.Category, error) {
	return m.discover, nil
}

func (m *mockCrawler) Run(_ context.Context, target crawler.Target) (crawler.Summary, error) {
	m.runs = append(m.runs, target)
	if m.runErr != nil {
		return crawler.Summary{}, m.runErr
	}
	return crawler.Summary{Message: "ok", Count: 2, Page: target.Page()}, nil
}

type mockBooks struct {
	books      map[string]*models.Book
	lastFilter *models.BookFilter
}

func (m *mockBooks) Create(_ context.Context, b *models.Book) (*models.Book, bool, error) {
	if existing, ok := m.books[b.ID]; ok {
		return existing, false, nil
	}
	m.books[b.ID] = b
	return b, true, nil
}

func (m *mockBooks) FindByID(_ context.Context, id string) (*models.Book, error) {
	if b, ok := m.books[id]; ok {
		return b, nil
	}
	return nil, database.ErrNotFound
}

func (m *mockBooks) FindByCategoryName(_ context.Context, name string) ([]*models.Book, error) {
	out := []*models.Book{}
	for _, b := range m.books {
		if b.CategoryName != nil && *b.CategoryName == name {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *mockBooks) List(_ context.Context, filter models.BookFilter) ([]*models.Book, error) {
	m.lastFilter = &filter
	out := []*models.Book{}
	for _, b := range m.books {
		if filter.Price != nil && filter.Price.Type == models.PriceEqual && b.Price != filter.Price.Value {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (m *mockBooks) Count(ctx context.Context, filter models.BookFilter) (int, error) {
	books, err := m.List(ctx, filter)
	return len(books), err
}

func (m *mockBooks) Update(_ context.Context, id string, u models.BookUpdate) (*models.Book, error) {
	b, ok := m.books[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	if u.Title != nil {
		b.Title = *u.Title
	}
	return b, nil
}

func (m *mockBooks) Delete(_ context.Context, id string) error {
	if _, ok := m.books[id]; !ok {
		return fmt.Errorf("book %s: %w", id, database.ErrNotFound)
	}
	delete(m.books, id)
	return nil
}

type mockCategories struct {
	deleteErr error
}

func (m *mockCategories) Create(_ context.Context, c *models.Category) error {
	if c.ID == "poetry_23" {
		return database.ErrDuplicate
	}
	c.CreatedAt = time.Now()
	return nil
}

func (m *mockCategories) FindByID(_ context.Context, id string) (*models.Category, error) {
	if id == "poetry_23" {
		return &models.Category{ID: id, Name: "poetry"}, nil
	}
	return nil, database.ErrNotFound
}

func (m *mockCategories) FindByName(_ context.Context, name string) (*models.Category, error) {
	if name == "poetry" {
		return &models.Category{ID: "poetry_23", Name: name}, nil
	}
	return nil, database.ErrNotFound
}

func (m *mockCategories) List(context.Context) ([]*models.Category, error) {
	return []*models.Category{{ID: "poetry_23", Name: "poetry"}}, nil
}

func (m *mockCategories) Update(_ context.Context, id string, u models.CategoryUpdate) (*models.Category, error) {
	c := &models.Category{ID: id}
	if u.Name != nil {
		c.Name = *u.Name
	}
	return c, nil
}

func (m *mockCategories) Delete(context.Context, string) error {
	return m.deleteErr
}

type mockLogs struct{}

func (mockLogs) List(context.Context) ([]*models.CrawlLogEntry, error) {
	page := 1
	return []*models.CrawlLogEntry{{ID: "a", BooksAdded: 20, Page: &page}}, nil
}

type testServer struct {
	router     *gin.Engine
	crawler    *mockCrawler
	books      *mockBooks
	categories *mockCategories
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	poetry := "poetry"
	s := &testServer{
		crawler: &mockCrawler{},
		books: &mockBooks{books: map[string]*models.Book{
			"a-light-in-the-attic_1000": {ID: "a-light-in-the-attic_1000", Title: "a light in the attic", Price: 51.77, CategoryID: "poetry_23", CategoryName: &poetry},
			"olio_984":                  {ID: "olio_984", Title: "olio", Price: 10, CategoryID: "poetry_23", CategoryName: &poetry},
		}},
		categories: &mockCategories{},
	}
	s.router = api.SetupRouter(api.Dependencies{
		Crawler:    s.crawler,
		Books:      s.books,
		Categories: s.categories,
		CrawlLogs:  mockLogs{},
		Metrics:    scraper.NewMetrics(),
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return s
}

func (s *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestCrawlBooksRejectsPageAndCategory(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/scraping/books", `{"page": 1, "category": "poetry_23"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, s.crawler.runs, "no crawl may start for an invalid target")
}

func TestCrawlBooksTargets(t *testing.T) {
	tests := []struct {
		name string
		body string
		want crawler.Mode
	}{
		{name: "no body", body: "", want: crawler.ModeAuto},
		{name: "empty object", body: `{}`, want: crawler.ModeAuto},
		{name: "page", body: `{"page": 3}`, want: crawler.ModePage},
		{name: "category", body: `{"category": "poetry_23"}`, want: crawler.ModeCategory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)

			w := s.do(http.MethodPost, "/scraping/books", tt.body)

			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			require.Len(t, s.crawler.runs, 1)
			assert.Equal(t, tt.want, s.crawler.runs[0].Mode())
			assert.EqualValues(t, 2, decode(t, w)["count"])
		})
	}
}

func TestCrawlBooksErrorStatuses(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "unknown category", err: fmt.Errorf("%w: x_1", crawler.ErrCategoryUnknown), want: http.StatusNotFound},
		{name: "in progress", err: crawler.ErrCrawlInProgress, want: http.StatusConflict},
		{name: "site failure", err: fmt.Errorf("fetch page 1: %w", scraper.FetchError{URL: "http://example.test/catalogue/page-1.html", Err: scraper.ErrHTTPStatus{StatusCode: 500, Err: errors.New("boom")}}), want: http.StatusBadGateway},
		{name: "layout changed", err: fmt.Errorf("%w: book x_1: no price", crawler.ErrLayoutChanged), want: http.StatusBadGateway},
		{name: "crawl log write", err: fmt.Errorf("record crawl: %w", errors.New("connection refused")), want: http.StatusInternalServerError},
		{name: "duplicate", err: fmt.Errorf("record crawl: %w", database.ErrDuplicate), want: http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			s.crawler.runErr = tt.err

			w := s.do(http.MethodPost, "/scraping/books", `{"category": "x_1"}`)

			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestDiscoverCategoriesEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.crawler.discover = []*models.Category{{ID: "travel_2", Name: "travel"}}

	w := s.do(http.MethodPost, "/scraping/categories", "")

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Contains(t, body["message"], "1 categories processed")
	assert.Len(t, body["createdCategories"], 1)
}

func TestListCrawlLog(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/scraping", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["total"])
}

func TestListBooksPriceFilter(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/books?price=10", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, s.books.lastFilter, "a half-specified price filter must not reach the store")

	w = s.do(http.MethodGet, "/books?price_filter_type=equal", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/books?price=10&price_filter_type=equal", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 1, body["total"])
	data := body["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, "olio_984", data[0].(map[string]any)["book_id"])
}

func TestListBooksPagination(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/books?page=3&limit=10&title=attic", "")

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, s.books.lastFilter)
	assert.Equal(t, 20, s.books.lastFilter.Offset)
	assert.Equal(t, 10, s.books.lastFilter.Limit)
	assert.Equal(t, "attic", s.books.lastFilter.Title)
	assert.EqualValues(t, 3, decode(t, w)["page"])
}

func TestListBooksByCategoryName(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/books?category=Poetry", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode(t, w)["total"])
}

func TestBookCRUD(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/books/missing_1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodPost, "/books", `{"book_id":"new_1","title":"new","price":3.5,"rating":2,"category_id":"poetry_23"}`)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = s.do(http.MethodPost, "/books", `{"book_id":"olio_984","title":"changed","price":1,"category_id":"poetry_23"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "olio", decode(t, w)["title"], "existing record is returned unchanged")

	w = s.do(http.MethodPost, "/books", `{"book_id":"bad_1","title":"bad","price":1,"rating":9,"category_id":"poetry_23"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPatch, "/books/olio_984", `{"title":"olio revised"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "olio revised", decode(t, w)["title"])

	w = s.do(http.MethodDelete, "/books/olio_984", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(http.MethodDelete, "/books/olio_984", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCategoryEndpoints(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/categories?name=Poetry", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "poetry_23", decode(t, w)["category_id"])

	w = s.do(http.MethodGet, "/categories/unknown_1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodPost, "/categories", `{"category_id":"poetry_23","category_name":"Poetry","category_url":"https://books.toscrape.com/catalogue/category/books/poetry_23/index.html"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodPost, "/categories", `{"category_id":"travel_2","category_name":"Travel","category_url":"https://books.toscrape.com/catalogue/category/books/travel_2/index.html"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "travel", decode(t, w)["category_name"])

	s.categories.deleteErr = fmt.Errorf("delete: %w", database.ErrForeignKey)
	w = s.do(http.MethodDelete, "/categories/poetry_23", "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "bookcrawl_books_added_total")
}
