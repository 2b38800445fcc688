package ebay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/guarzo/repricer/internal/cache"
)

const findingFixture = `{
	"findItemsByKeywordsResponse": [{
		"searchResult": [{
			"item": [
				{
					"itemId": ["111111111111"],
					"title": ["Widget Deluxe New"],
					"country": ["US"],
					"condition": [{"conditionDisplayName": ["New"]}],
					"sellerInfo": [{"sellerUserName": ["alpha-seller"]}],
					"sellingStatus": [{"currentPrice": [{"__value__": "24.99"}]}],
					"shippingInfo": [{"shippingServiceCost": [{"__value__": "3.50"}]}]
				},
				{
					"itemId": ["222222222222"],
					"title": ["Widget Basic Used"],
					"country": ["GB"],
					"sellerInfo": [{"sellerUserName": ["beta-seller"]}],
					"sellingStatus": [{"currentPrice": [{"__value__": "12.00"}]}]
				}
			]
		}]
	}]
}`

func newSearchTestClient(t *testing.T, appID string, handler http.HandlerFunc) *SearchClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	searchURLOverride = server.URL
	t.Cleanup(func() { searchURLOverride = "" })

	c, err := cache.New(filepath.Join(t.TempDir(), "search.json"))
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	return NewSearchClient(appID, 5*time.Second, nil, c)
}

func TestSearchCompetitors_FindingAPI(t *testing.T) {
	var calls int
	client := newSearchTestClient(t, "app-1", func(w http.ResponseWriter, r *http.Request) {
		calls++
		if got := r.URL.Query().Get("OPERATION-NAME"); got != "findItemsByKeywords" {
			t.Errorf("operation = %s", got)
		}
		if got := r.URL.Query().Get("keywords"); got != "widget deluxe" {
			t.Errorf("keywords = %s", got)
		}
		w.Write([]byte(findingFixture))
	})

	snapshots, err := client.SearchCompetitors(context.Background(), "widget deluxe", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(snapshots) != 2 {
		t.Fatalf("snapshots = %d, want 2", len(snapshots))
	}
	first := snapshots[0]
	if first.CompetitorItemID != "111111111111" {
		t.Errorf("itemID = %s", first.CompetitorItemID)
	}
	if first.Price != 24.99 || first.ShippingCost != 3.50 {
		t.Errorf("price/shipping = %v/%v", first.Price, first.ShippingCost)
	}
	if first.SellerName != "alpha-seller" || first.Country != "US" || first.Condition != "New" {
		t.Errorf("unexpected snapshot: %+v", first)
	}

	// Second identical search is served from cache.
	if _, err := client.SearchCompetitors(context.Background(), "widget deluxe", 10); err != nil {
		t.Fatalf("cached search: %v", err)
	}
	if calls != 1 {
		t.Errorf("API called %d times, want 1", calls)
	}
}

func TestSearchCompetitors_MaxResults(t *testing.T) {
	client := newSearchTestClient(t, "app-1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(findingFixture))
	})

	snapshots, err := client.SearchCompetitors(context.Background(), "widget", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snapshots) != 1 {
		t.Errorf("snapshots = %d, want 1", len(snapshots))
	}
}

func TestSearchCompetitors_BrowseFallback(t *testing.T) {
	page := `<html><body>
		<ul>
			<li class="s-item">
				<a class="s-item__link" href="https://www.ebay.com/itm/333333333333?hash=abc"></a>
				<div class="s-item__title">Widget Deluxe Red</div>
				<span class="s-item__price">$21.45</span>
				<span class="s-item__location">from United States</span>
				<span class="s-item__seller-info-text">gamma-seller (1,234) 99.1%</span>
			</li>
			<li class="s-item">
				<div class="s-item__title">Shop on eBay</div>
				<span class="s-item__price">$20.00 to $95.00</span>
			</li>
		</ul>
	</body></html>`

	client := newSearchTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("_nkw"); got != "widget deluxe" {
			t.Errorf("_nkw = %s", got)
		}
		w.Write([]byte(page))
	})

	snapshots, err := client.SearchCompetitors(context.Background(), "widget deluxe", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(snapshots) != 2 {
		t.Fatalf("snapshots = %d, want 2", len(snapshots))
	}
	first := snapshots[0]
	if first.CompetitorItemID != "333333333333" {
		t.Errorf("itemID = %s", first.CompetitorItemID)
	}
	if first.Price != 21.45 {
		t.Errorf("price = %v", first.Price)
	}
	if first.Country != "United States" {
		t.Errorf("country = %q", first.Country)
	}
	if first.SellerName != "gamma-seller" {
		t.Errorf("seller = %q", first.SellerName)
	}
	// Range prices take the lower bound.
	if snapshots[1].Price != 20.00 {
		t.Errorf("range price = %v, want 20.00", snapshots[1].Price)
	}
}

func TestParseDisplayPrice(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"$12.34", 12.34},
		{"$1,234.56", 1234.56},
		{"$20.00 to $95.00", 20.00},
		{"£9.99", 9.99},
		{"not a price", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := parseDisplayPrice(tt.in); got != tt.want {
			t.Errorf("parseDisplayPrice(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestItemIDFromURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://www.ebay.com/itm/123456789012", "123456789012"},
		{"https://www.ebay.com/itm/123456789012?hash=x", "123456789012"},
		{"https://www.ebay.com/sch/i.html", ""},
		{"::bad::url", ""},
	}
	for _, tt := range tests {
		if got := itemIDFromURL(tt.in); got != tt.want {
			t.Errorf("itemIDFromURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSearchCompetitors_HTTPError(t *testing.T) {
	client := newSearchTestClient(t, "app-1", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})

	_, err := client.SearchCompetitors(context.Background(), "widget", 10)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "HTTP_429") {
		t.Errorf("error = %v, want HTTP_429 code", err)
	}
}
