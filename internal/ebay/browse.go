package ebay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/guarzo/repricer/internal/cache"
	"github.com/guarzo/repricer/internal/model"
	"github.com/guarzo/repricer/internal/ratelimit"
)

// SearchClient serves the seller-initiated competitor search used when
// curating a listing's competitor list. The Finding API is the primary
// source; without an App ID it falls back to parsing the public search
// page. It never runs from the scheduler: competitor discovery stays a
// manual action.
type SearchClient struct {
	transport *transport
	appID     string
	cache     *cache.Cache
	cacheTTL  time.Duration
}

// searchURLOverride is set by tests to point at a local server.
var searchURLOverride string

func NewSearchClient(appID string, timeout time.Duration, limiter *ratelimit.Limiter, c *cache.Cache) *SearchClient {
	return &SearchClient{
		transport: newTransport(timeout, limiter),
		appID:     appID,
		cache:     c,
		cacheTTL:  15 * time.Minute,
	}
}

// SearchCompetitors returns competitor candidates for the query, at
// most max entries.
func (c *SearchClient) SearchCompetitors(ctx context.Context, query string, max int) ([]model.CompetitorSnapshot, error) {
	if max <= 0 {
		max = 20
	}

	cacheKey := fmt.Sprintf("search:%s:%d", query, max)
	if c.cache != nil {
		var cached []model.CompetitorSnapshot
		if c.cache.Get(cacheKey, &cached) {
			return cached, nil
		}
	}

	var (
		snapshots []model.CompetitorSnapshot
		err       error
	)
	if c.appID != "" {
		snapshots, err = c.findingSearch(ctx, query, max)
	} else {
		snapshots, err = c.browseSearch(ctx, query, max)
	}
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		_ = c.cache.Put(cacheKey, snapshots, c.cacheTTL)
	}
	return snapshots, nil
}

// findingResponse mirrors the Finding API's single-element-array JSON
// shape.
type findingResponse struct {
	FindItemsByKeywordsResponse []struct {
		SearchResult []struct {
			Item []struct {
				ItemID     []string `json:"itemId"`
				Title      []string `json:"title"`
				Country    []string `json:"country"`
				Condition  []struct {
					ConditionDisplayName []string `json:"conditionDisplayName"`
				} `json:"condition"`
				SellerInfo []struct {
					SellerUserName []string `json:"sellerUserName"`
				} `json:"sellerInfo"`
				SellingStatus []struct {
					CurrentPrice []struct {
						Value []string `json:"__value__"`
					} `json:"currentPrice"`
				} `json:"sellingStatus"`
				ShippingInfo []struct {
					ShippingServiceCost []struct {
						Value []string `json:"__value__"`
					} `json:"shippingServiceCost"`
				} `json:"shippingInfo"`
			} `json:"item"`
		} `json:"searchResult"`
	} `json:"findItemsByKeywordsResponse"`
}

func (c *SearchClient) findingSearch(ctx context.Context, query string, max int) ([]model.CompetitorSnapshot, error) {
	endpoint := "https://svcs.ebay.com/services/search/FindingService/v1"
	if searchURLOverride != "" {
		endpoint = searchURLOverride
	}

	params := url.Values{}
	params.Set("OPERATION-NAME", "findItemsByKeywords")
	params.Set("SERVICE-VERSION", "1.0.0")
	params.Set("SECURITY-APPNAME", c.appID)
	params.Set("RESPONSE-DATA-FORMAT", "JSON")
	params.Set("keywords", query)
	params.Set("paginationInput.entriesPerPage", strconv.Itoa(max))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating search request: %w", err)
	}

	body, status, err := c.transport.do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("executing search: %w", err)
	}
	if status != http.StatusOK {
		return nil, &APIError{Code: fmt.Sprintf("HTTP_%d", status), Message: "finding search failed", Raw: string(body)}
	}

	var response findingResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}

	var snapshots []model.CompetitorSnapshot
	for _, r := range response.FindItemsByKeywordsResponse {
		for _, sr := range r.SearchResult {
			for _, item := range sr.Item {
				snap := model.CompetitorSnapshot{AddedAt: time.Now().UTC()}
				if len(item.ItemID) > 0 {
					snap.CompetitorItemID = item.ItemID[0]
				}
				if len(item.Title) > 0 {
					snap.Title = item.Title[0]
				}
				if len(item.Country) > 0 {
					snap.Country = item.Country[0]
				}
				if len(item.Condition) > 0 && len(item.Condition[0].ConditionDisplayName) > 0 {
					snap.Condition = item.Condition[0].ConditionDisplayName[0]
				}
				if len(item.SellerInfo) > 0 && len(item.SellerInfo[0].SellerUserName) > 0 {
					snap.SellerName = item.SellerInfo[0].SellerUserName[0]
				}
				if len(item.SellingStatus) > 0 && len(item.SellingStatus[0].CurrentPrice) > 0 &&
					len(item.SellingStatus[0].CurrentPrice[0].Value) > 0 {
					snap.Price, _ = strconv.ParseFloat(item.SellingStatus[0].CurrentPrice[0].Value[0], 64)
				}
				if len(item.ShippingInfo) > 0 && len(item.ShippingInfo[0].ShippingServiceCost) > 0 &&
					len(item.ShippingInfo[0].ShippingServiceCost[0].Value) > 0 {
					snap.ShippingCost, _ = strconv.ParseFloat(item.ShippingInfo[0].ShippingServiceCost[0].Value[0], 64)
				}
				if snap.Price > 0 {
					snapshots = append(snapshots, snap)
				}
				if len(snapshots) >= max {
					return snapshots, nil
				}
			}
		}
	}
	return snapshots, nil
}

func (c *SearchClient) browseSearch(ctx context.Context, query string, max int) ([]model.CompetitorSnapshot, error) {
	endpoint := "https://www.ebay.com/sch/i.html"
	if searchURLOverride != "" {
		endpoint = searchURLOverride
	}

	params := url.Values{}
	params.Set("_nkw", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating browse request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; repricer/1.0)")

	body, status, err := c.transport.do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("executing browse: %w", err)
	}
	if status != http.StatusOK {
		return nil, &APIError{Code: fmt.Sprintf("HTTP_%d", status), Message: "browse search failed", Raw: ""}
	}

	return parseBrowseResults(bytes.NewReader(body), max)
}

// parseBrowseResults extracts competitor candidates from a search
// results page.
func parseBrowseResults(r io.Reader, max int) ([]model.CompetitorSnapshot, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing browse page: %w", err)
	}

	var snapshots []model.CompetitorSnapshot
	doc.Find(".s-item").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		title := strings.TrimSpace(sel.Find(".s-item__title").First().Text())
		priceText := strings.TrimSpace(sel.Find(".s-item__price").First().Text())
		price := parseDisplayPrice(priceText)
		if title == "" || price <= 0 {
			return true
		}

		snap := model.CompetitorSnapshot{
			Title:   title,
			Price:   price,
			AddedAt: time.Now().UTC(),
		}
		if href, ok := sel.Find(".s-item__link").First().Attr("href"); ok {
			snap.CompetitorItemID = itemIDFromURL(href)
		}
		if location := strings.TrimSpace(sel.Find(".s-item__location").First().Text()); location != "" {
			snap.Country = strings.TrimPrefix(location, "from ")
		}
		if seller := strings.TrimSpace(sel.Find(".s-item__seller-info-text").First().Text()); seller != "" {
			snap.SellerName = strings.Fields(seller)[0]
		}

		snapshots = append(snapshots, snap)
		return len(snapshots) < max
	})

	return snapshots, nil
}

// parseDisplayPrice handles "$12.34", "$1,234.56" and price ranges,
// taking the lower bound of a range.
func parseDisplayPrice(s string) float64 {
	if idx := strings.Index(s, " to "); idx > 0 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "$£€")
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// itemIDFromURL pulls the numeric item ID out of a listing URL path
// like /itm/123456789012.
func itemIDFromURL(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, p := range parts {
		if p == "itm" && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	return ""
}
