package ebay

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"time"

	"github.com/guarzo/repricer/internal/ratelimit"
)

// TradingClient wraps the eBay Trading API (XML) calls the repricer
// needs: reading an item's current price and revising it.
type TradingClient struct {
	transport *transport
	tokens    TokenProvider
	appID     string
	sandbox   bool
}

// NewTradingClient creates a Trading API client. The limiter paces all
// calls made through the client.
func NewTradingClient(tokens TokenProvider, appID string, sandbox bool, timeout time.Duration, limiter *ratelimit.Limiter) *TradingClient {
	return &TradingClient{
		transport: newTransport(timeout, limiter),
		tokens:    tokens,
		appID:     appID,
		sandbox:   sandbox,
	}
}

// endpointOverride is set by tests to point at a local server.
var endpointOverride string

func (c *TradingClient) endpoint() string {
	if endpointOverride != "" {
		return endpointOverride
	}
	if c.sandbox {
		return "https://api.sandbox.ebay.com/ws/api.dll"
	}
	return "https://api.ebay.com/ws/api.dll"
}

// ItemDetail is the slice of GetItem output the repricer cares about.
type ItemDetail struct {
	ItemID       string
	SKU          string
	Title        string
	CurrentPrice float64
	Currency     string
	ListingType  string
	Condition    string
	QuantitySold int
}

type getItemResponse struct {
	XMLName xml.Name   `xml:"GetItemResponse"`
	Ack     string     `xml:"Ack"`
	Errors  []apiError `xml:"Errors"`
	Item    struct {
		ItemID     string `xml:"ItemID"`
		SKU        string `xml:"SKU"`
		Title      string `xml:"Title"`
		StartPrice struct {
			Value      float64 `xml:",chardata"`
			CurrencyID string  `xml:"currencyID,attr"`
		} `xml:"StartPrice"`
		BuyItNowPrice struct {
			Value      float64 `xml:",chardata"`
			CurrencyID string  `xml:"currencyID,attr"`
		} `xml:"BuyItNowPrice"`
		ListingType   string `xml:"ListingType"`
		SellingStatus struct {
			QuantitySold int `xml:"QuantitySold"`
			CurrentPrice struct {
				Value      float64 `xml:",chardata"`
				CurrencyID string  `xml:"currencyID,attr"`
			} `xml:"CurrentPrice"`
		} `xml:"SellingStatus"`
		ConditionDisplayName string `xml:"ConditionDisplayName"`
	} `xml:"Item"`
}

type apiError struct {
	ShortMessage string `xml:"ShortMessage"`
	LongMessage  string `xml:"LongMessage"`
	ErrorCode    string `xml:"ErrorCode"`
}

// GetItem fetches an item's listing details, including its current
// price.
func (c *TradingClient) GetItem(ctx context.Context, itemID string) (*ItemDetail, error) {
	token, err := c.tokens.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring token: %w", err)
	}

	request := fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
	<GetItemRequest xmlns="urn:ebay:apis:eBLBaseComponents">
		<RequesterCredentials>
			<eBayAuthToken>%s</eBayAuthToken>
		</RequesterCredentials>
		<ItemID>%s</ItemID>
		<DetailLevel>ReturnAll</DetailLevel>
	</GetItemRequest>`, token, itemID)

	body, err := c.call(ctx, "GetItem", request)
	if err != nil {
		return nil, err
	}

	var response getItemResponse
	if err := xml.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("parsing GetItem response: %w", err)
	}
	if err := ackError(response.Ack, response.Errors, body); err != nil {
		return nil, err
	}

	item := response.Item
	detail := &ItemDetail{
		ItemID:       item.ItemID,
		SKU:          item.SKU,
		Title:        item.Title,
		ListingType:  item.ListingType,
		Condition:    item.ConditionDisplayName,
		QuantitySold: item.SellingStatus.QuantitySold,
	}

	// Fixed-price listings carry the price in BuyItNowPrice; fall back
	// to the selling status, then the start price.
	switch {
	case item.ListingType == "FixedPriceItem" && item.BuyItNowPrice.Value > 0:
		detail.CurrentPrice = item.BuyItNowPrice.Value
		detail.Currency = item.BuyItNowPrice.CurrencyID
	case item.SellingStatus.CurrentPrice.Value > 0:
		detail.CurrentPrice = item.SellingStatus.CurrentPrice.Value
		detail.Currency = item.SellingStatus.CurrentPrice.CurrencyID
	default:
		detail.CurrentPrice = item.StartPrice.Value
		detail.Currency = item.StartPrice.CurrencyID
	}

	return detail, nil
}

type reviseItemResponse struct {
	XMLName xml.Name   `xml:"ReviseItemResponse"`
	Ack     string     `xml:"Ack"`
	Errors  []apiError `xml:"Errors"`
}

// ReviseResult reports the outcome of a price revision, including the
// raw response for auditing.
type ReviseResult struct {
	Success bool
	Raw     string
}

// ReviseItemPrice updates the listing's price via the ReviseItem call.
// The SKU selects the variation when the listing has one.
func (c *TradingClient) ReviseItemPrice(ctx context.Context, itemID, sku string, newPrice float64) (*ReviseResult, error) {
	token, err := c.tokens.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring token: %w", err)
	}

	skuField := ""
	if sku != "" {
		skuField = fmt.Sprintf("<SKU>%s</SKU>", sku)
	}

	request := fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
	<ReviseItemRequest xmlns="urn:ebay:apis:eBLBaseComponents">
		<RequesterCredentials>
			<eBayAuthToken>%s</eBayAuthToken>
		</RequesterCredentials>
		<Item>
			<ItemID>%s</ItemID>
			%s<StartPrice>%.2f</StartPrice>
		</Item>
	</ReviseItemRequest>`, token, itemID, skuField, newPrice)

	body, err := c.call(ctx, "ReviseItem", request)
	if err != nil {
		return nil, err
	}

	var response reviseItemResponse
	if err := xml.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("parsing ReviseItem response: %w", err)
	}
	if err := ackError(response.Ack, response.Errors, body); err != nil {
		return &ReviseResult{Success: false, Raw: string(body)}, err
	}

	return &ReviseResult{Success: true, Raw: string(body)}, nil
}

// call executes one Trading API request with the standard headers.
func (c *TradingClient) call(ctx context.Context, callName, xmlBody string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader([]byte(xmlBody)))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("X-EBAY-API-COMPATIBILITY-LEVEL", "967")
	req.Header.Set("X-EBAY-API-DEV-NAME", c.appID)
	req.Header.Set("X-EBAY-API-APP-NAME", c.appID)
	req.Header.Set("X-EBAY-API-CERT-NAME", c.appID)
	req.Header.Set("X-EBAY-API-CALL-NAME", callName)
	req.Header.Set("X-EBAY-API-SITEID", "0")
	req.Header.Set("Content-Type", "text/xml")

	body, status, err := c.transport.do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("executing %s: %w", callName, err)
	}
	if status != http.StatusOK {
		return nil, &APIError{
			Code:    fmt.Sprintf("HTTP_%d", status),
			Message: fmt.Sprintf("%s returned status %d", callName, status),
			Raw:     string(body),
		}
	}
	return body, nil
}

func ackError(ack string, errs []apiError, body []byte) error {
	if ack == "Success" || ack == "Warning" {
		return nil
	}
	apiErr := &APIError{Message: "unknown error", Raw: string(body)}
	if len(errs) > 0 {
		apiErr.Code = errs[0].ErrorCode
		apiErr.Message = errs[0].LongMessage
	}
	return apiErr
}
