// Package geizhals looks up current retail reference prices on the Geizhals
// price-comparison site. Lookups are best-effort: a miss or failure never
// blocks the notification path.
package geizhals

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"ramwatch/internal/models"
	"ramwatch/internal/transport"
)

type Client struct {
	logger  *logrus.Logger
	client  *http.Client
	baseURL string
}

func NewClient(baseURL string, logger *logrus.Logger) *Client {
	return &Client{
		logger: logger,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Lookup searches for the query and returns the first result's price.
// Returns nil without error when nothing matched.
func (c *Client) Lookup(ctx context.Context, query string) (*models.ReferencePrice, error) {
	if query == "" {
		return nil, nil
	}

	searchURL := fmt.Sprintf("%s/?fs=%s&in=", c.baseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geizhals HTTP %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, err
	}

	first := doc.Find("div.listview__item").First()
	if first.Length() == 0 {
		return nil, nil
	}

	title := first.Find("a.listview__name").First()
	priceText := first.Find("span.gh_price").First().Text()

	model := strings.TrimSpace(title.Text())
	price, ok := transport.ParsePrice(priceText)
	if model == "" || !ok {
		return nil, nil
	}

	link, _ := title.Attr("href")
	if link != "" && !strings.HasPrefix(link, "http") {
		link = c.baseURL + link
	}

	return &models.ReferencePrice{
		Model: model,
		Price: price,
		URL:   link,
	}, nil
}
