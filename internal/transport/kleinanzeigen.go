package transport

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"ramwatch/internal/models"
)

// Rotation parameter table: identity markers the client cycles through.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
}

var (
	adIDPattern  = regexp.MustCompile(`/s-anzeige/[^/]+/(\d+)`)
	adIDFallback = regexp.MustCompile(`/s-anzeige/(\d+)`)
	pricePattern = regexp.MustCompile(`[\d.]+(?:,\d+)?`)

	gesuchKeywords = []string{"suche", "gesuch", "sucht", "wanted"}
)

// KleinanzeigenClient fetches search result pages over plain HTTP and parses
// the listing cards out of the markup.
type KleinanzeigenClient struct {
	searchURL string
	logger    *logrus.Logger

	mu        sync.Mutex
	client    *http.Client
	userAgent string
}

func NewKleinanzeigenClient(searchURL string, logger *logrus.Logger) *KleinanzeigenClient {
	c := &KleinanzeigenClient{
		searchURL: strings.TrimRight(searchURL, "/"),
		logger:    logger,
	}
	c.RotateSession()
	return c
}

// RotateSession swaps the client identity: fresh cookie jar, new user agent.
// The rotation cadence is decided by the caller; this only executes it.
func (c *KleinanzeigenClient) RotateSession() {
	jar, _ := cookiejar.New(nil)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.client = &http.Client{
		Timeout: 15 * time.Second,
		Jar:     jar,
	}
	c.userAgent = userAgents[rand.Intn(len(userAgents))]
	if c.logger != nil {
		c.logger.WithField("user_agent", c.userAgent).Debug("Rotated session identity")
	}
}

// FetchPage retrieves one search result page. Page numbering starts at 1.
func (c *KleinanzeigenClient) FetchPage(ctx context.Context, page int) ([]models.RawListing, error) {
	url := c.searchURL
	if page > 1 {
		url = fmt.Sprintf("%s?seite=%d", c.searchURL, page)
	}

	c.mu.Lock()
	client := c.client
	userAgent := c.userAgent
	c.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Page: page, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "de-DE,de;q=0.9")

	resp, err := client.Do(req)
	if err != nil {
		return nil, &FetchError{Page: page, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{Page: page, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, &FetchError{Page: page, Err: err}
	}

	return ParseListings(doc), nil
}

// ParseListings extracts the listing cards from a search result document.
// Cards without a usable ID or price, and request ads ("Gesuch"), are dropped.
func ParseListings(doc *goquery.Document) []models.RawListing {
	var listings []models.RawListing
	// The card selectors can nest (an article inside a list item), so the
	// same ad may be visited twice.
	seen := make(map[string]bool)

	doc.Find("article.aditem, li.ad-listitem, div.ad-listitem").Each(func(_ int, sel *goquery.Selection) {
		link := sel.Find("a").First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}

		adID := extractAdID(href)
		if adID == "" || seen[adID] {
			return
		}
		seen[adID] = true

		title := strings.TrimSpace(link.Text())
		if title == "" {
			title = strings.TrimSpace(sel.Find("h2, .ellipsis").First().Text())
		}
		if isGesuch(title) {
			return
		}

		priceText := sel.Find(".aditem-main--middle--price-shipping--price, .aditem-details--top--price").First().Text()
		price, ok := ParsePrice(priceText)
		if !ok || price <= 0 {
			return
		}

		location := strings.TrimSpace(sel.Find(".aditem-main--top--left, .aditem-details--top--left").First().Text())
		postedText := strings.TrimSpace(sel.Find(".aditem-main--top--right, .aditem-details--top--right").First().Text())

		description := strings.TrimSpace(sel.Find(".aditem-main--middle--description").First().Text())
		if description == "" {
			description = title
		}

		url := href
		if strings.HasPrefix(url, "/") {
			url = "https://www.kleinanzeigen.de" + url
		}

		listings = append(listings, models.RawListing{
			AdID:        adID,
			Title:       title,
			Description: description,
			Price:       price,
			Location:    location,
			PostedAt:    ParseRelativeDate(postedText, time.Now()),
			URL:         url,
			HasImage:    sel.Find("img").Length() > 0,
		})
	})

	return listings
}

func extractAdID(href string) string {
	if m := adIDPattern.FindStringSubmatch(href); m != nil {
		return m[1]
	}
	if m := adIDFallback.FindStringSubmatch(href); m != nil {
		return m[1]
	}
	return ""
}

func isGesuch(title string) bool {
	lower := strings.ToLower(title)
	for _, kw := range gesuchKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// ParsePrice reads a German-formatted price string like "120 € VB" or
// "1.250,50 €". VB ("Verhandlungsbasis") and currency markers are ignored.
func ParsePrice(text string) (float64, bool) {
	m := pricePattern.FindString(text)
	if m == "" {
		return 0, false
	}
	m = strings.ReplaceAll(m, ".", "")
	m = strings.ReplaceAll(m, ",", ".")
	price, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return price, true
}

var relativeDateUnits = []struct {
	pattern *regexp.Regexp
	unit    time.Duration
}{
	{regexp.MustCompile(`vor\s+(\d+)\s+minuten?`), time.Minute},
	{regexp.MustCompile(`vor\s+(\d+)\s+stunden?`), time.Hour},
	{regexp.MustCompile(`vor\s+(\d+)\s+tag(?:en)?`), 24 * time.Hour},
	{regexp.MustCompile(`vor\s+(\d+)\s+wochen?`), 7 * 24 * time.Hour},
}

// ParseRelativeDate converts a marketplace-relative date like "vor 2 Stunden"
// into an absolute timestamp. Unparseable input falls back to now.
func ParseRelativeDate(text string, now time.Time) time.Time {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return now
	}
	if strings.Contains(lower, "heute") {
		return now
	}
	if strings.Contains(lower, "gestern") {
		return now.Add(-24 * time.Hour)
	}
	for _, u := range relativeDateUnits {
		if m := u.pattern.FindStringSubmatch(lower); m != nil {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			return now.Add(-time.Duration(n) * u.unit)
		}
	}
	return now
}
