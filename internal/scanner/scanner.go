// Package scanner runs the scan cycle: fetch listing pages, filter and
// extract, deduplicate against the store and notify on genuinely new finds.
package scanner

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"ramwatch/internal/database"
	"ramwatch/internal/extractor"
	"ramwatch/internal/models"
	"ramwatch/internal/scorer"
	"ramwatch/internal/telegram"
	"ramwatch/internal/transport"
)

// Notifier delivers one formatted message to all configured recipients.
type Notifier interface {
	Notify(message string) []telegram.DeliveryResult
}

// PriceSource looks up a retail reference price for a spec query. A nil
// result without error means no match.
type PriceSource interface {
	Lookup(ctx context.Context, query string) (*models.ReferencePrice, error)
}

// Config holds the per-cycle filter settings.
type Config struct {
	MinPrice         float64
	MaxPrice         float64
	RequiredKeyword  string
	ExcludedKeywords []string
	MaxPages         int
}

type Scanner struct {
	logger    *logrus.Logger
	transport transport.Transport
	db        *database.Database
	notifier  Notifier
	prices    PriceSource
	cfg       Config
}

// NewScanner wires a scanner. prices may be nil to disable reference-price
// lookups.
func NewScanner(t transport.Transport, db *database.Database, notifier Notifier, prices PriceSource, cfg Config, logger *logrus.Logger) *Scanner {
	return &Scanner{
		logger:    logger,
		transport: t,
		db:        db,
		notifier:  notifier,
		prices:    prices,
		cfg:       cfg,
	}
}

// RunCycle fetches up to MaxPages result pages and processes every listing.
// A failed page counts one fetch error and the cycle moves on; an empty page
// ends pagination. The cycle itself never fails, it reports what happened.
func (s *Scanner) RunCycle(ctx context.Context) models.ScanStats {
	start := time.Now()
	stats := models.NewScanStats()

	for page := 1; page <= s.cfg.MaxPages; page++ {
		if ctx.Err() != nil {
			break
		}

		listings, err := s.transport.FetchPage(ctx, page)
		if err != nil {
			stats.FetchErrors++
			s.logger.WithError(err).WithField("page", page).Warn("Page fetch failed, continuing")
			continue
		}
		if len(listings) == 0 {
			s.logger.WithField("page", page).Debug("Empty result page, stopping pagination")
			break
		}

		for _, listing := range listings {
			s.processListing(ctx, listing, &stats)
		}
	}

	stats.Duration = time.Since(start)
	s.logger.WithFields(logrus.Fields{
		"fetched":      stats.Fetched,
		"filtered_out": stats.FilteredOut,
		"new":          stats.NewStored,
		"duplicates":   stats.Duplicates,
		"fetch_errors": stats.FetchErrors,
		"item_errors":  stats.ItemErrors,
		"duration":     stats.Duration.Round(time.Millisecond).String(),
	}).Info("Scan cycle finished")

	return stats
}

func (s *Scanner) processListing(ctx context.Context, listing models.RawListing, stats *models.ScanStats) {
	stats.Fetched++

	if !s.accept(listing) {
		stats.FilteredOut++
		return
	}

	spec := extractor.Extract(listing.Title, listing.Description)
	stats.CountFieldHits(spec)

	scored := models.ScoredListing{
		RawListing:    listing,
		Spec:          spec,
		PriorityScore: scorer.Score(spec),
		Qualified:     true,
	}

	now := time.Now()
	exists, err := s.db.Exists(listing.AdID)
	if err != nil {
		stats.ItemErrors++
		s.logger.WithError(err).WithField("ad_id", listing.AdID).Error("Dedup check failed")
		return
	}
	if exists {
		stats.Duplicates++
		if err := s.db.TouchLastChecked(listing.AdID, now); err != nil {
			s.logger.WithError(err).WithField("ad_id", listing.AdID).Warn("Failed to update last-checked time")
		}
		return
	}

	inserted, err := s.db.InsertIfAbsent(models.NewStoredRecord(scored, now))
	if err != nil {
		stats.ItemErrors++
		s.logger.WithError(err).WithField("ad_id", listing.AdID).Error("Failed to store listing")
		return
	}
	if !inserted {
		// Another writer got there between the existence check and the
		// insert. Still exactly one notification per ad ID.
		stats.Duplicates++
		return
	}

	stats.NewStored++
	s.logger.WithFields(logrus.Fields{
		"ad_id": listing.AdID,
		"title": listing.Title,
		"price": listing.Price,
		"score": scored.PriorityScore,
	}).Info("New listing stored")

	s.notify(ctx, scored)
}

// accept applies the cheap text and price filters before any extraction work.
func (s *Scanner) accept(listing models.RawListing) bool {
	title := strings.ToLower(listing.Title)

	if s.cfg.RequiredKeyword != "" && !strings.Contains(title, strings.ToLower(s.cfg.RequiredKeyword)) {
		return false
	}
	for _, kw := range s.cfg.ExcludedKeywords {
		if kw != "" && strings.Contains(title, strings.ToLower(kw)) {
			return false
		}
	}
	if listing.Price < s.cfg.MinPrice || listing.Price > s.cfg.MaxPrice {
		return false
	}
	// Titles like "DDR4 32GB (kein DDR5)" pass the keyword filter but are
	// not DDR5 offers.
	if !extractor.IsDDR5(listing.Title, listing.Description) {
		return false
	}
	return true
}

// notify formats and delivers the message. The reference-price lookup is
// best-effort and never blocks delivery.
func (s *Scanner) notify(ctx context.Context, scored models.ScoredListing) {
	var ref *models.ReferencePrice
	if s.prices != nil {
		query := buildPriceQuery(scored.Spec)
		if query != "" {
			lookupCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			r, err := s.prices.Lookup(lookupCtx, query)
			cancel()
			if err != nil {
				s.logger.WithError(err).Debug("Reference price lookup failed")
			} else {
				ref = r
			}
		}
	}

	s.notifier.Notify(telegram.FormatListing(scored, ref))
}

func buildPriceQuery(spec models.ExtractedSpec) string {
	if spec.ModelNumber != "" {
		return spec.ModelNumber
	}
	var parts []string
	for _, p := range []string{spec.Manufacturer, spec.Capacity, spec.Speed} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) < 2 {
		return ""
	}
	return strings.Join(parts, " ")
}
