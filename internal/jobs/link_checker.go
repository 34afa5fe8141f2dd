package jobs

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"giftlist/internal/metrics"
	"giftlist/internal/models"
	"giftlist/internal/validation"
)

// LinkStore is the item access the link checker needs.
type LinkStore interface {
	GetItemsNeedingLinkCheck(ctx context.Context, maxAge time.Duration, limit int) ([]models.Item, error)
	UpdateItemLinkStatus(ctx context.Context, id uuid.UUID, status string, errorMsg *string) error
}

// LinkChecker periodically checks that item links still resolve, so cards can
// warn givers about broken shop links.
type LinkChecker struct {
	db       LinkStore
	interval time.Duration
	maxAge   time.Duration
	batch    int
	delay    time.Duration // pause between requests
	client   *http.Client
	log      logrus.FieldLogger

	// validate guards against requests to private addresses.
	validate func(string) (bool, string)
}

// NewLinkChecker creates a new link checker.
func NewLinkChecker(database LinkStore, interval, maxAge time.Duration, log logrus.FieldLogger) *LinkChecker {
	return &LinkChecker{
		db:       database,
		interval: interval,
		maxAge:   maxAge,
		batch:    50,
		delay:    1 * time.Second,
		log:      log,
		validate: validation.ValidateURLForHealthCheck,
		client: &http.Client{
			Timeout: 10 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return errors.New("too many redirects")
				}
				return nil
			},
		},
	}
}

// Start runs the check loop until ctx is cancelled.
func (h *LinkChecker) Start(ctx context.Context) {
	h.log.WithFields(logrus.Fields{"interval": h.interval, "max_age": h.maxAge}).Info("Link checker started")

	// Run immediately on start
	h.CheckAll(ctx)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info("Link checker stopped")
			return
		case <-ticker.C:
			h.CheckAll(ctx)
		}
	}
}

// CheckAll checks one batch of items whose links are unchecked or stale and
// returns how many were updated.
func (h *LinkChecker) CheckAll(ctx context.Context) int {
	items, err := h.db.GetItemsNeedingLinkCheck(ctx, h.maxAge, h.batch)
	if err != nil {
		h.log.WithError(err).Error("Failed to list items needing a link check")
		return 0
	}
	if len(items) == 0 {
		return 0
	}

	h.log.WithField("count", len(items)).Debug("Checking item links")

	checked := 0
	for i, item := range items {
		if ctx.Err() != nil {
			return checked
		}

		status, errorMsg := h.checkURL(ctx, item.Link)
		metrics.LinkChecks.WithLabelValues(status).Inc()
		if err := h.db.UpdateItemLinkStatus(ctx, item.ID, status, errorMsg); err != nil {
			h.log.WithError(err).WithField("item_id", item.ID).Warn("Failed to store link status")
			continue
		}
		checked++

		// Delay between checks to avoid overwhelming external servers
		if i < len(items)-1 && h.delay > 0 {
			select {
			case <-ctx.Done():
				return checked
			case <-time.After(h.delay):
			}
		}
	}
	return checked
}

// checkURL performs a HEAD request to check if a URL is reachable.
func (h *LinkChecker) checkURL(ctx context.Context, url string) (string, *string) {
	if valid, msg := h.validate(url); !valid {
		return models.HealthUnhealthy, &msg
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		errMsg := "invalid URL: " + err.Error()
		return models.HealthUnhealthy, &errMsg
	}

	req.Header.Set("User-Agent", "GiftList-LinkChecker/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		errMsg := "connection failed: " + err.Error()
		return models.HealthUnknown, &errMsg
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		errMsg := "page not found: " + resp.Status
		return models.HealthUnhealthy, &errMsg
	}

	// Any other HTTP response means the site is reachable
	return models.HealthHealthy, nil
}
