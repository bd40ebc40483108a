package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/timepulse/timepulse-api/internal/database"
	"github.com/timepulse/timepulse-api/internal/logger"
	"github.com/timepulse/timepulse-api/internal/models"
	"golang.org/x/sync/errgroup"
)

// BibAlert is the payload sent to one watcher about one listing.
type BibAlert struct {
	Email          string `json:"email"`
	EventName      string `json:"event_name"`
	RaceName       string `json:"race_name"`
	BibLabel       string `json:"bib_number"`
	SalePrice      string `json:"sale_price"`
	GenderRequired string `json:"gender_required"`
	ListingID      string `json:"listing_id"`
}

// AlertNotifier delivers a single alert.
type AlertNotifier interface {
	NotifyBibAvailable(ctx context.Context, alert BibAlert) error
}

// RaceContextLoader resolves the names used in alert payloads.
type RaceContextLoader interface {
	GetRaceContext(ctx context.Context, raceID uuid.UUID) (*models.RaceContext, error)
}

type DispatchResult struct {
	Recipients int `json:"recipients"`
	Sent       int `json:"sent"`
	Failed     int `json:"failed"`
}

type AlertDispatcher struct {
	db          *database.DB
	races       RaceContextLoader
	notifier    AlertNotifier
	concurrency int
}

func NewAlertDispatcher(db *database.DB, races RaceContextLoader, notifier AlertNotifier, concurrency int) *AlertDispatcher {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &AlertDispatcher{db: db, races: races, notifier: notifier, concurrency: concurrency}
}

// MatchingWatchers keeps the watchers whose gender the listing accepts.
func MatchingWatchers(listing *models.BibListing, watchers []models.BibAlertWatcher) []models.BibAlertWatcher {
	matched := make([]models.BibAlertWatcher, 0, len(watchers))
	for _, w := range watchers {
		if listing.GenderRequired.Accepts(w.Gender) {
			matched = append(matched, w)
		}
	}
	return matched
}

func (d *AlertDispatcher) activeWatchers(ctx context.Context, listing *models.BibListing) ([]models.BibAlertWatcher, error) {
	rows, err := d.db.Pool.Query(ctx, `
		SELECT id, event_id, race_id, email, gender
		FROM bib_exchange_alerts
		WHERE event_id = $1 AND (race_id IS NULL OR race_id = $2) AND is_active = TRUE
		ORDER BY created_at ASC
	`, listing.EventID, listing.RaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load alert watchers: %w", err)
	}
	defer rows.Close()

	var watchers []models.BibAlertWatcher
	for rows.Next() {
		var w models.BibAlertWatcher
		var gender string
		if err := rows.Scan(&w.ID, &w.EventID, &w.RaceID, &w.Email, &gender); err != nil {
			return nil, err
		}
		w.Gender = models.Gender(gender)
		watchers = append(watchers, w)
	}
	return watchers, rows.Err()
}

func (d *AlertDispatcher) buildAlert(ctx context.Context, listing *models.BibListing) (BibAlert, error) {
	rc, err := d.races.GetRaceContext(ctx, listing.RaceID)
	if err != nil {
		return BibAlert{}, err
	}
	return BibAlert{
		EventName:      rc.Event.Name,
		RaceName:       rc.Race.Name,
		BibLabel:       BibLabel(listing.BibNumber),
		SalePrice:      FormatEuros(listing.SalePriceCents),
		GenderRequired: string(listing.GenderRequired),
		ListingID:      listing.ID.String(),
	}, nil
}

// Dispatch alerts every compatible watcher of the listing's race. Individual send
// failures are recorded and counted; only loading errors are returned.
func (d *AlertDispatcher) Dispatch(ctx context.Context, listing *models.BibListing) (*DispatchResult, error) {
	watchers, err := d.activeWatchers(ctx, listing)
	if err != nil {
		return nil, err
	}
	return d.send(ctx, listing, MatchingWatchers(listing, watchers))
}

// RetryFailed resends the alerts of a listing whose last attempt failed.
func (d *AlertDispatcher) RetryFailed(ctx context.Context, listing *models.BibListing) (*DispatchResult, error) {
	rows, err := d.db.Pool.Query(ctx, `
		SELECT a.id, a.event_id, a.race_id, a.email, a.gender
		FROM bib_exchange_alert_deliveries d
		JOIN bib_exchange_alerts a ON a.id = d.alert_id
		WHERE d.listing_id = $1 AND d.status = $2 AND a.is_active = TRUE
	`, listing.ID, models.DeliveryStatusFailed)
	if err != nil {
		return nil, fmt.Errorf("failed to load failed deliveries: %w", err)
	}

	var watchers []models.BibAlertWatcher
	for rows.Next() {
		var w models.BibAlertWatcher
		var gender string
		if err := rows.Scan(&w.ID, &w.EventID, &w.RaceID, &w.Email, &gender); err != nil {
			rows.Close()
			return nil, err
		}
		w.Gender = models.Gender(gender)
		watchers = append(watchers, w)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return d.send(ctx, listing, watchers)
}

func (d *AlertDispatcher) send(ctx context.Context, listing *models.BibListing, watchers []models.BibAlertWatcher) (*DispatchResult, error) {
	result := &DispatchResult{Recipients: len(watchers)}
	if len(watchers) == 0 {
		return result, nil
	}

	base, err := d.buildAlert(ctx, listing)
	if err != nil {
		return nil, fmt.Errorf("failed to build alert: %w", err)
	}

	sendErrs := make([]error, len(watchers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for i, w := range watchers {
		alert := base
		alert.Email = w.Email
		g.Go(func() error {
			sendErrs[i] = d.notifier.NotifyBibAvailable(gctx, alert)
			return nil
		})
	}
	_ = g.Wait()

	for i, w := range watchers {
		status := models.DeliveryStatusSent
		var errText *string
		if sendErrs[i] != nil {
			status = models.DeliveryStatusFailed
			msg := sendErrs[i].Error()
			errText = &msg
			result.Failed++
			logger.Log.Warn("bib alert delivery failed", "listing_id", listing.ID, "email", w.Email, "error", sendErrs[i])
		} else {
			result.Sent++
		}

		if err := d.recordDelivery(ctx, listing.ID, w, status, errText); err != nil {
			logger.Log.Error("failed to record bib alert delivery", "listing_id", listing.ID, "alert_id", w.ID, "error", err)
		}
	}

	return result, nil
}

func (d *AlertDispatcher) recordDelivery(ctx context.Context, listingID uuid.UUID, w models.BibAlertWatcher, status string, errText *string) error {
	_, err := d.db.Pool.Exec(ctx, `
		INSERT INTO bib_exchange_alert_deliveries (listing_id, alert_id, email, status, error)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (listing_id, alert_id) DO UPDATE SET
			status = EXCLUDED.status,
			error = EXCLUDED.error,
			attempts = bib_exchange_alert_deliveries.attempts + 1,
			updated_at = NOW()
	`, listingID, w.ID, w.Email, status, errText)
	return err
}

// Deliveries lists the recorded delivery attempts for a listing.
func (d *AlertDispatcher) Deliveries(ctx context.Context, listingID uuid.UUID) ([]models.AlertDelivery, error) {
	rows, err := d.db.Pool.Query(ctx, `
		SELECT id, listing_id, alert_id, email, status, error, attempts
		FROM bib_exchange_alert_deliveries
		WHERE listing_id = $1
		ORDER BY email ASC
	`, listingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	deliveries := []models.AlertDelivery{}
	for rows.Next() {
		var del models.AlertDelivery
		if err := rows.Scan(&del.ID, &del.ListingID, &del.AlertID, &del.Email, &del.Status, &del.Error, &del.Attempts); err != nil {
			return nil, err
		}
		deliveries = append(deliveries, del)
	}
	return deliveries, rows.Err()
}
