package release

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/Faizanmal/Mult-Agent-sub002/internal/infrastructure/resilience"
)

// Updater fetches agent releases from a remote endpoint. The remote
// serves manifest.yaml at its root and binaries at /<version>/<binary>.
// All calls go through a circuit breaker so a broken remote degrades to
// silence instead of a retry storm.
type Updater struct {
	client  *resty.Client
	store   *Store
	breaker *resilience.Breaker
	logger  *zap.Logger
}

// NewUpdater creates an updater against baseURL.
func NewUpdater(baseURL string, store *Store, logger *zap.Logger) *Updater {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(60 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(10 * time.Second).
		SetHeader("User-Agent", "workspaced-updater/1.0")

	breaker := resilience.New("updates", resilience.Settings{
		MaxRequests: 1,
		Interval:    5 * time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("update endpoint breaker transition",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Updater{
		client:  client,
		store:   store,
		breaker: breaker,
		logger:  logger,
	}
}

// Check fetches the remote manifest.
func (u *Updater) Check(ctx context.Context) (Manifest, error) {
	var m Manifest
	err := u.breaker.Do(ctx, func(ctx context.Context) error {
		resp, err := u.client.R().SetContext(ctx).Get("/" + ManifestFile)
		if err != nil {
			return err
		}
		if !resp.IsSuccess() {
			return fmt.Errorf("manifest fetch: status %d", resp.StatusCode())
		}
		m, err = ParseManifest(resp.Body())
		return err
	})
	return m, err
}

// Download fetches and installs the release the manifest describes.
func (u *Updater) Download(ctx context.Context, m Manifest) (Release, error) {
	var rel Release
	err := u.breaker.Do(ctx, func(ctx context.Context) error {
		resp, err := u.client.R().
			SetContext(ctx).
			SetDoNotParseResponse(true).
			Get(fmt.Sprintf("/%s/%s", m.Version, m.Binary))
		if err != nil {
			return err
		}
		body := resp.RawBody()
		defer body.Close()
		if !resp.IsSuccess() {
			return fmt.Errorf("binary fetch %s: status %d", m.Version, resp.StatusCode())
		}

		rel, err = u.store.Add(m, body)
		return err
	})
	return rel, err
}

// Run checks for updates periodically until the context ends. A release
// newer than anything installed is downloaded into the store, where the
// release watcher picks it up like any locally installed version.
func (u *Updater) Run(ctx context.Context, interval time.Duration) {
	u.checkOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			u.checkOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (u *Updater) checkOnce(ctx context.Context) {
	m, err := u.Check(ctx)
	if err != nil {
		if !errors.Is(err, resilience.ErrCircuitOpen) {
			u.logger.Warn("update check failed", zap.Error(err))
		}
		return
	}

	if cur, ok := u.store.Current(); ok && CompareVersions(m.Version, cur.Version()) <= 0 {
		return
	}

	if _, err := u.Download(ctx, m); err != nil {
		u.logger.Warn("update download failed",
			zap.String("version", m.Version),
			zap.Error(err),
		)
		return
	}
}
