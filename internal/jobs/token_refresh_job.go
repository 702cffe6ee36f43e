package job

import (
	"context"
	"sync"
	"time"

	"github.com/maheshrc27/postpulse/internal/models"
	"github.com/maheshrc27/postpulse/internal/repository"
	"github.com/maheshrc27/postpulse/internal/service"
	"github.com/rs/zerolog"
)

const refreshConcurrency = 10

type TokenRefreshJob struct {
	sr     repository.SocialAccountRepository
	creds  service.CredentialProvider
	window time.Duration
	logger zerolog.Logger
}

func NewTokenRefreshJob(sr repository.SocialAccountRepository, creds service.CredentialProvider, logger zerolog.Logger) *TokenRefreshJob {
	return &TokenRefreshJob{
		sr:     sr,
		creds:  creds,
		window: 30 * time.Minute,
		logger: logger.With().Str("job", "token_refresh").Logger(),
	}
}

// RefreshTokens refreshes every X token that expires within the window.
func (c *TokenRefreshJob) RefreshTokens() {
	ctx := context.Background()

	now := time.Now()
	accounts, err := c.sr.ListByTimeInterval(ctx, now, now.Add(c.window))
	if err != nil {
		c.logger.Error().Err(err).Msg("list expiring accounts")
		return
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, refreshConcurrency)

	for _, acc := range accounts {
		if acc.Platform != models.PlatformX {
			continue
		}

		wg.Add(1)
		semaphore <- struct{}{}

		go func(acc *models.SocialAccount) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if _, err := c.creds.RefreshAccountToken(ctx, acc); err != nil {
				c.logger.Warn().Err(err).Int64("user_id", acc.UserID).Msg("unable to refresh x token")
			}
		}(acc)
	}

	wg.Wait()
}
