package service

import (
	"context"
	"time"

	config "github.com/maheshrc27/postpulse/configs"
	"github.com/maheshrc27/postpulse/internal/apperr"
	"github.com/maheshrc27/postpulse/internal/models"
	"github.com/maheshrc27/postpulse/internal/repository"
	"github.com/maheshrc27/postpulse/pkg/utils"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// tokenExpiryLeeway refreshes tokens that are about to expire during a call.
const tokenExpiryLeeway = time.Minute

// Credentials are the decrypted tokens for a user's connected X account.
type Credentials struct {
	AccessToken string
	AccountID   string
}

type CredentialProvider interface {
	GetUserTokens(ctx context.Context, userID int64) (*Credentials, error)
	RefreshAccountToken(ctx context.Context, acc *models.SocialAccount) (*Credentials, error)
}

type credentialProvider struct {
	cfg    config.Config
	sa     repository.SocialAccountRepository
	oauth  *oauth2.Config
	now    func() time.Time
	logger zerolog.Logger
}

func NewCredentialProvider(cfg config.Config, sa repository.SocialAccountRepository, logger zerolog.Logger) CredentialProvider {
	return &credentialProvider{
		cfg: cfg,
		sa:  sa,
		oauth: &oauth2.Config{
			ClientID:     cfg.X.ClientID,
			ClientSecret: cfg.X.ClientSecret,
			Scopes:       []string{"tweet.read", "tweet.write", "users.read", "offline.access"},
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.X.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		now:    time.Now,
		logger: logger.With().Str("component", "credentials").Logger(),
	}
}

func (p *credentialProvider) GetUserTokens(ctx context.Context, userID int64) (*Credentials, error) {
	acc, err := p.sa.GetByUserID(ctx, userID, models.PlatformX)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, apperr.Authorization("x account not connected for user %d", userID)
	}

	if p.now().Add(tokenExpiryLeeway).After(acc.TokenExpiresAt) {
		return p.RefreshAccountToken(ctx, acc)
	}

	accessToken, err := utils.Decrypt(acc.AccessToken, []byte(p.cfg.SecretKey))
	if err != nil {
		return nil, apperr.Authorization("decrypt access token for user %d: %v", userID, err)
	}
	return &Credentials{AccessToken: accessToken, AccountID: acc.AccountID}, nil
}

// RefreshAccountToken exchanges the stored refresh token for a new access
// token and persists both, encrypted.
func (p *credentialProvider) RefreshAccountToken(ctx context.Context, acc *models.SocialAccount) (*Credentials, error) {
	refreshToken, err := utils.Decrypt(acc.RefreshToken, []byte(p.cfg.SecretKey))
	if err != nil {
		return nil, apperr.Authorization("decrypt refresh token for user %d: %v", acc.UserID, err)
	}

	token, err := p.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, apperr.Authorization("refresh x token for user %d: %v", acc.UserID, err)
	}

	encryptedAccess, err := utils.Encrypt([]byte(token.AccessToken), []byte(p.cfg.SecretKey))
	if err != nil {
		return nil, err
	}
	updated := &models.SocialAccount{
		AccessToken:    encryptedAccess,
		TokenExpiresAt: token.Expiry,
	}
	if token.RefreshToken != "" {
		updated.RefreshToken, err = utils.Encrypt([]byte(token.RefreshToken), []byte(p.cfg.SecretKey))
		if err != nil {
			return nil, err
		}
	}

	if err := p.sa.SetToken(ctx, acc.UserID, acc.AccessToken, updated); err != nil {
		// The new token is valid for this call even if another refresh won the race.
		p.logger.Warn().Err(err).Int64("user_id", acc.UserID).Msg("failed to persist refreshed token")
	} else {
		p.logger.Info().Int64("user_id", acc.UserID).Time("expires_at", token.Expiry).Msg("refreshed x token")
	}

	return &Credentials{AccessToken: token.AccessToken, AccountID: acc.AccountID}, nil
}
