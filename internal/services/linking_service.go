package services

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	apperrors "github.com/wllfaria/felbot/internal/errors"
	"github.com/wllfaria/felbot/internal/logger"
	"github.com/wllfaria/felbot/internal/models"
	"github.com/wllfaria/felbot/internal/uuid"
)

// DefaultLinkTokenTTL is how long an issued linking token stays redeemable.
const DefaultLinkTokenTTL = 15 * time.Minute

// linkingService handles the single-use linking token flow.
type linkingService struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

// NewLinkingService creates a new LinkingServicer. A non-positive ttl falls
// back to DefaultLinkTokenTTL.
func NewLinkingService(db *gorm.DB, ttl time.Duration) LinkingServicer {
	if ttl <= 0 {
		ttl = DefaultLinkTokenTTL
	}
	return &linkingService{db: db, ttl: ttl, now: time.Now}
}

// IssueToken starts a link attempt for a Telegram user targeting the group
// paired under groupLabel.
func (s *linkingService) IssueToken(telegramID int64, groupLabel string) (*models.LinkingToken, error) {
	groupLabel = strings.TrimSpace(groupLabel)
	if telegramID <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "telegram id must be positive")
	}
	if groupLabel == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "group label is required")
	}

	// Check if this Telegram user is already linked
	if _, err := findLink(s.db, "telegram_id = ?", telegramID); err == nil {
		return nil, apperrors.ErrAlreadyLinked
	} else if !errors.Is(err, apperrors.ErrNotLinked) {
		return nil, err
	}

	if _, err := findGroupByLabel(s.db, groupLabel); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	token := &models.LinkingToken{
		Token:      uuid.NewToken(),
		TelegramID: telegramID,
		GroupLabel: groupLabel,
		ExpiresAt:  now.Add(s.ttl),
	}
	if err := s.db.Create(token).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	logger.Get().Infow("linking token issued",
		"telegram_id", telegramID,
		"group_label", groupLabel,
		"expires_at", token.ExpiresAt,
	)
	return token, nil
}

// RedeemToken consumes a token. Concurrent redemptions of the same token
// produce exactly one winner; every other caller gets TokenConsumed.
func (s *linkingService) RedeemToken(token string) (*RedeemedToken, error) {
	var claimed *models.LinkingToken
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		claimed, err = claimToken(tx, token, s.now().UTC())
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Get().Infow("linking token redeemed", "telegram_id", claimed.TelegramID, "group_label", claimed.GroupLabel)
	return &RedeemedToken{TelegramID: claimed.TelegramID, GroupLabel: claimed.GroupLabel}, nil
}

// claimToken marks an issued, unexpired token consumed with a single
// conditional update. Only when the claim misses is the row read back, to
// tell the caller why.
func claimToken(tx *gorm.DB, token string, now time.Time) (*models.LinkingToken, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperrors.ErrTokenNotFound
	}

	updates := models.Touch(map[string]interface{}{"consumed_at": now}, now)
	result := tx.Model(&models.LinkingToken{}).
		Where("token = ? AND consumed_at IS NULL AND expires_at > ?", token, now).
		Updates(updates)
	if result.Error != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}

	var stored models.LinkingToken
	if err := tx.Where("token = ?", token).First(&stored).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTokenNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if result.RowsAffected == 1 {
		return &stored, nil
	}
	if stored.ConsumedAt != nil {
		return nil, apperrors.ErrTokenConsumed
	}
	return nil, apperrors.ErrTokenExpired
}

// CompleteLink redeems a token on behalf of a Discord user, links the two
// identities and records the group join. Any failure rolls everything back,
// leaving the token redeemable until it expires.
func (s *linkingService) CompleteLink(token string, discordID int64) (*CompletedLink, error) {
	if discordID <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "discord id must be positive")
	}

	var completed CompletedLink
	err := s.db.Transaction(func(tx *gorm.DB) error {
		now := s.now().UTC()

		claimed, err := claimToken(tx, token, now)
		if err != nil {
			return err
		}

		group, err := findGroupByLabel(tx, claimed.GroupLabel)
		if err != nil {
			return err
		}

		if _, err := createLink(tx, discordID, claimed.TelegramID); err != nil {
			return err
		}

		link, err := advanceTimestamp(tx, discordID, columnJoinedGroupAt, now)
		if err != nil {
			return err
		}

		completed = CompletedLink{Link: link, Group: group}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Get().Infow("account linked",
		"discord_id", completed.Link.DiscordID,
		"telegram_id", completed.Link.TelegramID,
		"telegram_group_id", completed.Group.TelegramGroupID,
	)
	return &completed, nil
}

// SweepExpired deletes tokens that can no longer be redeemed: consumed ones
// and those whose expiry is at or before the cutoff.
func (s *linkingService) SweepExpired(before time.Time) (int64, error) {
	result := s.db.Where("consumed_at IS NOT NULL OR expires_at <= ?", before.UTC()).Delete(&models.LinkingToken{})
	if result.Error != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}
	return result.RowsAffected, nil
}
