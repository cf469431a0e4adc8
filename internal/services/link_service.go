package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "github.com/wllfaria/felbot/internal/errors"
	"github.com/wllfaria/felbot/internal/models"
	"github.com/wllfaria/felbot/internal/pagination"
)

// Bookkeeping columns on account_links. Both only ever move forward.
const (
	columnJoinedGroupAt         = "joined_group_at"
	columnLastSubscriptionCheck = "last_subscription_check"
)

// linkService handles Discord to Telegram account links.
type linkService struct {
	db *gorm.DB
}

// NewLinkService creates a new LinkServicer.
func NewLinkService(db *gorm.DB) LinkServicer {
	return &linkService{db: db}
}

// CreateLink maps a Discord identity to a Telegram identity. Linking the
// same pair again returns the existing link.
func (s *linkService) CreateLink(discordID, telegramID int64) (*models.AccountLink, error) {
	return createLink(s.db, discordID, telegramID)
}

func createLink(tx *gorm.DB, discordID, telegramID int64) (*models.AccountLink, error) {
	if discordID <= 0 || telegramID <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "discord and telegram ids must be positive")
	}

	var existing []models.AccountLink
	if err := tx.Where("discord_id = ? OR telegram_id = ?", discordID, telegramID).Find(&existing).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	for i := range existing {
		if existing[i].DiscordID == discordID && existing[i].TelegramID == telegramID {
			return &existing[i], nil
		}
	}
	if len(existing) > 0 {
		return nil, apperrors.ErrAlreadyLinked
	}

	link := &models.AccountLink{
		DiscordID:  discordID,
		TelegramID: telegramID,
	}
	if err := tx.Create(link).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.ErrAlreadyLinked
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return link, nil
}

// LookupByDiscord retrieves the link for a Discord user.
func (s *linkService) LookupByDiscord(discordID int64) (*models.AccountLink, error) {
	return findLink(s.db, "discord_id = ?", discordID)
}

// LookupByTelegram retrieves the link for a Telegram user.
func (s *linkService) LookupByTelegram(telegramID int64) (*models.AccountLink, error) {
	return findLink(s.db, "telegram_id = ?", telegramID)
}

func findLink(tx *gorm.DB, query string, id int64) (*models.AccountLink, error) {
	var link models.AccountLink
	if err := tx.Where(query, id).First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotLinked
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &link, nil
}

// MarkJoinedGroup records when the user joined the paired Telegram group.
func (s *linkService) MarkJoinedGroup(discordID int64, at time.Time) (*models.AccountLink, error) {
	return advanceTimestamp(s.db, discordID, columnJoinedGroupAt, at)
}

// RecordSubscriptionCheck records when the user's subscription was last verified.
func (s *linkService) RecordSubscriptionCheck(discordID int64, at time.Time) (*models.AccountLink, error) {
	return advanceTimestamp(s.db, discordID, columnLastSubscriptionCheck, at)
}

// advanceTimestamp moves a bookkeeping column forward to at. A timestamp that
// is not later than the stored one leaves the row untouched and is not an
// error.
func advanceTimestamp(tx *gorm.DB, discordID int64, column string, at time.Time) (*models.AccountLink, error) {
	at = at.UTC()
	updates := models.Touch(map[string]interface{}{column: at}, time.Now().UTC())
	result := tx.Model(&models.AccountLink{}).
		Where("discord_id = ? AND ("+column+" IS NULL OR "+column+" < ?)", discordID, at).
		Updates(updates)
	if result.Error != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}

	return findLink(tx, "discord_id = ?", discordID)
}

// Unlink removes the mapping for a Discord user.
func (s *linkService) Unlink(discordID int64) error {
	result := s.db.Where("discord_id = ?", discordID).Delete(&models.AccountLink{})
	if result.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotLinked
	}
	return nil
}

// ListDueForCheck retrieves links never checked or last checked before the cutoff.
func (s *linkService) ListDueForCheck(before time.Time, page pagination.PageRequest) (*pagination.PageResponse[models.AccountLink], error) {
	query := s.db.Model(&models.AccountLink{}).
		Where("last_subscription_check IS NULL OR last_subscription_check < ?", before.UTC())

	result, err := pagination.Query[models.AccountLink](query, page, "created_at ASC")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return result, nil
}
