package catalog

import (
	"bitwise74/course-archive/internal/model"
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Interact records an upvote or report by who against a visible resource and
// returns the resulting upvote count. Repeating the same action fails with
// ErrAlreadyInteracted.
func (c *Catalog) Interact(ctx context.Context, id string, who *model.Identity, action string) (int, error) {
	if who == nil || who.Email == "" {
		return 0, ErrNoIdentity
	}

	if action != model.ActionUpvote && action != model.ActionReport {
		return 0, fmt.Errorf("unknown action %q", action)
	}

	var upvotes int

	err := c.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var r model.Resource
		if err := tx.Where("id = ? AND hidden = ?", id, false).First(&r).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}

			return err
		}

		var seen int64
		err := tx.
			Model(model.Interaction{}).
			Where("voter_email = ? AND resource_id = ? AND action = ?", who.Email, id, action).
			Count(&seen).
			Error
		if err != nil {
			return err
		}

		if seen > 0 {
			return ErrAlreadyInteracted
		}

		err = tx.Create(&model.Interaction{
			VoterEmail: who.Email,
			ResourceID: id,
			Action:     action,
		}).Error
		if err != nil {
			// The unique index catches a concurrent duplicate the count missed
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyInteracted
			}

			return err
		}

		upvotes = r.Upvotes
		if action != model.ActionUpvote {
			return nil
		}

		err = tx.
			Model(&model.Resource{}).
			Where("id = ?", id).
			Update("upvotes", gorm.Expr("upvotes + ?", 1)).
			Error
		if err != nil {
			return err
		}

		upvotes++
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrAlreadyInteracted) {
			return 0, err
		}

		return 0, fmt.Errorf("failed to record %s, %w", action, err)
	}

	return upvotes, nil
}
