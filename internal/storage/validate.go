package storage

import (
	"fmt"

	"github.com/scrypster/topical/pkg/types"
)

// ValidateTopic checks the field bounds shared by both metadata backends.
func ValidateTopic(topic *types.Topic) error {
	if topic == nil {
		return ErrInvalidInput
	}
	if topic.Name == "" {
		return fmt.Errorf("%w: topic name is required", ErrInvalidInput)
	}
	if len(topic.Name) > types.MaxNameLen {
		return fmt.Errorf("%w: topic name exceeds %d characters", ErrInvalidInput, types.MaxNameLen)
	}
	if len(topic.Description) > types.MaxDescriptionLen {
		return fmt.Errorf("%w: topic description exceeds %d characters", ErrInvalidInput, types.MaxDescriptionLen)
	}
	return nil
}

// ValidateTopicUpdate checks the bounds of a partial topic update.
func ValidateTopicUpdate(update types.TopicUpdate) error {
	if update.Name != nil {
		if *update.Name == "" {
			return fmt.Errorf("%w: topic name cannot be cleared", ErrInvalidInput)
		}
		if len(*update.Name) > types.MaxNameLen {
			return fmt.Errorf("%w: topic name exceeds %d characters", ErrInvalidInput, types.MaxNameLen)
		}
	}
	if update.Description != nil && len(*update.Description) > types.MaxDescriptionLen {
		return fmt.Errorf("%w: topic description exceeds %d characters", ErrInvalidInput, types.MaxDescriptionLen)
	}
	return nil
}

// ValidateSet checks the field bounds of a new set.
func ValidateSet(set *types.Set) error {
	if set == nil {
		return ErrInvalidInput
	}
	if set.TopicID == "" {
		return fmt.Errorf("%w: set topic_id is required", ErrInvalidInput)
	}
	if set.Name == "" {
		return fmt.Errorf("%w: set name is required", ErrInvalidInput)
	}
	if len(set.Name) > types.MaxNameLen {
		return fmt.Errorf("%w: set name exceeds %d characters", ErrInvalidInput, types.MaxNameLen)
	}
	if len(set.Description) > types.MaxDescriptionLen {
		return fmt.Errorf("%w: set description exceeds %d characters", ErrInvalidInput, types.MaxDescriptionLen)
	}
	return nil
}

// ValidateSetUpdate checks the bounds of a partial set update.
func ValidateSetUpdate(update types.SetUpdate) error {
	if update.Name != nil {
		if *update.Name == "" {
			return fmt.Errorf("%w: set name cannot be cleared", ErrInvalidInput)
		}
		if len(*update.Name) > types.MaxNameLen {
			return fmt.Errorf("%w: set name exceeds %d characters", ErrInvalidInput, types.MaxNameLen)
		}
	}
	if update.Description != nil && len(*update.Description) > types.MaxDescriptionLen {
		return fmt.Errorf("%w: set description exceeds %d characters", ErrInvalidInput, types.MaxDescriptionLen)
	}
	return nil
}

// ValidateEntity checks the required fields of a new entity.
// Payload contents are intentionally unconstrained; only presence is checked.
func ValidateEntity(entity *types.Entity) error {
	if entity == nil {
		return ErrInvalidInput
	}
	if entity.SetID == "" {
		return fmt.Errorf("%w: entity set_id is required", ErrInvalidInput)
	}
	if entity.Payload == nil {
		return fmt.Errorf("%w: entity payload is required", ErrInvalidInput)
	}
	return nil
}
