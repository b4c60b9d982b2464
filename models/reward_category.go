// models/reward_category.go
package models

import "time"

// RewardCategory is an event type moderators award points for ("raid",
// "on-time bonus", ...). NameKey is the slugged form of Name and carries the
// case-insensitive uniqueness constraint. Deleting a category does not
// invalidate codes already issued against it — their FK is severed instead.
type RewardCategory struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	NameKey   string    `gorm:"uniqueIndex;not null" json:"-"`
	Points    int       `gorm:"not null;check:points >= 0" json:"points"`
	Active    bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
