package models

import "time"

// ActionedItem 幂等标记：同一个 key 只会产生一次副作用（通知、命令回复等）
type ActionedItem struct {
	ActionKey    string    `gorm:"type:varchar(64);primaryKey" json:"action_key"`
	DateActioned time.Time `gorm:"not null" json:"date_actioned"`
}
