package models

import "time"

// AuthorState 记录某个作者在某个社区的违规/封禁状态，(community, author) 联合主键
type AuthorState struct {
	CommunityName string `gorm:"type:varchar(32);primaryKey" json:"community_name"`
	AuthorName    string `gorm:"type:varchar(32);primaryKey" json:"author_name"`

	CurrentlyBanned      bool `gorm:"not null;default:false" json:"currently_banned"`
	CurrentlyBlacklisted bool `gorm:"not null;default:false" json:"currently_blacklisted"`
	BanCount             int  `gorm:"not null;default:0" json:"ban_count"`
	ViolationCount       int  `gorm:"not null;default:0" json:"violation_count"`

	// HallPass 是手动发放的豁免次数，> 0 时下一个帖子不做任何检查
	HallPass int `gorm:"not null;default:0" json:"hall_pass"`

	// NextEligible 在该时间之前的新帖子会被直接移除（软黑名单）。
	// 指针类型，没拉黑过的作者落库为 NULL，零值时间存不进 MySQL DATETIME
	NextEligible  *time.Time `json:"next_eligible,omitempty"`
	BanLastFailed *time.Time `json:"ban_last_failed,omitempty"`

	// LastValidPost 最近一个未违规帖子的 ID，用于提示模板里的 "previous post"
	LastValidPost string    `gorm:"type:varchar(16)" json:"last_valid_post"`
	LastUpdated   time.Time `json:"last_updated"`
}

// CoolingDown 判断作者是否仍处于软黑名单冷却期
func (a *AuthorState) CoolingDown(now time.Time) bool {
	return a.NextEligible != nil && a.NextEligible.After(now)
}
