package models

import (
	"fmt"
	"time"
)

// CountedStatus 帖子是否计入配额（三态，持久化后不再重算）
type CountedStatus int8

const (
	CountedUnchecked CountedStatus = -1 // 尚未检查
	CountedExempt    CountedStatus = 0  // 豁免，不计入
	CountedCounts    CountedStatus = 1  // 计入配额
)

// RemovedStatus is the live moderation status of a post as last observed
// from the platform.
type RemovedStatus int8

const (
	RemovedUnknown RemovedStatus = iota
	RemovedNone                  // still up
	RemovedSpamFiltered
	RemovedByAutomation
	RemovedBySelfBot // removed by this bot
	RemovedByOtherBot
	RemovedByModerator
	RemovedSelfDeleted
)

func (s RemovedStatus) String() string {
	switch s {
	case RemovedNone:
		return "up"
	case RemovedSpamFiltered:
		return "spam filtered"
	case RemovedByAutomation:
		return "Automod-removed"
	case RemovedBySelfBot:
		return "MHB-removed"
	case RemovedByOtherBot:
		return "Bot-removed"
	case RemovedByModerator:
		return "Mod-removed"
	case RemovedSelfDeleted:
		return "self-deleted"
	default:
		return "unknown"
	}
}

type Post struct {
	ID            int64  `gorm:"type:bigint;auto_increment" json:"id"`
	PostID        string `gorm:"type:varchar(16);not null;unique" json:"post_id"`
	CommunityName string `gorm:"type:varchar(32);not null;index:idx_comm_author" json:"community_name"`
	AuthorName    string `gorm:"type:varchar(32);not null;index:idx_comm_author" json:"author_name"`
	Title         string `gorm:"type:varchar(191);not null" json:"title"`
	Body          string `gorm:"type:varchar(191)" json:"body,omitempty"`

	IsSelf          bool   `gorm:"not null" json:"is_self"`
	OriginalContent bool   `gorm:"not null" json:"original_content"`
	PostFlair       string `gorm:"type:varchar(64)" json:"post_flair"`
	AuthorFlair     string `gorm:"type:varchar(64)" json:"author_flair"`

	RemovedStatus RemovedStatus `gorm:"type:tinyint;not null;default:0" json:"removed_status"`
	RemovedBy     string        `gorm:"type:varchar(32)" json:"removed_by"`
	SelfDeleted   bool          `gorm:"not null" json:"self_deleted"`

	CountedStatus    CountedStatus `gorm:"type:tinyint;not null;default:-1" json:"counted_status"`
	Reviewed         bool          `gorm:"not null;default:false" json:"reviewed"`
	FlaggedDuplicate bool          `gorm:"not null;default:false" json:"flagged_duplicate"`
	PreDuplicate     bool          `gorm:"not null;default:false" json:"pre_duplicate"`

	PostedAt time.Time `gorm:"not null;index:idx_posted_at" json:"posted_at"`
	// LastChecked 指针类型，没复查过的帖子落库为 NULL
	// （零值时间超出 MySQL DATETIME 的取值范围）
	LastChecked *time.Time `json:"last_checked,omitempty"`
}

func (p *Post) URL() string {
	return fmt.Sprintf("http://redd.it/%s", p.PostID)
}

func (p *Post) CommentsURL() string {
	return fmt.Sprintf("https://www.reddit.com/r/%s/comments/%s", p.CommunityName, p.PostID)
}
