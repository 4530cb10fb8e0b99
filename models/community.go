package models

import "time"

// BanAbility 缓存了社区是否真的允许我们封禁，失败过一次就降级，
// 只有强制刷新配置才会复位
type BanAbility int8

const (
	BanAbilityForbidden BanAbility = -2 // 配置了封禁但平台拒绝
	BanAbilityUnknown   BanAbility = -1
	BanAbilityDisabled  BanAbility = 0 // 社区没有配置封禁
	BanAbilityPermanent BanAbility = 1
	BanAbilityTemporary BanAbility = 2
)

// TrackedCommunity 每个受管社区一行，原始策略文档 + 解析结果
//
// MaxCountPerInterval / MinPostIntervalMins 是冗余列，违规候选查询要和
// posts 表做 join，必须落库
type TrackedCommunity struct {
	CommunityName  string `gorm:"type:varchar(32);primaryKey" json:"community_name"`
	PolicyDoc      string `gorm:"type:text" json:"-"`
	PolicyRevision string `gorm:"type:varchar(64)" json:"policy_revision"`

	// BotMod 是最后一次修改策略文档的运营者
	BotMod string `gorm:"type:varchar(32)" json:"bot_mod"`

	BanAbility BanAbility `gorm:"type:tinyint;not null;default:-1" json:"ban_ability"`

	MaxCountPerInterval int `gorm:"not null;default:1" json:"max_count_per_interval"`
	MinPostIntervalMins int `gorm:"not null;default:4320" json:"min_post_interval_mins"`

	LastUpdated time.Time `json:"last_updated"`

	Policy     Policy   `gorm:"-" json:"-"`
	Moderators []string `gorm:"-" json:"-"`
}

// IsModerator 检查名字是否在社区运营者列表中
func (c *TrackedCommunity) IsModerator(name string) bool {
	for _, mod := range c.Moderators {
		if mod == name {
			return true
		}
	}
	return false
}

// Policy 是解析后的社区策略，每次重新解析整体替换
type Policy struct {
	RateLimitingEnabled bool

	MaxCountPerInterval int
	// MinPostIntervalHrs 非 nil 时表示策略是以小时为单位书写的，
	// 模板输出也按小时展示；nil 表示以分钟为单位
	MinPostIntervalHrs *int
	MinPostInterval    time.Duration
	GracePeriod        time.Duration

	IgnoreAutomationRemoved bool
	IgnoreModeratorRemoved  bool

	ExemptSelfPosts       bool
	ExemptLinkPosts       bool
	ExemptModeratorPosts  bool
	ExemptOriginalContent bool

	AuthorExemptFlairKeyword    string
	AuthorNotExemptFlairKeyword string
	TitleExemptKeyword          []string
	TitleNotExemptKeyword       []string

	// consequence ladder
	Comment         string
	Modmail         string
	Message         string
	Action          string // "", "remove" or "report"
	ReportReason    string
	Distinguish     bool
	Approve         bool
	LockThread      bool
	CommentStickied bool

	// escalation
	BanThresholdCount   int
	BanDurationDays     *float64 // nil 表示该社区不启用封禁
	NotifyAboutSpammers bool
	BlacklistEnabled    bool

	CannedResponses map[string]string
	SaveText        bool
}
