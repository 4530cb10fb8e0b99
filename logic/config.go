package logic

import (
	"context"
	"fmt"
	"time"

	"github.com/Asterisk-tech/moderatelyhelpfulbot/dao/localcache"
	"github.com/Asterisk-tech/moderatelyhelpfulbot/dao/mysql"
	mhb "github.com/Asterisk-tech/moderatelyhelpfulbot/errors"
	"github.com/Asterisk-tech/moderatelyhelpfulbot/internal/utils"
	"github.com/Asterisk-tech/moderatelyhelpfulbot/logger"
	"github.com/Asterisk-tech/moderatelyhelpfulbot/models"
	"github.com/Asterisk-tech/moderatelyhelpfulbot/platform"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

var communityGrp singleflight.Group

// DefaultPolicy 原始策略，文档中没写的键保持这些值
func DefaultPolicy() models.Policy {
	hrs := 72
	return models.Policy{
		MaxCountPerInterval:     1,
		MinPostIntervalHrs:      &hrs,
		MinPostInterval:         72 * time.Hour,
		GracePeriod:             30 * time.Minute,
		IgnoreAutomationRemoved: true,
		IgnoreModeratorRemoved:  true,
		ExemptModeratorPosts:    true,
		BanThresholdCount:       5,
		Distinguish:             true,
		LockThread:              true,
		BlacklistEnabled:        true,
		CannedResponses:         map[string]string{},
	}
}

type rawPolicyDoc struct {
	SaveText        bool           `yaml:"save_text"`
	PostRestriction map[string]any `yaml:"post_restriction"`
	Modmail         map[string]any `yaml:"modmail"`
}

// ParsePolicy 把社区策略文档解析成 Policy。
// 返回的 warnings 是 "did not understand variable" 一类的提示，解析本身成功。
// 所有派生字段（窗口、宽限期）整体替换，不保留旧值
func ParsePolicy(doc string) (models.Policy, []string, error) {
	policy := DefaultPolicy()
	warnings := make([]string, 0)

	if doc == "" {
		return policy, nil, errors.Wrap(mhb.ErrPolicyEmpty, "logic:ParsePolicy")
	}

	raw := new(rawPolicyDoc)
	if err := yaml.Unmarshal([]byte(doc), raw); err != nil {
		return policy, nil, errors.Wrapf(mhb.ErrPolicyParse, "logic:ParsePolicy: %v", err)
	}
	if raw.PostRestriction == nil && raw.Modmail == nil && !raw.SaveText {
		return policy, nil, errors.Wrap(mhb.ErrPolicyEmpty, "logic:ParsePolicy: no settings found")
	}

	policy.SaveText = raw.SaveText

	banDurationSeen := false
	var hrsOverride, minsOverride *int

	for key, v := range raw.PostRestriction {
		switch key {
		case "max_count_per_interval":
			policy.MaxCountPerInterval = cast.ToInt(v)
		case "ignore_automation_removed":
			policy.IgnoreAutomationRemoved = cast.ToBool(v)
		case "ignore_moderator_removed":
			policy.IgnoreModeratorRemoved = cast.ToBool(v)
		case "ban_threshold_count":
			policy.BanThresholdCount = cast.ToInt(v)
		case "notify_about_spammers":
			policy.NotifyAboutSpammers = cast.ToBool(v)
		case "ban_duration_days":
			banDurationSeen = true
			if v == nil {
				policy.BanDurationDays = nil // 显式 ~ 表示不启用封禁
				continue
			}
			days, err := cast.ToFloat64E(v)
			if err != nil {
				policy.BanDurationDays = nil // 非数值同样按不启用处理
				continue
			}
			policy.BanDurationDays = &days
		case "author_exempt_flair_keyword":
			policy.AuthorExemptFlairKeyword = cast.ToString(v)
		case "author_not_exempt_flair_keyword":
			policy.AuthorNotExemptFlairKeyword = cast.ToString(v)
		case "action":
			policy.Action = cast.ToString(v)
		case "modmail":
			policy.Modmail = cast.ToString(v)
		case "comment":
			policy.Comment = cast.ToString(v)
		case "message":
			policy.Message = cast.ToString(v)
		case "report_reason":
			policy.ReportReason = cast.ToString(v)
		case "distinguish":
			policy.Distinguish = cast.ToBool(v)
		case "exempt_link_posts":
			policy.ExemptLinkPosts = cast.ToBool(v)
		case "exempt_self_posts":
			policy.ExemptSelfPosts = cast.ToBool(v)
		case "exempt_moderator_posts":
			policy.ExemptModeratorPosts = cast.ToBool(v)
		case "exempt_oc":
			policy.ExemptOriginalContent = cast.ToBool(v)
		case "title_exempt_keyword":
			policy.TitleExemptKeyword = toKeywordList(v)
		case "title_not_exempt_keyword":
			policy.TitleNotExemptKeyword = toKeywordList(v)
		case "grace_period_mins":
			if v != nil {
				policy.GracePeriod = time.Duration(cast.ToInt(v)) * time.Minute
			}
		case "min_post_interval_hrs":
			hrs := cast.ToInt(v)
			hrsOverride = &hrs
		case "min_post_interval_mins":
			mins := cast.ToInt(v)
			minsOverride = &mins
		case "approve":
			policy.Approve = cast.ToBool(v)
		case "lock_thread":
			policy.LockThread = cast.ToBool(v)
		case "comment_stickied":
			policy.CommentStickied = cast.ToBool(v)
		case "blacklist_enabled":
			policy.BlacklistEnabled = cast.ToBool(v)
		default:
			warnings = append(warnings, fmt.Sprintf("Did not understand variable '%s'", key))
		}
	}
	if raw.PostRestriction != nil {
		policy.RateLimitingEnabled = true
	}

	// 小时和分钟只能有一个生效，后写的以分钟为准
	if minsOverride != nil {
		policy.MinPostInterval = time.Duration(*minsOverride) * time.Minute
		policy.MinPostIntervalHrs = nil
	}
	if hrsOverride != nil {
		policy.MinPostInterval = time.Duration(*hrsOverride) * time.Hour
		policy.MinPostIntervalHrs = hrsOverride
	}

	for key, v := range raw.Modmail {
		switch key {
		case "canned_responses":
			policy.CannedResponses = cast.ToStringMapString(v)
		default:
			warnings = append(warnings, fmt.Sprintf("Did not understand variable '%s'", key))
		}
	}

	if policy.MaxCountPerInterval <= 0 {
		policy.MaxCountPerInterval = 1
	}
	if policy.BanThresholdCount <= 0 {
		policy.BanThresholdCount = 5
	}
	if policy.MinPostInterval <= 0 {
		return policy, warnings, errors.Wrap(mhb.ErrPolicyZeroInterval, "logic:ParsePolicy")
	}
	if !banDurationSeen || (policy.BanDurationDays != nil && *policy.BanDurationDays == 0) {
		return policy, warnings, errors.Wrap(mhb.ErrPolicyZeroBan, "logic:ParsePolicy")
	}

	return policy, warnings, nil
}

func toKeywordList(v any) []string {
	if v == nil {
		return nil
	}
	if s, ok := v.(string); ok {
		return []string{s}
	}
	return cast.ToStringSlice(v)
}

// GetCommunity 带缓存读取社区配置：缓存命中且没到重新校验时间直接返回，
// 否则 singleflight 收拢并发加载
func GetCommunity(name string) (*models.TrackedCommunity, error) {
	name = utils.NormalizeCommunityName(name)
	revalidate := time.Duration(viper.GetInt64("service.policy.revalidate_interval")) * time.Second

	if community, ok := localcache.GetCommunity(name); ok {
		if time.Since(community.LastUpdated) < revalidate {
			return community, nil
		}
	}

	loadTimeout := time.Duration(viper.GetInt64("service.policy.load_timeout")) * time.Second
	v, err := utils.SfDoWithTimeout(&communityGrp, "community_"+name, loadTimeout, time.Second, func() (any, error) {
		return LoadCommunity(name, false)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.TrackedCommunity), nil
}

// LoadCommunity 从库里取社区并解析策略；forceUpdate 时强制重新拉取策略文档，
// 并把 ban_ability 复位成 unknown。上次拉取超过重新校验间隔时同样强制，
// 运营者的文档修改和 ban_ability 降级都靠这条路生效/恢复
func LoadCommunity(name string, forceUpdate bool) (*models.TrackedCommunity, error) {
	name = utils.NormalizeCommunityName(name)
	ctx, cancel := context.WithTimeout(context.Background(),
		time.Duration(viper.GetInt64("platform.timeout"))*time.Second)
	defer cancel()

	community, err := mysql.SelectCommunity(name)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		community = &models.TrackedCommunity{
			CommunityName: name,
			BanAbility:    models.BanAbilityUnknown,
		}
		forceUpdate = true
	} else if !forceUpdate {
		revalidate := time.Duration(viper.GetInt64("service.policy.revalidate_interval")) * time.Second
		forceUpdate = time.Since(community.LastUpdated) >= revalidate
	}

	mods, err := platform.Get().FetchModerators(ctx, name)
	if err != nil {
		logger.Warnf("logic:LoadCommunity: fetch moderators for %s: %v", name, err)
	} else {
		community.Moderators = mods
	}

	if forceUpdate || community.PolicyDoc == "" {
		doc, err := platform.Get().FetchPolicyDocument(ctx, name)
		if err != nil {
			switch {
			case errors.Is(err, platform.ErrNotFound):
				return community, errors.Wrap(mhb.ErrPolicyNotFound, "logic:LoadCommunity")
			case errors.Is(err, platform.ErrForbidden):
				return community, errors.Wrap(mhb.ErrPolicyForbidden, "logic:LoadCommunity")
			default:
				return community, errors.Wrap(err, "logic:LoadCommunity: fetch policy document")
			}
		}
		community.PolicyDoc = doc.Content
		community.PolicyRevision = doc.Revision
		if doc.RevisedBy != "" {
			community.BotMod = doc.RevisedBy
		}
		community.BanAbility = models.BanAbilityUnknown
	}

	policy, warnings, err := ParsePolicy(community.PolicyDoc)
	for _, w := range warnings {
		logger.Warnf("logic:LoadCommunity: %s: %s", name, w)
	}
	if err != nil {
		return community, err
	}

	community.Policy = policy
	community.MaxCountPerInterval = policy.MaxCountPerInterval
	community.MinPostIntervalMins = int(policy.MinPostInterval / time.Minute)
	community.LastUpdated = time.Now().UTC()

	if err := mysql.SaveCommunity(nil, community); err != nil {
		return nil, err
	}
	localcache.SetCommunity(community)
	return community, nil
}

// RefreshCommunity 运营者 update 命令 / 管理接口触发的强制刷新
func RefreshCommunity(name string) (*models.TrackedCommunity, error) {
	name = utils.NormalizeCommunityName(name)
	localcache.RemoveCommunity(name)
	return LoadCommunity(name, true)
}

// ConfigHelpText 按失败类型给运营者的修复建议
func ConfigHelpText(err error, community string) string {
	switch {
	case errors.Is(err, mhb.ErrPolicyNotFound):
		return fmt.Sprintf("This error means the policy document needs to be created. See https://www.reddit.com/r/%s/wiki/moderatelyhelpfulbot. ", community)
	case errors.Is(err, mhb.ErrPolicyForbidden):
		return fmt.Sprintf("This error means the bot doesn't have enough permissions to view the policy document. Please make sure that the bot has accepted the moderator invitation and has wiki privileges here: https://www.reddit.com/r/%s/about/moderators/ . ", community)
	case errors.Is(err, mhb.ErrPolicyParse):
		return "Looks like there is an error in your yaml code. Please make sure to validate your syntax at https://yamlvalidator.com/. "
	case errors.Is(err, mhb.ErrPolicyEmpty):
		return "I couldn't find any settings in the document. Is it filled in? "
	case errors.Is(err, mhb.ErrPolicyZeroInterval):
		return "A posting interval of zero is not allowed. Please set min_post_interval_hrs or min_post_interval_mins to a positive value. "
	case errors.Is(err, mhb.ErrPolicyZeroBan):
		return "ban_duration_days can no longer be zero. Use `ban_duration_days: ~` to disable or use `ban_duration_days: 999` for permanent bans. Make sure there is a space after the colon. "
	default:
		return ""
	}
}

// NotifyConfigError 配置坏掉时给社区运营者发一次性提醒，
// 以 (社区, 策略修订号) 为幂等键，同一版配置只提醒一次
func NotifyConfigError(community *models.TrackedCommunity, loadErr error) {
	actionKey := fmt.Sprintf("wu-%s-%s", community.CommunityName, community.PolicyRevision)
	done, err := mysql.CheckActioned(actionKey)
	if err != nil {
		logger.ErrorWithStack(err)
		return
	}
	if done {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(),
		time.Duration(viper.GetInt64("platform.timeout"))*time.Second)
	defer cancel()

	body := fmt.Sprintf("There was an error loading your ModeratelyHelpfulBot configuration: %v \n\n%s\n\nhttps://www.reddit.com/r/%s/wiki/edit/moderatelyhelpfulbot",
		errors.Cause(loadErr), ConfigHelpText(loadErr, community.CommunityName), community.CommunityName)
	if err := platform.Get().SendModmail(ctx, community.CommunityName, "Configuration error", body); err != nil {
		logger.Warnf("logic:NotifyConfigError: send modmail to %s: %v", community.CommunityName, err)
		return
	}
	if err := mysql.RecordActioned(actionKey); err != nil {
		logger.ErrorWithStack(err)
	}
}
