package logic

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Asterisk-tech/moderatelyhelpfulbot/dao/mysql"
	"github.com/Asterisk-tech/moderatelyhelpfulbot/logger"
	"github.com/Asterisk-tech/moderatelyhelpfulbot/models"
	"github.com/Asterisk-tech/moderatelyhelpfulbot/platform"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// RefreshPostStatus 拉取帖子在平台上的实时状态（是否被删、被谁删、flair），
// 覆盖本地快照。豁免检查前必须先刷新一次
func RefreshPostStatus(post *models.Post) error {
	ctx, cancel := context.WithTimeout(context.Background(),
		time.Duration(viper.GetInt64("platform.timeout"))*time.Second)
	defer cancel()

	info, err := platform.Get().FetchPost(ctx, post.PostID)
	if err != nil {
		return errors.Wrap(err, "logic:RefreshPostStatus")
	}

	post.SelfDeleted = info.Author == ""
	post.RemovedBy = info.RemovedBy
	post.RemovedStatus = classifyRemoved(info)
	post.OriginalContent = info.OriginalContent
	post.PostFlair = info.PostFlair
	// css class 拼在 flair 后面一起参与关键词匹配
	post.AuthorFlair = info.AuthorFlair
	if info.AuthorFlair != "" && info.AuthorFlairCSS != "" {
		post.AuthorFlair = info.AuthorFlair + info.AuthorFlairCSS
	}
	return nil
}

func classifyRemoved(info *platform.PostInfo) models.RemovedStatus {
	botName := viper.GetString("server.bot_name")
	switch {
	case info.SpamFiltered:
		return models.RemovedSpamFiltered
	case info.RemovedBy == "" && info.Author != "":
		return models.RemovedNone
	case info.RemovedBy == "" && info.Author == "":
		return models.RemovedSelfDeleted
	case info.RemovedBy == "AutoModerator":
		return models.RemovedByAutomation
	case info.RemovedBy == botName:
		return models.RemovedBySelfBot
	case strings.Contains(strings.ToLower(info.RemovedBy), "bot"):
		return models.RemovedByOtherBot
	default:
		return models.RemovedByModerator
	}
}

// CheckPostExemptions 判断一个帖子是否计入配额。只读，不写任何状态；
// 规则按固定顺序求值，第一个命中的规则直接短路。
// 返回计入与否和给审计日志看的原因
func CheckPostExemptions(community *models.TrackedCommunity, post *models.Post) (models.CountedStatus, string) {
	policy := community.Policy

	// 已经被平台或人移除的帖子
	if post.RemovedStatus == models.RemovedSpamFiltered {
		return models.CountedExempt, "post is removed"
	}
	if policy.IgnoreAutomationRemoved && post.RemovedStatus == models.RemovedByAutomation {
		return models.CountedExempt, "post is removed"
	}
	if policy.IgnoreModeratorRemoved && post.RemovedBy != "" && community.IsModerator(post.RemovedBy) {
		return models.CountedExempt, "post is removed"
	}

	if policy.ExemptOriginalContent && post.OriginalContent {
		return models.CountedExempt, "oc exempt"
	}

	// 帖子类型豁免，self 和 link 互斥
	if post.IsSelf && policy.ExemptSelfPosts {
		return models.CountedExempt, "self_post_exempt"
	}
	if !post.IsSelf && policy.ExemptLinkPosts {
		return models.CountedExempt, "link_post_exempt"
	}

	if policy.AuthorExemptFlairKeyword != "" && post.AuthorFlair != "" &&
		strings.Contains(post.AuthorFlair, policy.AuthorExemptFlairKeyword) {
		return models.CountedExempt, fmt.Sprintf("flair exempt %s", post.AuthorFlair)
	}

	// "只管这个 flair"：没有 flair 或者 flair 不含关键词的都豁免
	if policy.AuthorNotExemptFlairKeyword != "" &&
		(post.AuthorFlair == "" || !strings.Contains(post.AuthorFlair, policy.AuthorNotExemptFlairKeyword)) {
		return models.CountedExempt, fmt.Sprintf("flair not exempt %s", post.AuthorFlair)
	}

	if len(policy.TitleExemptKeyword) > 0 {
		flexTitle := strings.ToLower(post.Title)
		for _, keyword := range policy.TitleExemptKeyword {
			if strings.Contains(flexTitle, strings.ToLower(keyword)) {
				return models.CountedExempt, fmt.Sprintf("title keyword exempt %s", keyword)
			}
		}
	}

	// "只管这些标题"：标题（连同帖子 flair）不含任何关键词的豁免
	if len(policy.TitleNotExemptKeyword) > 0 {
		flexTitle := strings.ToLower(post.Title + post.PostFlair)
		matched := false
		for _, keyword := range policy.TitleNotExemptKeyword {
			if strings.Contains(flexTitle, strings.ToLower(keyword)) {
				matched = true
				break
			}
		}
		if !matched {
			return models.CountedExempt, fmt.Sprintf("title keyword not exempt %v", policy.TitleNotExemptKeyword)
		}
	}

	if policy.ExemptModeratorPosts && community.IsModerator(post.AuthorName) {
		return models.CountedExempt, "moderator exempt"
	}

	return models.CountedCounts, "no exemptions"
}

// EnsureCounted 返回帖子的计数状态；算过一次就不再重算（落库记忆），
// 只有运营者 reset 之后才会重新评估
func EnsureCounted(community *models.TrackedCommunity, post *models.Post) (models.CountedStatus, error) {
	if post.CountedStatus != models.CountedUnchecked {
		return post.CountedStatus, nil
	}

	if err := RefreshPostStatus(post); err != nil {
		// 拉不到实时状态就按本地快照判断，别让一次平台抖动卡住整个扫描
		logger.Warnf("logic:EnsureCounted: refresh %s: %v", post.PostID, err)
	}

	status, reason := CheckPostExemptions(community, post)
	logger.Debugf("does this %s count? %s", post.URL(), reason)

	post.CountedStatus = status
	if err := mysql.SavePost(nil, post); err != nil {
		return status, err
	}
	return status, nil
}
