package logic

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Asterisk-tech/moderatelyhelpfulbot/dao/mysql"
	"github.com/Asterisk-tech/moderatelyhelpfulbot/internal/utils"
	"github.com/Asterisk-tech/moderatelyhelpfulbot/logger"
	"github.com/Asterisk-tech/moderatelyhelpfulbot/models"
	"github.com/Asterisk-tech/moderatelyhelpfulbot/platform"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gorm.io/gorm"
)

const (
	// permanentBanDays 是"永久"的哨兵值，平台临时封禁的上限以内
	permanentBanDays = 999
	// softBlacklistFallbackDays 想要永久封禁但只能软拉黑时的兜底时长
	softBlacklistFallbackDays = 14
	// banMessageMaxLen 平台对封禁留言的长度上限
	banMessageMaxLen = 999
	// reportReasonMaxLen 举报理由的长度上限
	reportReasonMaxLen = 99
)

// NormalizeBanDuration 把策略里的封禁天数规整成平台接受的整数天：
// 0 和超过 998 都表示永久（999），(0,1) 之间向上取 1 天
func NormalizeBanDuration(days float64) int {
	if days == 0 || days > 998 {
		return permanentBanDays
	}
	if days < 1 {
		return 1
	}
	return int(days)
}

func platformCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(),
		time.Duration(viper.GetInt64("platform.timeout"))*time.Second)
}

// CheckPost 对一个还没复查过的帖子跑完整的状态机：
// 冷却期 → 直接移除；hall pass → 消耗豁免；正常 → 豁免检查 + 回看窗口 + 处罚。
// 已复查过的帖子直接跳过，保证重复扫描无副作用
func CheckPost(community *models.TrackedCommunity, post *models.Post) error {
	if post.Reviewed {
		return nil
	}
	now := time.Now().UTC()
	policy := community.Policy

	authorState, err := mysql.SelectAuthorState(community.CommunityName, post.AuthorName)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	// hall pass：运营者手动发的豁免，用掉一次，跳过所有检查
	if authorState != nil && authorState.HallPass > 0 {
		authorState.HallPass--
		if err := mysql.SaveAuthorState(nil, authorState); err != nil {
			return err
		}
		post.CountedStatus = models.CountedCounts
		post.Reviewed = true
		post.LastChecked = &now
		if err := mysql.SavePost(nil, post); err != nil {
			return err
		}

		notification := fmt.Sprintf("Hall pass was used by %s: %s", post.AuthorName, post.URL())
		notifyOwner("Hall pass used in "+community.CommunityName, notification)
		sendModmail(community, "Hall pass used", notification)
		logger.Debugf(">>>hallpassed %s in %s", post.AuthorName, community.CommunityName)
		return nil
	}

	// 软拉黑冷却期内的新帖直接移除，不重新跑豁免逻辑
	if authorState != nil && authorState.CoolingDown(now) {
		if removePost(post.PostID) {
			if policy.Comment != "" {
				lastValid := lastValidPost(authorState)
				MakeComment(community, post, nil, policy.Comment, *authorState.NextEligible, true, lastValid)
			}
			post.CountedStatus = models.CountedCounts
			post.Reviewed = true
			post.FlaggedDuplicate = true
			post.LastChecked = &now
			if err := mysql.SavePost(nil, post); err != nil {
				return err
			}
			logger.Infof("post removed - prior to eligibility for user %s %s %s", post.AuthorName, post.URL(), community.CommunityName)
			return nil
		}
		// 移除失败说明权限可能变了，强制刷新配置后按普通流程走
		if _, err := RefreshCommunity(community.CommunityName); err != nil {
			logger.Warnf("logic:CheckPost: refresh %s after failed removal: %v", community.CommunityName, err)
		}
	}

	status, err := EnsureCounted(community, post)
	if err != nil {
		return err
	}
	if status == models.CountedExempt {
		post.Reviewed = true
		post.LastChecked = &now
		return mysql.SavePost(nil, post)
	}

	reposts, err := FindPreviousPosts(community, post)
	if err != nil {
		return err
	}

	if len(reposts) >= policy.MaxCountPerInterval {
		DoViolationActions(community, post, reposts)
		post.FlaggedDuplicate = true
		// 窗口里的帖子标记成违规前置，留作证据，清理时不会被删
		for _, repost := range reposts {
			repost.PreDuplicate = true
			if err := mysql.SavePost(nil, repost); err != nil {
				logger.ErrorWithStack(err)
			}
		}
		CheckActionableViolations(community, post, reposts)
	}

	post.Reviewed = true
	post.LastChecked = &now
	return mysql.SavePost(nil, post)
}

// DoViolationActions 对一次违规执行处罚阶梯：评论、modmail、移除/举报、私信。
// 每一步都是尽力而为，单步失败不影响后面的步骤
func DoViolationActions(community *models.TrackedCommunity, post *models.Post, reposts []*models.Post) {
	policy := community.Policy
	var prevPost *models.Post
	if len(reposts) > 0 {
		prevPost = reposts[len(reposts)-1]
	}

	if policy.Comment != "" {
		nextEligible := time.Time{}
		if len(reposts) > 0 {
			nextEligible = reposts[0].PostedAt.Add(policy.MinPostInterval)
		}
		MakeComment(community, post, reposts, policy.Comment, nextEligible, false, nil)
	}

	if policy.Modmail != "" {
		message := policy.Modmail
		if message == "true" { // yaml 里写 modmail: true 表示用默认模板
			message = "Repost that violates rules: [{title}]({url}) by [{author}](/u/{author})"
		}
		sendModmail(community, "Policy violation", PopulateTags(message, &TagContext{
			RecentPost: post, Community: community, PrevPost: prevPost,
		}))
	}

	switch policy.Action {
	case "remove":
		removePost(post.PostID)
	case "report":
		reason := "repeatedly exceeding posting threshold"
		if policy.ReportReason != "" {
			reason = PopulateTags(policy.ReportReason, &TagContext{
				RecentPost: post, Community: community, PrevPost: prevPost,
			})
		}
		ctx, cancel := platformCtx()
		defer cancel()
		reason = utils.Truncate(viper.GetString("server.bot_name")+": "+reason, reportReasonMaxLen)
		if err := platform.Get().ReportPost(ctx, post.PostID, reason); err != nil {
			logger.Warnf("logic:DoViolationActions: report %s: %v", post.PostID, err)
		}
	}

	if policy.Message != "" && post.AuthorName != "" {
		ctx, cancel := platformCtx()
		defer cancel()
		body := PopulateTags(policy.Message, &TagContext{
			RecentPost: post, Community: community, PrevPosts: reposts,
		})
		if err := platform.Get().SendMessage(ctx, post.AuthorName, "Regarding your post", body); err != nil {
			logger.Warnf("logic:DoViolationActions: message %s: %v", post.AuthorName, err)
		}
	}
}

// CheckActionableViolations 数这个作者在此社区之前已被标记的违规，
// 到阈值就封禁（或没权限时软拉黑），差一次时先发预警
func CheckActionableViolations(community *models.TrackedCommunity, post *models.Post, reposts []*models.Post) {
	policy := community.Policy
	now := time.Now().UTC()

	otherSpam, err := mysql.SelectFlaggedBefore(community.CommunityName, post.AuthorName, post.PostedAt)
	if err != nil {
		logger.ErrorWithStack(err)
		return
	}
	logger.Infof("Author %s had %d rule violations. Banning if at least %d",
		post.AuthorName, len(otherSpam), policy.BanThresholdCount)

	// 策略没配封禁天数，整个社区不启用封禁，也不做软拉黑
	if policy.BanDurationDays == nil {
		if community.BanAbility != models.BanAbilityDisabled {
			community.BanAbility = models.BanAbilityDisabled
			if err := mysql.SaveCommunity(nil, community); err != nil {
				logger.ErrorWithStack(err)
			}
		}
		return
	}

	if len(otherSpam) == policy.BanThresholdCount-1 && policy.BanThresholdCount > 1 {
		sendApproachingLimitWarning(community, post, reposts)
	}

	if len(otherSpam) < policy.BanThresholdCount {
		return
	}

	days := NormalizeBanDuration(*policy.BanDurationDays)
	nextEligible := now.AddDate(0, 0, days)
	banMessage := composeBanMessage(community, post, otherSpam)

	// 已知没权限就不再白费一次封禁调用，直接软拉黑
	if community.BanAbility == models.BanAbilityForbidden {
		SoftBlacklist(community, post, blacklistDuration(policy, now, nextEligible))
		return
	}

	ctx, cancel := platformCtx()
	defer cancel()

	req := &platform.BanRequest{
		Community: community.CommunityName,
		Author:    post.AuthorName,
		Note:      viper.GetString("server.bot_name") + ": repeated spam",
	}
	if days == permanentBanDays {
		req.Message = utils.Truncate(banMessage, banMessageMaxLen)
	} else {
		req.DurationDays = days
		banMessage += fmt.Sprintf("\n\nYour ban will last %d days from this message. "+
			"**Repeat infractions result in a permanent ban!**", days)
		req.Message = utils.Truncate(banMessage, banMessageMaxLen)
	}

	if err := platform.Get().Ban(ctx, req); err != nil {
		if errors.Is(err, platform.ErrForbidden) {
			logger.Infof("Ban failed - no access? community=%s", community.CommunityName)
			community.BanAbility = models.BanAbilityForbidden
			if err := mysql.SaveCommunity(nil, community); err != nil {
				logger.ErrorWithStack(err)
			}
			if policy.NotifyAboutSpammers {
				notifySpammer(community, post, otherSpam)
			}
			SoftBlacklist(community, post, blacklistDuration(policy, now, nextEligible))
			return
		}
		logger.Warnf("logic:CheckActionableViolations: ban %s: %v", post.AuthorName, err)
		if state, serr := mysql.EnsureAuthorState(community.CommunityName, post.AuthorName); serr == nil {
			state.BanLastFailed = &now
			if serr := mysql.SaveAuthorState(nil, state); serr != nil {
				logger.ErrorWithStack(serr)
			}
		}
		return
	}

	if days == permanentBanDays {
		community.BanAbility = models.BanAbilityPermanent
		logger.Infof("PERMANENT ban for %s succeeded", post.AuthorName)
	} else {
		community.BanAbility = models.BanAbilityTemporary
		logger.Infof("Ban for %s succeeded for %d days", post.AuthorName, days)
	}
	if err := mysql.SaveCommunity(nil, community); err != nil {
		logger.ErrorWithStack(err)
	}

	authorState, err := mysql.EnsureAuthorState(community.CommunityName, post.AuthorName)
	if err != nil {
		logger.ErrorWithStack(err)
		return
	}
	authorState.CurrentlyBanned = true
	authorState.BanCount++
	authorState.ViolationCount = len(otherSpam) + 1
	if err := mysql.SaveAuthorState(nil, authorState); err != nil {
		logger.ErrorWithStack(err)
	}
}

// blacklistDuration 软拉黑时长：想要永久的按永久哨兵，写 0 的按 14 天兜底，
// 其它按规整后的天数
func blacklistDuration(policy models.Policy, now, nextEligible time.Time) time.Time {
	if policy.BanDurationDays == nil {
		return nextEligible
	}
	if *policy.BanDurationDays > 998 {
		return now.AddDate(0, 0, permanentBanDays)
	}
	if *policy.BanDurationDays == 0 {
		return now.AddDate(0, 0, softBlacklistFallbackDays)
	}
	return nextEligible
}

// SoftBlacklist 没权限真封禁时的替代：记下 next_eligible，
// 冷却期内的新帖由状态机直接移除
func SoftBlacklist(community *models.TrackedCommunity, post *models.Post, nextEligible time.Time) {
	logger.Infof("Author added to blacklist, no permission to ban. community=%s author=%s until=%v",
		community.CommunityName, post.AuthorName, nextEligible)

	authorState, err := mysql.EnsureAuthorState(community.CommunityName, post.AuthorName)
	if err != nil {
		logger.ErrorWithStack(err)
		return
	}
	authorState.LastValidPost = post.PostID
	authorState.NextEligible = &nextEligible
	authorState.ViolationCount++
	if err := mysql.SaveAuthorState(nil, authorState); err != nil {
		logger.ErrorWithStack(err)
	}
}

// MakeComment 发违规提示评论。blacklist 为 true 时是冷却期移除的提示，
// 引用的是作者上一个未违规帖
func MakeComment(community *models.TrackedCommunity, post *models.Post, reposts []*models.Post,
	template string, nextEligible time.Time, blacklist bool, lastValid *models.Post) {
	policy := community.Policy

	var prevPost *models.Post
	if len(reposts) > 0 {
		prevPost = reposts[len(reposts)-1]
	}
	if prevPost == nil {
		prevPost = lastValid
	}
	if nextEligible.IsZero() && len(reposts) > 0 {
		nextEligible = reposts[0].PostedAt.Add(policy.MinPostInterval)
	}

	var repostLinks []string
	for _, repost := range reposts {
		repostLinks = append(repostLinks, fmt.Sprintf(" [%s](%s)", repost.PostID, repost.CommentsURL()))
	}
	repostsStr := strings.Join(repostLinks, ",")
	if blacklist {
		repostsStr = " Temporary lock out per" + repostsStr
	} else {
		repostsStr = " Previous post(s):" + repostsStr
	}
	ids := repostsStr + " | limit: {maxcount} per {interval}" +
		fmt.Sprintf(" | next eligibility: %s", nextEligible.UTC().Format("2006-01-02 15:04 UTC"))
	ids = strings.ReplaceAll(ids, " ", " ^^") // 整段缩成上标小字

	response := PopulateTags(template+viper.GetString("server.response_tail")+ids, &TagContext{
		RecentPost: post, Community: community, PrevPost: prevPost,
	})

	ctx, cancel := platformCtx()
	defer cancel()
	err := platform.Get().Reply(ctx, post.PostID, response, platform.ReplyOptions{
		Distinguish: policy.Distinguish,
		Approve:     policy.Approve,
		LockThread:  policy.LockThread,
		Sticky:      policy.CommentStickied,
	})
	if err != nil {
		logger.Warnf("something went wrong in creating comment: %v", err)
	}
}

func composeBanMessage(community *models.TrackedCommunity, post *models.Post, otherSpam []*models.Post) string {
	policy := community.Policy
	var links []string
	for _, p := range otherSpam {
		links = append(links, fmt.Sprintf(" [%s](%s)", p.PostID, p.URL()))
	}
	return fmt.Sprintf("This community (/r/%s) only allows %d post(s) per %s, and it only allows for %d "+
		"violation(s) of this rule. This is a rolling limit and includes self-deletions. "+
		"Per our records, there were %d post(s) from you that went beyond the limit: %s "+
		"If you think you may have been hacked, please change your passwords NOW. ",
		community.CommunityName,
		policy.MaxCountPerInterval,
		FormatInterval(&policy),
		policy.BanThresholdCount,
		len(otherSpam),
		strings.Join(links, ","))
}

func sendApproachingLimitWarning(community *models.TrackedCommunity, post *models.Post, reposts []*models.Post) {
	policy := community.Policy
	includesRemoved := "does NOT"
	if !policy.IgnoreModeratorRemoved {
		includesRemoved = "DOES"
	}
	var windowEnds time.Time
	if len(reposts) > 0 {
		windowEnds = reposts[0].PostedAt.Add(policy.MinPostInterval)
	}

	body := fmt.Sprintf("This community (/r/%s) only allows %d post(s) per %s. "+
		"This %s include mod-removed posts. "+
		"Any new posts you make before %s UTC may result in a ban. "+
		"If you made a title mistake you have STRICTLY %d minute(s) to delete it and repost it. "+
		"This is an automated message sent out to anyone who is close to their limit. "+
		"It may not always get sent out, however, due to platform limitations. ",
		community.CommunityName, policy.MaxCountPerInterval, FormatInterval(&policy),
		includesRemoved,
		windowEnds.UTC().Format("2006-01-02 15:04"),
		int(policy.GracePeriod/time.Minute))

	ctx, cancel := platformCtx()
	defer cancel()
	subject := fmt.Sprintf("Please note that you are approaching your posting limit for %s", community.CommunityName)
	if err := platform.Get().SendMessage(ctx, post.AuthorName, subject, body); err != nil {
		logger.Warnf("logic:sendApproachingLimitWarning: %v", err)
	}
}

func notifySpammer(community *models.TrackedCommunity, post *models.Post, otherSpam []*models.Post) {
	lines := []string{
		"This person has multiple rule violations. " +
			"Please adjust my privileges and ban threshold " +
			"if you would like me to automatically ban them.\n\n",
	}
	for _, p := range append(append([]*models.Post{}, otherSpam...), post) {
		lines = append(lines, fmt.Sprintf("* %s: [%s](/u/%s) [%s](%s)\n",
			p.PostedAt.UTC().Format("2006-01-02 15:04:05"), p.AuthorName, p.AuthorName, p.Title, p.CommentsURL()))
	}
	sendModmail(community, "Repeated rule violations", strings.Join(lines, "\n\n"))
}

func lastValidPost(authorState *models.AuthorState) *models.Post {
	if authorState.LastValidPost == "" {
		return nil
	}
	post, err := mysql.SelectPostByID(authorState.LastValidPost)
	if err != nil {
		// 之前的帖子可能已经被清理掉了，记一笔继续走
		logger.Warnf("logic:lastValidPost: %s: %v", authorState.LastValidPost, err)
		return nil
	}
	return post
}

func removePost(postID string) bool {
	ctx, cancel := platformCtx()
	defer cancel()
	if err := platform.Get().RemovePost(ctx, postID); err != nil {
		logger.Warnf("I was not allowed to remove the post: http://redd.it/%s: %v", postID, err)
		return false
	}
	return true
}

func sendModmail(community *models.TrackedCommunity, subject, body string) {
	ctx, cancel := platformCtx()
	defer cancel()
	if err := platform.Get().SendModmail(ctx, community.CommunityName, subject, body); err != nil {
		logger.Warnf("something went wrong in sending modmail: %v", err)
	}
}

func notifyOwner(subject, body string) {
	owner := viper.GetString("server.owner")
	if owner == "" {
		return
	}
	ctx, cancel := platformCtx()
	defer cancel()
	if err := platform.Get().SendMessage(ctx, owner, subject, body); err != nil {
		logger.Warnf("logic:notifyOwner: %v", err)
	}
}
