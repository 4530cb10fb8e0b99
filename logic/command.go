package logic

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Asterisk-tech/moderatelyhelpfulbot/dao/mysql"
	mhb "github.com/Asterisk-tech/moderatelyhelpfulbot/errors"
	"github.com/Asterisk-tech/moderatelyhelpfulbot/internal/utils"
	"github.com/Asterisk-tech/moderatelyhelpfulbot/logger"
	"github.com/Asterisk-tech/moderatelyhelpfulbot/models"
	"github.com/Asterisk-tech/moderatelyhelpfulbot/platform"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	// summaryLookbackDays 作者概要回看多少天的帖子
	summaryLookbackDays = 182
	// blacklistCommandDays $blacklist 命令的拉黑时长
	blacklistCommandDays = 999
)

const commandUsage = "Sorry, I did not understand that command. Available commands: " +
	"`$update`, `$summary <author>`, `$stats`, `$approve <post id>`, `$remove <post id>`, " +
	"`$hallpass <author>`, `$blacklist <author>`, `$reset <author>`, " +
	"`$unban <author>`, `$ban <author> <days>`, `$citerule <#>`, `$canned <name>`"

// HandleCommand 执行一条运营者命令，返回要回给发起人的文本。
// internal 为 true 表示这条回复只给发起人看，不抄送 bot 拥有者。
// 发起人必须是该社区的运营者或 bot 拥有者
func HandleCommand(communityName, requestor, command string, params []string) (reply string, internal bool, err error) {
	communityName = utils.NormalizeCommunityName(communityName)
	requestor = utils.NormalizeAuthorName(requestor)
	command = strings.ToLower(strings.TrimLeft(command, "$!"))

	// update 要在配置坏掉时也能用，所以先于 GetCommunity 处理
	if command == "update" {
		return handleUpdate(communityName, requestor)
	}

	community, err := GetCommunity(communityName)
	if err != nil {
		return "", false, err
	}
	if !isAuthorized(community.Moderators, requestor) {
		return "", false, errors.Wrapf(mhb.ErrNotAuthorized, "logic:HandleCommand: %s in %s", requestor, communityName)
	}

	switch command {
	case "summary":
		return handleSummary(communityName, params)
	case "stats":
		return handleStats(communityName)
	case "approve":
		return handleApprove(communityName, params)
	case "remove":
		return handleRemove(params)
	case "hallpass":
		return handleHallPass(communityName, params)
	case "blacklist":
		return handleBlacklist(communityName, params)
	case "reset":
		return handleReset(communityName, params)
	case "unban":
		return handleUnban(communityName, params)
	case "ban":
		return handleBan(communityName, params)
	case "citerule", "testciterule", "citerulelong", "testciterulelong":
		return handleCiteRule(communityName, command, params)
	case "canned", "testcanned":
		return handleCanned(community, command, params)
	default:
		return commandUsage, false, errors.Wrapf(mhb.ErrUnknownCmd, "logic:HandleCommand: %q", command)
	}
}

func isAuthorized(moderators []string, requestor string) bool {
	if requestor != "" && strings.EqualFold(requestor, viper.GetString("server.owner")) {
		return true
	}
	for _, mod := range moderators {
		if strings.EqualFold(mod, requestor) {
			return true
		}
	}
	return false
}

func requireParam(params []string, hint string) (string, error) {
	if len(params) == 0 || params[0] == "" {
		return "", errors.Wrap(mhb.ErrMissingArg, hint)
	}
	return params[0], nil
}

func handleUpdate(communityName, requestor string) (string, bool, error) {
	// 先用旧配置校验权限，首次加载时跳过（还没有运营者名单）
	if existing, err := GetCommunity(communityName); err == nil {
		if !isAuthorized(existing.Moderators, requestor) {
			return "", false, errors.Wrapf(mhb.ErrNotAuthorized, "logic:handleUpdate: %s in %s", requestor, communityName)
		}
	}

	community, err := RefreshCommunity(communityName)
	if err != nil {
		reply := fmt.Sprintf("There was an error loading your configuration: %v \n\n%s",
			errors.Cause(err), ConfigHelpText(err, communityName))
		return reply, false, nil
	}
	logger.Infof("config updated for %s by %s, revision %s", communityName, requestor, community.PolicyRevision)
	return fmt.Sprintf("Configuration for /r/%s was updated successfully! Current limit: %d post(s) per %s.",
		communityName, community.Policy.MaxCountPerInterval, FormatInterval(&community.Policy)), false, nil
}

func handleSummary(communityName string, params []string) (string, bool, error) {
	author, err := requireParam(params, "usage: $summary <author>")
	if err != nil {
		return "", false, err
	}
	author = utils.NormalizeAuthorName(author)

	posts, err := mysql.SelectRecentPostsByAuthor(communityName, author, summaryLookbackDays)
	if err != nil {
		return "", false, err
	}
	counted := 0
	flagged := 0
	for _, p := range posts {
		if p.CountedStatus == models.CountedCounts {
			counted++
		}
		if p.FlaggedDuplicate {
			flagged++
		}
	}
	reply := fmt.Sprintf("Summary for [%s](/u/%s) over the last %d days: %d post(s), %d counted, %d flagged.\n\n%s",
		author, author, summaryLookbackDays, len(posts), counted, flagged, SummaryTable(posts))
	return reply, true, nil
}

func handleStats(communityName string) (string, bool, error) {
	stats, err := mysql.SelectCommunityStats(communityName)
	if err != nil {
		return "", false, err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Stats for /r/%s:\n\n", communityName)
	fmt.Fprintf(&b, "* Total posts tracked: %d\n", stats.TotalReviewed)
	fmt.Fprintf(&b, "* Identified violations: %d\n", stats.TotalIdentified)
	if len(stats.TopAuthors) > 0 {
		b.WriteString("\nMost active authors:\n\n")
		for _, a := range stats.TopAuthors {
			fmt.Fprintf(&b, "* [%s](/u/%s): %d post(s)\n", a.AuthorName, a.AuthorName, a.Count)
		}
	}
	return b.String(), true, nil
}

func handleApprove(communityName string, params []string) (string, bool, error) {
	postID, err := requireParam(params, "usage: $approve <post id>")
	if err != nil {
		return "", false, err
	}

	ctx, cancel := platformCtx()
	defer cancel()
	if err := platform.Get().ApprovePost(ctx, postID); err != nil {
		return "", false, errors.Wrap(err, "logic:handleApprove")
	}

	// 库里有记录的话顺带把违规标记摘掉，避免再次计入阈值
	if post, err := mysql.SelectPostByID(postID); err == nil {
		post.FlaggedDuplicate = false
		post.Reviewed = true
		if err := mysql.SavePost(nil, post); err != nil {
			logger.ErrorWithStack(err)
		}
	}
	return fmt.Sprintf("Post http://redd.it/%s was approved.", postID), false, nil
}

func handleRemove(params []string) (string, bool, error) {
	postID, err := requireParam(params, "usage: $remove <post id>")
	if err != nil {
		return "", false, err
	}
	ctx, cancel := platformCtx()
	defer cancel()
	if err := platform.Get().RemovePost(ctx, postID); err != nil {
		return "", false, errors.Wrap(err, "logic:handleRemove")
	}
	return fmt.Sprintf("Post http://redd.it/%s was removed.", postID), false, nil
}

func handleHallPass(communityName string, params []string) (string, bool, error) {
	author, err := requireParam(params, "usage: $hallpass <author>")
	if err != nil {
		return "", false, err
	}
	author = utils.NormalizeAuthorName(author)

	state, err := mysql.EnsureAuthorState(communityName, author)
	if err != nil {
		return "", false, err
	}
	state.HallPass++
	if err := mysql.SaveAuthorState(nil, state); err != nil {
		return "", false, err
	}
	return fmt.Sprintf("[%s](/u/%s) has been granted a hall pass. "+
		"This means the next post by the user in this community will not be counted against their limit.",
		author, author), false, nil
}

func handleBlacklist(communityName string, params []string) (string, bool, error) {
	author, err := requireParam(params, "usage: $blacklist <author>")
	if err != nil {
		return "", false, err
	}
	author = utils.NormalizeAuthorName(author)

	state, err := mysql.EnsureAuthorState(communityName, author)
	if err != nil {
		return "", false, err
	}
	until := time.Now().UTC().AddDate(0, 0, blacklistCommandDays)
	state.NextEligible = &until
	state.CurrentlyBlacklisted = true
	if err := mysql.SaveAuthorState(nil, state); err != nil {
		return "", false, err
	}
	return fmt.Sprintf("[%s](/u/%s) has been blacklisted from posting in this community. "+
		"Their posts will be automatically removed.", author, author), false, nil
}

func handleReset(communityName string, params []string) (string, bool, error) {
	author, err := requireParam(params, "usage: $reset <author>")
	if err != nil {
		return "", false, err
	}
	author = utils.NormalizeAuthorName(author)

	affected, err := mysql.ResetFlaggedByAuthor(communityName, author)
	if err != nil {
		return "", false, err
	}
	return fmt.Sprintf("Violation history for [%s](/u/%s) was reset (%d post(s) cleared).",
		author, author, affected), false, nil
}

func handleUnban(communityName string, params []string) (string, bool, error) {
	author, err := requireParam(params, "usage: $unban <author>")
	if err != nil {
		return "", false, err
	}
	author = utils.NormalizeAuthorName(author)

	ctx, cancel := platformCtx()
	defer cancel()
	if err := platform.Get().Unban(ctx, communityName, author); err != nil {
		return "", false, errors.Wrap(err, "logic:handleUnban")
	}

	state, err := mysql.EnsureAuthorState(communityName, author)
	if err != nil {
		return "", false, err
	}
	state.CurrentlyBanned = false
	state.CurrentlyBlacklisted = false
	state.NextEligible = nil
	if err := mysql.SaveAuthorState(nil, state); err != nil {
		return "", false, err
	}
	return fmt.Sprintf("[%s](/u/%s) was unbanned and removed from the blacklist.", author, author), false, nil
}

func handleBan(communityName string, params []string) (string, bool, error) {
	if len(params) < 2 {
		return "", false, errors.Wrap(mhb.ErrMissingArg, "usage: $ban <author> <days>")
	}
	author := utils.NormalizeAuthorName(params[0])
	rawDays, err := strconv.ParseFloat(params[1], 64)
	if err != nil {
		return "", false, errors.Wrap(mhb.ErrMissingArg, "usage: $ban <author> <days>, days must be a number")
	}
	days := NormalizeBanDuration(rawDays)

	ctx, cancel := platformCtx()
	defer cancel()
	req := &platform.BanRequest{
		Community: communityName,
		Author:    author,
		Note:      viper.GetString("server.bot_name") + ": banned by moderator command",
		Message:   fmt.Sprintf("You have been banned from /r/%s by a moderator.", communityName),
	}
	if days != permanentBanDays {
		req.DurationDays = days
	}
	if err := platform.Get().Ban(ctx, req); err != nil {
		return "", false, errors.Wrap(err, "logic:handleBan")
	}

	state, err := mysql.EnsureAuthorState(communityName, author)
	if err != nil {
		return "", false, err
	}
	state.CurrentlyBanned = true
	state.BanCount++
	if err := mysql.SaveAuthorState(nil, state); err != nil {
		return "", false, err
	}
	if days == permanentBanDays {
		return fmt.Sprintf("[%s](/u/%s) was banned permanently.", author, author), false, nil
	}
	return fmt.Sprintf("[%s](/u/%s) was banned for %d day(s).", author, author, days), false, nil
}

func handleCiteRule(communityName, command string, params []string) (string, bool, error) {
	raw, err := requireParam(params, "usage: $citerule <rule number>")
	if err != nil {
		return "", false, err
	}
	idx, err := strconv.Atoi(raw)
	if err != nil || idx < 1 {
		return "", false, errors.Wrap(mhb.ErrMissingArg, "usage: $citerule <rule number>, rule number must be a positive integer")
	}

	ctx, cancel := platformCtx()
	defer cancel()
	rules, err := platform.Get().FetchRules(ctx, communityName)
	if err != nil {
		return "", false, errors.Wrap(err, "logic:handleCiteRule")
	}
	if idx > len(rules) {
		return fmt.Sprintf("This community only has %d rule(s).", len(rules)), true, nil
	}

	rule := rules[idx-1]
	internal := strings.HasPrefix(command, "test")
	if strings.Contains(command, "long") {
		return fmt.Sprintf("Please see rule #%d:\n\n>**%s**\n\n>%s", idx, rule.ShortName, rule.Description), internal, nil
	}
	return fmt.Sprintf("Please see rule #%d: %s", idx, rule.ShortName), internal, nil
}

func handleCanned(community *models.TrackedCommunity, command string, params []string) (string, bool, error) {
	name, err := requireParam(params, "usage: $canned <name>")
	if err != nil {
		return "", false, err
	}
	internal := strings.HasPrefix(command, "test")

	text, ok := community.Policy.CannedResponses[name]
	if !ok {
		names := make([]string, 0, len(community.Policy.CannedResponses))
		for k := range community.Policy.CannedResponses {
			names = append(names, "`"+k+"`")
		}
		sort.Strings(names)
		return fmt.Sprintf("No canned response named `%s`. Available: %s", name, strings.Join(names, ", ")), true, nil
	}
	return PopulateTags(text, &TagContext{Community: community}), internal, nil
}
