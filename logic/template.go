package logic

import (
	"fmt"
	"strings"
	"time"

	"github.com/Asterisk-tech/moderatelyhelpfulbot/models"
)

// TagContext 模板替换的上下文，字段都可以为空
type TagContext struct {
	RecentPost *models.Post
	Community  *models.TrackedCommunity
	PrevPost   *models.Post
	PrevPosts  []*models.Post
}

// PopulateTags 替换模板里的占位符。不认识的占位符原样保留，
// 方便运营者发现模板里的笔误
func PopulateTags(input string, tagCtx *TagContext) string {
	if tagCtx == nil {
		return input
	}
	prevPost := tagCtx.PrevPost
	if prevPost == nil && len(tagCtx.PrevPosts) > 0 {
		prevPost = tagCtx.PrevPosts[0]
	}

	if len(tagCtx.PrevPosts) > 0 && strings.Contains(input, "{summary table}") {
		input = strings.ReplaceAll(input, "{summary table}", SummaryTable(tagCtx.PrevPosts))
	}

	if prevPost != nil {
		input = strings.ReplaceAll(input, "{prev.title}", prevPost.Title)
		if prevPost.Body != "" {
			input = strings.ReplaceAll(input, "{prev.selftext}", prevPost.Body)
		}
		input = strings.ReplaceAll(input, "{prev.url}", prevPost.URL())
		input = strings.ReplaceAll(input, "{time}", prevPost.PostedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
		input = strings.ReplaceAll(input, "{timedelta}", naturalDelta(time.Since(prevPost.PostedAt)))
	}

	if tagCtx.RecentPost != nil {
		input = strings.ReplaceAll(input, "{author}", tagCtx.RecentPost.AuthorName)
		input = strings.ReplaceAll(input, "{title}", tagCtx.RecentPost.Title)
		input = strings.ReplaceAll(input, "{url}", tagCtx.RecentPost.URL())
	}

	if tagCtx.Community != nil {
		input = strings.ReplaceAll(input, "{community}", tagCtx.Community.CommunityName)
		// 旧模板写的是 {subreddit}，继续兼容
		input = strings.ReplaceAll(input, "{subreddit}", tagCtx.Community.CommunityName)
		input = strings.ReplaceAll(input, "{maxcount}", fmt.Sprintf("%d", tagCtx.Community.Policy.MaxCountPerInterval))
		input = strings.ReplaceAll(input, "{interval}", FormatInterval(&tagCtx.Community.Policy))
	}
	return input
}

// SummaryTable 整个违规窗口的 markdown 汇总表
func SummaryTable(posts []*models.Post) string {
	lines := []string{"\n\n|ID|Time|Author|Title|Status|\n|:---|:-------|:------|:-----------|:------|\n"}
	for _, post := range posts {
		lines = append(lines, fmt.Sprintf("|%s|%s|[%s](/u/%s)|[%s](%s)|%s|\n",
			post.PostID,
			post.PostedAt.UTC().Format("2006-01-02 15:04:05"),
			post.AuthorName, post.AuthorName,
			post.Title, post.CommentsURL(),
			post.RemovedStatus))
	}
	return strings.Join(lines, "")
}

// FormatInterval 按策略书写时用的单位展示窗口：小时策略展示成 "12h" 或
// "2d3h"，分钟策略展示成 "90m"
func FormatInterval(policy *models.Policy) string {
	if policy.MinPostIntervalHrs != nil {
		hrs := *policy.MinPostIntervalHrs
		if hrs < 24 {
			return fmt.Sprintf("%dh", hrs)
		}
		return strings.ReplaceAll(fmt.Sprintf("%dd%dh", hrs/24, hrs%24), "d0h", "d")
	}
	return fmt.Sprintf("%dm", int(policy.MinPostInterval/time.Minute))
}

func naturalDelta(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "moments ago"
	case d < time.Hour:
		return fmt.Sprintf("%d minute(s) ago", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%d hour(s) ago", int(d/time.Hour))
	default:
		return fmt.Sprintf("%d day(s) ago", int(d/(24*time.Hour)))
	}
}
