package logic

import (
	"testing"
	"time"

	"github.com/Asterisk-tech/moderatelyhelpfulbot/dao/mysql"
	"github.com/Asterisk-tech/moderatelyhelpfulbot/models"
	"github.com/Asterisk-tech/moderatelyhelpfulbot/platform"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeBanDuration(t *testing.T) {
	tests := []struct {
		days float64
		want int
	}{
		{0, 999},    // 0 表示永久
		{1000, 999}, // 超过 998 一律按永久
		{999, 999},
		{998, 998},
		{0.5, 1}, // 不足一天向上取一天
		{7, 7},
		{14.9, 14},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, NormalizeBanDuration(tc.days), "days=%v", tc.days)
	}
}

func escalatePolicy() models.Policy {
	policy := DefaultPolicy()
	days := 7.0
	policy.BanDurationDays = &days
	policy.MinPostInterval = 24 * time.Hour
	policy.MaxCountPerInterval = 1
	policy.BanThresholdCount = 2
	policy.Comment = "Your post broke the limit, {author}."
	return policy
}

func TestCheckPostHallPassExactlyOnce(t *testing.T) {
	fake := setupTest(t)
	community := testCommunity(t, "testsub", escalatePolicy())

	state, err := mysql.EnsureAuthorState("testsub", "alice")
	require.NoError(t, err)
	state.HallPass = 1
	require.NoError(t, mysql.SaveAuthorState(nil, state))

	now := time.Now().UTC()
	seedPost(t, "prev01", now.Add(-time.Hour), models.CountedCounts)
	passed := seedPost(t, "pass01", now, models.CountedUnchecked)

	require.NoError(t, CheckPost(community, passed))

	stored, err := mysql.SelectPostByID("pass01")
	require.NoError(t, err)
	assert.True(t, stored.Reviewed)
	assert.False(t, stored.FlaggedDuplicate)
	assert.Equal(t, models.CountedCounts, stored.CountedStatus)

	state, err = mysql.SelectAuthorState("testsub", "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, state.HallPass)

	// 拥有者收到使用通知
	require.NotEmpty(t, fake.messages)
	assert.Equal(t, "mhb_admin", fake.messages[0].Recipient)

	// 豁免用完了，下一个帖子照常检查
	second := seedPost(t, "pass02", now.Add(time.Minute), models.CountedUnchecked)
	require.NoError(t, CheckPost(community, second))
	stored, err = mysql.SelectPostByID("pass02")
	require.NoError(t, err)
	assert.True(t, stored.FlaggedDuplicate)
}

func TestCheckPostCoolingDown(t *testing.T) {
	fake := setupTest(t)
	community := testCommunity(t, "testsub", escalatePolicy())

	state, err := mysql.EnsureAuthorState("testsub", "alice")
	require.NoError(t, err)
	until := time.Now().UTC().Add(48 * time.Hour)
	state.NextEligible = &until
	require.NoError(t, mysql.SaveAuthorState(nil, state))

	post := seedPost(t, "cool01", time.Now().UTC(), models.CountedUnchecked)
	require.NoError(t, CheckPost(community, post))

	assert.Equal(t, []string{"cool01"}, fake.removed)
	require.Len(t, fake.replies, 1)
	assert.Contains(t, fake.replies[0].Body, "alice")

	stored, err := mysql.SelectPostByID("cool01")
	require.NoError(t, err)
	assert.True(t, stored.Reviewed)
	assert.True(t, stored.FlaggedDuplicate)
}

func TestCheckPostViolation(t *testing.T) {
	fake := setupTest(t)
	community := testCommunity(t, "testsub", escalatePolicy())

	now := time.Now().UTC()
	prev := seedPost(t, "prev02", now.Add(-2*time.Hour), models.CountedCounts)
	trigger := seedPost(t, "trig10", now, models.CountedUnchecked)

	require.NoError(t, CheckPost(community, trigger))

	stored, err := mysql.SelectPostByID(trigger.PostID)
	require.NoError(t, err)
	assert.True(t, stored.Reviewed)
	assert.True(t, stored.FlaggedDuplicate)

	// 窗口内的帖子标成违规前置
	storedPrev, err := mysql.SelectPostByID(prev.PostID)
	require.NoError(t, err)
	assert.True(t, storedPrev.PreDuplicate)

	// 处罚阶梯发了评论，占位符已替换
	require.Len(t, fake.replies, 1)
	assert.Equal(t, trigger.PostID, fake.replies[0].PostID)
	assert.Contains(t, fake.replies[0].Body, "alice")
	assert.NotContains(t, fake.replies[0].Body, "{author}")
	assert.True(t, fake.replies[0].Opts.Distinguish)
	assert.True(t, fake.replies[0].Opts.LockThread)
}

func TestCheckPostExemptSkipsViolation(t *testing.T) {
	fake := setupTest(t)
	policy := escalatePolicy()
	policy.ExemptSelfPosts = true
	community := testCommunity(t, "testsub", policy)

	now := time.Now().UTC()
	seedPost(t, "prev03", now.Add(-2*time.Hour), models.CountedCounts)
	trigger := seedPost(t, "self01", now, models.CountedUnchecked)
	trigger.IsSelf = true
	require.NoError(t, mysql.SavePost(nil, trigger))
	fake.addPost(&platform.PostInfo{ID: "self01", Author: "alice", IsSelf: true})

	require.NoError(t, CheckPost(community, trigger))

	stored, err := mysql.SelectPostByID("self01")
	require.NoError(t, err)
	assert.True(t, stored.Reviewed)
	assert.False(t, stored.FlaggedDuplicate)
	assert.Equal(t, models.CountedExempt, stored.CountedStatus)
	assert.Empty(t, fake.replies)
}

func TestCheckActionableViolationsWarningBeforeThreshold(t *testing.T) {
	fake := setupTest(t)
	community := testCommunity(t, "testsub", escalatePolicy()) // 阈值 2

	now := time.Now().UTC()
	flagged := seedPost(t, "flag01", now.Add(-3*time.Hour), models.CountedCounts)
	flagged.FlaggedDuplicate = true
	require.NoError(t, mysql.SavePost(nil, flagged))
	trigger := seedPost(t, "trig11", now, models.CountedCounts)

	CheckActionableViolations(community, trigger, []*models.Post{flagged})

	// 差一次到阈值：只发预警，不封禁
	assert.Empty(t, fake.bans)
	require.Len(t, fake.messages, 1)
	assert.Equal(t, "alice", fake.messages[0].Recipient)
	assert.Contains(t, fake.messages[0].Subject, "approaching")
}

func TestCheckActionableViolationsBan(t *testing.T) {
	fake := setupTest(t)
	community := testCommunity(t, "testsub", escalatePolicy())

	now := time.Now().UTC()
	var flagged []*models.Post
	for _, id := range []string{"flag02", "flag03"} {
		p := seedPost(t, id, now.Add(-3*time.Hour), models.CountedCounts)
		p.FlaggedDuplicate = true
		require.NoError(t, mysql.SavePost(nil, p))
		flagged = append(flagged, p)
	}
	trigger := seedPost(t, "trig12", now, models.CountedCounts)

	CheckActionableViolations(community, trigger, flagged)

	require.Len(t, fake.bans, 1)
	assert.Equal(t, "alice", fake.bans[0].Author)
	assert.Equal(t, 7, fake.bans[0].DurationDays)

	state, err := mysql.SelectAuthorState("testsub", "alice")
	require.NoError(t, err)
	assert.True(t, state.CurrentlyBanned)
	assert.Equal(t, 1, state.BanCount)
	// 真封禁成功就不软拉黑
	assert.False(t, state.CoolingDown(time.Now().UTC()))

	stored, err := mysql.SelectCommunity("testsub")
	require.NoError(t, err)
	assert.Equal(t, models.BanAbilityTemporary, stored.BanAbility)
}

func TestCheckActionableViolationsSoftBlacklistOnForbidden(t *testing.T) {
	fake := setupTest(t)
	policy := escalatePolicy()
	policy.NotifyAboutSpammers = true
	community := testCommunity(t, "testsub", policy)
	fake.banErr = platform.ErrForbidden

	now := time.Now().UTC()
	var flagged []*models.Post
	for _, id := range []string{"flag04", "flag05"} {
		p := seedPost(t, id, now.Add(-3*time.Hour), models.CountedCounts)
		p.FlaggedDuplicate = true
		require.NoError(t, mysql.SavePost(nil, p))
		flagged = append(flagged, p)
	}
	trigger := seedPost(t, "trig13", now, models.CountedCounts)

	CheckActionableViolations(community, trigger, flagged)

	assert.Empty(t, fake.bans)
	assert.Equal(t, models.BanAbilityForbidden, community.BanAbility)

	// 软拉黑：next_eligible 被推到规整后的天数之后
	state, err := mysql.SelectAuthorState("testsub", "alice")
	require.NoError(t, err)
	assert.True(t, state.CoolingDown(now))
	require.NotNil(t, state.NextEligible)
	assert.WithinDuration(t, now.AddDate(0, 0, 7), *state.NextEligible, time.Minute)
	assert.Equal(t, trigger.PostID, state.LastValidPost)

	// notify_about_spammers 打开时给运营者发 modmail
	require.Len(t, fake.modmails, 1)
	assert.Contains(t, fake.modmails[0].Body, "alice")
}

func TestCheckActionableViolationsPermanentWantedFallback(t *testing.T) {
	setupTest(t)
	policy := escalatePolicy()
	days := 999.0
	policy.BanDurationDays = &days
	community := testCommunity(t, "testsub", policy)
	community.BanAbility = models.BanAbilityForbidden
	require.NoError(t, mysql.SaveCommunity(nil, community))

	now := time.Now().UTC()
	var flagged []*models.Post
	for _, id := range []string{"flag06", "flag07"} {
		p := seedPost(t, id, now.Add(-3*time.Hour), models.CountedCounts)
		p.FlaggedDuplicate = true
		require.NoError(t, mysql.SavePost(nil, p))
		flagged = append(flagged, p)
	}
	trigger := seedPost(t, "trig14", now, models.CountedCounts)

	CheckActionableViolations(community, trigger, flagged)

	state, err := mysql.SelectAuthorState("testsub", "alice")
	require.NoError(t, err)
	require.NotNil(t, state.NextEligible)
	assert.WithinDuration(t, now.AddDate(0, 0, 999), *state.NextEligible, time.Minute)
}

func TestCheckActionableViolationsBanningDisabled(t *testing.T) {
	fake := setupTest(t)
	policy := escalatePolicy()
	policy.BanDurationDays = nil
	community := testCommunity(t, "testsub", policy)

	now := time.Now().UTC()
	flagged := seedPost(t, "flag08", now.Add(-3*time.Hour), models.CountedCounts)
	flagged.FlaggedDuplicate = true
	require.NoError(t, mysql.SavePost(nil, flagged))
	trigger := seedPost(t, "trig15", now, models.CountedCounts)

	CheckActionableViolations(community, trigger, []*models.Post{flagged})

	assert.Empty(t, fake.bans)
	assert.Equal(t, models.BanAbilityDisabled, community.BanAbility)
}

func TestSoftBlacklist(t *testing.T) {
	setupTest(t)
	community := testCommunity(t, "testsub", escalatePolicy())
	post := seedPost(t, "blk001", time.Now().UTC(), models.CountedCounts)

	until := time.Now().UTC().AddDate(0, 0, 14)
	SoftBlacklist(community, post, until)

	state, err := mysql.SelectAuthorState("testsub", "alice")
	require.NoError(t, err)
	require.NotNil(t, state.NextEligible)
	assert.Equal(t, until.Unix(), state.NextEligible.Unix())
	assert.Equal(t, "blk001", state.LastValidPost)
}
