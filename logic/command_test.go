package logic

import (
	"testing"
	"time"

	"github.com/Asterisk-tech/moderatelyhelpfulbot/dao/mysql"
	mhb "github.com/Asterisk-tech/moderatelyhelpfulbot/errors"
	"github.com/Asterisk-tech/moderatelyhelpfulbot/models"
	"github.com/Asterisk-tech/moderatelyhelpfulbot/platform"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const commandPolicyDoc = `
post_restriction:
    ban_duration_days: 7
    max_count_per_interval: 1
    min_post_interval_hrs: 24
modmail:
    canned_responses:
        rules: "Please read the rules of {community} first."
`

func setupCommandTest(t *testing.T) *fakeClient {
	fake := setupTest(t)
	fake.policyDoc = &platform.PolicyDocument{Content: commandPolicyDoc, Revision: "rev-1"}
	return fake
}

func TestHandleCommandAuth(t *testing.T) {
	setupCommandTest(t)

	_, _, err := HandleCommand("testsub", "randomuser", "$stats", nil)
	assert.ErrorIs(t, err, mhb.ErrNotAuthorized)

	// 运营者和拥有者都可以
	_, _, err = HandleCommand("testsub", "mod1", "$stats", nil)
	assert.NoError(t, err)
	_, _, err = HandleCommand("testsub", "mhb_admin", "$stats", nil)
	assert.NoError(t, err)
}

func TestHandleCommandUnknown(t *testing.T) {
	setupCommandTest(t)

	reply, _, err := HandleCommand("testsub", "mod1", "$frobnicate", nil)
	assert.ErrorIs(t, err, mhb.ErrUnknownCmd)
	assert.Contains(t, reply, "$update")
}

func TestHandleCommandHallPass(t *testing.T) {
	setupCommandTest(t)

	reply, internal, err := HandleCommand("testsub", "mod1", "$hallpass", []string{"u/alice"})
	require.NoError(t, err)
	assert.False(t, internal)
	assert.Contains(t, reply, "hall pass")

	state, err := mysql.SelectAuthorState("testsub", "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, state.HallPass)

	// 再发一次就是两次豁免
	_, _, err = HandleCommand("testsub", "mod1", "$hallpass", []string{"alice"})
	require.NoError(t, err)
	state, err = mysql.SelectAuthorState("testsub", "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, state.HallPass)
}

func TestHandleCommandBlacklistAndUnban(t *testing.T) {
	fake := setupCommandTest(t)

	_, _, err := HandleCommand("testsub", "mod1", "$blacklist", []string{"alice"})
	require.NoError(t, err)

	state, err := mysql.SelectAuthorState("testsub", "alice")
	require.NoError(t, err)
	assert.True(t, state.CurrentlyBlacklisted)
	assert.True(t, state.CoolingDown(time.Now().UTC()))

	_, _, err = HandleCommand("testsub", "mod1", "$unban", []string{"alice"})
	require.NoError(t, err)
	assert.Equal(t, []string{"testsub/alice"}, fake.unbans)

	state, err = mysql.SelectAuthorState("testsub", "alice")
	require.NoError(t, err)
	assert.False(t, state.CurrentlyBlacklisted)
	assert.False(t, state.CoolingDown(time.Now().UTC()))
}

func TestHandleCommandBan(t *testing.T) {
	fake := setupCommandTest(t)

	_, _, err := HandleCommand("testsub", "mod1", "$ban", []string{"alice"})
	assert.ErrorIs(t, err, mhb.ErrMissingArg)

	reply, _, err := HandleCommand("testsub", "mod1", "$ban", []string{"alice", "7"})
	require.NoError(t, err)
	assert.Contains(t, reply, "7 day(s)")
	require.Len(t, fake.bans, 1)
	assert.Equal(t, 7, fake.bans[0].DurationDays)

	// 0 按永久处理
	reply, _, err = HandleCommand("testsub", "mod1", "$ban", []string{"bob", "0"})
	require.NoError(t, err)
	assert.Contains(t, reply, "permanently")
	require.Len(t, fake.bans, 2)
	assert.Equal(t, 0, fake.bans[1].DurationDays)
}

func TestHandleCommandReset(t *testing.T) {
	setupCommandTest(t)

	post := &models.Post{
		PostID:           "rst001",
		CommunityName:    "testsub",
		AuthorName:       "alice",
		CountedStatus:    models.CountedCounts,
		FlaggedDuplicate: true,
		Reviewed:         true,
		PostedAt:         time.Now().UTC().Add(-time.Hour),
	}
	require.NoError(t, mysql.CreatePost(post))

	reply, _, err := HandleCommand("testsub", "mod1", "$reset", []string{"alice"})
	require.NoError(t, err)
	assert.Contains(t, reply, "1 post(s) cleared")

	stored, err := mysql.SelectPostByID("rst001")
	require.NoError(t, err)
	assert.False(t, stored.FlaggedDuplicate)
	assert.False(t, stored.Reviewed)
}

func TestHandleCommandCiteRule(t *testing.T) {
	fake := setupCommandTest(t)
	fake.rules = []platform.Rule{
		{ShortName: "Be nice", Description: "No personal attacks."},
		{ShortName: "No spam", Description: "No excessive posting."},
	}

	reply, internal, err := HandleCommand("testsub", "mod1", "$citerule", []string{"2"})
	require.NoError(t, err)
	assert.False(t, internal)
	assert.Equal(t, "Please see rule #2: No spam", reply)

	reply, internal, err = HandleCommand("testsub", "mod1", "$testciterulelong", []string{"1"})
	require.NoError(t, err)
	assert.True(t, internal)
	assert.Contains(t, reply, "Be nice")
	assert.Contains(t, reply, "No personal attacks.")

	reply, _, err = HandleCommand("testsub", "mod1", "$citerule", []string{"5"})
	require.NoError(t, err)
	assert.Contains(t, reply, "only has 2 rule(s)")
}

func TestHandleCommandCanned(t *testing.T) {
	setupCommandTest(t)

	reply, internal, err := HandleCommand("testsub", "mod1", "$canned", []string{"rules"})
	require.NoError(t, err)
	assert.False(t, internal)
	assert.Equal(t, "Please read the rules of testsub first.", reply)

	reply, internal, err = HandleCommand("testsub", "mod1", "$canned", []string{"nope"})
	require.NoError(t, err)
	assert.True(t, internal)
	assert.Contains(t, reply, "`rules`")
}

func TestHandleCommandSummary(t *testing.T) {
	setupCommandTest(t)

	require.NoError(t, mysql.CreatePost(&models.Post{
		PostID:        "sum001",
		CommunityName: "testsub",
		AuthorName:    "alice",
		Title:         "a post",
		CountedStatus: models.CountedCounts,
		PostedAt:      time.Now().UTC().Add(-24 * time.Hour),
	}))

	reply, internal, err := HandleCommand("testsub", "mod1", "$summary", []string{"alice"})
	require.NoError(t, err)
	assert.True(t, internal)
	assert.Contains(t, reply, "1 post(s), 1 counted")
	assert.Contains(t, reply, "sum001")
}

func TestHandleCommandUpdate(t *testing.T) {
	fake := setupCommandTest(t)

	reply, _, err := HandleCommand("testsub", "mod1", "$update", nil)
	require.NoError(t, err)
	assert.Contains(t, reply, "updated successfully")
	assert.Contains(t, reply, "1 post(s) per 24h")

	// 文档坏掉时给出修复建议而不是报错
	fake.policyDoc = &platform.PolicyDocument{Content: "post_restriction:\n\t- bad", Revision: "rev-2"}
	reply, _, err = HandleCommand("testsub", "mod1", "$update", nil)
	require.NoError(t, err)
	assert.Contains(t, reply, "yaml")
}
