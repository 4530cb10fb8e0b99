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

func exemptionCommunity(policy models.Policy) *models.TrackedCommunity {
	return &models.TrackedCommunity{
		CommunityName: "testsub",
		Policy:        policy,
		Moderators:    []string{"mod1"},
	}
}

func TestCheckPostExemptions(t *testing.T) {
	base := DefaultPolicy()

	tests := []struct {
		name   string
		tweak  func(*models.Policy)
		post   models.Post
		want   models.CountedStatus
		reason string
	}{
		{
			name:   "live post counts",
			post:   models.Post{AuthorName: "alice", Title: "hello"},
			want:   models.CountedCounts,
			reason: "no exemptions",
		},
		{
			name:   "spam filtered never counts",
			post:   models.Post{AuthorName: "alice", RemovedStatus: models.RemovedSpamFiltered},
			want:   models.CountedExempt,
			reason: "post is removed",
		},
		{
			name:   "automation removed exempt by default",
			post:   models.Post{AuthorName: "alice", RemovedStatus: models.RemovedByAutomation},
			want:   models.CountedExempt,
			reason: "post is removed",
		},
		{
			name: "automation removed still counts when configured",
			tweak: func(p *models.Policy) {
				p.IgnoreAutomationRemoved = false
			},
			post:   models.Post{AuthorName: "alice", RemovedStatus: models.RemovedByAutomation},
			want:   models.CountedCounts,
			reason: "no exemptions",
		},
		{
			name:   "moderator removed exempt by default",
			post:   models.Post{AuthorName: "alice", RemovedStatus: models.RemovedByModerator, RemovedBy: "mod1"},
			want:   models.CountedExempt,
			reason: "post is removed",
		},
		{
			name: "oc exempt when configured",
			tweak: func(p *models.Policy) {
				p.ExemptOriginalContent = true
			},
			post:   models.Post{AuthorName: "alice", OriginalContent: true},
			want:   models.CountedExempt,
			reason: "oc exempt",
		},
		{
			name: "self post exempt",
			tweak: func(p *models.Policy) {
				p.ExemptSelfPosts = true
			},
			post:   models.Post{AuthorName: "alice", IsSelf: true},
			want:   models.CountedExempt,
			reason: "self_post_exempt",
		},
		{
			name: "link post exempt",
			tweak: func(p *models.Policy) {
				p.ExemptLinkPosts = true
			},
			post:   models.Post{AuthorName: "alice", IsSelf: false},
			want:   models.CountedExempt,
			reason: "link_post_exempt",
		},
		{
			name: "flair allow list",
			tweak: func(p *models.Policy) {
				p.AuthorExemptFlairKeyword = "approved"
			},
			post: models.Post{AuthorName: "alice", AuthorFlair: "approved seller"},
			want: models.CountedExempt,
		},
		{
			name: "flair deny list skips unflaired",
			tweak: func(p *models.Policy) {
				p.AuthorNotExemptFlairKeyword = "seller"
			},
			post: models.Post{AuthorName: "alice"},
			want: models.CountedExempt,
		},
		{
			name: "flair deny list counts matching flair",
			tweak: func(p *models.Policy) {
				p.AuthorNotExemptFlairKeyword = "seller"
			},
			post:   models.Post{AuthorName: "alice", AuthorFlair: "verified seller"},
			want:   models.CountedCounts,
			reason: "no exemptions",
		},
		{
			name: "allow beats deny when both match",
			tweak: func(p *models.Policy) {
				p.AuthorExemptFlairKeyword = "vip"
				p.AuthorNotExemptFlairKeyword = "vip"
			},
			post: models.Post{AuthorName: "alice", AuthorFlair: "vip"},
			want: models.CountedExempt,
		},
		{
			name: "title keyword exempt is case insensitive",
			tweak: func(p *models.Policy) {
				p.TitleExemptKeyword = []string{"[Meta]"}
			},
			post: models.Post{AuthorName: "alice", Title: "[meta] state of the sub"},
			want: models.CountedExempt,
		},
		{
			name: "title deny list counts matching title",
			tweak: func(p *models.Policy) {
				p.TitleNotExemptKeyword = []string{"selling"}
			},
			post:   models.Post{AuthorName: "alice", Title: "Selling my old bike"},
			want:   models.CountedCounts,
			reason: "no exemptions",
		},
		{
			name: "title deny list matches post flair too",
			tweak: func(p *models.Policy) {
				p.TitleNotExemptKeyword = []string{"selling"}
			},
			post:   models.Post{AuthorName: "alice", Title: "my old bike", PostFlair: "Selling"},
			want:   models.CountedCounts,
			reason: "no exemptions",
		},
		{
			name:   "moderator exempt",
			post:   models.Post{AuthorName: "mod1", Title: "announcement"},
			want:   models.CountedExempt,
			reason: "moderator exempt",
		},
		{
			name: "moderator counts when configured",
			tweak: func(p *models.Policy) {
				p.ExemptModeratorPosts = false
			},
			post:   models.Post{AuthorName: "mod1", Title: "announcement"},
			want:   models.CountedCounts,
			reason: "no exemptions",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			policy := base
			if tc.tweak != nil {
				tc.tweak(&policy)
			}
			post := tc.post
			status, reason := CheckPostExemptions(exemptionCommunity(policy), &post)
			assert.Equal(t, tc.want, status)
			if tc.reason != "" {
				assert.Equal(t, tc.reason, reason)
			}
		})
	}
}

func TestEnsureCountedMemoized(t *testing.T) {
	fake := setupTest(t)
	policy := DefaultPolicy()
	community := testCommunity(t, "testsub", policy)

	post := &models.Post{
		PostID:        "abc123",
		CommunityName: "testsub",
		AuthorName:    "alice",
		Title:         "hello",
		CountedStatus: models.CountedUnchecked,
		PostedAt:      time.Now().UTC().Add(-time.Hour),
	}
	require.NoError(t, mysql.CreatePost(post))

	status, err := EnsureCounted(community, post)
	require.NoError(t, err)
	assert.Equal(t, models.CountedCounts, status)
	assert.Equal(t, 1, fake.fetchCount["abc123"])

	// 结果落库，第二次不再访问平台
	stored, err := mysql.SelectPostByID("abc123")
	require.NoError(t, err)
	assert.Equal(t, models.CountedCounts, stored.CountedStatus)

	status, err = EnsureCounted(community, stored)
	require.NoError(t, err)
	assert.Equal(t, models.CountedCounts, status)
	assert.Equal(t, 1, fake.fetchCount["abc123"])
}

func TestRefreshPostStatusSelfDeleted(t *testing.T) {
	fake := setupTest(t)
	fake.addPost(&platform.PostInfo{ID: "gone1", Author: ""})

	post := &models.Post{PostID: "gone1", AuthorName: "alice"}
	require.NoError(t, RefreshPostStatus(post))
	assert.True(t, post.SelfDeleted)
	assert.Equal(t, models.RemovedSelfDeleted, post.RemovedStatus)
}

func TestClassifyRemoved(t *testing.T) {
	setupTest(t)

	tests := []struct {
		info platform.PostInfo
		want models.RemovedStatus
	}{
		{platform.PostInfo{Author: "alice", SpamFiltered: true}, models.RemovedSpamFiltered},
		{platform.PostInfo{Author: "alice"}, models.RemovedNone},
		{platform.PostInfo{Author: ""}, models.RemovedSelfDeleted},
		{platform.PostInfo{Author: "alice", RemovedBy: "AutoModerator"}, models.RemovedByAutomation},
		{platform.PostInfo{Author: "alice", RemovedBy: "ModeratelyHelpfulBot"}, models.RemovedBySelfBot},
		{platform.PostInfo{Author: "alice", RemovedBy: "SomeOtherBot"}, models.RemovedByOtherBot},
		{platform.PostInfo{Author: "alice", RemovedBy: "mod1"}, models.RemovedByModerator},
	}
	for _, tc := range tests {
		info := tc.info
		assert.Equal(t, tc.want, classifyRemoved(&info), "removed_by=%q", tc.info.RemovedBy)
	}
}
