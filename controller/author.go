package controller

import (
	"time"

	common "github.com/Asterisk-tech/moderatelyhelpfulbot/controller/Common"
	"github.com/Asterisk-tech/moderatelyhelpfulbot/dao/mysql"
	mhb "github.com/Asterisk-tech/moderatelyhelpfulbot/errors"
	"github.com/Asterisk-tech/moderatelyhelpfulbot/internal/utils"
	"github.com/Asterisk-tech/moderatelyhelpfulbot/logger"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type ResponseAuthorPost struct {
	PostID        string    `json:"post_id"`
	Title         string    `json:"title"`
	PostedAt      time.Time `json:"posted_at"`
	CountedStatus int8      `json:"counted_status"`
	Flagged       bool      `json:"flagged"`
}

type ResponseAuthorSummary struct {
	CommunityName  string               `json:"community_name"`
	AuthorName     string               `json:"author_name"`
	HallPass       int                  `json:"hall_pass"`
	ViolationCount int                  `json:"violation_count"`
	BanCount       int                  `json:"ban_count"`
	NextEligible   *time.Time           `json:"next_eligible,omitempty"`
	Posts          []ResponseAuthorPost `json:"posts"`
}

// AuthorSummaryHandler 作者概要接口：当前状态加上近半年的帖子
func AuthorSummaryHandler(ctx *gin.Context) {
	community, ok0 := ctx.GetQuery("community_name")
	author, ok1 := ctx.GetQuery("author_name")
	if !ok0 || !ok1 {
		common.ResponseError(ctx, common.CodeInvalidParam)
		return
	}
	community = utils.NormalizeCommunityName(community)
	author = utils.NormalizeAuthorName(author)

	state, err := mysql.SelectAuthorState(community, author)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		common.ResponseError(ctx, common.CodeInternalErr)
		logger.ErrorWithStack(err)
		return
	}

	posts, err := mysql.SelectRecentPostsByAuthor(community, author, 182)
	if err != nil {
		common.ResponseError(ctx, common.CodeInternalErr)
		logger.ErrorWithStack(err)
		return
	}
	if state == nil && len(posts) == 0 {
		common.ResponseErrorWithMsg(ctx, common.CodeNoSuchAuthor, mhb.ErrNoSuchAuthor.Error())
		return
	}

	resp := &ResponseAuthorSummary{
		CommunityName: community,
		AuthorName:    author,
		Posts:         make([]ResponseAuthorPost, 0, len(posts)),
	}
	if state != nil {
		resp.HallPass = state.HallPass
		resp.ViolationCount = state.ViolationCount
		resp.BanCount = state.BanCount
		resp.NextEligible = state.NextEligible
	}
	for _, p := range posts {
		resp.Posts = append(resp.Posts, ResponseAuthorPost{
			PostID:        p.PostID,
			Title:         p.Title,
			PostedAt:      p.PostedAt,
			CountedStatus: int8(p.CountedStatus),
			Flagged:       p.FlaggedDuplicate,
		})
	}
	common.ResponseSuccess(ctx, resp)
}
