package controller

import (
	common "github.com/Asterisk-tech/moderatelyhelpfulbot/controller/Common"
	"github.com/Asterisk-tech/moderatelyhelpfulbot/dao/mysql"
	mhb "github.com/Asterisk-tech/moderatelyhelpfulbot/errors"
	"github.com/Asterisk-tech/moderatelyhelpfulbot/logger"
	"github.com/Asterisk-tech/moderatelyhelpfulbot/logic"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type ResponseCommunityDetail struct {
	CommunityName       string `json:"community_name"`
	PolicyRevision      string `json:"policy_revision"`
	BanAbility          int8   `json:"ban_ability"`
	MaxCountPerInterval int    `json:"max_count_per_interval"`
	MinPostIntervalMins int    `json:"min_post_interval_mins"`
	BanThresholdCount   int    `json:"ban_threshold_count"`
}

type ResponseCommunityStats struct {
	CommunityName   string              `json:"community_name"`
	TotalReviewed   int64               `json:"total_reviewed"`
	TotalIdentified int64               `json:"total_identified"`
	TopAuthors      []mysql.AuthorCount `json:"top_authors"`
}

// CommunityDetailHandler 社区策略快照接口
func CommunityDetailHandler(ctx *gin.Context) {
	name, exists := ctx.GetQuery("community_name")
	if !exists {
		common.ResponseError(ctx, common.CodeInvalidParam)
		return
	}

	community, err := logic.GetCommunity(name)
	if err != nil {
		writeCommunityError(ctx, err)
		return
	}
	common.ResponseSuccess(ctx, &ResponseCommunityDetail{
		CommunityName:       community.CommunityName,
		PolicyRevision:      community.PolicyRevision,
		BanAbility:          int8(community.BanAbility),
		MaxCountPerInterval: community.Policy.MaxCountPerInterval,
		MinPostIntervalMins: community.MinPostIntervalMins,
		BanThresholdCount:   community.Policy.BanThresholdCount,
	})
}

// CommunityStatsHandler 社区帖子统计接口
func CommunityStatsHandler(ctx *gin.Context) {
	name, exists := ctx.GetQuery("community_name")
	if !exists {
		common.ResponseError(ctx, common.CodeInvalidParam)
		return
	}

	community, err := logic.GetCommunity(name)
	if err != nil {
		writeCommunityError(ctx, err)
		return
	}
	stats, err := mysql.SelectCommunityStats(community.CommunityName)
	if err != nil {
		common.ResponseError(ctx, common.CodeInternalErr)
		logger.ErrorWithStack(err)
		return
	}
	common.ResponseSuccess(ctx, &ResponseCommunityStats{
		CommunityName:   community.CommunityName,
		TotalReviewed:   stats.TotalReviewed,
		TotalIdentified: stats.TotalIdentified,
		TopAuthors:      stats.TopAuthors,
	})
}

// CommunityRefreshHandler 强制重新拉取并解析社区策略
func CommunityRefreshHandler(ctx *gin.Context) {
	name, exists := ctx.GetQuery("community_name")
	if !exists {
		common.ResponseError(ctx, common.CodeInvalidParam)
		return
	}

	community, err := logic.RefreshCommunity(name)
	if err != nil {
		common.ResponseErrorWithMsg(ctx, common.CodeConfigError, logic.ConfigHelpText(err, name))
		return
	}
	common.ResponseSuccess(ctx, gin.H{
		"community_name":  community.CommunityName,
		"policy_revision": community.PolicyRevision,
	})
}

func writeCommunityError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, mhb.ErrNoSuchCommunity):
		common.ResponseError(ctx, common.CodeNoSuchCommunity)
	case errors.Is(err, mhb.ErrPolicyNotFound),
		errors.Is(err, mhb.ErrPolicyForbidden),
		errors.Is(err, mhb.ErrPolicyParse),
		errors.Is(err, mhb.ErrPolicyEmpty),
		errors.Is(err, mhb.ErrPolicyZeroInterval),
		errors.Is(err, mhb.ErrPolicyZeroBan):
		common.ResponseError(ctx, common.CodeConfigError)
	default:
		common.ResponseError(ctx, common.CodeInternalErr)
		logger.ErrorWithStack(err)
	}
}
