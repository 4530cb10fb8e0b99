package workers

import (
	"context"
	"time"

	"github.com/Asterisk-tech/moderatelyhelpfulbot/dao/mysql"
	"github.com/Asterisk-tech/moderatelyhelpfulbot/dao/redis"
	"github.com/Asterisk-tech/moderatelyhelpfulbot/internal/utils"
	"github.com/Asterisk-tech/moderatelyhelpfulbot/logger"
	"github.com/Asterisk-tech/moderatelyhelpfulbot/models"
	"github.com/Asterisk-tech/moderatelyhelpfulbot/platform"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// IngestOnce 拉一轮新帖流入库。平台给的是所有被管社区的合并流，
// 先用 redis 去重，再按社区归属落库；不被追踪的社区直接丢弃
func IngestOnce() error {
	ctx, cancel := context.WithTimeout(context.Background(),
		time.Duration(viper.GetInt64("platform.timeout"))*time.Second)
	defer cancel()

	limit := viper.GetInt("service.ingest.query_limit")
	infos, err := platform.Get().FetchNewPosts(ctx, limit)
	if err != nil {
		return errors.Wrap(err, "workers:IngestOnce: fetch new posts")
	}

	tracked, err := trackedCommunityNames()
	if err != nil {
		return err
	}

	saved := 0
	for _, info := range infos {
		name := utils.NormalizeCommunityName(info.Community)
		if !tracked[name] {
			continue
		}

		seen, err := redis.PostSeen(info.ID)
		if err != nil && !errors.Is(err, redis.Nil) {
			logger.ErrorWithStack(err)
		}
		if seen {
			continue
		}

		exists, err := mysql.PostExists(info.ID)
		if err != nil {
			logger.ErrorWithStack(err)
			continue
		}
		if !exists {
			if err := mysql.CreatePost(postFromInfo(name, info)); err != nil {
				logger.ErrorWithStack(err)
				continue
			}
			saved++
		}
		if err := redis.MarkPostSeen(info.ID); err != nil {
			logger.ErrorWithStack(err)
		}
	}
	if saved > 0 {
		logger.Debugf("workers: ingest saved %d new post(s)", saved)
	}

	ingestSpamQueues(tracked)
	return nil
}

func postFromInfo(community string, info *platform.PostInfo) *models.Post {
	return &models.Post{
		PostID:          info.ID,
		CommunityName:   community,
		AuthorName:      utils.NormalizeAuthorName(info.Author),
		Title:           info.Title,
		Body:            info.Body,
		IsSelf:          info.IsSelf,
		OriginalContent: info.OriginalContent,
		PostFlair:       info.PostFlair,
		AuthorFlair:     info.AuthorFlair + info.AuthorFlairCSS,
		CountedStatus:   models.CountedUnchecked,
		PostedAt:        info.CreatedAt.UTC(),
	}
}

// ingestSpamQueues 扫每个社区的垃圾队列：持 hall pass 的作者的帖子
// 会被自动放行（消耗一次豁免），其余只入库等常规检查
func ingestSpamQueues(tracked map[string]bool) {
	for name := range tracked {
		ctx, cancel := context.WithTimeout(context.Background(),
			time.Duration(viper.GetInt64("platform.timeout"))*time.Second)
		infos, err := platform.Get().FetchSpamPosts(ctx, name)
		cancel()
		if err != nil {
			logger.Warnf("workers:ingestSpamQueues: %s: %v", name, err)
			continue
		}

		for _, info := range infos {
			author := utils.NormalizeAuthorName(info.Author)
			if author == "" {
				continue
			}
			state, err := mysql.EnsureAuthorState(name, author)
			if err != nil {
				logger.ErrorWithStack(err)
				continue
			}
			if state.HallPass <= 0 {
				continue
			}

			actx, acancel := context.WithTimeout(context.Background(),
				time.Duration(viper.GetInt64("platform.timeout"))*time.Second)
			err = platform.Get().ApprovePost(actx, info.ID)
			acancel()
			if err != nil {
				logger.Warnf("workers:ingestSpamQueues: approve %s: %v", info.ID, err)
				continue
			}

			state.HallPass--
			if err := mysql.SaveAuthorState(nil, state); err != nil {
				logger.ErrorWithStack(err)
			}
			logger.Infof("workers: hall pass auto-approved spam-filtered post %s by %s in %s", info.ID, author, name)
		}
	}
}

func trackedCommunityNames() (map[string]bool, error) {
	communities, err := mysql.SelectAllCommunities()
	if err != nil {
		return nil, err
	}
	names := make(map[string]bool, len(communities))
	for _, c := range communities {
		names[c.CommunityName] = true
	}
	return names, nil
}
