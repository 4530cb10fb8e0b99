package mysql

import (
	"time"

	"github.com/Asterisk-tech/moderatelyhelpfulbot/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

func CreatePost(post *models.Post) error {
	res := db.Create(&post)
	return errors.Wrap(res.Error, "mysql:CreatePost")
}

func SelectPostByID(postID string) (*models.Post, error) {
	post := new(models.Post)
	res := db.First(post, "post_id = ?", postID)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "mysql:SelectPostByID")
	}
	return post, nil
}

func PostExists(postID string) (bool, error) {
	var count int64
	res := db.Model(&models.Post{}).Where("post_id = ?", postID).Count(&count)
	return count > 0, errors.Wrap(res.Error, "mysql:PostExists")
}

func SavePost(tx *gorm.DB, post *models.Post) error {
	useDB := getUseDB(tx)
	res := useDB.Save(post)
	return errors.Wrap(res.Error, "mysql:SavePost")
}

// SelectWindowPosts 取同作者同社区、时间在 [from, to) 内、未豁免且未被标记为
// 违规的帖子，按时间升序。to 对应触发帖，排除其自身
func SelectWindowPosts(community, author string, from, to time.Time, excludeID string) ([]*models.Post, error) {
	posts := make([]*models.Post, 0)
	res := db.Where("community_name = ? AND author_name = ?", community, author).
		Where("flagged_duplicate = ?", false).
		Where("counted_status <> ?", models.CountedExempt).
		Where("posted_at >= ? AND posted_at < ?", from, to).
		Where("post_id <> ?", excludeID).
		Order("posted_at ASC").
		Find(&posts)
	return posts, errors.Wrap(res.Error, "mysql:SelectWindowPosts")
}

// SelectFlaggedBefore 该作者在该社区已被标记的其它违规帖（都早于 before）
func SelectFlaggedBefore(community, author string, before time.Time) ([]*models.Post, error) {
	posts := make([]*models.Post, 0)
	res := db.Where("community_name = ? AND author_name = ?", community, author).
		Where("flagged_duplicate = ?", true).
		Where("posted_at < ?", before).
		Order("posted_at ASC").
		Find(&posts)
	return posts, errors.Wrap(res.Error, "mysql:SelectFlaggedBefore")
}

// SelectRecentPostsByAuthor 作者摘要用，回看 days 天
func SelectRecentPostsByAuthor(community, author string, days int) ([]*models.Post, error) {
	posts := make([]*models.Post, 0)
	res := db.Where("community_name = ? AND author_name = ?", community, author).
		Where("posted_at > ?", time.Now().UTC().AddDate(0, 0, -days)).
		Order("posted_at ASC").
		Find(&posts)
	return posts, errors.Wrap(res.Error, "mysql:SelectRecentPostsByAuthor")
}

// ViolationCandidate 一个疑似超配额的 (author, community) 分组
type ViolationCandidate struct {
	AuthorName    string    `json:"author_name"`
	CommunityName string    `json:"community_name"`
	PostCount     int       `json:"post_count"`
	MostRecent    time.Time `json:"most_recent"`
}

// SelectViolationCandidates 找出单个社区内窗口期发帖数超过配额、且最新帖子
// 还没复查过的作者分组，按最近发帖时间倒序。
//
// fastPath 额外用 72h 下界裁剪扫描范围，可能漏掉长窗口社区的违规，
// 周期性的精确扫描（fastPath=false）负责兜底
func SelectViolationCandidates(community string, interval time.Duration, maxCount int, fastPath bool) ([]ViolationCandidate, error) {
	now := time.Now().UTC()
	cutoff := now.Add(-interval)
	horizon := now.Add(-72 * time.Hour)
	if fastPath && cutoff.Before(horizon) {
		cutoff = horizon
	}

	candidates := make([]ViolationCandidate, 0)
	res := db.Model(&models.Post{}).
		Select("author_name, community_name, COUNT(*) AS post_count, MAX(posted_at) AS most_recent").
		Where("community_name = ?", community).
		Where("counted_status <> ?", models.CountedExempt).
		Where("posted_at > ?", cutoff).
		Group("author_name, community_name").
		Having("COUNT(*) > ?", maxCount).
		Having("MAX(posted_at) > COALESCE(MAX(last_checked), '1970-01-01 00:00:00')").
		Order("most_recent DESC").
		Scan(&candidates)
	return candidates, errors.Wrap(res.Error, "mysql:SelectViolationCandidates")
}

// SelectUnreviewedPosts 某个分组内还没复查过的帖子，升序
func SelectUnreviewedPosts(community, author string, since time.Time) ([]*models.Post, error) {
	posts := make([]*models.Post, 0)
	res := db.Where("community_name = ? AND author_name = ?", community, author).
		Where("reviewed = ?", false).
		Where("counted_status <> ?", models.CountedExempt).
		Where("posted_at > ?", since).
		Order("posted_at ASC").
		Find(&posts)
	return posts, errors.Wrap(res.Error, "mysql:SelectUnreviewedPosts")
}

// PurgeOldPosts 按社区清理窗口之外的旧帖。被标记为违规或违规前置的
// 一律保留，它们还是封禁证据
func PurgeOldPosts(community string, olderThan time.Time) (int64, error) {
	res := db.Where("community_name = ?", community).
		Where("posted_at < ?", olderThan).
		Where("flagged_duplicate = ?", false).
		Where("pre_duplicate = ?", false).
		Delete(&models.Post{})
	return res.RowsAffected, errors.Wrap(res.Error, "mysql:PurgeOldPosts")
}

// ResetFlaggedByAuthor 运营者 reset 命令：清掉该作者的违规标记
func ResetFlaggedByAuthor(community, author string) (int64, error) {
	res := db.Model(&models.Post{}).
		Where("community_name = ? AND author_name = ?", community, author).
		Where("flagged_duplicate = ?", true).
		Updates(map[string]any{"flagged_duplicate": false, "reviewed": false})
	return res.RowsAffected, errors.Wrap(res.Error, "mysql:ResetFlaggedByAuthor")
}

// CommunityPostStats stats 命令用
type CommunityPostStats struct {
	TotalReviewed   int64
	TotalIdentified int64
	TopAuthors      []AuthorCount
}

type AuthorCount struct {
	AuthorName string `json:"author_name"`
	Count      int64  `json:"count"`
}

func SelectCommunityStats(community string) (*CommunityPostStats, error) {
	stats := new(CommunityPostStats)

	res := db.Model(&models.Post{}).Where("community_name = ?", community).Count(&stats.TotalReviewed)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "mysql:SelectCommunityStats: total")
	}
	res = db.Model(&models.Post{}).
		Where("community_name = ? AND flagged_duplicate = ?", community, true).
		Count(&stats.TotalIdentified)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "mysql:SelectCommunityStats: identified")
	}

	stats.TopAuthors = make([]AuthorCount, 0, 10)
	res = db.Model(&models.Post{}).
		Select("author_name, COUNT(*) AS count").
		Where("community_name = ?", community).
		Group("author_name").
		Order("count DESC").
		Limit(10).
		Scan(&stats.TopAuthors)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "mysql:SelectCommunityStats: top authors")
	}
	return stats, nil
}
