package mysql

import (
	"time"

	"github.com/Asterisk-tech/moderatelyhelpfulbot/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

func SelectCommunity(name string) (*models.TrackedCommunity, error) {
	community := new(models.TrackedCommunity)
	res := db.First(community, "community_name = ?", name)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "mysql:SelectCommunity")
	}
	return community, nil
}

func SaveCommunity(tx *gorm.DB, community *models.TrackedCommunity) error {
	useDB := getUseDB(tx)
	res := useDB.Save(community)
	return errors.Wrap(res.Error, "mysql:SaveCommunity")
}

// SelectActiveCommunities 最近有更新过策略的社区（扫描的对象）
func SelectActiveCommunities(updatedSince time.Time) ([]*models.TrackedCommunity, error) {
	communities := make([]*models.TrackedCommunity, 0)
	res := db.Where("last_updated > ?", updatedSince).Find(&communities)
	return communities, errors.Wrap(res.Error, "mysql:SelectActiveCommunities")
}

func SelectAllCommunities() ([]*models.TrackedCommunity, error) {
	communities := make([]*models.TrackedCommunity, 0)
	res := db.Find(&communities)
	return communities, errors.Wrap(res.Error, "mysql:SelectAllCommunities")
}
