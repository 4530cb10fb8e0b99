package mysql

import (
	"time"

	"github.com/Asterisk-tech/moderatelyhelpfulbot/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// CheckActioned 查询某个副作用是否已经执行过
func CheckActioned(actionKey string) (bool, error) {
	item := new(models.ActionedItem)
	res := db.First(item, "action_key = ?", actionKey)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, errors.Wrap(res.Error, "mysql:CheckActioned")
	}
	return true, nil
}

// RecordActioned 幂等：重复记录直接忽略
func RecordActioned(actionKey string) error {
	item := models.ActionedItem{ActionKey: actionKey}
	res := db.Where("action_key = ?", actionKey).
		Attrs(models.ActionedItem{DateActioned: time.Now().UTC()}).
		FirstOrCreate(&item)
	return errors.Wrap(res.Error, "mysql:RecordActioned")
}

// PurgeActionedBefore 清理过老的幂等标记
func PurgeActionedBefore(olderThan time.Time) (int64, error) {
	res := db.Where("date_actioned < ?", olderThan).Delete(&models.ActionedItem{})
	return res.RowsAffected, errors.Wrap(res.Error, "mysql:PurgeActionedBefore")
}
