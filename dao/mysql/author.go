package mysql

import (
	"time"

	"github.com/Asterisk-tech/moderatelyhelpfulbot/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

func SelectAuthorState(community, author string) (*models.AuthorState, error) {
	state := new(models.AuthorState)
	res := db.First(state, "community_name = ? AND author_name = ?", community, author)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "mysql:SelectAuthorState")
	}
	return state, nil
}

// EnsureAuthorState 懒创建：没有记录时返回一个零值状态（不落库，由调用方 Save）
func EnsureAuthorState(community, author string) (*models.AuthorState, error) {
	state, err := SelectAuthorState(community, author)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &models.AuthorState{
				CommunityName: community,
				AuthorName:    author,
			}, nil
		}
		return nil, err
	}
	return state, nil
}

func SaveAuthorState(tx *gorm.DB, state *models.AuthorState) error {
	useDB := getUseDB(tx)
	state.LastUpdated = time.Now().UTC()
	res := useDB.Save(state)
	return errors.Wrap(res.Error, "mysql:SaveAuthorState")
}
