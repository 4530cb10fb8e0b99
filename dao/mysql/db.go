package mysql

import (
	"fmt"

	"github.com/Asterisk-tech/moderatelyhelpfulbot/models"

	"github.com/spf13/viper"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var db *gorm.DB

func InitMySQL() {
	driver := viper.GetString("mysql.driverName")
	debug := viper.GetBool("mysql.debug")

	var err error
	var config gorm.Config
	if debug {
		config.Logger = logger.Default.LogMode(logger.Info)
	}

	switch driver {
	case "sqlite": // 小规模部署、本地调试用
		db, err = gorm.Open(sqlite.Open(viper.GetString("mysql.database")+".sqlite"), &config)
	default:
		dbHost := viper.Get("mysql.host")
		dbPort := viper.GetInt("mysql.port")
		userName := viper.Get("mysql.username")
		password := viper.Get("mysql.password")
		database := viper.Get("mysql.database")
		charset := viper.Get("mysql.charset")
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local", userName, password, dbHost, dbPort, database, charset)
		db, err = gorm.Open(mysql.Open(dsn), &config)
	}
	if err != nil {
		panic(fmt.Sprintf("mysql: %s", err.Error()))
	}
	initTables()
}

// InitWithDB 直接注入一个已打开的连接（测试用 sqlite 内存库）
func InitWithDB(gormDB *gorm.DB) {
	db = gormDB
	initTables()
}

func initTables() {
	db.AutoMigrate(&models.Post{})
	db.AutoMigrate(&models.AuthorState{})
	db.AutoMigrate(&models.TrackedCommunity{})
	db.AutoMigrate(&models.ActionedItem{})
}

func GetDB() *gorm.DB {
	return db
}

func getUseDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return db
}
