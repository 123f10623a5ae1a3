package dao

import (
	"fmt"

	"ace/internal/common"
	"ace/internal/server/model"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

var db *gorm.DB

// Init opens the store on the given dialector and migrates the schema.
// Tests pass a sqlite dialector, production uses InitMySQL.
func Init(dialector gorm.Dialector) error {
	database, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return err
	}
	db = database
	return database.AutoMigrate(
		&model.Task{},
		&model.Run{},
		&model.VerificationRecord{},
		&model.Alert{},
		&model.User{},
	)
}

func InitMySQL(cfg common.Config) error {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
	return Init(mysql.Open(dsn))
}
