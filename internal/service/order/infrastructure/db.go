// internal/service/order/infrastructure/db.go
package infrastructure

import (
	"github.com/pkg/errors"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// OpenDB 打开 MySQL 并迁移订单侧的表结构。
// TranslateError 让唯一键冲突映射成 gorm.ErrDuplicatedKey。
func OpenDB(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, errors.Wrap(err, "open mysql")
	}
	if err := db.AutoMigrate(&ProductModel{}, &OrderModel{}, &OrderItemModel{}); err != nil {
		return nil, errors.Wrap(err, "migrate order schema")
	}
	return db, nil
}
