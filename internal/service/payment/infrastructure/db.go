// internal/service/payment/infrastructure/db.go
package infrastructure

import (
	"github.com/pkg/errors"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// OpenDB 打开 MySQL 并迁移支付侧的表结构。
// TranslateError 是 order_id 唯一索引冲突能映射成 ErrDuplicatedKey 的前提。
func OpenDB(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, errors.Wrap(err, "open mysql")
	}
	if err := db.AutoMigrate(&PaymentModel{}); err != nil {
		return nil, errors.Wrap(err, "migrate payment schema")
	}
	return db, nil
}
