package repo

import (
	"Go_PanStore/config"
	"Go_PanStore/model"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	gormMysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
)

var Db *gorm.DB

// AutoMigrateAll migrates all lifecycle tables.
func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.UserQuota{},
		&model.FolderRecord{},
		&model.FileRecord{},
		&model.VersionRecord{},
		&model.RecycleEntry{},
	); err != nil {
		return err
	}
	migrateUserFileIndexes(db)
	return nil
}

// migrateUserFileIndexes drops the unique name index older schemas carried.
// Uniqueness of active names is enforced under the owner lock so that
// several recycled files may share a name.
func migrateUserFileIndexes(db *gorm.DB) {
	if db == nil {
		return
	}
	migrator := db.Migrator()
	for _, oldIndex := range []string{"uk_user_parent_name", "uk_user_parent_name_active"} {
		if !migrator.HasIndex(&model.FileRecord{}, oldIndex) {
			continue
		}
		if err := migrator.DropIndex(&model.FileRecord{}, oldIndex); err != nil {
			log.Warn().Err(err).Str("index", oldIndex).Msg("drop index failed")
		}
	}
}

// InitMysql initializes the main MySQL connection.
func InitMysql() {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		config.AppConfig.DBUser,
		config.AppConfig.DBPass,
		config.AppConfig.DBHost,
		config.AppConfig.DBPort,
		config.AppConfig.DBName,
	)
	db, err := gorm.Open(gormMysql.Open(dsn), &gorm.Config{})
	if err != nil && isUnknownDatabaseError(err) {
		if createErr := ensureMySQLDatabase(config.AppConfig.DBName); createErr != nil {
			log.Fatal().Err(createErr).Msg("create mysql database failed")
		}
		db, err = gorm.Open(gormMysql.Open(dsn), &gorm.Config{})
	}
	if err != nil {
		log.Fatal().Err(err).Msg("init mysql failed")
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal().Err(err).Msg("get sql db failed")
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := AutoMigrateAll(db); err != nil {
		log.Fatal().Err(err).Msg("auto migrate failed")
	}
	log.Info().Str("db", config.AppConfig.DBName).Msg("init mysql success")
	Db = db
}

func isUnknownDatabaseError(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1049
	}
	return strings.Contains(strings.ToLower(err.Error()), "unknown database")
}

func ensureMySQLDatabase(dbName string) error {
	dbName = strings.TrimSpace(dbName)
	if dbName == "" {
		return errors.New("empty database name")
	}

	serverDSN := fmt.Sprintf("%s:%s@tcp(%s:%s)/?charset=utf8mb4&parseTime=True&loc=UTC",
		config.AppConfig.DBUser,
		config.AppConfig.DBPass,
		config.AppConfig.DBHost,
		config.AppConfig.DBPort,
	)

	serverDB, err := sql.Open("mysql", serverDSN)
	if err != nil {
		return err
	}
	defer serverDB.Close()

	if err = serverDB.Ping(); err != nil {
		return err
	}

	_, err = serverDB.Exec(
		"CREATE DATABASE IF NOT EXISTS " + quoteMySQLIdentifier(dbName) + " CHARACTER SET utf8mb4 COLLATE utf8mb4_general_ci",
	)
	return err
}

func quoteMySQLIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
