package db

import (
	"os"
	"path/filepath"

	"stagebased/config"
	"stagebased/errors"
	"stagebased/models"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
	"github.com/rs/zerolog"
)

// Connect opens the configured database (sqlite3 by default) and runs the
// automigrate when enabled.
func Connect(conf config.Configuration, log zerolog.Logger) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)

	switch conf.Database {
	case "postgres", "postgresql":
		log.Info().Str("host", conf.DbHost).Str("db", conf.DbName).Msg("using postgresql connection")
		path := "host=" + conf.DbHost + " port=" + conf.DbPort
		path += " user=" + conf.DbUser + " dbname=" + conf.DbName
		path += " password=" + conf.DbPass + " sslmode=disable"
		db, err = gorm.Open("postgres", path)
	default:
		log.Info().Str("path", conf.DbPath).Msg("using sqlite3 connection")
		if dir := filepath.Dir(conf.DbPath); dir != "" && conf.DbPath != ":memory:" {
			_ = os.MkdirAll(dir, 0o755)
		}
		db, err = gorm.Open("sqlite3", conf.DbPath)
		if err == nil {
			// sqlite serialises writers; one connection keeps the claim
			// UPDATE from racing a second handle into SQLITE_BUSY
			db.DB().SetMaxOpenConns(1)
		}
	}
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		return nil, errors.Wrap(err, "open database")
	}

	db.LogMode(log.GetLevel() <= zerolog.DebugLevel)

	if conf.AutoMigrate {
		if err := Migrate(db); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// Migrate creates or updates every table the service owns.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Schedule{},
		&models.BinaryContent{},
		&models.MessageSet{},
		&models.Message{},
		&models.Subscription{},
		&models.User{},
		&models.APIToken{},
	).Error
	return errors.Wrap(err, "automigrate")
}
