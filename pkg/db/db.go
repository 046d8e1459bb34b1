package db

import (
	"fmt"
	"log"
	"sync"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"github.com/listhub/listing-backend/config"
)

var db *gorm.DB
var once sync.Once

// GetSharedConnection returns the shared database connection, opening it on
// first use with the pool settings from the configuration.
func GetSharedConnection() *gorm.DB {
	once.Do(func() {
		databaseConfig := config.Config.Database
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable TimeZone=%s",
			databaseConfig.Host,
			databaseConfig.Username,
			databaseConfig.Password,
			databaseConfig.Name,
			databaseConfig.Port,
			databaseConfig.TimeZone,
		)

		var err error
		db, err = gorm.Open(postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true, // disables implicit prepared statement usage
		}), &gorm.Config{
			QueryFields: true, // QueryFields mode will select by all fields' name for current model
			NamingStrategy: schema.NamingStrategy{
				SingularTable: true,
			},
		})
		if err != nil {
			log.Fatalf("opening database connection: %v", err)
		}

		sqlDB, err := db.DB()
		if err != nil {
			log.Fatalf("accessing database pool: %v", err)
		}

		sqlDB.SetMaxIdleConns(databaseConfig.Pool.IdleConnections)
		sqlDB.SetMaxOpenConns(databaseConfig.Pool.MaxConnections)
		sqlDB.SetConnMaxLifetime(databaseConfig.Pool.ConnLifeTime)
	})

	return db
}
