package repository

import (
	"fmt"
	"sync/atomic"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	qt "github.com/frankban/quicktest"
)

var testDBCounter int64

// newTestDB opens an isolated in-memory database with the full schema. The
// shared cache keeps every pooled connection on the same database, the unique
// name isolates tests from each other.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	c := qt.New(t)

	dsn := fmt.Sprintf("file:repotest%d?mode=memory&cache=shared", atomic.AddInt64(&testDBCounter, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true,
		},
	})
	c.Assert(err, qt.IsNil)

	err = db.AutoMigrate(&ListingModel{}, &ImageModel{}, &EmbeddingModel{})
	c.Assert(err, qt.IsNil)

	return db
}

func newTestRepository(t *testing.T) (Repository, *gorm.DB) {
	db := newTestDB(t)
	return NewRepository(db), db
}
