package db

import (
	"log"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/chat-bankrot/community-chat/internal/chat"
	"github.com/chat-bankrot/community-chat/internal/models"
	"github.com/chat-bankrot/community-chat/internal/support"
)

// Connect opens the database and runs migrations. A DSN containing
// "file:" or ending in ".db" selects sqlite, anything else is MySQL.
func Connect(dsn string) *gorm.DB {
	var dialector gorm.Dialector
	if strings.Contains(dsn, "file:") || strings.HasSuffix(dsn, ".db") {
		dialector = sqlite.Open(dsn)
	} else {
		dialector = mysql.Open(dsn)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}

	if err := gdb.AutoMigrate(
		&models.Subscription{},
		&models.PaymentOrder{},
		&chat.Message{},
		&chat.Reaction{},
		&support.Ticket{},
		&support.Message{},
		&support.Reaction{},
	); err != nil {
		log.Fatalf("db migrate: %v", err)
	}

	return gdb
}
