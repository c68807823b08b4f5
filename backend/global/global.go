package global

import (
	"drive-eval/backend/config"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

var (
	Config *config.Config
	Logger = zerolog.Nop()
	Mdb    *gorm.DB
	Rdb    *redis.Client
)
