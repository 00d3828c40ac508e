// devtoken 确保本地数据库里存在指定用户，并签发一个访问令牌，便于在没有外部身份服务时调试接口。
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"directchat/internal/auth"
	"directchat/internal/config"
	"directchat/internal/db"
	clog "directchat/internal/log"
	"directchat/internal/store"

	"github.com/rs/zerolog/log"
)

func main() {
	username := flag.String("username", "", "username to issue a token for")
	guest := flag.Bool("guest", false, "create the user as a guest account")
	ttl := flag.Int("ttl", 0, "token lifetime in minutes, defaults to ACCESS_TOKEN_TTL_MINUTES")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	clog.Init(cfg.Env, cfg.LogLevel)
	if *username == "" {
		flag.Usage()
		os.Exit(2)
	}
	if *ttl <= 0 {
		*ttl = cfg.AccessTokenTTLMinutes
	}

	gdb, err := db.Connect(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatal().Err(err).Msg("db migrate")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	user, err := store.NewGormStore(gdb).UpsertUser(ctx, *username, *guest)
	if err != nil {
		log.Fatal().Err(err).Str("username", *username).Msg("upsert user")
	}
	token, err := auth.GenerateAccessToken(user.ID, cfg.JWTSecret, *ttl)
	if err != nil {
		log.Fatal().Err(err).Msg("sign token")
	}

	fmt.Printf("user_id:  %s\n", user.ID)
	fmt.Printf("username: %s\n", user.Username)
	fmt.Printf("token:    %s\n", token)
}
