package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"chatapp-client/client"
	"chatapp-client/events"
	"chatapp-client/gateway"
	"chatapp-client/models"
	"chatapp-client/rest"
)

type ConfigFile struct {
	Host              string
	ApiPath           string
	Token             string
	MessageQueryLimit int
}

func setupLogger() (*zap.SugaredLogger, error) {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{"bot.log", "stdout"}
	config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	logger, err := config.Build()
	if err != nil {
		return nil, err
	}

	sugar := logger.Sugar()
	defer logger.Sync()

	return sugar, nil
}

func readConfigFile() (ConfigFile, error) {
	var cfg ConfigFile

	configFile, err := os.Open("config.json")
	if err != nil {
		return cfg, err
	}
	defer configFile.Close()

	bytes, err := io.ReadAll(configFile)
	if err != nil {
		return cfg, err
	}

	err = json.Unmarshal(bytes, &cfg)
	if err != nil {
		return cfg, err
	}
	return cfg, nil
}

func main() {
	fmt.Println("Setting up logger...")
	sugar, err := setupLogger()
	if err != nil {
		fmt.Println(err)
		return
	}

	fmt.Println("Reading config file...")
	cfg, err := readConfigFile()
	if err != nil {
		sugar.Fatal(err)
	}

	c, err := client.New(client.Config{
		Host:              cfg.Host,
		APIPath:           cfg.ApiPath,
		Token:             cfg.Token,
		MessageQueryLimit: cfg.MessageQueryLimit,
	}, rest.NewClient(cfg.Host, cfg.ApiPath, cfg.Token, sugar), gateway.New(cfg.Host, cfg.Token, sugar), sugar)
	if err != nil {
		sugar.Fatal(err)
	}

	c.Once(events.Ready, func(payload any) {
		me := payload.(*models.ClientUser)
		sugar.Infof("Logged in as %s (%s), %d servers cached", me.Username, me.ID, len(me.ServerIDs))
	})

	c.On(events.MessageCreate, func(payload any) {
		msg := payload.(*models.Message)
		if msg.Author != nil && c.Me() != nil && msg.AuthorID == c.Me().ID {
			return
		}
		sugar.Infof("[%s] %s: %s", msg.ChannelID, authorName(msg), msg.Content)

		if strings.HasPrefix(msg.Content, "!ping") {
			if _, err := c.SendMessage(context.Background(), msg.ChannelID, "pong"); err != nil {
				sugar.Errorf("replying in %s: %v", msg.ChannelID, err)
			}
		}
	})

	fmt.Println("Connecting...")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := c.Start(ctx); err != nil {
		sugar.Fatal(err)
	}

	<-ctx.Done()

	stats := c.Stats()
	sugar.Infof("Shutting down, %d dropped notifications, %d unresolved references", stats.DroppedNotifications, stats.UnresolvedRefs)
	if err := c.Close(); err != nil {
		sugar.Error(err)
	}
}

func authorName(msg *models.Message) string {
	if msg.Member != nil {
		return msg.Member.DisplayName()
	}
	if msg.Author != nil {
		return msg.Author.Username
	}
	return msg.AuthorID
}
