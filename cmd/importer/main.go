package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/sysu-ecnc-dev/av-dispatch/backend/internal/cache"
	"github.com/sysu-ecnc-dev/av-dispatch/backend/internal/config"
	"github.com/sysu-ecnc-dev/av-dispatch/backend/internal/dispatch"
	"github.com/sysu-ecnc-dev/av-dispatch/backend/internal/importer"
	"github.com/sysu-ecnc-dev/av-dispatch/backend/internal/mailqueue"
	"github.com/sysu-ecnc-dev/av-dispatch/backend/internal/repository"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	var once bool
	flag.BoolVar(&once, "once", false, "只执行一次导入然后退出")
	flag.Parse()

	/**********************************************
	 * 创建 logger
	 **********************************************/
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	/**********************************************
	 * 加载配置
	 **********************************************/
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法加载配置文件", "error", err)
		return
	}

	loc, err := time.LoadLocation(cfg.Importer.Timezone)
	if err != nil {
		logger.Error("无法加载时区", "timezone", cfg.Importer.Timezone, "error", err)
		return
	}

	sources, err := importer.LoadSources(cfg.Importer.SourcesFile)
	if err != nil {
		logger.Error("无法读取订阅源", "file", cfg.Importer.SourcesFile, "error", err)
		return
	}

	/**********************************************
	 * 连接数据库
	 **********************************************/
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("无法创建数据库连接池", "error", err)
		return
	}
	defer dbpool.Close()

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	if err := dbpool.PingContext(ctx); err != nil {
		logger.Error("无法连接到数据库", "error", err)
		return
	}

	repo := repository.NewRepository(cfg, dbpool)

	/**********************************************
	 * 连接 redis 和 rabbitmq
	 **********************************************/
	rdb := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password:    cfg.Redis.Password,
		DB:          0,
		DialTimeout: time.Duration(cfg.Redis.ConnectTimeout) * time.Second,
	})
	defer rdb.Close()

	conn, err := amqp.Dial(cfg.RabbitMQ.DSN)
	if err != nil {
		logger.Error("无法连接到 rabbitmq", "error", err)
		return
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Error("无法建立通道", "error", err)
		return
	}
	defer ch.Close()

	publisher, err := mailqueue.NewPublisher(ch, time.Duration(cfg.RabbitMQ.PublishTimeout)*time.Second)
	if err != nil {
		logger.Error("无法声明队列", "error", err)
		return
	}

	svc := dispatch.NewService(repo, repo,
		dispatch.WithCache(cache.NewOwnershipCache(rdb, time.Duration(cfg.Ownership.CacheTTL)*time.Second)),
		dispatch.WithHandOffAlerts(repo, publisher, cache.NewAlertDeduper(rdb, time.Duration(cfg.Ownership.AlertExpiration)*time.Second)),
	)

	im := importer.NewImporter(
		sources,
		importer.NewFetcher(time.Duration(cfg.Importer.FetchTimeout)*time.Second),
		repo,
		svc,
		cfg.Importer.HorizonDays,
		loc,
	)

	if once {
		im.Run(context.Background())
		return
	}

	/**********************************************
	 * 定时任务
	 **********************************************/
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
	)

	if _, err := c.AddFunc(cfg.Importer.ImportCron, func() {
		im.Run(context.Background())
	}); err != nil {
		logger.Error("无效的导入周期", "cron", cfg.Importer.ImportCron, "error", err)
		return
	}

	// 每天提醒第二天需要交接的值班员
	if _, err := c.AddFunc(cfg.Importer.AlertCron, func() {
		tomorrow := time.Now().In(loc).AddDate(0, 0, 1).Format(time.DateOnly)
		sent, err := svc.NotifyHandOffs(context.Background(), tomorrow)
		if err != nil {
			logger.Error("发送交接提醒失败", "date", tomorrow, "error", err)
			return
		}
		logger.Info("已发送交接提醒", "date", tomorrow, "sent", sent)
	}); err != nil {
		logger.Error("无效的提醒周期", "cron", cfg.Importer.AlertCron, "error", err)
		return
	}

	// 启动时先导入一次
	im.Run(context.Background())

	c.Start()
	logger.Info("importer 已启动", "sources", len(sources), "importCron", cfg.Importer.ImportCron, "alertCron", cfg.Importer.AlertCron)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("正在关闭 importer...")
	<-c.Stop().Done()
	logger.Info("importer 已成功关闭")
}
