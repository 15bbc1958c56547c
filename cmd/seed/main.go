package main

import (
	"context"
	"database/sql"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/sysu-ecnc-dev/av-dispatch/backend/internal/config"
	"github.com/sysu-ecnc-dev/av-dispatch/backend/internal/domain"
	"github.com/sysu-ecnc-dev/av-dispatch/backend/internal/repository"
	"github.com/sysu-ecnc-dev/av-dispatch/backend/internal/seed"
	"github.com/sysu-ecnc-dev/av-dispatch/backend/internal/utils"
	"golang.org/x/crypto/bcrypt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var defaultRooms = []string{"A101", "A102", "A103", "B201", "B202", "C301"}

func main() {
	var op int
	var n int
	var from string
	var days int

	flag.IntVar(&op, "op", 0, "要执行的操作 (1: 插入随机用户, 2: 插入随机班次, 3: 导入值班表)")
	flag.IntVar(&n, "n", 5, "要插入的用户数量")
	flag.StringVar(&from, "from", time.Now().Format(time.DateOnly), "随机班次的起始日期")
	flag.IntVar(&days, "days", 7, "随机班次覆盖的天数")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 读取配置文件
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 创建数据库连接池
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

	// sql.Open 只是创建数据库连接池对象，并不会立即连接到数据库，因此需要显式地 ping 一下
	if err := dbpool.PingContext(ctx); err != nil {
		logger.Error("无法连接到数据库", "error", err)
		return
	}

	// 创建 repository
	repo := repository.NewRepository(cfg, dbpool)

	// 执行操作
	switch op {
	case 0:
		slog.Error("未指定操作")
	case 1:
		if n <= 0 {
			slog.Error("请输入合法的用户数量")
			return
		}

		cnt := 0
		for i := 0; i < n; i++ {
			user, err := utils.GenerateRandomUser(cfg.Seed.User.Password, cfg.Email.UserDomain)
			if err != nil {
				slog.Error("无法生成随机用户", slog.String("error", err.Error()))
				continue
			}

			if err := repo.CreateUser(user); err != nil {
				slog.Error("无法插入用户", slog.String("error", err.Error()))
				continue
			}

			cnt++
		}

		slog.Info("插入用户成功", slog.Int("count", cnt))
	case 2:
		start, err := utils.ParseDate(from)
		if err != nil || days <= 0 {
			slog.Error("请输入合法的起始日期和天数")
			return
		}

		users, err := repo.GetAllUsers()
		if err != nil {
			slog.Error("无法获取所有用户", slog.String("error", err.Error()))
			return
		}

		// 只给在职的值班员排班
		userIDs := make([]int64, 0)
		for _, user := range users {
			if user.IsActive && user.Role == domain.RoleStaff {
				userIDs = append(userIDs, user.ID)
			}
		}
		if len(userIDs) == 0 {
			slog.Error("没有可以排班的值班员，请先插入用户")
			return
		}

		cnt := 0
		for i := 0; i < days; i++ {
			date := start.AddDate(0, 0, i).Format(time.DateOnly)
			for _, block := range utils.GenerateRandomShiftBlocks(date, userIDs, defaultRooms) {
				if err := repo.CreateShiftBlock(block); err != nil {
					slog.Error("无法插入班次", slog.String("date", date), slog.String("error", err.Error()))
					continue
				}
				cnt++
			}
		}

		slog.Info("插入班次成功", slog.Int("count", cnt))
	case 3:
		passwordHash, err := bcrypt.GenerateFromPassword([]byte(cfg.Seed.User.Password), bcrypt.DefaultCost)
		if err != nil {
			slog.Error("无法生成密码哈希", slog.String("error", err.Error()))
			return
		}

		inserted, err := seed.SeedRoster(repo, cfg.Seed.RosterFile, string(passwordHash))
		if err != nil {
			slog.Error("导入值班表失败", slog.String("error", err.Error()))
			return
		}

		slog.Info("导入值班表成功", slog.Int("count", inserted))
	default:
		slog.Error("指定的操作非法")
	}
}
