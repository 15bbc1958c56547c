package utils

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/mozillazg/go-pinyin"
	"github.com/sysu-ecnc-dev/av-dispatch/backend/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

var commonSurnames = []string{
	"王", "李", "张", "刘", "陈", "杨", "赵", "黄", "周", "吴",
	"徐", "孙", "胡", "朱", "高", "林", "何", "郭", "马", "罗",
}
var commonNameCharacters = []string{
	"伟", "强", "芳", "敏", "静", "丽", "刚", "杰", "娟", "勇",
	"艳", "涛", "明", "军", "磊", "洋", "勇", "霞", "飞", "玲",
	"超", "华", "平", "辉", "梅", "鑫", "龙", "鹏", "玉", "斌",
	"庆", "建", "丹", "彬", "凤", "旭", "宁", "乐", "成", "欣",
}

func GenerateRandomChineseName() string {
	surname := commonSurnames[rand.Intn(len(commonSurnames))]
	nameLength := rand.Intn(2) + 1
	name := ""

	for i := 0; i < nameLength; i++ {
		name += commonNameCharacters[rand.Intn(len(commonNameCharacters))]
	}
	return surname + name
}

// 值班员占多数，调度员和管理员较少
var roles = []domain.Role{
	domain.RoleStaff,
	domain.RoleStaff,
	domain.RoleStaff,
	domain.RoleDispatcher,
	domain.RoleAdmin,
}

func GenerateRandomRole() domain.Role {
	return roles[rand.Intn(len(roles))]
}

var digits = "0123456789"

func GenerateUsernameFromChineseName(chineseName string) string {
	pinyinArray := pinyin.LazyConvert(chineseName, nil)
	username := ""

	for _, py := range pinyinArray {
		length := rand.Intn(len(py)) + 1
		username += py[:length]
	}

	digitsLength := rand.Intn(3) + 1
	for i := 0; i < digitsLength; i++ {
		username += string(digits[rand.Intn(len(digits))])
	}

	return username
}

func GenerateRandomUser(password string, emailDomainName string) (*domain.User, error) {
	fullName := GenerateRandomChineseName()
	username := GenerateUsernameFromChineseName(fullName)
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Username:     username,
		PasswordHash: string(passwordHash),
		FullName:     fullName,
		Email:        username + "@" + emailDomainName,
		Role:         GenerateRandomRole(),
	}

	return user, nil
}

func GenerateRandomOTP() string {
	return fmt.Sprintf("%06d", rand.Intn(1000000))
}

var letters = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*")

func GenerateRandomPassword(length int) string {
	randomPassword := make([]rune, length)
	for i := range randomPassword {
		randomPassword[i] = letters[rand.Intn(len(letters))]
	}
	return string(randomPassword)
}

// 使用 Fisher-Yates 洗牌算法来生成一个随机子集
func GenerateRandomSubset[T any](arr []T) []T {
	arrCopy := append([]T{}, arr...) // 复制数组，避免修改原数组

	for i := 0; i < len(arrCopy)-1; i++ {
		j := rand.Intn(len(arrCopy)-i) + i
		arrCopy[i], arrCopy[j] = arrCopy[j], arrCopy[i]
	}

	l := rand.Intn(len(arrCopy)) + 1
	return arrCopy[:l]
}

// GenerateRandomShiftBlocks 为某一天生成首尾相接、覆盖 08:00 到 22:00 的随机班次，
// 每个班次把 rooms 随机分给 userIDs 中的部分值班员
func GenerateRandomShiftBlocks(date string, userIDs []int64, rooms []string) []*domain.ShiftBlock {
	if len(userIDs) == 0 || len(rooms) == 0 {
		return nil
	}

	blocks := make([]*domain.ShiftBlock, 0)
	start := 8 * time.Hour
	dayEnd := 22 * time.Hour

	for start < dayEnd {
		// 班次长度为 2~4 小时，以半小时为单位
		length := time.Duration(rand.Intn(5)+4) * 30 * time.Minute
		end := min(start+length, dayEnd)

		block := &domain.ShiftBlock{
			Date:        date,
			StartTime:   FormatClock(start),
			EndTime:     FormatClock(end),
			Assignments: make([]domain.ShiftBlockAssignment, 0),
		}

		// 打乱教室顺序后轮流分给随机选出的值班员
		users := GenerateRandomSubset(userIDs)
		shuffledRooms := append([]string{}, rooms...)
		rand.Shuffle(len(shuffledRooms), func(i, j int) {
			shuffledRooms[i], shuffledRooms[j] = shuffledRooms[j], shuffledRooms[i]
		})

		roomsByUser := make(map[int64][]string)
		for i, room := range shuffledRooms {
			userID := users[i%len(users)]
			roomsByUser[userID] = append(roomsByUser[userID], room)
		}
		for _, userID := range users {
			if len(roomsByUser[userID]) == 0 {
				continue
			}
			block.Assignments = append(block.Assignments, domain.ShiftBlockAssignment{
				UserID: userID,
				Rooms:  roomsByUser[userID],
			})
		}

		blocks = append(blocks, block)
		start = end
	}

	return blocks
}
