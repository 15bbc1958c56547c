package utils

import (
	"errors"
	"time"
)

const (
	ClockLayout      = "15:04:05"
	ShortClockLayout = "15:04"
)

var ErrEmptyClock = errors.New("时间为空")

// ParseClock 将 15:04:05 或 15:04 格式的时间解析为距离当天零点的时长
func ParseClock(s string) (time.Duration, error) {
	if s == "" {
		return 0, ErrEmptyClock
	}

	t, err := time.Parse(ClockLayout, s)
	if err != nil {
		t, err = time.Parse(ShortClockLayout, s)
		if err != nil {
			return 0, err
		}
	}

	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second, nil
}

// FormatClock 将距离零点的时长格式化为 15:04:05
func FormatClock(d time.Duration) string {
	return time.Time{}.Add(d).Format(ClockLayout)
}

// FormatShortClock 将距离零点的时长格式化为 15:04，秒数直接舍去
func FormatShortClock(d time.Duration) string {
	return time.Time{}.Add(d).Format(ShortClockLayout)
}

// NormalizeClock 统一时间的格式为 15:04:05
func NormalizeClock(s string) (string, error) {
	d, err := ParseClock(s)
	if err != nil {
		return "", err
	}
	return FormatClock(d), nil
}

func ParseDate(s string) (time.Time, error) {
	return time.Parse(time.DateOnly, s)
}

// WeekOf 返回某个日期是星期几（周一为 1，周日为 7）以及该周周一的日期
func WeekOf(date string) (int32, string, error) {
	d, err := ParseDate(date)
	if err != nil {
		return 0, "", err
	}

	dayOfWeek := int32(d.Weekday())
	if dayOfWeek == 0 {
		dayOfWeek = 7
	}

	weekStart := d.AddDate(0, 0, -int(dayOfWeek-1))
	return dayOfWeek, weekStart.Format(time.DateOnly), nil
}
