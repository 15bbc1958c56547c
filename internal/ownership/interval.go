package ownership

import (
	"time"

	"github.com/sysu-ecnc-dev/av-dispatch/backend/internal/utils"
)

// interval 为左闭右开区间 [start, end)，单位为距离当天零点的时长
type interval struct {
	start time.Duration
	end   time.Duration
}

// parseInterval 解析开始和结束时间，任一为空、格式错误或结束不晚于开始时返回 false
func parseInterval(startTime, endTime string) (interval, bool) {
	start, err := utils.ParseClock(startTime)
	if err != nil {
		return interval{}, false
	}
	end, err := utils.ParseClock(endTime)
	if err != nil {
		return interval{}, false
	}
	if end <= start {
		return interval{}, false
	}
	return interval{start: start, end: end}, true
}

// overlaps 判断两个区间是否相交，首尾相接不算相交
func (i interval) overlaps(o interval) bool {
	return i.start < o.end && i.end > o.start
}

// contains 判断某个时刻是否落在区间内
func (i interval) contains(t time.Duration) bool {
	return i.start <= t && t < i.end
}
