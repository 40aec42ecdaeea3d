package limiter

import (
	"fmt"
	"strconv"
	"strings"
)

// ParsePeriod 解析 period 字符串，例如 "1m" 返回 (Minute, 1)
func ParsePeriod(period string) (Interval, int, error) {
	// 去除字符串中的空格
	period = strings.TrimSpace(period)

	// 获取数字部分
	var numStr string
	var unitStr string
	for i, char := range period {
		if char >= '0' && char <= '9' {
			numStr += string(char)
		} else {
			unitStr = period[i:]
			break
		}
	}
	num, err := strconv.Atoi(numStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid period %q: %w", period, err)
	}
	interval, err := ParseInterval(unitStr)
	if err != nil {
		return "", 0, err
	}
	return interval, num, nil
}

// ParseInterval 解析时间单位 s/m/h/d，不区分大小写
func ParseInterval(unit string) (Interval, error) {
	switch strings.ToLower(unit) {
	case "s":
		return Second, nil
	case "m":
		return Minute, nil
	case "h":
		return Hour, nil
	case "d":
		return Day, nil
	default:
		return "", fmt.Errorf("unsupported time unit: %s", unit)
	}
}
