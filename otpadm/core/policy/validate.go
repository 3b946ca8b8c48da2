package policy

import (
	"net/netip"
	"regexp"
	"strings"

	"golang.org/x/net/idna"
)

/********** 环境条件校验（纯函数，无 I/O） **********/

// "Mon-Fri: 9-18" / "Sat-Sun: 0-23, Mon: 8-17"；小时 0-23
var timeRe = regexp.MustCompile(
	`^((Mon|Tue|Wed|Thu|Fri|Sat|Sun)(-(Mon|Tue|Wed|Thu|Fri|Sat|Sun))?:\s([0-1]?[0-9]|2[0-3])-([0-1]?[0-9]|2[0-3])(,\s)?)+$`)

// 主机名标签（ASCII 化之后再查）；要求至少两段，裸标签不算主机名
var hostRe = regexp.MustCompile(`^([a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?$`)

// ValidTime：空串合法（不限时）
func ValidTime(s string) bool {
	if s == "" {
		return true
	}
	return timeRe.MatchString(s)
}

// ValidClients：逗号拆分，trim，丢空项；每项可带前导 "!"（排除），
// 其余须是 IPv4/IPv6 地址、CIDR（v4 前缀 0-32，v6 前缀 0-128）或主机名
// （经 IDNA 归一化）。返回非法条目列表；空串合法。
func ValidClients(s string) (bad []string) {
	for _, raw := range strings.Split(s, ",") {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		host := strings.TrimPrefix(entry, "!")
		if host == "" || !validClientEntry(host) {
			bad = append(bad, entry)
		}
	}
	return bad
}

func validClientEntry(host string) bool {
	if _, err := netip.ParseAddr(host); err == nil {
		return true
	}
	if _, err := netip.ParsePrefix(host); err == nil {
		return true
	}
	// 纯数字加点只可能是写坏的 IPv4，不当主机名处理
	if strings.IndexFunc(host, func(r rune) bool { return r != '.' && (r < '0' || r > '9') }) < 0 {
		return false
	}
	// 主机名：先 IDNA 归一化，再做标签检查
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return false
	}
	return hostRe.MatchString(ascii)
}

// ValidUserAgent：user agent 条目逗号拼接入库，单项不允许内嵌逗号
func ValidUserAgent(s string) bool {
	return !strings.Contains(s, ",")
}
