package listview

import (
	"sort"
	"strconv"
	"strings"
)

/********** 列表查询（过滤 / 排序 / 分页，纯内存） **********/

// 行：列名 → 显示值。查询只看字符串，不关心来源。
type Row map[string]string

// 查询语法："key:value key2:value2 自由文本"
//   - key:value 命中具体列
//   - 其余 token 是自由文本，命中任意被索引的列
type Query struct {
	Free  []string
	Terms map[string]string
}

func ParseQuery(s string) Query {
	q := Query{Terms: map[string]string{}}
	for _, tok := range strings.Fields(s) {
		if i := strings.IndexByte(tok, ':'); i > 0 && i < len(tok)-1 {
			q.Terms[strings.ToLower(tok[:i])] = tok[i+1:]
			continue
		}
		q.Free = append(q.Free, tok)
	}
	return q
}

// Apply：cols 是参与自由文本匹配的列；所有匹配都大小写不敏感子串。
// priority 列支持比较表达式（见 MatchPriority）。
func Apply(rows []Row, cols []string, q Query) []Row {
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if rowMatches(r, cols, q) {
			out = append(out, r)
		}
	}
	return out
}

func rowMatches(r Row, cols []string, q Query) bool {
	for key, want := range q.Terms {
		if key == "priority" {
			n, err := strconv.Atoi(strings.TrimSpace(r[key]))
			if err != nil {
				return false
			}
			if !MatchPriority(want, n) {
				return false
			}
			continue
		}
		if !containsFold(r[key], want) {
			return false
		}
	}
	for _, free := range q.Free {
		hit := false
		for _, c := range cols {
			if containsFold(r[c], free) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

// MatchPriority 支持 >=, <=, >, <, !=, =, 裸整数，以及闭区间 min-max。
// 解析不了的表达式放行（fail open）：宁可多显示也不凭空吞行。
func MatchPriority(expr string, v int) bool {
	e := strings.TrimSpace(expr)
	switch {
	case strings.HasPrefix(e, ">="):
		n, err := strconv.Atoi(strings.TrimSpace(e[2:]))
		return err != nil || v >= n
	case strings.HasPrefix(e, "<="):
		n, err := strconv.Atoi(strings.TrimSpace(e[2:]))
		return err != nil || v <= n
	case strings.HasPrefix(e, "!="):
		n, err := strconv.Atoi(strings.TrimSpace(e[2:]))
		return err != nil || v != n
	case strings.HasPrefix(e, ">"):
		n, err := strconv.Atoi(strings.TrimSpace(e[1:]))
		return err != nil || v > n
	case strings.HasPrefix(e, "<"):
		n, err := strconv.Atoi(strings.TrimSpace(e[1:]))
		return err != nil || v < n
	case strings.HasPrefix(e, "="):
		n, err := strconv.Atoi(strings.TrimSpace(e[1:]))
		return err != nil || v == n
	}
	// 闭区间 min-max
	if i := strings.IndexByte(e, '-'); i > 0 {
		lo, err1 := strconv.Atoi(strings.TrimSpace(e[:i]))
		hi, err2 := strconv.Atoi(strings.TrimSpace(e[i+1:]))
		if err1 != nil || err2 != nil {
			return true
		}
		return v >= lo && v <= hi
	}
	// 裸整数
	if n, err := strconv.Atoi(e); err == nil {
		return v == n
	}
	return true
}

// Sort 三态：asc / desc / 其它（保持原顺序）。稳定排序；
// 两边都是整数按数值比，否则按字符串比。
func Sort(rows []Row, key, dir string) {
	var asc bool
	switch strings.ToLower(strings.TrimSpace(dir)) {
	case "asc":
		asc = true
	case "desc":
		asc = false
	default:
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i][key], rows[j][key]
		if na, errA := strconv.Atoi(a); errA == nil {
			if nb, errB := strconv.Atoi(b); errB == nil {
				if asc {
					return na < nb
				}
				return na > nb
			}
		}
		if asc {
			return a < b
		}
		return a > b
	})
}

// Page：1 基页码；越界返回空切片
func Page(rows []Row, page, size int) []Row {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 10
	}
	lo := (page - 1) * size
	if lo >= len(rows) {
		return []Row{}
	}
	hi := lo + size
	if hi > len(rows) {
		hi = len(rows)
	}
	return rows[lo:hi]
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
