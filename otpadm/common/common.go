package common

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

const AESKey = "8ocguXJRslUM1njyCmpV5YUvIH5Ma01mBObj9RpyJRM"

const PK = "Hk_NBtK2-aYHFclhGY0WpttNY2Mm_fH5Wr2krE-scjg"

const AAD = "otpadm|subscription|v1"

type SubscriptionCfg struct {
	Admin       bool      `json:"admin"`
	Audit       bool      `json:"audit"`
	Container   bool      `json:"container"`
	RunTime     time.Time `json:"run_time"`     // 超过该时间不可用
	MachineCode string    `json:"machine_code"` // 订阅绑定的机器码
}

func TimeAndMachineCode(runTime time.Time, machineCode string) (bool, string) {
	if time.Now().After(runTime) {
		return false, "subscription expired"
	}
	// 机器码限制
	want := strings.TrimSpace(machineCode)
	have, _ := StableMachineID()
	if want != "" && !strings.EqualFold(want, have) {
		return false, "subscription not valid for this machine " + have
	}
	return true, ""
}

// 密码比对：SHA256 与 bcrypt 两种摘要都认（老数据只有 SHA256）
func PasswordOK(dbSHA256, dbBcrypt, inputPlain string) bool {
	if dbSHA256 != "" && dbSHA256 == HashUP(inputPlain) {
		return true
	}
	if dbBcrypt != "" {
		if bcrypt.CompareHashAndPassword([]byte(dbBcrypt), []byte(inputPlain)) == nil {
			return true
		}
	}
	return false
}

func StatusOK(s string) bool { return strings.EqualFold(s, "enabled") }

func GetPage(c *gin.Context) (page, size int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ = strconv.Atoi(c.DefaultQuery("pagesize", "10"))
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 200 {
		size = 10
	}
	return
}

func IsAdminID(adminIDs []int, id int64) bool {
	for _, v := range adminIDs {
		if int64(v) == id {
			return true
		}
	}
	return false
}

func GetAuth(c *gin.Context) (uid int64, isAdmin bool) {
	if v, ok := c.Get("uid"); ok {
		switch t := v.(type) {
		case int64:
			uid = t
		case int:
			uid = int64(t)
		}
	}
	if v, ok := c.Get("isAdmin"); ok {
		if b, ok := v.(bool); ok {
			isAdmin = b
		}
	}
	return
}

/* -------------------- 小工具 -------------------- */

// password_sha256 = SHA256(password)
func HashUP(pass string) string {
	sum := sha256.Sum256([]byte(pass))
	return hex.EncodeToString(sum[:])
}

// password_bcrypt：默认 cost
func HashBcrypt(pass string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// readPEMorFile: 若字符串本身包含 "-----BEGIN" 则视为 PEM 内容，否则按路径读取文件
func ReadPEMorFile(s string) ([]byte, error) {
	if looksLikePEM(s) {
		return []byte(s), nil
	}
	// 兼容相对路径
	b, err := os.ReadFile(filepath.Clean(s))
	if err != nil {
		return nil, err
	}
	return b, nil
}

func looksLikePEM(s string) bool {
	// 简单判断：包含 PEM 起始头即可
	return strings.Contains(s, "-----BEGIN ")
}

// 解析逗号分隔的域名/通配符；空串 => 禁用
func ParseGuardList(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// 支持通配符 "*.example.com"；其余精确匹配（大小写不敏感）
func MatchAnyHostPattern(host string, patterns []string) bool {
	host = strings.ToLower(strings.TrimSpace(host))
	for _, pat := range patterns {
		if wildcardMatch(host, pat) {
			return true
		}
	}
	return false
}

func wildcardMatch(host, pattern string) bool {
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	if pattern == "" {
		return false
	}
	// 精确
	if !strings.Contains(pattern, "*") {
		return host == pattern
	}
	// 仅支持前缀通配形式：*.example.com
	if strings.HasPrefix(pattern, "*.") {
		suffix := strings.TrimPrefix(pattern, "*.")
		// host 必须是 suffix 的子域，且多一段以上
		return host == suffix || strings.HasSuffix(host, "."+suffix)
	}
	// 其它复杂通配不支持，退化为相等
	return host == pattern
}

func IsDesktop() bool { // Win/macOS 视为“开发机”
	return runtime.GOOS == "windows" || runtime.GOOS == "darwin"
}

// StableMachineID 返回“尽可能不会变”的设备标识：
// Linux 取 /sys/class/dmi/id/product_uuid
// macOS 取 IOPlatformUUID
// Windows 取注册表 HKLM\SOFTWARE\Microsoft\Cryptography\MachineGuid
// 拿不到就直接返回 error；不做兜底、不做缓存。
func StableMachineID() (string, error) {
	norm := func(s string) string {
		s = strings.TrimSpace(s)
		s = strings.Trim(s, "{}")
		s = strings.ReplaceAll(s, "-", "")
		s = strings.ReplaceAll(s, ":", "")
		return strings.ToUpper(s)
	}

	switch runtime.GOOS {
	case "linux":
		// 硬件级 UUID（主板 SMBIOS）
		paths := []string{
			"/sys/class/dmi/id/product_uuid",
			"/sys/devices/virtual/dmi/id/product_uuid",
		}
		for _, p := range paths {
			if b, err := os.ReadFile(p); err == nil {
				v := strings.TrimSpace(string(b))
				if v != "" && v != "unknown" && v != "None" {
					return norm(v), nil
				}
			}
		}
		return "", fmt.Errorf("no product_uuid")

	case "darwin":
		// macOS: IOPlatformUUID
		out, err := exec.Command("ioreg", "-rd1", "-c", "IOPlatformExpertDevice").Output()
		if err != nil {
			return "", fmt.Errorf("ioreg: %w", err)
		}
		re := regexp.MustCompile(`"IOPlatformUUID"\s*=\s*"([^"]+)"`)
		m := re.FindSubmatch(out)
		if len(m) != 2 {
			return "", fmt.Errorf("IOPlatformUUID not found")
		}
		return norm(string(m[1])), nil

	case "windows":
		// Windows: 注册表 MachineGuid
		out, err := exec.Command("reg", "query", `HKLM\SOFTWARE\Microsoft\Cryptography`, "/v", "MachineGuid").Output()
		if err != nil {
			return "", fmt.Errorf("reg query: %w", err)
		}
		re := regexp.MustCompile(`MachineGuid\s+REG_SZ\s+([A-Fa-f0-9-]+)`)
		m := re.FindSubmatch(out)
		if len(m) != 2 {
			return "", fmt.Errorf("MachineGuid not found")
		}
		return norm(string(m[1])), nil

	default:
		return "", fmt.Errorf("unsupported os: %s", runtime.GOOS)
	}
}
