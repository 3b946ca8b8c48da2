package policy

/********** 动作定义（scope → group → action → detail） **********/

type ActionType string

const (
	TypeBool ActionType = "bool"
	TypeStr  ActionType = "str"
	TypeInt  ActionType = "int"
	TypeText ActionType = "text"
)

type ActionDetail struct {
	Type  ActionType `json:"type"`
	Desc  string     `json:"desc"`
	Value []string   `json:"value,omitempty"` // 可选值白名单；空表示自由填写
}

// 条件区段（condition 的第一列）
var ConditionSections = []string{
	"userinfo",
	"token",
	"tokeninfo",
	"HTTP Request header",
	"HTTP Environment",
}

// 条件比较器
var Comparators = []string{
	"equals", "!equals",
	"contains", "!contains",
	"matches", "!matches",
	"in", "!in",
	"<", ">",
}

// 条件数据缺失时的处理方式
var MissingDataHandling = []string{
	"raise_error",
	"condition_is_true",
	"condition_is_false",
}

// 静态目录。handler 只读它，绝不写。
var defs = map[string]map[string]map[string]ActionDetail{
	"authentication": {
		"otp_pin": {
			"otppin": {Type: TypeStr, Desc: "Either use the token PIN, the userstore password or no fixed password component.",
				Value: []string{"userstore", "token", "none"}},
			"otppin_case_insensitive": {Type: TypeBool, Desc: "Compare the OTP PIN case insensitive."},
		},
		"failcounter": {
			"maxfail":              {Type: TypeInt, Desc: "Lock the token after this many failed authentication attempts."},
			"reset_all_user_tokens": {Type: TypeBool, Desc: "A successful authentication resets the fail counter of all tokens of the user."},
		},
		"challenge": {
			"challenge_response":      {Type: TypeStr, Desc: "Comma separated list of token types that may do challenge response."},
			"challenge_validity_time": {Type: TypeInt, Desc: "Seconds a challenge stays valid."},
		},
		"miscellaneous": {
			"passthru":        {Type: TypeStr, Desc: "Let a user without token authenticate against the userstore or a RADIUS server.", Value: []string{"userstore", "radius"}},
			"mangle":          {Type: TypeText, Desc: "Mangle the authentication request before processing."},
			"auth_cache":      {Type: TypeStr, Desc: "Cache successful authentications for the given duration, e.g. 4h."},
			"otppin_min_len":  {Type: TypeInt, Desc: "Minimum length of the OTP PIN."},
		},
	},
	"authorization": {
		"token": {
			"tokentype": {Type: TypeStr, Desc: "Only tokens of these types may authenticate (comma separated)."},
			"serial":    {Type: TypeStr, Desc: "Only tokens with serials matching this regex may authenticate."},
		},
		"realm": {
			"setrealm": {Type: TypeStr, Desc: "Rewrite the realm of the authentication request to this realm."},
		},
		"response": {
			"no_detail_on_success": {Type: TypeBool, Desc: "Strip the detail section from successful authentication responses."},
			"no_detail_on_fail":    {Type: TypeBool, Desc: "Strip the detail section from failed authentication responses."},
			"add_user_in_response": {Type: TypeBool, Desc: "Add the user resolver information to the response."},
		},
	},
	"admin": {
		"token": {
			"init":     {Type: TypeBool, Desc: "The administrator may enroll new tokens."},
			"enable":   {Type: TypeBool, Desc: "The administrator may enable tokens."},
			"disable":  {Type: TypeBool, Desc: "The administrator may disable tokens."},
			"delete":   {Type: TypeBool, Desc: "The administrator may delete tokens."},
			"reset":    {Type: TypeBool, Desc: "The administrator may reset fail counters."},
			"assign":   {Type: TypeBool, Desc: "The administrator may assign tokens to users."},
			"unassign": {Type: TypeBool, Desc: "The administrator may unassign tokens from users."},
		},
		"policy": {
			"policyread":   {Type: TypeBool, Desc: "The administrator may read policies."},
			"policywrite":  {Type: TypeBool, Desc: "The administrator may create and modify policies."},
			"policydelete": {Type: TypeBool, Desc: "The administrator may delete policies."},
		},
		"system": {
			"auditlog":    {Type: TypeBool, Desc: "The administrator may view the audit log."},
			"configwrite": {Type: TypeBool, Desc: "The administrator may write the system configuration."},
		},
		"container": {
			"container_create": {Type: TypeBool, Desc: "The administrator may create containers."},
			"container_delete": {Type: TypeBool, Desc: "The administrator may delete containers."},
		},
	},
	"user": {
		"token": {
			"enroll":  {Type: TypeBool, Desc: "The user may enroll tokens."},
			"delete":  {Type: TypeBool, Desc: "The user may delete own tokens."},
			"disable": {Type: TypeBool, Desc: "The user may disable own tokens."},
			"enable":  {Type: TypeBool, Desc: "The user may enable own tokens."},
			"resync":  {Type: TypeBool, Desc: "The user may resynchronize own tokens."},
			"setpin":  {Type: TypeBool, Desc: "The user may set the PIN of own tokens."},
		},
	},
	"enrollment": {
		"token": {
			"tokenlabel":  {Type: TypeStr, Desc: "Label template for enrolled tokens, e.g. {user}@{realm}."},
			"tokenissuer": {Type: TypeStr, Desc: "Issuer written into the enrollment QR code."},
			"maxtoken":    {Type: TypeInt, Desc: "Maximum number of tokens a user may have assigned."},
		},
		"pin": {
			"otp_pin_random":   {Type: TypeInt, Desc: "Set a random OTP PIN of this length during enrollment."},
			"encrypt_pin":      {Type: TypeBool, Desc: "Encrypt the OTP PIN instead of hashing it."},
			"registration_len": {Type: TypeInt, Desc: "Length of generated registration codes.", Value: []string{"8", "12", "16", "24"}},
		},
	},
	"webui": {
		"appearance": {
			"logout_time":       {Type: TypeInt, Desc: "Seconds of inactivity until the session is closed."},
			"default_tokentype": {Type: TypeStr, Desc: "Token type preselected in the enrollment dialog.", Value: []string{"hotp", "totp", "spass"}},
			"login_mode":        {Type: TypeStr, Desc: "Validate the login against the userstore or remote endpoint.", Value: []string{"userstore", "remote", "disable"}},
			"hide_welcome_info": {Type: TypeBool, Desc: "Hide the welcome box on the dashboard."},
		},
		"token_settings": {
			"timestep": {Type: TypeInt, Desc: "Time step of enrolled TOTP tokens.", Value: []string{"30", "60"}},
		},
	},
}
