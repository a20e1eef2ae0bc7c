package formula

import (
	"fmt"
)

// 校验失败原因代码
const (
	ReasonProhibitedToken = "prohibited_token"
	ReasonMissingVariable = "missing_variable"
	ReasonSyntaxError     = "syntax_error"
	ReasonNonFiniteResult = "non_finite_result"
)

// ValidationError 公式校验错误（携带具体原因，调用方必须原样展示）
type ValidationError struct {
	Reason  string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// probeValue 保存公式时的探针输入
const probeValue = 1.0

// denylist 与代码加载、进程和文件系统访问相关的标识符
// 按完整标识符匹配（大小写不敏感），不会误伤 cos 之类含子串的函数名。
// 这是一道尽力而为的安全网：语法本身已不具备任何代码执行能力。
var denylist = map[string]bool{
	"require":       true,
	"import":        true,
	"eval":          true,
	"exec":          true,
	"execsync":      true,
	"spawn":         true,
	"spawnsync":     true,
	"fork":          true,
	"system":        true,
	"process":       true,
	"child_process": true,
	"fs":            true,
	"os":            true,
	"path":          true,
	"module":        true,
	"function":      true,
	"global":        true,
	"globalthis":    true,
	"this":          true,
	"window":        true,
	"document":      true,
	"constructor":   true,
	"__proto__":     true,
	"prototype":     true,
}

// Validate 校验单变量换算公式
// 检查顺序：
// 1. 禁用标识符（代码加载/进程/文件系统命名空间）
// 2. 必须出现变量 x（否则公式不依赖输入，几乎肯定是配置错误）
// 3. 语法解析
// 4. 以 x=1.0 探针求值，结果必须是有限实数
// 仅在保存公式时调用；运行期换算复用已验证的公式但仍防御性处理求值失败
func Validate(src string) error {
	hasX := false
	for _, ident := range identifiers(src) {
		if denylist[ident] {
			return &ValidationError{
				Reason:  ReasonProhibitedToken,
				Message: fmt.Sprintf("formula contains prohibited token %q", ident),
			}
		}
		if ident == "x" {
			hasX = true
		}
	}

	if !hasX {
		return &ValidationError{
			Reason:  ReasonMissingVariable,
			Message: "formula must reference the input variable x",
		}
	}

	expr, err := Parse(src)
	if err != nil {
		return &ValidationError{
			Reason:  ReasonSyntaxError,
			Message: fmt.Sprintf("formula syntax error: %v", err),
		}
	}

	if _, err := expr.Eval(probeValue); err != nil {
		return &ValidationError{
			Reason:  ReasonNonFiniteResult,
			Message: fmt.Sprintf("formula does not yield a finite number at x=%v: %v", probeValue, err),
		}
	}

	return nil
}
