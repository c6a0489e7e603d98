package xe

import (
	"errors"
	"fmt"

	"github.com/go-orz/orz"
)

var (
	ErrInvalidParams    = orz.NewError(10400, "参数无效")
	ErrAccountNotFound  = orz.NewError(10404, "账户不存在")
	ErrAccountNameUsed  = orz.NewError(10000, "账户名称已被使用")
	ErrCycleInProgress  = orz.NewError(10001, "该账户有交易周期正在执行")
	ErrLLMNotConfigured = orz.NewError(10002, "账户的模型配置不完整")
)

// 决策周期内部错误分类。结算与执行代码用 errors.Is 判断类别，
// 决定周期是以 Rejected 还是 Failed 收尾。
var (
	ErrTransient      = errors.New("transient")       // 瞬时故障，可重试
	ErrValidation     = errors.New("validation")      // 决策不满足约束，拒绝但周期正常完成
	ErrLedgerConflict = errors.New("ledger conflict") // 账本版本冲突，整个周期失败
	ErrConfiguration  = errors.New("configuration")   // 配置缺失或无效，不重试
)

func Transient(err error) error {
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func LedgerConflict(accountID string) error {
	return fmt.Errorf("%w: account %s version mismatch", ErrLedgerConflict, accountID)
}

func Configuration(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}
