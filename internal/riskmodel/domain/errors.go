package domain

import "fmt"

// InsufficientHistoryError 表示对齐后的历史样本数不足以支撑统计计算
type InsufficientHistoryError struct {
	Symbol       string
	Observations int
	Required     int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient history for %q: %d observations, need at least %d",
		e.Symbol, e.Observations, e.Required)
}

// NonPositiveSemidefiniteError 表示协方差矩阵在有限次对角修正后仍不可 Cholesky 分解
// 通常意味着输入序列退化（如重复标的）
type NonPositiveSemidefiniteError struct {
	Attempts int
}

func (e *NonPositiveSemidefiniteError) Error() string {
	return fmt.Sprintf("covariance matrix is not positive semidefinite after %d jitter attempts", e.Attempts)
}

// ModelDivergenceError 表示模型拟合结果违反了参数约束（平稳性、非负性）
// 仅影响单个模型，批量执行时不会中断其他模型
type ModelDivergenceError struct {
	Model  string
	Reason string
}

func (e *ModelDivergenceError) Error() string {
	return fmt.Sprintf("model %s diverged: %s", e.Model, e.Reason)
}
