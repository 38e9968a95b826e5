package domain

// BatchResult 批量操作统一结果，Errors 与失败项一一对应且保持顺序
type BatchResult struct {
	Total   int      `json:"total"`
	Success int      `json:"success"`
	Failed  int      `json:"failed"`
	Skipped int      `json:"skipped,omitempty"`
	Updated int      `json:"updated,omitempty"`
	Emails  []Email  `json:"emails,omitempty"`
	Tags    []Tag    `json:"tags,omitempty"`
	Errors  []string `json:"errors"`
}

// NewBatchResult 创建空结果
func NewBatchResult(total int) *BatchResult {
	return &BatchResult{Total: total, Errors: []string{}}
}

// Fail 记录一次失败
func (r *BatchResult) Fail(msg string) {
	r.Failed++
	r.Errors = append(r.Errors, msg)
}

// NamingStrategy 批量生成时的命名策略
type NamingStrategy string

const (
	NamingRandom     NamingStrategy = "random"
	NamingSequential NamingStrategy = "sequential"
	NamingTimestamp  NamingStrategy = "timestamp"
	NamingCustom     NamingStrategy = "custom"
)

// Valid 判断命名策略是否合法
func (s NamingStrategy) Valid() bool {
	switch s {
	case NamingRandom, NamingSequential, NamingTimestamp, NamingCustom:
		return true
	}
	return false
}

// ConflictStrategy 导入时地址冲突的处理方式
type ConflictStrategy string

const (
	ConflictSkip   ConflictStrategy = "skip"   // 保留已有记录，计入 skipped
	ConflictUpdate ConflictStrategy = "update" // 按地址覆盖已有记录
	ConflictAbort  ConflictStrategy = "error"  // 终止剩余导入
)

// Valid 判断冲突策略是否合法
func (s ConflictStrategy) Valid() bool {
	switch s {
	case ConflictSkip, ConflictUpdate, ConflictAbort:
		return true
	}
	return false
}

// TagMode 批量打标签模式
type TagMode string

const (
	TagModeAdd     TagMode = "add"
	TagModeRemove  TagMode = "remove"
	TagModeReplace TagMode = "replace"
)

// Valid 判断模式是否合法
func (m TagMode) Valid() bool {
	switch m {
	case TagModeAdd, TagModeRemove, TagModeReplace:
		return true
	}
	return false
}
