package session

import "errors"

// 会话边界上的错误分类，调用方使用 errors.Is 判断。
var (
	// ErrInvalidInput 表示文件类型、大小或样式取值不合法；会话状态保持不变。
	ErrInvalidInput = errors.New("输入无效")
	// ErrMissingPrecondition 表示操作缺少前置条件，例如尚未加载背景图。
	ErrMissingPrecondition = errors.New("缺少前置条件")
	// ErrRendering 表示绘制或编码失败，不会产出任何文件。
	ErrRendering = errors.New("渲染失败")
)
