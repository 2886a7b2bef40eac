package session

import (
	"sync"
	"time"
)

// Debouncer 将短时间内的多次触发合并为一次调用。
// 每次 Trigger 都会重置计时器，同一时刻至多只有一个待执行的调用。
type Debouncer struct {
	delay time.Duration
	fn    func()

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// NewDebouncer 创建一个在最后一次触发 delay 之后执行 fn 的 Debouncer。
func NewDebouncer(delay time.Duration, fn func()) *Debouncer {
	return &Debouncer{delay: delay, fn: fn}
}

// Trigger 取消尚未执行的调用并重新计时。
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.fn)
}

// Stop 取消待执行的调用，之后的 Trigger 不再生效。
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
