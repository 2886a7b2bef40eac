// Package fonts 维护可供字幕使用的字体族：内置 Go 字体与用户注册的 TTF/OTF 文件。
package fonts

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/gofont/gosmallcaps"
)

// Fallback 是找不到字体族时使用的内置字体族。
const Fallback = "Go"

// Registry 按字体族名与字重保存字体数据。
type Registry struct {
	mu       sync.RWMutex
	families map[string]map[int][]byte
}

// NewRegistry 创建已载入内置 Go 字体的注册表。
func NewRegistry() *Registry {
	r := &Registry{families: map[string]map[int][]byte{}}
	r.Register("Go", 400, goregular.TTF)
	r.Register("Go", 500, gomedium.TTF)
	r.Register("Go", 700, gobold.TTF)
	r.Register("Go Mono", 400, gomono.TTF)
	r.Register("Go Mono", 700, gomonobold.TTF)
	r.Register("Go Smallcaps", 400, gosmallcaps.TTF)
	return r
}

// Register 注册一个字体族的某个字重，同名同字重后注册者覆盖先注册者。
func (r *Registry) Register(family string, weight int, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	weights, ok := r.families[family]
	if !ok {
		weights = map[int][]byte{}
		r.families[family] = weights
	}
	weights[weight] = data
}

// RegisterFile 从磁盘读取字体文件并注册。
func (r *Registry) RegisterFile(family string, weight int, path string) error {
	if family == "" {
		return fmt.Errorf("字体文件 %s 缺少字体族名", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("读取字体 %s 失败: %w", path, err)
	}
	r.Register(family, weight, data)
	return nil
}

// Families 返回已注册的字体族名（排序后）。
func (r *Registry) Families() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.families))
	for name := range r.families {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Has 报告字体族是否已注册。
func (r *Registry) Has(family string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.families[family]
	return ok
}

// Resolve 返回最接近所需字重的字体数据，以及实际使用的字体族与字重。
// 未注册的字体族回退到 Fallback。
func (r *Registry) Resolve(family string, weight int) (Face, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name := family
	weights, ok := r.families[name]
	if !ok || len(weights) == 0 {
		name = Fallback
		weights, ok = r.families[name]
		if !ok || len(weights) == 0 {
			return Face{}, fmt.Errorf("找不到字体族 %q，且回退字体 %q 未注册", family, Fallback)
		}
	}

	best := -1
	for w := range weights {
		if best < 0 || closer(w, best, weight) {
			best = w
		}
	}
	return Face{Family: name, Weight: best, Data: weights[best]}, nil
}

// closer 判断字重 a 是否比 b 更接近 target，距离相同时取较重者。
func closer(a, b, target int) bool {
	da, db := abs(a-target), abs(b-target)
	if da != db {
		return da < db
	}
	return a > b
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Face 是解析后的具体字体。
type Face struct {
	Family string
	Weight int
	Data   []byte
}

// ParseWeight 解析 CSS 风格的字重记号："100".."900"、"normal"、"bold"。
func ParseWeight(token string) (int, error) {
	t := strings.ToLower(strings.TrimSpace(token))
	switch t {
	case "", "normal", "regular":
		return 400, nil
	case "bold":
		return 700, nil
	}
	w, err := strconv.Atoi(t)
	if err != nil || w < 100 || w > 900 || w%100 != 0 {
		return 0, fmt.Errorf("无效的字重 %q", token)
	}
	return w, nil
}
