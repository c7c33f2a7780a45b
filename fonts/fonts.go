package fonts

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/goregular"
)

// 内置字体族名称。未注册的字体族（例如默认的 Inter）会回退到 FallbackFamily。
const (
	FamilyGo       = "Go"
	FamilyGoMono   = "Go Mono"
	FallbackFamily = FamilyGo
)

var builtin = map[string]map[int][]byte{
	normalize(FamilyGo): {
		400: goregular.TTF,
		500: gomedium.TTF,
		700: gobold.TTF,
	},
	normalize(FamilyGoMono): {
		400: gomono.TTF,
		700: gomonobold.TTF,
	},
}

// Registry 按字体族与字重保存字体数据。查找顺序：注册的字体 → 内置字体 → 回退字体族。
type Registry struct {
	mu    sync.RWMutex
	blobs map[string]map[int][]byte
}

// NewRegistry 创建只包含内置字体的注册表。
func NewRegistry() *Registry {
	return &Registry{blobs: map[string]map[int][]byte{}}
}

// Register 注册一份字体数据；同一字体族同一字重后注册的覆盖先注册的。
func (r *Registry) Register(family string, weight int, data []byte) {
	if family == "" || len(data) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := normalize(family)
	if r.blobs[key] == nil {
		r.blobs[key] = map[int][]byte{}
	}
	r.blobs[key][weight] = data
}

// RegisterFile 读取字体文件并注册。
func (r *Registry) RegisterFile(family string, weight int, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("读取字体 %s 失败: %w", path, err)
	}
	if len(data) == 0 {
		return fmt.Errorf("字体文件 %s 为空", path)
	}
	r.Register(family, weight, data)
	return nil
}

// Resolve 返回最接近所需字重的字体数据，以及实际使用的字体族与字重。
func (r *Registry) Resolve(family string, weight int) (data []byte, resolvedFamily string, resolvedWeight int) {
	key := normalize(family)
	r.mu.RLock()
	weights, ok := r.blobs[key]
	r.mu.RUnlock()
	if ok && len(weights) > 0 {
		w := nearestWeight(weights, weight)
		return weights[w], family, w
	}
	if weights, ok := builtin[key]; ok {
		w := nearestWeight(weights, weight)
		return weights[w], family, w
	}
	weights = builtin[normalize(FallbackFamily)]
	w := nearestWeight(weights, weight)
	return weights[w], FallbackFamily, w
}

// Families 列出已注册与内置的字体族（小写规范化后）。
func (r *Registry) Families() []string {
	seen := map[string]bool{}
	r.mu.RLock()
	for k := range r.blobs {
		seen[k] = true
	}
	r.mu.RUnlock()
	for k := range builtin {
		seen[k] = true
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// nearestWeight 取最接近的字重；距离相同时取更粗的一档，
// 这样 800 的默认字重会落到 bold 而不是 medium。
func nearestWeight(weights map[int][]byte, want int) int {
	best, bestDist := 0, -1
	for w := range weights {
		d := w - want
		if d < 0 {
			d = -d
		}
		if bestDist < 0 || d < bestDist || (d == bestDist && w > best) {
			best, bestDist = w, d
		}
	}
	return best
}

func normalize(family string) string {
	return strings.ToLower(strings.TrimSpace(family))
}
