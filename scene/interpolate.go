package scene

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var exprPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Interpolate 将文本中的 ${key} 或 ${path.to.value} 替换为 vars 中的值。
// 完整的 key（可以包含点）优先；找不到时按路径逐级查找，仍找不到则保留占位符。
func Interpolate(text string, vars map[string]any) string {
	if len(vars) == 0 {
		return text
	}
	return exprPattern.ReplaceAllStringFunc(text, func(match string) string {
		key := strings.TrimSpace(match[2 : len(match)-1])
		if key == "" {
			return match
		}
		if val, ok := vars[key]; ok {
			return fmt.Sprint(val)
		}
		if val, ok := lookup(vars, key); ok {
			return fmt.Sprint(val)
		}
		return match
	})
}

// lookup walks dotted paths with optional [i] indexes, e.g. names[0].first.
func lookup(data any, path string) (any, bool) {
	current := data
	for _, segment := range strings.Split(path, ".") {
		name, indexes := splitIndexes(segment)
		if name != "" {
			m, ok := current.(map[string]any)
			if !ok {
				return nil, false
			}
			if current, ok = m[name]; !ok {
				return nil, false
			}
		}
		for _, raw := range indexes {
			idx, err := strconv.Atoi(raw)
			if err != nil {
				return nil, false
			}
			list, ok := current.([]any)
			if !ok || idx < 0 || idx >= len(list) {
				return nil, false
			}
			current = list[idx]
		}
	}
	return current, true
}

func splitIndexes(segment string) (string, []string) {
	i := strings.IndexByte(segment, '[')
	if i < 0 {
		return segment, nil
	}
	name, rest := segment[:i], segment[i:]
	var indexes []string
	for strings.HasPrefix(rest, "[") {
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			break
		}
		indexes = append(indexes, rest[1:end])
		rest = rest[end+1:]
	}
	return name, indexes
}
