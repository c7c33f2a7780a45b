package layer

// 该文件定义文字图层的数据结构与默认值。

// TextLayer 描述一个可独立设置样式的文字图层。
// Top/Left 以容器百分比为单位，相对中心偏移：Top 为正表示向上，Left 为正表示向右。
// FontSize 为设计单位（以 1000 宽度为基准），渲染时再按比例缩放。
type TextLayer struct {
	ID          int     `json:"id"`
	Text        string  `json:"text"`
	FontFamily  string  `json:"fontFamily"`
	Top         float64 `json:"top"`
	Left        float64 `json:"left"`
	Color       string  `json:"color"`
	FontSize    float64 `json:"fontSize"`
	FontWeight  int     `json:"fontWeight"`
	Opacity     float64 `json:"opacity"`
	ShadowColor string  `json:"shadowColor"`
	ShadowSize  float64 `json:"shadowSize"`
	Rotation    float64 `json:"rotation"`
	TiltX       float64 `json:"tiltX"`
	TiltY       float64 `json:"tiltY"`
}

// 新建图层的默认样式。
const (
	DefaultText        = "edit"
	DefaultFontFamily  = "Inter"
	DefaultColor       = "white"
	DefaultFontSize    = 200
	DefaultFontWeight  = 800
	DefaultOpacity     = 1
	DefaultShadowColor = "rgba(0, 0, 0, 0.8)"
	DefaultShadowSize  = 4
)

// Default 返回带有给定 id 的默认图层。
func Default(id int) TextLayer {
	return TextLayer{
		ID:          id,
		Text:        DefaultText,
		FontFamily:  DefaultFontFamily,
		Color:       DefaultColor,
		FontSize:    DefaultFontSize,
		FontWeight:  DefaultFontWeight,
		Opacity:     DefaultOpacity,
		ShadowColor: DefaultShadowColor,
		ShadowSize:  DefaultShadowSize,
	}
}

// NextID 按 max(ids ∪ {0}) + 1 分配新的 id，只考虑当前存在的图层。
func NextID(layers []TextLayer) int {
	maxID := 0
	for _, l := range layers {
		if l.ID > maxID {
			maxID = l.ID
		}
	}
	return maxID + 1
}
