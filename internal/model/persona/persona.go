package persona

// Persona 描述聊天接力中的一个占卜角色。
type Persona struct {
	ID           string `json:"id" yaml:"id"`
	Name         string `json:"name" yaml:"name"`
	Title        string `json:"title" yaml:"title"`
	SystemPrompt string `json:"-" yaml:"systemPrompt"`
}

// Seed returns the fixed relay order: western, eastern, science.
func Seed() []Persona {
	return []Persona{
		{
			ID:    "western",
			Name:  "西洋占星術AI",
			Title: "星回り・性格・心理傾向",
			SystemPrompt: "あなたは西洋占星術師です。\n" +
				"相談内容に対して、星回り・性格・心理傾向から助言してください。",
		},
		{
			ID:    "eastern",
			Name:  "東洋占術AI",
			Title: "気・流れ・陰陽",
			SystemPrompt: "あなたは東洋占術師です。\n" +
				"相談内容を「気・流れ・陰陽」の観点から読み解いてください。",
		},
		{
			ID:    "science",
			Name:  "科学分析AI",
			Title: "心理学・行動科学",
			SystemPrompt: "あなたは科学的分析AIです。\n" +
				"心理学・行動科学・統計っぽく現実的に分析してください。",
		},
	}
}
