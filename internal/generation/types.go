package generation

// Level1Content is the opening chapter built around the child's own question.
type Level1Content struct {
	Story    string `json:"story" jsonschema:"融入用户问题的冒险故事情节" validate:"required"`
	Question string `json:"question" jsonschema:"修改后的数学问题描述" validate:"required"`
	Answer   string `json:"answer" jsonschema:"正确答案" validate:"required"`
}

// Level2Content is the harder follow-up chapter.
type Level2Content struct {
	Story    string `json:"story" jsonschema:"更紧张的冒险场景" validate:"required"`
	Question string `json:"question" jsonschema:"基于第一关知识点和难度的进阶数学题" validate:"required"`
	Answer   string `json:"answer" jsonschema:"正确答案" validate:"required"`
}

// AbilityReport is the closing scorecard.
type AbilityReport struct {
	Mastery float64 `json:"mastery" jsonschema:"知识掌握度 0-100" validate:"gte=0,lte=100"`
	Logic   float64 `json:"logic" jsonschema:"逻辑推演能力 0-100" validate:"gte=0,lte=100"`
	Advice  string  `json:"advice" jsonschema:"给老师或家长的教育建议" validate:"required"`
}
