package generation

import "fmt"

const (
	// IllustrationStyle is appended to every illustration prompt.
	IllustrationStyle = ". Cartoon style, bright colors, cute, Pixar-like, high saturation, simple lines, imaginative."

	// NarrationPersona precedes the text sent for speech synthesis.
	NarrationPersona = "用亲切活泼的探险家语气朗读以下剧情："

	// FallbackImage is shown whenever no illustration could be generated.
	FallbackImage = "https://picsum.photos/800/450"

	IllustrationAspectRatio = "16:9"
)

// Level1Prompt asks for an opening chapter built around question.
func Level1Prompt(question string) string {
	return fmt.Sprintf(`将这个小学数学题融入一段充满想象力的卡通冒险故事的第一关中：%s。
请用 3-5 句简洁的中文叙述剧情，总字数控制在 80-120 字左右，适合幼儿阅读`, question)
}

// Level2Prompt asks for a tenser second chapter conditioned on the first one.
func Level2Prompt(l1Story, l1Question, difficulty string) string {
	return fmt.Sprintf(`在第一关剧情“%s”和知识点“%s”的基础上，
根据选定的难度级别：%s，设计第二关。
故事要更紧张，数学题要从更深层面或新角度出发。
请用 3-5 句简洁的中文叙述这一关的剧情，总字数控制在 80-120 字左右，适合幼儿阅读。`, l1Story, l1Question, difficulty)
}

// AbilityPrompt asks for the closing evaluation. attempts counts every
// level-1 submission including the successful one.
func AbilityPrompt(initialQuestion string, attempts int, difficulty string) string {
	return fmt.Sprintf(`根据探险家的表现：初始问题为%s，第一关尝试了%d次成功，
第二关难度为%s，一次成功。给出评价。`, initialQuestion, attempts, difficulty)
}

func illustrationPrompt(story string) string {
	return story + IllustrationStyle
}

func narrationPrompt(text string) string {
	return NarrationPersona + text
}
