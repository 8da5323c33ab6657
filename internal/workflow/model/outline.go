package model

type OutlineGenerateInput struct {
	SourceText   string
	ChapterCount int
	StoryFormat  string
	// Theme 非空时使用主题化大纲模板
	Theme string

	LLMParams
}
