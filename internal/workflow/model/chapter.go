package model

type ChapterGenerateInput struct {
	ChapterNumber int
	ChapterTitle  string

	// StoryContext 由记忆模块拼装的有界上下文
	StoryContext string
	SourceText   string
	StoryFormat  string

	LLMParams
}

type ChapterGenerateOutput struct {
	Content string
	Meta    LLMUsageMeta
}
