package model

type SummaryGenerateInput struct {
	ChapterNumber  int
	ChapterTitle   string
	ChapterContent string
	// PreviousSummaries 之前章节的摘要文本，按章节顺序
	PreviousSummaries []string

	LLMParams
}
