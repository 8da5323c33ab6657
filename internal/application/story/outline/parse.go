package outline

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"z-ebook-api/internal/domain/entity"
	"z-ebook-api/internal/workflow/node"
)

var validate = validator.New()

// outlineDraft 模型输出的大纲结构，解析后再转换为实体
type outlineDraft struct {
	BookTitle        string                `json:"book_title" validate:"required"`
	BookDescription  string                `json:"book_description"`
	ChapterTitles    []string              `json:"chapter_titles" validate:"required,min=1,dive,required"`
	ChapterSummaries []string              `json:"chapter_summaries" validate:"required,min=1,dive,required"`
	CharacterBios    []entity.CharacterBio `json:"character_bios" validate:"dive"`
	WorldInfo        map[string]any        `json:"world_info"`
	KeyThemes        []string              `json:"key_themes"`
	PlotOutline      string                `json:"plot_outline"`
}

// OutlineValidationError 大纲结构不满足约束
type OutlineValidationError struct {
	Issues []string
}

func (e OutlineValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "outline validation failed"
	}
	return "outline validation failed: " + strings.Join(e.Issues, "; ")
}

// ParseOutline 从模型输出中解析大纲，并校验章节数与 chapterCount 一致
func ParseOutline(rawText string, chapterCount int) (*entity.StoryOutline, error) {
	jsonText := node.ExtractJSONObject(rawText)
	if strings.TrimSpace(jsonText) == "" {
		return nil, fmt.Errorf("empty outline output")
	}

	var draft outlineDraft
	if err := json.Unmarshal([]byte(jsonText), &draft); err != nil {
		return nil, fmt.Errorf("failed to parse outline json: %w", err)
	}
	if err := validateDraft(&draft, chapterCount); err != nil {
		return nil, err
	}

	bios := make([]entity.CharacterBio, 0, len(draft.CharacterBios))
	for _, c := range draft.CharacterBios {
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			continue
		}
		bios = append(bios, c.Clone())
	}

	return &entity.StoryOutline{
		BookTitle:        strings.TrimSpace(draft.BookTitle),
		BookDescription:  strings.TrimSpace(draft.BookDescription),
		ChapterTitles:    trimAll(draft.ChapterTitles),
		ChapterSummaries: trimAll(draft.ChapterSummaries),
		CharacterBios:    bios,
		WorldInfo:        flattenWorldInfo(draft.WorldInfo),
		KeyThemes:        trimAll(draft.KeyThemes),
		PlotOutline:      strings.TrimSpace(draft.PlotOutline),
		TotalChapters:    chapterCount,
	}, nil
}

func validateDraft(d *outlineDraft, chapterCount int) error {
	var issues []string
	if err := validate.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				issues = append(issues, fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
			}
		} else {
			issues = append(issues, err.Error())
		}
	}
	if len(d.ChapterTitles) != chapterCount {
		issues = append(issues, fmt.Sprintf("chapter_titles has %d entries, want %d", len(d.ChapterTitles), chapterCount))
	}
	if len(d.ChapterSummaries) != chapterCount {
		issues = append(issues, fmt.Sprintf("chapter_summaries has %d entries, want %d", len(d.ChapterSummaries), chapterCount))
	}
	if len(issues) > 0 {
		return OutlineValidationError{Issues: issues}
	}
	return nil
}

// flattenWorldInfo 世界观允许嵌套值，统一压平为字符串
func flattenWorldInfo(in map[string]any) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		k = strings.TrimSpace(k)
		if k == "" || v == nil {
			continue
		}
		switch val := v.(type) {
		case string:
			out[k] = strings.TrimSpace(val)
		default:
			b, err := json.Marshal(val)
			if err != nil {
				continue
			}
			out[k] = string(b)
		}
	}
	return out
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.TrimSpace(s))
	}
	return out
}
