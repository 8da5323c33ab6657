package postgres

import (
	"reflect"
	"testing"

	"z-ebook-api/internal/domain/entity"
)

func TestReplaceChapter(t *testing.T) {
	cover := entity.GeneratedImage{Kind: entity.ImageKindCover, URL: "cover"}
	oldImage := entity.GeneratedImage{Kind: entity.ImageKindChapter, URL: "old-2", ChapterNumber: 2}
	newImage := &entity.GeneratedImage{Kind: entity.ImageKindChapter, URL: "new-2", ChapterNumber: 2}
	stored := []entity.GeneratedChapter{
		{Number: 1, Content: "one"},
		{Number: 2, Content: "old two"},
	}

	tests := []struct {
		name         string
		chapters     []entity.GeneratedChapter
		images       []entity.GeneratedImage
		ch           entity.GeneratedChapter
		image        *entity.GeneratedImage
		wantChapters []entity.GeneratedChapter
		wantImages   []entity.GeneratedImage
	}{
		{
			name:         "append next chapter",
			chapters:     stored[:1],
			images:       []entity.GeneratedImage{cover},
			ch:           entity.GeneratedChapter{Number: 2, Content: "two"},
			wantChapters: []entity.GeneratedChapter{{Number: 1, Content: "one"}, {Number: 2, Content: "two"}},
			wantImages:   []entity.GeneratedImage{cover},
		},
		{
			name:         "replace chapter and its image",
			chapters:     stored,
			images:       []entity.GeneratedImage{cover, oldImage},
			ch:           entity.GeneratedChapter{Number: 2, Content: "new two"},
			image:        newImage,
			wantChapters: []entity.GeneratedChapter{{Number: 1, Content: "one"}, {Number: 2, Content: "new two"}},
			wantImages:   []entity.GeneratedImage{cover, *newImage},
		},
		{
			name:         "keep chapter order",
			chapters:     []entity.GeneratedChapter{{Number: 2, Content: "two"}},
			ch:           entity.GeneratedChapter{Number: 1, Content: "one"},
			wantChapters: []entity.GeneratedChapter{{Number: 1, Content: "one"}, {Number: 2, Content: "two"}},
			wantImages:   []entity.GeneratedImage{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotChapters, gotImages := replaceChapter(tt.chapters, tt.images, tt.ch, tt.image)
			if !reflect.DeepEqual(gotChapters, tt.wantChapters) {
				t.Errorf("chapters = %+v, want %+v", gotChapters, tt.wantChapters)
			}
			if !reflect.DeepEqual(gotImages, tt.wantImages) {
				t.Errorf("images = %+v, want %+v", gotImages, tt.wantImages)
			}
		})
	}
}
