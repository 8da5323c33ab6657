package milvus

import (
	"reflect"
	"testing"

	milvusentity "github.com/milvus-io/milvus-sdk-go/v2/entity"
)

func TestChapterEmbeddingsSchema(t *testing.T) {
	s := ChapterEmbeddingsSchema(384)
	if s.CollectionName != CollectionChapterEmbeddings {
		t.Errorf("collection = %s", s.CollectionName)
	}
	var pk, vec *milvusentity.Field
	for _, f := range s.Fields {
		if f.PrimaryKey {
			pk = f
		}
		if f.DataType == milvusentity.FieldTypeFloatVector {
			vec = f
		}
	}
	if pk == nil || pk.Name != "id" {
		t.Errorf("primary key = %+v", pk)
	}
	if vec == nil || vec.TypeParams["dim"] != "384" {
		t.Errorf("vector field = %+v", vec)
	}
}

func TestBeforeExpr(t *testing.T) {
	got := beforeExpr("gen-1", 3)
	want := `generation_id == "gen-1" && chapter_number < 3`
	if got != want {
		t.Errorf("beforeExpr = %s, want %s", got, want)
	}
}

func TestChapterListEncoding(t *testing.T) {
	tests := []struct {
		in   []int
		want string
	}{
		{nil, ""},
		{[]int{1}, "1"},
		{[]int{1, 4, 7}, "1,4,7"},
	}
	for _, tt := range tests {
		enc := joinChapters(tt.in)
		if enc != tt.want {
			t.Errorf("joinChapters(%v) = %q, want %q", tt.in, enc, tt.want)
		}
		dec := splitChapters(enc)
		if len(tt.in) == 0 {
			if len(dec) != 0 {
				t.Errorf("splitChapters(%q) = %v, want empty", enc, dec)
			}
			continue
		}
		if !reflect.DeepEqual(dec, tt.in) {
			t.Errorf("splitChapters(%q) = %v, want %v", enc, dec, tt.in)
		}
	}
}

func TestTruncateBytesKeepsRunes(t *testing.T) {
	tests := []struct {
		in    string
		limit int
		want  string
	}{
		{"hello", 10, "hello"},
		{"hello", 3, "hel"},
		{"灯塔守护", 4, "灯"},
		{"灯塔守护", 6, "灯塔"},
	}
	for _, tt := range tests {
		if got := truncateBytes(tt.in, tt.limit); got != tt.want {
			t.Errorf("truncateBytes(%q, %d) = %q, want %q", tt.in, tt.limit, got, tt.want)
		}
	}
}

func TestRowID(t *testing.T) {
	if got := rowID("gen-1", 12); got != "gen-1:12" {
		t.Errorf("rowID = %s", got)
	}
}
