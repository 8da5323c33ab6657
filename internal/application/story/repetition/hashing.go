package repetition

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// DefaultHashingDimension 未配置维度时的默认值
const DefaultHashingDimension = 384

// HashingEmbedder 基于特征哈希的确定性向量化，未配置向量服务时使用。
// 相同文本总是得到相同向量，词汇重叠越多相似度越高。
type HashingEmbedder struct {
	Dimension int
}

func NewHashingEmbedder(dimension int) *HashingEmbedder {
	if dimension <= 0 {
		dimension = DefaultHashingDimension
	}
	return &HashingEmbedder{Dimension: dimension}
}

// Embed 实现 Embedder
func (e *HashingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	dim := e.Dimension
	if dim <= 0 {
		dim = DefaultHashingDimension
	}
	vec := make([]float64, dim)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, tok := range tokens {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()
		idx := int(sum % uint64(dim))
		// 高位决定符号，减少哈希碰撞带来的偏差
		if sum>>63 == 1 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	out := make([]float32, dim)
	if norm == 0 {
		return out, nil
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out, nil
}
