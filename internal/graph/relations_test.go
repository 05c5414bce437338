package graph

import "testing"

func TestExtractRelationsCanonicalOrder(t *testing.T) {
	relations := ExtractRelations("张三负责产品文档，李四负责运维手册，他们经常协作。王五偶尔参与评审。")
	if len(relations) == 0 {
		t.Fatal("expected at least one extracted relation")
	}
	for _, r := range relations {
		if NormalizeEntity(r.Source) > NormalizeEntity(r.Target) {
			t.Errorf("relation %+v violates source<=target canonical ordering", r)
		}
		if r.Source == r.Target {
			t.Errorf("relation %+v has identical source and target", r)
		}
	}
}

func TestInferRelationType(t *testing.T) {
	tests := []struct {
		name     string
		sentence string
		want     string
	}{
		{"contains", "知识库包括产品文档和运维手册。", "contains"},
		{"is_a", "猫属于哺乳动物。", "is_a"},
		{"depends_on", "前端依赖后端提供的接口。", "depends_on"},
		{"causes", "超载导致系统崩溃。", "causes"},
		{"co_occurs fallback", "张三和李四在同一个部门工作。", "co_occurs"},
		{"english is a", "A dog is a mammal.", "is_a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InferRelationType(tt.sentence); got != tt.want {
				t.Errorf("InferRelationType(%q) = %q, want %q", tt.sentence, got, tt.want)
			}
		})
	}
}
