package graph

import "testing"

func TestNormalizeEntity(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases latin", "OpenAI", "openai"},
		{"collapses whitespace", "  New   York  ", "new york"},
		{"keeps cjk as-is", "张三", "张三"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeEntity(tt.in); got != tt.want {
				t.Errorf("NormalizeEntity(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestResolveEntityAliasTitleSuffix(t *testing.T) {
	entities := []string{"王芳", "王芳老师", "张三"}
	aliasMap := ResolveEntityAlias(entities)

	got, ok := aliasMap["王芳老师"]
	if !ok {
		t.Fatalf("ResolveEntityAlias(%v) did not resolve 王芳老师, got %v", entities, aliasMap)
	}
	if got != "王芳" {
		t.Errorf("ResolveEntityAlias()[王芳老师] = %q, want 王芳", got)
	}
	if _, ok := aliasMap["张三"]; ok {
		t.Errorf("ResolveEntityAlias() should not alias a bare name with no title suffix")
	}
}

func TestResolveEntityAliasNoMatchWithoutCandidateName(t *testing.T) {
	entities := []string{"王芳老师"}
	aliasMap := ResolveEntityAlias(entities)
	if _, ok := aliasMap["王芳老师"]; ok {
		t.Errorf("ResolveEntityAlias() resolved an alias with no bare-name candidate present: %v", aliasMap)
	}
}

func TestExtractEntitiesEmptyText(t *testing.T) {
	if got := ExtractEntities("", 10); got != nil {
		t.Errorf("ExtractEntities(\"\") = %v, want nil", got)
	}
}
