package parser

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkResumeSections(t *testing.T) {
	text := `John Smith
Senior Engineer

SKILLS:
Go, Python, Kubernetes

EXPERIENCE
Acme Corp - Backend Engineer
Built distributed systems for 5 years`

	chunker := NewChunker()
	chunks := chunker.ChunkResume(text)
	require.NotEmpty(t, chunks)

	sections := make(map[string]string)
	for _, c := range chunks {
		sections[c.Section] = c.Content
	}

	assert.Contains(t, sections, "skills")
	assert.Contains(t, sections["skills"], "Go, Python, Kubernetes")
	assert.Contains(t, sections, "experience")
	assert.Contains(t, sections["experience"], "Acme Corp")
}

func TestChunkResumeHeaderDetection(t *testing.T) {
	chunker := NewChunker()

	tests := []struct {
		name    string
		header  string
		section string
	}{
		{"全大写短行", "TECHNICAL SKILLS", "technical_skills"},
		{"冒号结尾", "Education:", "education"},
		{"模式匹配", "Work History", "work_history"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := tt.header + "\nsome content here"
			chunks := chunker.ChunkResume(text)
			require.NotEmpty(t, chunks)
			assert.Equal(t, tt.section, chunks[0].Section)
		})
	}
}

func TestChunkResumeSectionNameTruncated(t *testing.T) {
	header := strings.ToUpper(strings.Repeat("x", 45)) + " HEADER:"
	chunker := NewChunker()
	chunks := chunker.ChunkResume(header + "\ncontent body line")
	require.NotEmpty(t, chunks)
	assert.LessOrEqual(t, len(chunks[0].Section), 50)
}

func TestChunkResumeBlankLineKeepsLabel(t *testing.T) {
	text := `EXPERIENCE
First job details

More details same section`

	chunker := NewChunker()
	chunks := chunker.ChunkResume(text)
	require.Len(t, chunks, 2)
	assert.Equal(t, "experience", chunks[0].Section)
	assert.Equal(t, "experience", chunks[1].Section)
}

func TestChunkResumeNoHeaders(t *testing.T) {
	// 无任何节标题时内容归入general节
	long := strings.Repeat("built backend services and data pipelines ", 3)
	text := long + "\n\n" + long

	chunker := NewChunker()
	chunks := chunker.ChunkResume(text)
	require.Len(t, chunks, 2)
	assert.Equal(t, "general", chunks[0].Section)
	assert.Equal(t, "general", chunks[1].Section)
}

func TestChunkResumeEmpty(t *testing.T) {
	chunker := NewChunker()
	assert.Empty(t, chunker.ChunkResume(""))
	assert.Empty(t, chunker.ChunkResume("   \n\n  "))
}

func TestChunkJD(t *testing.T) {
	text := "Requirements:\n5+ years of Go\n\nNice to have:\nKubernetes"
	chunker := NewChunker()
	paras := chunker.ChunkJD(text)
	require.Len(t, paras, 2)
	assert.Contains(t, paras[0], "5+ years of Go")
}

func TestParseResumeStructured(t *testing.T) {
	text := `SKILLS:
Go, Python, Kubernetes

EXPERIENCE
Backend engineer for 6 years

EDUCATION
Bachelor degree from State University`

	chunker := NewChunker()
	data := chunker.ParseResumeStructured(text)

	assert.Contains(t, data.Skills, "Go")
	assert.Contains(t, data.Skills, "Python")
	require.Len(t, data.Experience, 1)
	assert.Contains(t, data.Experience[0], "6 years")
	require.Len(t, data.Education, 1)
	assert.Contains(t, data.Education[0], "Bachelor")
	assert.Contains(t, data.RawSections, "skills")
}

func TestParseResumeStructuredPlainHeaders(t *testing.T) {
	data := NewChunker().ParseResumeStructured("SKILLS\nPython, Go\n\nEXPERIENCE\n5 years backend")
	assert.Contains(t, data.Skills, "Python")
	assert.Contains(t, data.Skills, "Go")
	require.Len(t, data.Experience, 1)
}

func TestParseResumeStructuredSkillFallback(t *testing.T) {
	// 无技能节时退化为全文扫描
	text := "GENERAL INFO\nGo, Rust, SQL experience listed inline"
	chunker := NewChunker()
	data := chunker.ParseResumeStructured(text)
	assert.Contains(t, data.Skills, "Go")
	assert.Contains(t, data.Skills, "Rust")
}

func TestExtractSkillsSplitsPerLine(t *testing.T) {
	// 节标题行不与下一行的首个token粘连
	skills := extractSkills("SKILLS\nPython, Go")
	assert.Contains(t, skills, "Python")
	assert.Contains(t, skills, "Go")
	assert.NotContains(t, skills, "SKILLS\nPython")
}

func TestExtractSkillsLabelAndSentenceBoundaries(t *testing.T) {
	// 冒号标签与句末同样作为token边界
	skills := extractSkills("Requires: Python, Java. 3+ years experience.")
	assert.Contains(t, skills, "Python")
	assert.Contains(t, skills, "Java")
}

func TestExtractSkillsFilters(t *testing.T) {
	text := "Go, the framework, x, Python; Kubernetes | Docker"
	skills := extractSkills(text)

	assert.Contains(t, skills, "Go")
	assert.Contains(t, skills, "Python")
	assert.Contains(t, skills, "Kubernetes")
	assert.Contains(t, skills, "Docker")
	// 冠词开头与单字符token被过滤
	assert.NotContains(t, skills, "the framework")
	assert.NotContains(t, skills, "x")
}

func TestExtractSkillsBulletsAndDedupe(t *testing.T) {
	text := "- Go\n* Terraform\n• Ansible\nGo, Terraform"
	skills := extractSkills(text)

	count := 0
	for _, s := range skills {
		if s == "Go" {
			count++
		}
	}
	assert.Equal(t, 1, count)
	assert.Contains(t, skills, "Terraform")
	assert.Contains(t, skills, "Ansible")
}

func TestExtractSkillsCap(t *testing.T) {
	var parts []string
	for i := 0; i < 120; i++ {
		parts = append(parts, "skill"+strings.Repeat("x", i%10)+string(rune('a'+i%26)))
	}
	skills := extractSkills(strings.Join(parts, ", "))
	assert.LessOrEqual(t, len(skills), 80)
}

func TestParseJDStructured(t *testing.T) {
	text := "Go, Python required\n\n5+ years backend experience"
	chunker := NewChunker()
	data := chunker.ParseJDStructured(text)

	assert.Contains(t, data.RequiredSkills, "Go")
	assert.LessOrEqual(t, len(data.RequiredSkills), 50)
	require.Len(t, data.ExperienceRequirements, 2)
	// 学历要求复用段落切分
	assert.Equal(t, data.ExperienceRequirements, data.EducationRequirements)
}

func TestNormalizeSectionNameMultibyte(t *testing.T) {
	name := normalizeSectionName(strings.Repeat("技能", 30))
	assert.True(t, utf8.ValidString(name))
	assert.Equal(t, 50, utf8.RuneCountInString(name))
}
