package parser

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Chunk 简历的一个逻辑分块，Section为规范化后的节名
type Chunk struct {
	Section string `json:"section"`
	Content string `json:"content"`
}

// ResumeStructured 从简历中抽取的结构化数据，用于匹配评分
type ResumeStructured struct {
	Skills      []string
	Experience  []string
	Education   []string
	RawSections map[string]string
}

// JDStructured 从职位描述中抽取的结构化数据
type JDStructured struct {
	RequiredSkills         []string
	ExperienceRequirements []string
	EducationRequirements  []string
}

// 常见简历节标题模式，用于逻辑分块
var resumeSectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(?:professional\s+)?summary|objective|profile$`),
	regexp.MustCompile(`(?i)^(?:technical\s+)?skills|competencies|expertise$`),
	regexp.MustCompile(`(?i)^experience|work\s+history|employment$`),
	regexp.MustCompile(`(?i)^education|academic|qualifications$`),
	regexp.MustCompile(`(?i)^projects|certifications|achievements$`),
}

var (
	paragraphSplitRe = regexp.MustCompile(`\n\s*\n`)
	trailingColonRe  = regexp.MustCompile(`[:]+$`)
	bulletPrefixRe   = regexp.MustCompile(`^[\-\*\x{2022}]\s*`)
	skillSeparatorRe = regexp.MustCompile(`[,;|:]|\.\s`)
)

// Chunker 按简历节标题将文本切分为逻辑分块
type Chunker struct{}

// NewChunker 创建分块器
func NewChunker() *Chunker {
	return &Chunker{}
}

// ChunkResume 将简历文本切分为 (节名, 内容) 分块
// 节标题识别: 短行且全大写或以冒号结尾，或匹配常见节标题模式
// 未识别出任何节时退化为按段落分块
func (c *Chunker) ChunkResume(text string) []Chunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return []Chunk{}
	}

	var chunks []Chunk
	lines := strings.Split(text, "\n")

	currentSection := "general"
	var currentContent []string

	flush := func() {
		if len(currentContent) == 0 {
			return
		}
		content := strings.TrimSpace(strings.Join(currentContent, "\n"))
		if content != "" {
			chunks = append(chunks, Chunk{Section: currentSection, Content: content})
		}
		currentContent = nil
	}

	for _, line := range lines {
		stripped := strings.TrimSpace(line)
		if stripped == "" {
			flush()
			continue
		}

		isHeader := (len(stripped) < 50 && (isUpper(stripped) || strings.HasSuffix(stripped, ":"))) ||
			matchesSectionPattern(stripped)

		if isHeader {
			flush()
			currentSection = normalizeSectionName(stripped)
		}
		currentContent = append(currentContent, stripped)
	}
	flush()

	// 未识别出节标题时按段落分块
	if len(chunks) == 0 {
		for i, para := range paragraphSplitRe.Split(text, -1) {
			para = strings.TrimSpace(para)
			if para != "" {
				chunks = append(chunks, Chunk{
					Section: "section_" + strconv.Itoa(i),
					Content: para,
				})
			}
		}
	}

	return chunks
}

// ChunkJD 将职位描述按段落切分
func (c *Chunker) ChunkJD(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return []string{}
	}
	var out []string
	for _, para := range paragraphSplitRe.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para != "" {
			out = append(out, para)
		}
	}
	return out
}

// ParseResumeStructured 抽取简历结构化数据(技能/经验/教育)，用于匹配评分
func (c *Chunker) ParseResumeStructured(text string) *ResumeStructured {
	chunks := c.ChunkResume(text)
	result := &ResumeStructured{
		Skills:      []string{},
		Experience:  []string{},
		Education:   []string{},
		RawSections: make(map[string]string),
	}

	for _, chunk := range chunks {
		result.RawSections[chunk.Section] = chunk.Content

		if strings.Contains(chunk.Section, "skill") || strings.Contains(chunk.Section, "competenc") {
			result.Skills = append(result.Skills, extractSkills(chunk.Content)...)
		}
		if strings.Contains(chunk.Section, "experience") || strings.Contains(chunk.Section, "work") ||
			strings.Contains(chunk.Section, "employment") {
			result.Experience = append(result.Experience, chunk.Content)
		}
		if strings.Contains(chunk.Section, "education") || strings.Contains(chunk.Section, "academic") {
			result.Education = append(result.Education, chunk.Content)
		}
	}

	// 技能节缺失时退化为全文扫描
	if len(result.Skills) == 0 {
		result.Skills = extractSkills(text)
	}

	return result
}

// ParseJDStructured 抽取职位描述的技能与经验要求
// 要求文本不做单独的学历分析，经验与学历复用同一段落切分
func (c *Chunker) ParseJDStructured(text string) *JDStructured {
	paragraphs := c.ChunkJD(text)
	return &JDStructured{
		RequiredSkills:         capSlice(extractSkills(text), 50),
		ExperienceRequirements: paragraphs,
		EducationRequirements:  paragraphs,
	}
}

// extractSkills 抽取类技能token: 逐行按逗号/分号/竖线/冒号与句末边界切分，外加项目符号行
// 逐行切分保证节标题行不与后续行的首个token粘连
func extractSkills(text string) []string {
	var skills []string

	for _, line := range strings.Split(text, "\n") {
		for _, part := range skillSeparatorRe.Split(line, -1) {
			token := strings.TrimSpace(part)
			if len(token) >= 2 && len(token) <= 50 && !hasArticlePrefix(token) {
				skills = append(skills, token)
			}
		}
	}

	for _, line := range strings.Split(text, "\n") {
		line = bulletPrefixRe.ReplaceAllString(strings.TrimSpace(line), "")
		if len(line) >= 2 && len(line) <= 80 {
			skills = append(skills, line)
		}
	}

	// 保序去重并截断
	seen := make(map[string]struct{}, len(skills))
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return capSlice(out, 80)
}

func hasArticlePrefix(token string) bool {
	lower := strings.ToLower(token)
	for _, prefix := range []string{"the", "a", "and", "or"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

func matchesSectionPattern(line string) bool {
	for _, pat := range resumeSectionPatterns {
		if pat.MatchString(line) {
			return true
		}
	}
	return false
}

// normalizeSectionName 小写、去尾部冒号、空格转下划线、截断到50字符
func normalizeSectionName(header string) string {
	name := strings.ToLower(header)
	name = trailingColonRe.ReplaceAllString(name, "")
	name = strings.ReplaceAll(name, " ", "_")
	if runes := []rune(name); len(runes) > 50 {
		name = string(runes[:50])
	}
	return name
}

// isUpper 判断字符串是否全大写(存在字母且无小写字母)
func isUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	return hasLetter
}

func capSlice(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
