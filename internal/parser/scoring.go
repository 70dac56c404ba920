package parser

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// 最终得分权重，三项之和为1.0
const (
	WeightSkills     = 0.50
	WeightExperience = 0.35
	WeightEducation  = 0.15
)

// 教育关键词，出现在JD中的才作为要求项参与匹配
var educationKeywords = []string{
	"bachelor", "bsc", "bs ", "ms ", "masters", "phd", "degree",
	"graduation", "university", "college", "state university", "suny", "ivy",
}

var (
	nonWordRe  = regexp.MustCompile(`[^\w\s]`)
	yearsRe    = regexp.MustCompile(`(\d+)\+?\s*years?`)
	longWordRe = regexp.MustCompile(`\b\w{4,}\b`)
)

// MatchAnalysis 简历与职位描述的匹配分析结果
type MatchAnalysis struct {
	MatchScore    float64  `json:"match_score"` // 0-100，保留一位小数
	Strengths     []string `json:"strengths"`
	Gaps          []string `json:"gaps"`
	KeyInsights   []string `json:"key_insights"`
	SkillOverlap  []string `json:"skill_overlap"`
	MissingSkills []string `json:"missing_skills"`
}

// ScoringEngine 基于技能重叠、经验相关性与教育匹配计算匹配分
// 技能50% + 经验35% + 教育15%
type ScoringEngine struct {
	chunker *Chunker
}

// NewScoringEngine 创建评分引擎
func NewScoringEngine() *ScoringEngine {
	return &ScoringEngine{chunker: NewChunker()}
}

// ComputeAnalysis 计算简历与JD的完整匹配分析
func (s *ScoringEngine) ComputeAnalysis(resumeText, jdText string) *MatchAnalysis {
	resumeData := s.chunker.ParseResumeStructured(resumeText)
	jdData := s.chunker.ParseJDStructured(jdText)

	resumeSkills := normalizeSkills(resumeData.Skills)
	jdSkills := normalizeSkills(jdData.RequiredSkills)

	overlap := intersectSorted(resumeSkills, jdSkills)
	missing := differenceSorted(jdSkills, resumeSkills)

	skillScore := 1.0
	if len(jdSkills) > 0 {
		skillScore = float64(len(overlap)) / float64(len(jdSkills))
	}

	expScore := experienceScore(resumeData.Experience, jdData.ExperienceRequirements)
	eduScore := educationScore(resumeData.Education, jdText)

	total := skillScore*WeightSkills + expScore*WeightExperience + eduScore*WeightEducation
	matchScore := roundToOneDecimal(math.Min(100, total*100))

	return &MatchAnalysis{
		MatchScore:    matchScore,
		Strengths:     buildStrengths(overlap, resumeData),
		Gaps:          buildGaps(missing),
		KeyInsights:   buildInsights(resumeData, jdData, matchScore),
		SkillOverlap:  titleCaseAll(capSlice(overlap, 10)),
		MissingSkills: titleCaseAll(capSlice(missing, 10)),
	}
}

// normalizeSkills 规范化技能名用于比较: 去标点、小写、去空白
func normalizeSkills(skills []string) map[string]struct{} {
	out := make(map[string]struct{}, len(skills))
	for _, s := range skills {
		t := strings.TrimSpace(nonWordRe.ReplaceAllString(strings.ToLower(s), ""))
		if len(t) >= 2 {
			out[t] = struct{}{}
		}
	}
	return out
}

// experienceScore 经验相关性启发式评分，0-1
// 基础0.5，简历年限达到JD要求加0.3，关键词重叠最多加0.2
func experienceScore(resumeExp, jdExp []string) float64 {
	if len(jdExp) == 0 {
		return 1.0
	}
	jdText := strings.ToLower(strings.Join(jdExp, " "))
	resumeText := strings.ToLower(strings.Join(resumeExp, " "))

	score := 0.5
	if m := yearsRe.FindStringSubmatch(jdText); m != nil {
		reqYears, _ := strconv.Atoi(m[1])
		maxYears, found := 0, false
		for _, res := range yearsRe.FindAllStringSubmatch(resumeText, -1) {
			if y, err := strconv.Atoi(res[1]); err == nil {
				found = true
				if y > maxYears {
					maxYears = y
				}
			}
		}
		if found && maxYears >= reqYears {
			score += 0.3
		}
	}

	jdWords := wordSet(jdText)
	resWords := wordSet(resumeText)
	common := 0
	for w := range jdWords {
		if _, ok := resWords[w]; ok {
			common++
		}
	}
	denom := len(jdWords)
	if denom < 1 {
		denom = 1
	}
	overlap := float64(common) / float64(denom)
	return math.Min(1.0, score+overlap*0.2)
}

// educationScore 教育匹配评分: JD中出现的学历关键词在简历教育节中的命中率
func educationScore(resumeEdu []string, jdFull string) float64 {
	resumeText := strings.ToLower(strings.Join(resumeEdu, " "))
	jdLower := strings.ToLower(jdFull)

	var required []string
	for _, w := range educationKeywords {
		if strings.Contains(jdLower, w) {
			required = append(required, w)
		}
	}
	if len(required) == 0 {
		return 1.0
	}
	found := 0
	for _, w := range required {
		if strings.Contains(resumeText, w) {
			found++
		}
	}
	return math.Min(1.0, float64(found)/float64(len(required)))
}

func buildStrengths(overlap []string, resumeData *ResumeStructured) []string {
	var strengths []string
	for _, s := range capSlice(overlap, 10) {
		strengths = append(strengths, "Has required skill: "+titleCase(s))
	}
	if len(resumeData.Experience) > 0 {
		strengths = append(strengths, "Has relevant work experience")
	}
	if len(resumeData.Education) > 0 {
		strengths = append(strengths, "Has education/qualifications listed")
	}
	return capSlice(strengths, 8)
}

func buildGaps(missing []string) []string {
	var gaps []string
	for _, s := range capSlice(missing, 10) {
		gaps = append(gaps, "Missing skill: "+titleCase(s))
	}
	return capSlice(gaps, 8)
}

func buildInsights(resumeData *ResumeStructured, jdData *JDStructured, matchScore float64) []string {
	insights := []string{
		fmt.Sprintf("Overall match: %s%%", formatScore(matchScore)),
	}
	if len(resumeData.Skills) > 0 {
		insights = append(insights, fmt.Sprintf("Resume lists %d skills", len(resumeData.Skills)))
	}
	if len(jdData.RequiredSkills) > 0 {
		insights = append(insights, fmt.Sprintf("Job requires %d skill areas", len(jdData.RequiredSkills)))
	}
	return capSlice(insights, 5)
}

// intersectSorted 两集合交集，字典序排序保证结果稳定
func intersectSorted(a, b map[string]struct{}) []string {
	var out []string
	for k := range a {
		if _, ok := b[k]; ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// differenceSorted a中不在b中的元素，字典序排序
func differenceSorted(a, b map[string]struct{}) []string {
	var out []string
	for k := range a {
		if _, ok := b[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func wordSet(text string) map[string]struct{} {
	words := longWordRe.FindAllString(text, -1)
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		out[w] = struct{}{}
	}
	return out
}

// titleCase 每个单词首字母大写，其余小写
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
		} else {
			b.WriteRune(r)
			prevLetter = false
		}
	}
	return b.String()
}

func titleCaseAll(items []string) []string {
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = titleCase(s)
	}
	return out
}

func roundToOneDecimal(v float64) float64 {
	return math.Round(v*10) / 10
}

// formatScore 格式化分数，整数也保留一位小数位
func formatScore(v float64) string {
	if v == math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
