package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testResume = `SKILLS:
Go, Python, Kubernetes, Docker

EXPERIENCE
Backend engineer at Acme for 6 years
Built microservices with Kubernetes

EDUCATION
Bachelor degree from State University`

const testJD = `Go, Kubernetes, Terraform, Rust

5+ years backend experience required

Bachelor degree from an accredited university`

func TestComputeAnalysisBasics(t *testing.T) {
	engine := NewScoringEngine()
	analysis := engine.ComputeAnalysis(testResume, testJD)
	require.NotNil(t, analysis)

	assert.GreaterOrEqual(t, analysis.MatchScore, 0.0)
	assert.LessOrEqual(t, analysis.MatchScore, 100.0)
	// round保留一位小数
	assert.InDelta(t, analysis.MatchScore, float64(int(analysis.MatchScore*10))/10, 1e-9)

	assert.Contains(t, analysis.SkillOverlap, "Go")
	assert.Contains(t, analysis.SkillOverlap, "Kubernetes")
	assert.Contains(t, analysis.MissingSkills, "Terraform")
}

func TestComputeAnalysisEndToEnd(t *testing.T) {
	engine := NewScoringEngine()

	tests := []struct {
		name        string
		resume      string
		jd          string
		wantScore   float64
		wantOverlap []string
		wantMissing []string
	}{
		{
			name:   "技能部分命中年限达标学历缺失",
			resume: "Skills: Python, SQL\nExperience: 5 years backend",
			jd:     "Requires: Python, Java. 3+ years experience. Bachelor degree required.",
			// 技能1/6 + 经验0.85 + 教育0.0 加权
			wantScore:   38.1,
			wantOverlap: []string{"Python"},
			wantMissing: []string{"Java"},
		},
		{
			name:   "JD无可抽取技能时技能项得满分",
			resume: "whatever resume content here",
			jd:     "a\nb\nx",
			// 技能1.0 + 经验0.5 + 教育1.0 加权
			wantScore: 82.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analysis := engine.ComputeAnalysis(tt.resume, tt.jd)
			require.NotNil(t, analysis)

			assert.InDelta(t, tt.wantScore, analysis.MatchScore, 1e-9)
			for _, s := range tt.wantOverlap {
				assert.Contains(t, analysis.SkillOverlap, s)
			}
			for _, s := range tt.wantMissing {
				assert.Contains(t, analysis.MissingSkills, s)
			}
		})
	}
}

func TestComputeAnalysisListCaps(t *testing.T) {
	engine := NewScoringEngine()
	analysis := engine.ComputeAnalysis(testResume, testJD)

	assert.LessOrEqual(t, len(analysis.Strengths), 8)
	assert.LessOrEqual(t, len(analysis.Gaps), 8)
	assert.LessOrEqual(t, len(analysis.KeyInsights), 5)
	assert.LessOrEqual(t, len(analysis.SkillOverlap), 10)
	assert.LessOrEqual(t, len(analysis.MissingSkills), 10)
}

func TestComputeAnalysisStrengthsAndGaps(t *testing.T) {
	engine := NewScoringEngine()
	analysis := engine.ComputeAnalysis(testResume, testJD)

	var hasSkillStrength, hasExpStrength, hasEduStrength bool
	for _, s := range analysis.Strengths {
		if strings.HasPrefix(s, "Has required skill:") {
			hasSkillStrength = true
		}
		if s == "Has relevant work experience" {
			hasExpStrength = true
		}
		if s == "Has education/qualifications listed" {
			hasEduStrength = true
		}
	}
	assert.True(t, hasSkillStrength)
	assert.True(t, hasExpStrength)
	assert.True(t, hasEduStrength)

	for _, g := range analysis.Gaps {
		assert.True(t, strings.HasPrefix(g, "Missing skill:"))
	}
}

func TestComputeAnalysisDeterministic(t *testing.T) {
	engine := NewScoringEngine()
	first := engine.ComputeAnalysis(testResume, testJD)
	for i := 0; i < 5; i++ {
		again := engine.ComputeAnalysis(testResume, testJD)
		assert.Equal(t, first.MatchScore, again.MatchScore)
		assert.Equal(t, first.SkillOverlap, again.SkillOverlap)
		assert.Equal(t, first.MissingSkills, again.MissingSkills)
		assert.Equal(t, first.Strengths, again.Strengths)
	}
}

func TestExperienceScore(t *testing.T) {
	t.Run("JD无经验要求得满分", func(t *testing.T) {
		assert.Equal(t, 1.0, experienceScore([]string{"anything"}, nil))
	})

	t.Run("年限达标加分", func(t *testing.T) {
		jd := []string{"5+ years of backend development"}
		meets := experienceScore([]string{"8 years of backend development"}, jd)
		below := experienceScore([]string{"2 years of backend development"}, jd)
		assert.Greater(t, meets, below)
		assert.LessOrEqual(t, meets, 1.0)
	})

	t.Run("得分上限为1", func(t *testing.T) {
		jd := []string{"10+ years building distributed backend systems with golang"}
		score := experienceScore([]string{"15 years building distributed backend systems with golang"}, jd)
		assert.LessOrEqual(t, score, 1.0)
	})
}

func TestEducationScore(t *testing.T) {
	t.Run("JD无学历关键词得满分", func(t *testing.T) {
		assert.Equal(t, 1.0, educationScore(nil, "just some requirements text"))
	})

	t.Run("命中率计分", func(t *testing.T) {
		jd := "bachelor degree required from a university"
		full := educationScore([]string{"bachelor degree from a state university"}, jd)
		none := educationScore([]string{"高中学历"}, jd)
		assert.Equal(t, 1.0, full)
		assert.Equal(t, 0.0, none)
	})
}

func TestNormalizeSkills(t *testing.T) {
	set := normalizeSkills([]string{"  Go!  ", "C++", "a", "Python"})
	_, hasGo := set["go"]
	_, hasPython := set["python"]
	assert.True(t, hasGo)
	assert.True(t, hasPython)
	// 单字符规范化后被过滤
	_, hasA := set["a"]
	assert.False(t, hasA)
}

func TestTitleCase(t *testing.T) {
	assert.Equal(t, "Go", titleCase("go"))
	assert.Equal(t, "Machine Learning", titleCase("machine learning"))
	assert.Equal(t, "Ci/Cd", titleCase("ci/cd"))
}

func TestFormatScore(t *testing.T) {
	assert.Equal(t, "100.0", formatScore(100))
	assert.Equal(t, "85.2", formatScore(85.2))
	assert.Equal(t, "0.0", formatScore(0))
}
