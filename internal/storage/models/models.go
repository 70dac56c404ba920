package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// ScreeningSession 筛选会话表，记录一次简历+JD的筛选过程
type ScreeningSession struct {
	SessionID           string    `gorm:"type:char(36);primaryKey"`
	SourceChannel       string    `gorm:"type:varchar(100)"`
	ResumeFilename      string    `gorm:"type:varchar(255)"`
	ResumeObjectKey     string    `gorm:"type:varchar(1024)"` // MinIO中原始简历文件的对象键
	ResumeTextObjectKey string    `gorm:"type:varchar(1024)"` // MinIO中解析文本的对象键
	ResumeTextMD5       string    `gorm:"type:char(32);index:idx_ss_resume_text_md5"`
	JDFilename          string    `gorm:"type:varchar(255)"`
	JDObjectKey         string    `gorm:"type:varchar(1024)"`
	JDTextObjectKey     string    `gorm:"type:varchar(1024)"`
	ChunkCount          int       `gorm:"type:int;default:0"` // 已索引的简历分块数
	Status              string    `gorm:"type:varchar(50);default:'INDEXED';index:idx_ss_status"`
	CreatedAt           time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt           time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (ScreeningSession) TableName() string {
	return "screening_sessions"
}

// AnalysisRecord 匹配分析结果表，一个会话对应最近一次分析
type AnalysisRecord struct {
	AnalysisID        uint64         `gorm:"primaryKey;autoIncrement"`
	SessionID         string         `gorm:"type:char(36);not null;uniqueIndex:idx_ar_session_unique"`
	MatchScore        float64        `gorm:"type:float;not null;index:idx_ar_match_score"`
	StrengthsJSON     datatypes.JSON `gorm:"type:json"`
	GapsJSON          datatypes.JSON `gorm:"type:json"`
	KeyInsightsJSON   datatypes.JSON `gorm:"type:json"`
	SkillOverlapJSON  datatypes.JSON `gorm:"type:json"`
	MissingSkillsJSON datatypes.JSON `gorm:"type:json"`
	CreatedAt         time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt         time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`

	Session *ScreeningSession `gorm:"foreignKey:SessionID;references:SessionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (AnalysisRecord) TableName() string {
	return "analysis_records"
}

// StringSliceToJSON 将字符串切片转换为datatypes.JSON，nil视为空列表
func StringSliceToJSON(items []string) datatypes.JSON {
	if items == nil {
		items = []string{}
	}
	bytes, err := json.Marshal(items)
	if err != nil {
		return datatypes.JSON("[]")
	}
	return bytes
}

// JSONToStringSlice 将datatypes.JSON解析为字符串切片，空值返回空切片
func JSONToStringSlice(data datatypes.JSON) ([]string, error) {
	if len(data) == 0 {
		return []string{}, nil
	}
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}
