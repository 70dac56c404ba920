package constants

import "time"

// Redis Key 前缀和格式常量
// 统一命名规范: app:{module}:{entity}:{unique_id}
const (
	// AppPrefix 所有Redis Key的统一应用前缀
	AppPrefix = "app"

	// ChatModulePrefix 对话模块
	ChatModulePrefix = "chat"
	// SessionModulePrefix 会话模块
	SessionModulePrefix = "session"

	// EntityHistory 对话历史实体
	EntityHistory = "history"
	// EntityDocument 文档实体
	EntityDocument = "document"

	// KeyChatHistory 会话对话历史 (LIST)
	// 格式: app:chat:history:{sessionID}
	KeyChatHistory = AppPrefix + ":" + ChatModulePrefix + ":" + EntityHistory + ":%s"

	// KeySessionDocument 会话文档元信息缓存 (STRING)
	// 格式: app:session:document:{sessionID}
	KeySessionDocument = AppPrefix + ":" + SessionModulePrefix + ":" + EntityDocument + ":%s"
)

const (
	// ChatHistoryMaxLen 单个会话在Redis中保留的最大消息条数
	ChatHistoryMaxLen = 20
	// ChatHistoryWindow 转发给回答生成器的最近消息条数
	ChatHistoryWindow = 6
	// ChatHistoryTTL 对话历史的过期时间
	ChatHistoryTTL = 24 * time.Hour

	// SessionDocumentTTL 会话文档缓存的过期时间
	SessionDocumentTTL = 24 * time.Hour
)

const (
	// DocTypeResume 简历文档
	DocTypeResume = "resume"
	// DocTypeJD 岗位描述文档
	DocTypeJD = "jd"
)

const (
	// MaxRetrievalTopK 单次检索返回的chunk数量上限
	MaxRetrievalTopK = 10

	// SessionStatusIndexed 会话已完成简历索引
	SessionStatusIndexed = "INDEXED"
	// SessionStatusJDReady 会话已上传岗位描述
	SessionStatusJDReady = "JD_READY"
	// SessionStatusCleared 会话已清除
	SessionStatusCleared = "CLEARED"

	// SourceChannelDefault 默认上传来源
	SourceChannelDefault = "web_upload"
)
