package router

import (
	"context"
	"errors"
	"io"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/keyauth"

	"resume-screener-go/internal/api/handler"
	"resume-screener-go/internal/config"
	"resume-screener-go/internal/constants"
	"resume-screener-go/internal/parser"
)

// ChatRequest 问答请求体
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
	TopK      int    `json:"top_k"`
}

// RegisterRoutes 注册 API 路由
func RegisterRoutes(h *server.Hertz, cfg *config.Config, screeningHandler *handler.ScreeningHandler) {
	api := h.Group("/api/v1")

	// 配置了API Key时启用认证中间件
	if cfg.Server.APIKey != "" {
		api.Use(keyauth.New(
			keyauth.WithKeyLookUp("header:Authorization", "Bearer"),
			keyauth.WithValidator(func(c context.Context, ctx *app.RequestContext, key string) (bool, error) {
				return key == cfg.Server.APIKey, nil
			}),
		))
	}

	api.POST("/resume/upload", func(c context.Context, ctx *app.RequestContext) {
		fileHeader, err := ctx.FormFile("file")
		if err != nil {
			ctx.JSON(consts.StatusBadRequest, utils.H{"error": "文件未找到"})
			return
		}

		sourceChannel := ctx.PostForm("source_channel")
		if sourceChannel == "" {
			sourceChannel = constants.SourceChannelDefault
		}

		file, err := fileHeader.Open()
		if err != nil {
			ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "打开文件失败"})
			return
		}
		defer file.Close()

		resp, err := screeningHandler.HandleResumeUpload(c, file, fileHeader.Size, fileHeader.Filename, sourceChannel)
		if err != nil {
			ctx.JSON(statusForError(err), utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(consts.StatusOK, resp)
	})

	api.POST("/jd/upload", func(c context.Context, ctx *app.RequestContext) {
		sessionID := ctx.PostForm("session_id")
		if sessionID == "" {
			ctx.JSON(consts.StatusBadRequest, utils.H{"error": "session_id 不能为空"})
			return
		}

		// 文件和纯文本二选一
		var fileBytes []byte
		var filename string
		if fileHeader, err := ctx.FormFile("file"); err == nil {
			file, err := fileHeader.Open()
			if err != nil {
				ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "打开文件失败"})
				return
			}
			defer file.Close()
			content, err := io.ReadAll(file)
			if err != nil {
				ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "读取文件失败"})
				return
			}
			fileBytes = content
			filename = fileHeader.Filename
		}

		rawText := ctx.PostForm("text")
		if len(fileBytes) == 0 && rawText == "" {
			ctx.JSON(consts.StatusBadRequest, utils.H{"error": "需要提供 file 或 text"})
			return
		}

		resp, err := screeningHandler.HandleJDUpload(c, sessionID, fileBytes, filename, rawText)
		if err != nil {
			ctx.JSON(statusForError(err), utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(consts.StatusOK, resp)
	})

	api.GET("/analysis", func(c context.Context, ctx *app.RequestContext) {
		sessionID := ctx.Query("session_id")
		if sessionID == "" {
			ctx.JSON(consts.StatusBadRequest, utils.H{"error": "session_id 不能为空"})
			return
		}

		analysis, err := screeningHandler.HandleAnalysis(c, sessionID)
		if err != nil {
			ctx.JSON(statusForError(err), utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(consts.StatusOK, analysis)
	})

	api.POST("/chat", func(c context.Context, ctx *app.RequestContext) {
		var req ChatRequest
		if err := ctx.BindAndValidate(&req); err != nil {
			ctx.JSON(consts.StatusBadRequest, utils.H{"error": "请求体格式错误"})
			return
		}
		if req.SessionID == "" || req.Question == "" {
			ctx.JSON(consts.StatusBadRequest, utils.H{"error": "session_id 和 question 不能为空"})
			return
		}

		resp, err := screeningHandler.HandleChat(c, req.SessionID, req.Question, req.TopK)
		if err != nil {
			ctx.JSON(statusForError(err), utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(consts.StatusOK, resp)
	})

	api.DELETE("/session/:id", func(c context.Context, ctx *app.RequestContext) {
		sessionID := ctx.Param("id")
		if err := screeningHandler.HandleSessionDelete(c, sessionID); err != nil {
			ctx.JSON(statusForError(err), utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(consts.StatusOK, utils.H{"session_id": sessionID, "status": constants.SessionStatusCleared})
	})

	h.GET("/health", func(c context.Context, ctx *app.RequestContext) {
		ctx.JSON(consts.StatusOK, utils.H{"status": "ok"})
	})
}

// statusForError 把业务错误映射为HTTP状态码
func statusForError(err error) int {
	switch {
	case errors.Is(err, handler.ErrResumeNotUploaded), errors.Is(err, handler.ErrJDNotUploaded):
		return consts.StatusBadRequest
	case errors.Is(err, parser.ErrBackendUnavailable):
		return consts.StatusServiceUnavailable
	default:
		return consts.StatusInternalServerError
	}
}
