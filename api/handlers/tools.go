package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/streamrelay/llm/tools"
	"github.com/BaSui01/streamrelay/types"
)

// maxToolCalls bounds one execute request.
const maxToolCalls = 32

// ToolsHandler 工具接口处理器
type ToolsHandler struct {
	registry *tools.Registry
	executor *tools.Executor
	logger   *zap.Logger
}

// ExecuteToolsRequest carries tool calls exactly as they were streamed.
type ExecuteToolsRequest struct {
	ToolCalls []types.ToolCall `json:"tool_calls"`
}

// ExecuteToolsResponse returns per-call results and the tool messages to
// append to the thread, both in call order.
type ExecuteToolsResponse struct {
	Results  []tools.ToolResult `json:"results"`
	Messages []types.Message    `json:"messages"`
}

// NewToolsHandler 创建工具处理器
func NewToolsHandler(registry *tools.Registry, executor *tools.Executor, logger *zap.Logger) *ToolsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ToolsHandler{
		registry: registry,
		executor: executor,
		logger:   logger.With(zap.String("handler", "tools")),
	}
}

// HandleList 返回已注册的工具定义
// @Summary 工具列表
// @Tags 工具
// @Produce json
// @Router /api/v1/tools [get]
func (h *ToolsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, h.registry.List())
}

// HandleExecute 执行模型发出的工具调用。单个工具失败不会使请求失败，
// 错误写入对应结果。
// @Summary 执行工具调用
// @Tags 工具
// @Accept json
// @Produce json
// @Router /api/v1/tools/execute [post]
func (h *ToolsHandler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req ExecuteToolsRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	switch {
	case len(req.ToolCalls) == 0:
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "tool_calls is required", h.logger)
		return
	case len(req.ToolCalls) > maxToolCalls:
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "too many tool calls", h.logger)
		return
	}
	for _, c := range req.ToolCalls {
		if c.ID == "" || c.Name == "" {
			WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "tool call id and name are required", h.logger)
			return
		}
	}

	results := h.executor.Execute(r.Context(), req.ToolCalls)
	WriteSuccess(w, ExecuteToolsResponse{
		Results:  results,
		Messages: tools.Messages(results),
	})
}
