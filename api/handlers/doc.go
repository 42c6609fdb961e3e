/*
Package handlers 提供 streamrelay HTTP API 的请求处理器实现。

# 核心类型

  - ChatHandler：生成流式接口，支持 SSE 与 WebSocket 两种传输
  - ToolsHandler：工具列表与工具调用执行
  - HealthHandler：服务健康检查（/health, /ready, /version）
  - Response：统一 JSON 响应结构（success + data + error + timestamp）
  - ResponseWriter：包装 http.ResponseWriter 以捕获状态码与写出字节数

# 错误映射

流开始之前的错误按错误码映射为 HTTP 状态码：TASK_NOT_FOUND / TOOL_NOT_FOUND → 404，
CONFIGURATION_ERROR → 500，GENERATION_FAILED → 502。
SSE 处理器会先读取第一条记录再写响应头，因此生成在产出任何内容前失败时
调用方仍能得到正确的状态码；之后的失败以错误记录结束流。
*/
package handlers
