/*
# 概述

包 providers 是三个厂商适配器（openaicompat、anthropic、gemini）共用的基础层：
配置结构、上游错误映射、SSE 读取，以及包裹任意 llm.Provider 的重试装饰器。

# 核心类型

  - BaseProviderConfig：APIKey、BaseURL、Model、Timeout
  - OpenAIConfig / ClaudeConfig / GeminiConfig：各适配器的专有字段
  - RetryableProvider：线性退避重试，整段缓冲每次尝试，成功后才向调用方发出
  - RetryConfig：首次之后的重试次数与线性退避步长

# 核心函数

  - MapHTTPError：任何上游非 2xx 都映射为 TransientStreamError；401/403 标记为不可重试，仅用于上报
  - WrapTransportError：连接与读取失败同样归为 TransientStreamError
  - ReadSSE：按 event/data 行解析 SSE，空行分隔事件，遵守 ctx 取消
  - ReadErrorMessage：从错误响应体中提取可读信息
  - ChooseModel：请求模型优先，否则用默认模型
*/
package providers
