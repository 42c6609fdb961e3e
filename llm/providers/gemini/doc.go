/*
# 概述

包 gemini 提供 Google Gemini 模型的 Provider 适配实现。该包直接对接
Gemini REST API（generativelanguage.googleapis.com），自行处理请求构建与
流式响应解析，不依赖 openaicompat 兼容层。

# 核心结构体

  - GeminiProvider：持有 http.Client、GeminiConfig 与 RewriterChain；
    使用 x-goog-api-key 请求头认证
  - geminiRequest / geminiResponse：Gemini 原生请求/响应结构
  - geminiContent / geminiPart：内容与分片（文本、函数调用、函数响应）

# 角色映射

  - assistant → model，tool → function
  - 指令放入 systemInstruction
  - 函数调用参数为 JSON 对象；函数响应的 name 由对应 ToolCall 的 id 解析
  - 无参数的工具声明省略 parameters 字段

# 历史改写

Gemini 不接受一次函数调用之后出现多个独立的函数响应轮次。
MergeFunctionResponses 在发送前把同一调用组的响应合并为紧跟调用轮次的一个轮次。

# 流式

端点为 /v1beta/models/{model}:streamGenerateContent?alt=sse。
函数调用整段到达，在 finishReason 或流结束时按顺序发出。
*/
package gemini
