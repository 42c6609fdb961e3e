/*
# 概述

包 claude 提供 Anthropic Messages API（/v1/messages）的内容块（content-block）
适配实现。

# 协议差异

  - 认证使用 x-api-key 请求头（非 Bearer Token）
  - 指令作为首条 user 文本消息注入，而不是 system 字段
  - tool 消息包装为 user 角色的 tool_result 内容块
  - 带 tool_calls 的 assistant 消息映射为 tool_use 内容块，input 为 JSON 对象
  - 流式 SSE 事件：content_block_start 打开工具调用，input_json_delta 追加参数片段，
    content_block_stop 关闭，message_stop 时按打开顺序统一发出
*/
package claude
