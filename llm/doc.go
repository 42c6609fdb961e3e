/*
包 llm 提供统一的大语言模型流式接入层。

# 概述

本包屏蔽不同模型服务商在消息结构、工具调用和流式协议上的差异，
对上层暴露一致的 [Provider] 契约：输入规范化的 [GenerateRequest]，
输出有序的 [StreamChunk] 通道。

# 核心接口

  - [Provider]：GenerateResponse 返回可取消的 chunk 通道
  - [ToolCallAccumulator]：单次生成内的工具调用状态机（IDLE → OPEN → CLOSED）
  - [ProviderRegistry]：按名称管理 Provider，并按 "provider/model" 路由
  - [CredentialOverride]：通过 context 覆盖单次请求的凭据

# 历史裁剪

[PrepareHistory] 将 system 消息并入指令块，并丢弃首条 user 消息之前的轮次，
供要求严格 user/model 交替的 Provider 使用。
*/
package llm
