/*
# 概述

包 openai 提供 OpenAI 的 Provider 适配实现。消息映射、SSE 解析与工具调用
累积全部委托给 openaicompat，本包只负责默认地址、默认模型与
OpenAI-Organization 请求头。
*/
package openai
