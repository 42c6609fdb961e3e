/*
Package main 提供 streamrelay 服务端程序入口。

# 概述

cmd/streamrelay 装配配置、日志、遥测、指标、存储、工具与 Provider，
对外提供流式生成、工具执行、健康检查和版本查询。

# 核心类型

  - Server：主服务器，管理 HTTP、Metrics 双端口及优雅关闭
  - Middleware：HTTP 中间件函数签名 func(http.Handler) http.Handler

# 主要能力

  - 子命令：serve（启动服务）、version、health
  - 路由：POST /api/v1/chat/stream（SSE）、GET /api/v1/chat/ws（WebSocket）、
    GET /api/v1/tools、POST /api/v1/tools/execute、/health、/ready、/version
  - 中间件链：Recovery、RequestID、OTelTracing、RequestLogger、
    MetricsMiddleware、RateLimiter（基于 IP）
  - Metrics 服务器：独立端口暴露 /metrics（Prometheus）
  - 未配置任务时写入默认的 global 与 home 任务
  - 优雅关闭：信号监听 → 关闭 HTTP（取消进行中的流）→ 关闭 Metrics →
    关闭存储与数据库 → 刷新遥测
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
