/*
包 server 提供 HTTP 服务器生命周期管理，支持非阻塞启动与优雅关闭。

# 核心类型

  - Manager：封装 net/http.Server，管理监听、服务、关闭与错误传播。
    streamrelay 用两个 Manager 分别承载 API 与 /metrics。
  - Config：监听地址、读写超时、空闲超时、最大请求头大小与关闭超时。

# 流式响应

SSE 与 WebSocket 连接可能持续整个生成过程，WriteTimeout 为 0 时不设写超时。
Shutdown 会先取消 BaseContext，使进行中的生成尽快结束，再等待连接排空。
*/
package server
