/*
包 middleware 提供规范化请求的发送前改写链。

  - [RequestRewriter]：单个改写器
  - [RewriterChain]：按顺序执行改写器，任一失败即中断
  - [EmptyToolsCleaner]：去除空名与重名工具
  - [HistoryValidator]：校验 tool 消息均对应更早的工具调用
*/
package middleware
