// Package telemetry 初始化 streamrelay 的 OpenTelemetry 链路与指标导出（OTLP gRPC）。
//
// Providers 按作用域分发 Tracer 与 Meter：ScopeHTTP 供 HTTP 中间件使用，
// ScopeGeneration 供 agent.Service 为每次生成创建 span。
// GenerationMetrics 以 OTel 仪表记录生成耗时、重试次数与 chunk 数，
// 与 Prometheus Collector 一起挂在服务的 Recorder 上。
// 遥测禁用时所有访问器回退到全局 noop 实现，不连接外部服务。
package telemetry
