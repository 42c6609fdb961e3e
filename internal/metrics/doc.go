/*
包 metrics 提供基于 Prometheus 的指标采集能力，覆盖 HTTP、生成请求、
工具执行与数据库连接池四个维度。

# 概述

Collector 通过 promauto.With 注册到调用方传入的 Registerer，
测试可以使用独立的 prometheus.Registry，避免重复注册冲突。
所有指标按 namespace 隔离。

# 主要能力

  - HTTP 指标：请求总数、请求耗时、响应体大小，状态码归类为 2xx/3xx/4xx/5xx。
  - 生成指标：按 provider/model/status 统计生成次数与耗时，
    重试次数，以及按 text/tool_call 分类的输出记录数。
  - 工具指标：按工具名与结果统计执行次数与耗时。
  - 数据库指标：活跃/空闲连接数 Gauge。

Collector 实现 agent.Recorder，可直接注入 agent.Service。
*/
package metrics
