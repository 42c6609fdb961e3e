/*
包 persistence 提供会话历史与任务配置的存储实现。

# 概述

agent 包只定义读取侧接口（agent.MessageStore / agent.TaskStore），
本包给出可插拔的后端实现，使上层无需关心底层存储细节。

# 核心接口

  - Store: 所有存储的基础接口，提供 Close 和 Ping 健康检查。
  - MessageStore: 按线程读取最近 N 条消息（按时间正序），
    AppendMessages 仅用于初始化与测试数据写入。
  - TaskStore: 按名称解析任务配置，缺失时返回 TASK_NOT_FOUND。

# 后端

  - Memory: 开发与测试使用，重启后数据丢失。
  - SQL: 基于 GORM，支持 postgres、mysql 与 sqlite，表结构由 AutoMigrate 维护。
  - Redis: 每个线程一个 List，任务配置存于 Hash。
*/
package persistence
