/*
包 database 提供基于 GORM 的数据库连接与连接池管理。

# 概述

Open 根据驱动名（postgres、mysql、sqlite）选择 GORM Dialector 并建立连接，
随后交给 PoolManager 统一配置连接池、定时健康检查与统计采集。
持久化层的 SQL 存储直接使用 PoolManager.DB() 返回的 *gorm.DB。

# 核心类型

  - Config：驱动、DSN 与连接池配置。
  - PoolManager：持有 GORM DB 与底层 sql.DB，提供 DB()、Ping()、Stats()、Close()。
  - PoolConfig：最大空闲/打开连接数、连接生命周期与健康检查间隔。
  - PoolStats：友好格式的连接池统计信息，可通过 OnStats 回调上报到指标系统。
*/
package database
