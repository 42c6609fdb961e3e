// Package tlsutil 提供集中式 TLS 配置与上游流式 HTTP 客户端（TLS 1.2+，仅 AEAD 密码套件）。
package tlsutil
