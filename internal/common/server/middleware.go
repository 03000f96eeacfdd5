package server

import (
	"context"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/VehicleVault/VehicleVault/internal/common/config"
	"github.com/VehicleVault/VehicleVault/internal/common/logger"
	"github.com/VehicleVault/VehicleVault/internal/common/middleware"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
)

// Middleware HTTP 中间件
type Middleware func(http.Handler) http.Handler

// Chain 将多个中间件串起来（按传入顺序执行）。
func Chain(middlewares ...Middleware) Middleware {
	return func(next http.Handler) http.Handler {
		h := next
		for i := len(middlewares) - 1; i >= 0; i-- {
			mw := middlewares[i]
			if mw == nil {
				continue
			}
			h = mw(h)
		}
		return h
	}
}

// statusRecorder 捕获写出的状态码，供访问日志使用。
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// RecoveryMiddleware 防止 panic 直接把进程打崩，并记录栈信息。
func RecoveryMiddleware(log logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if log != nil {
						log.Errorf("panic in http handler method=%s path=%s err=%v stack=%s",
							r.Method, r.URL.Path, rec, string(debug.Stack()))
					}
					InternalError(w)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// AccessLogMiddleware 记录每个 HTTP 请求的状态码/耗时。
func AccessLogMiddleware(log logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)
			cost := time.Since(start)

			if log != nil {
				fields := map[string]interface{}{
					"method": r.Method,
					"path":   r.URL.Path,
					"status": rec.status,
					"cost":   cost.String(),
				}
				if rec.status >= 500 {
					log.WithFields(fields).Warn("http request failed")
				} else {
					log.WithFields(fields).Info("http request ok")
				}
			}
		})
	}
}

// TracingMiddleware 基于 OpenTracing 的最小 server 中间件：
// - 从请求头里提取上游 span context
// - 创建 server span 并注入 ctx，方便业务侧 opentracing.StartSpanFromContext 使用
func TracingMiddleware(serviceName string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tracer := opentracing.GlobalTracer()

			var parent opentracing.SpanContext
			if sc, err := tracer.Extract(opentracing.HTTPHeaders,
				opentracing.HTTPHeadersCarrier(r.Header)); err == nil {
				parent = sc
			}

			operation := r.Method + " " + r.URL.Path
			var span opentracing.Span
			if parent != nil {
				span = tracer.StartSpan(operation, ext.RPCServerOption(parent))
			} else {
				span = tracer.StartSpan(operation)
			}
			defer span.Finish()

			ext.SpanKindRPCServer.Set(span)
			ext.Component.Set(span, "http")
			ext.HTTPMethod.Set(span, r.Method)
			ext.HTTPUrl.Set(span, r.URL.String())
			if serviceName != "" {
				span.SetTag("service", serviceName)
			}

			next.ServeHTTP(w, r.WithContext(opentracing.ContextWithSpan(r.Context(), span)))
		})
	}
}

// RateLimitMiddleware 全局限流；超出时返回 429。
func RateLimitMiddleware(limiter middleware.RateLimiter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter != nil && !limiter.Allow(r.Context()) {
				Throttled(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type authContextKey struct{}

// AuthInfo 通过 token 解析出的调用方身份（放入 ctx，供业务侧使用）。
type AuthInfo struct {
	UserID   string
	Username string
}

// AuthFromContext 从 ctx 中取出鉴权信息。
func AuthFromContext(ctx context.Context) (AuthInfo, bool) {
	v := ctx.Value(authContextKey{})
	if v == nil {
		return AuthInfo{}, false
	}
	ai, ok := v.(AuthInfo)
	return ai, ok
}

// ContextWithAuth 将鉴权信息写入 ctx（测试注入用）。
func ContextWithAuth(ctx context.Context, ai AuthInfo) context.Context {
	return context.WithValue(ctx, authContextKey{}, ai)
}

// TokenResolver 将不透明 token 解析为调用方身份。
// token 未知时返回 ok=false；仅基础设施故障才返回 error。
type TokenResolver interface {
	ResolveToken(ctx context.Context, key string) (AuthInfo, bool, error)
}

// TokenAuthMiddleware 不透明 token 鉴权：
// - 从 `Authorization: Token <key>`（或 Bearer 前缀）读取凭证
// - 逐请求到 Identity Store 解析 token，将 AuthInfo 写入 ctx
// - 匿名可访问的路径通过 cfg.PublicPaths 放行
func TokenAuthMiddleware(cfg config.AuthConfig, resolver TokenResolver, log logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled {
				next.ServeHTTP(w, r)
				return
			}
			if isPublicPath(cfg.PublicPaths, r.Method, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			if resolver == nil {
				if log != nil {
					log.Warn("auth enabled but token resolver is nil")
				}
				Unauthenticated(w, "Authentication credentials were not provided.")
				return
			}

			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				Unauthenticated(w, "Authentication credentials were not provided.")
				return
			}

			key := raw
			lower := strings.ToLower(key)
			switch {
			case strings.HasPrefix(lower, "token "):
				key = strings.TrimSpace(key[len("token "):])
			case strings.HasPrefix(lower, "bearer "):
				key = strings.TrimSpace(key[len("bearer "):])
			}
			if key == "" {
				Unauthenticated(w, "Invalid token.")
				return
			}

			ai, ok, err := resolver.ResolveToken(r.Context(), key)
			if err != nil {
				if log != nil {
					log.Errorf("resolve token failed: %v", err)
				}
				InternalError(w)
				return
			}
			if !ok {
				Unauthenticated(w, "Invalid token.")
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithAuth(r.Context(), ai)))
		})
	}
}

// isPublicPath 判断 method+path 是否在匿名白名单内。
// 条目格式为 "METHOD /path/" 或 "/path/"（不限方法）。
func isPublicPath(public []string, method, path string) bool {
	if path == "" || len(public) == 0 {
		return false
	}
	for _, entry := range public {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if m, p, found := strings.Cut(entry, " "); found {
			if strings.EqualFold(strings.TrimSpace(m), method) && strings.TrimSpace(p) == path {
				return true
			}
			continue
		}
		if entry == path {
			return true
		}
	}
	return false
}
