package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

type ctxKey string

const CtxRequestID ctxKey = "requestID"

const HeaderRequestID = "X-Request-ID"

// RequestID reaproveita o X-Request-ID recebido ou gera um uuid.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(HeaderRequestID))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		ctx := context.WithValue(r.Context(), CtxRequestID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDFrom retorna o id da requisição guardado no contexto.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(CtxRequestID).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// RequestLog registra método, rota, status e duração.
func RequestLog(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			log.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", RequestIDFrom(r.Context())),
				zap.String("remote", r.RemoteAddr),
			)
		})
	}
}

// CORS com origens vindas da configuração; lista vazia libera todas.
func CORS(origins []string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Accept-Language", HeaderRequestID},
		ExposedHeaders:   []string{HeaderRequestID},
		AllowCredentials: len(origins) > 0,
	})
	return c.Handler
}

// zapRecoveryLogger adapta o zap para o RecoveryHandler do gorilla/handlers.
type zapRecoveryLogger struct{ log *zap.Logger }

func (l zapRecoveryLogger) Println(v ...interface{}) {
	l.log.Error("panic recuperado", zap.Any("panic", v))
}

// Chain monta a ordem: proxy headers -> request id -> log -> CORS -> recovery -> rotas.
func Chain(h http.Handler, log *zap.Logger, origins []string) http.Handler {
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(zapRecoveryLogger{log}), handlers.PrintRecoveryStack(false))(h)
	h = CORS(origins)(h)
	h = RequestLog(log)(h)
	h = RequestID(h)
	return handlers.ProxyHeaders(h)
}
