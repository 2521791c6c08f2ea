package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"

	"coin-ledger.backend/internal/domain/entities"
	domainerrors "coin-ledger.backend/internal/domain/errors"
	"coin-ledger.backend/internal/infrastructure/idempotency"
	"coin-ledger.backend/internal/interfaces/http/response"
	"github.com/gin-gonic/gin"
)

const (
	IdempotencyHeader = "Idempotency-Key"

	// ReplayedHeader marks a response that was served from an earlier execution
	ReplayedHeader = "X-Idempotency-Replayed"

	// LedgerKeyKey is the context key for the user-scoped idempotency key
	LedgerKeyKey = "ledgerIdempotencyKey"

	maxIdempotencyKeyLength = 128
)

type requestGuard interface {
	ExecuteRequest(ctx context.Context, req idempotency.Request, fn func(ctx context.Context) (*idempotency.Result, error)) (*idempotency.Result, bool, error)
}

type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *responseWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// IdempotencyMiddleware requires an Idempotency-Key on the route, replays a
// finished response for the same user and key, and keeps a concurrent
// duplicate from reaching the handler. It must run after AuthMiddleware.
func IdempotencyMiddleware(guard requestGuard) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(IdempotencyHeader))
		if key == "" {
			response.Error(c, domainerrors.NewValidationError(IdempotencyHeader, "header is required"))
			c.Abort()
			return
		}
		if len(key) > maxIdempotencyKeyLength {
			response.Error(c, domainerrors.NewValidationError(IdempotencyHeader, "is too long"))
			c.Abort()
			return
		}

		userID, ok := GetUserID(c)
		if !ok {
			abortUnauthorized(c, "User not authenticated")
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			response.Error(c, domainerrors.BadRequest("Unable to read request body"))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		scoped := entities.ScopedIdempotencyKey(userID, key)
		c.Set(LedgerKeyKey, scoped)

		req := idempotency.Request{
			Key:         scoped,
			Fingerprint: fingerprint(c.Request.Method, c.Request.URL.Path, body),
		}
		res, replayed, err := guard.ExecuteRequest(c.Request.Context(), req, func(ctx context.Context) (*idempotency.Result, error) {
			w := &responseWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
			c.Writer = w
			c.Next()
			return &idempotency.Result{
				StatusCode:  w.Status(),
				ContentType: w.Header().Get("Content-Type"),
				Body:        w.body.Bytes(),
			}, nil
		})
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		if replayed {
			c.Header(ReplayedHeader, "true")
			contentType := res.ContentType
			if contentType == "" {
				contentType = "application/json; charset=utf-8"
			}
			c.Data(res.StatusCode, contentType, res.Body)
			c.Abort()
		}
	}
}

// GetLedgerKey returns the user-scoped idempotency key set by IdempotencyMiddleware
func GetLedgerKey(c *gin.Context) string {
	return c.GetString(LedgerKeyKey)
}

// MarkReplayed sets the replay header on a response built from an earlier ledger outcome
func MarkReplayed(c *gin.Context, replayed bool) {
	if replayed {
		c.Header(ReplayedHeader, "true")
	}
}

func fingerprint(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

