package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/schema-assistant/pkg/logging"
)

// maxLoggedArgLength truncates long argument values in MCP logs.
const maxLoggedArgLength = 200

// MCPRequestLogger returns middleware that logs MCP JSON-RPC calls: the
// method, tool name and arguments on the way in, and whether the call
// failed on the way out. Tool failures arrive either as JSON-RPC errors or
// as results flagged isError; both are logged as failures.
// Pass nil logger to disable logging.
func MCPRequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logger == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			bodyBytes, err := io.ReadAll(r.Body)
			if err != nil {
				logger.Error("Failed to read MCP request body", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))

			var rpcReq jsonRPCRequest
			if err := json.Unmarshal(bodyBytes, &rpcReq); err != nil {
				logger.Debug("Failed to parse MCP request JSON", zap.Error(err))
			}

			fields := []zap.Field{
				zap.String("request_id", logging.RequestID(r.Context())),
				zap.String("method", rpcReq.Method),
			}
			if rpcReq.Params.Name != "" {
				fields = append(fields, zap.String("tool", rpcReq.Params.Name))
			}

			logger.Debug("MCP request", append(fields, zap.Any("arguments", truncateArguments(rpcReq.Params.Arguments)))...)

			recorder := &mcpResponseRecorder{ResponseWriter: w}
			start := time.Now()

			next.ServeHTTP(recorder, r)

			fields = append(fields, zap.Duration("duration", time.Since(start)))

			rpcResp, ok := parseRPCResponse(recorder.body.Bytes())
			switch {
			case !ok:
				logger.Debug("MCP response not JSON-RPC", fields...)
			case rpcResp.Error != nil:
				logger.Info("MCP call failed", append(fields,
					zap.Int("error_code", rpcResp.Error.Code),
					zap.String("error_message", rpcResp.Error.Message))...)
			case rpcResp.Result.IsError:
				logger.Info("MCP tool returned an error", fields...)
			default:
				logger.Debug("MCP call succeeded", fields...)
			}
		})
	}
}

type jsonRPCRequest struct {
	Method string `json:"method"`
	Params struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"params"`
}

type jsonRPCResponse struct {
	Result struct {
		IsError bool `json:"isError"`
	} `json:"result"`
	Error *jsonRPCError `json:"error"`
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// parseRPCResponse accepts a plain JSON body or a single SSE "data:" event,
// which the streamable HTTP transport may use.
func parseRPCResponse(body []byte) (jsonRPCResponse, bool) {
	var resp jsonRPCResponse

	payload := bytes.TrimSpace(body)
	if bytes.HasPrefix(payload, []byte("event:")) || bytes.HasPrefix(payload, []byte("data:")) {
		for _, line := range strings.Split(string(payload), "\n") {
			if data, ok := strings.CutPrefix(strings.TrimSpace(line), "data:"); ok {
				payload = []byte(strings.TrimSpace(data))
				break
			}
		}
	}

	if err := json.Unmarshal(payload, &resp); err != nil {
		return resp, false
	}
	return resp, true
}

// mcpResponseRecorder tees the response body.
type mcpResponseRecorder struct {
	http.ResponseWriter
	body bytes.Buffer
}

func (r *mcpResponseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *mcpResponseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func truncateArguments(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}
	out := make(map[string]any, len(args))
	for k, v := range args {
		if s, ok := v.(string); ok {
			out[k] = logging.TruncateString(s, maxLoggedArgLength)
			continue
		}
		out[k] = v
	}
	return out
}
