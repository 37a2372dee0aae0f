package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func serveMCP(t *testing.T, logger *zap.Logger, reqBody, respBody string) {
	t.Helper()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, reqBody, string(body), "body must be restored for the MCP server")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(respBody))
	})

	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(reqBody))
	MCPRequestLogger(logger)(handler).ServeHTTP(httptest.NewRecorder(), req)
}

func TestMCPRequestLogger(t *testing.T) {
	t.Run("successful tool call", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)

		serveMCP(t, zap.New(core),
			`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"get_table_schema","arguments":{"table_name":"orders"}}}`,
			`{"jsonrpc":"2.0","id":1,"result":{"content":[{"type":"text","text":"order_id | user_id"}]}}`)

		require.Equal(t, 2, logs.Len())
		request := logs.All()[0]
		assert.Equal(t, "MCP request", request.Message)
		assert.Equal(t, "tools/call", request.ContextMap()["method"])
		assert.Equal(t, "get_table_schema", request.ContextMap()["tool"])

		response := logs.All()[1]
		assert.Equal(t, "MCP call succeeded", response.Message)
		assert.NotNil(t, response.ContextMap()["duration"])
	})

	t.Run("json-rpc error", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)

		serveMCP(t, zap.New(core),
			`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"nope"}}`,
			`{"jsonrpc":"2.0","id":2,"error":{"code":-32602,"message":"tool not found"}}`)

		require.Equal(t, 2, logs.Len())
		response := logs.All()[1]
		assert.Equal(t, "MCP call failed", response.Message)
		assert.Equal(t, int64(-32602), response.ContextMap()["error_code"])
	})

	t.Run("tool result flagged as error in SSE frame", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)

		serveMCP(t, zap.New(core),
			`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"get_sample_data","arguments":{"table_name":"secrets"}}}`,
			"event: message\ndata: {\"jsonrpc\":\"2.0\",\"id\":3,\"result\":{\"isError\":true,\"content\":[{\"type\":\"text\",\"text\":\"unknown table\"}]}}\n\n")

		require.Equal(t, 2, logs.Len())
		assert.Equal(t, "MCP tool returned an error", logs.All()[1].Message)
	})

	t.Run("long arguments are truncated", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)

		serveMCP(t, zap.New(core),
			`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"get_table_schema","arguments":{"table_name":"`+strings.Repeat("x", 500)+`"}}}`,
			`{"jsonrpc":"2.0","id":4,"result":{}}`)

		args := logs.All()[0].ContextMap()["arguments"].(map[string]any)
		assert.Len(t, args["table_name"], maxLoggedArgLength+3)
	})

	t.Run("nil logger passes through", func(t *testing.T) {
		called := false
		handler := MCPRequestLogger(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader("{}")))
		assert.True(t, called)
	})
}
