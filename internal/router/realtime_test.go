package router_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"
)

const realtimeFrameSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["event", "data", "sent_at"],
	"properties": {
		"event": {"enum": ["request_created", "request_accepted", "status_updated", "new_message", "request_rated", "joined", "left", "error"]},
		"sent_at": {"type": "string", "format": "date-time"}
	},
	"allOf": [
		{
			"if": {"properties": {"event": {"const": "status_updated"}}},
			"then": {"properties": {"data": {
				"type": "object",
				"required": ["request_id", "status", "updated_by"],
				"properties": {"status": {"enum": ["in_progress", "ready", "delivered", "completed", "cancelled"]}}
			}}}
		},
		{
			"if": {"properties": {"event": {"const": "new_message"}}},
			"then": {"properties": {"data": {
				"type": "object",
				"required": ["id", "request_id", "sender_id", "receiver_id", "message", "message_type", "timestamp", "is_read"],
				"properties": {"message_type": {"enum": ["text", "image", "file"]}}
			}}}
		},
		{
			"if": {"properties": {"event": {"const": "error"}}},
			"then": {"properties": {"data": {"type": "object", "required": ["kind", "message"]}}}
		}
	]
}`

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func dialRealtime(t *testing.T, addr, token string) *websocket.Conn {
	t.Helper()

	url := fmt.Sprintf("ws://%s/api/realtime/ws?token=%s", addr, token)
	dialer := websocket.Dialer{HandshakeTimeout: 3 * time.Second}
	conn, resp, err := dialer.Dial(url, http.Header{"X-Correlation-ID": {"ws-test"}})
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn, schema *jsonschema.Schema) frame {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var generic interface{}
	require.NoError(t, json.Unmarshal(raw, &generic))
	require.NoError(t, schema.Validate(generic), string(raw))

	var out frame
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

// readUntil skips pool traffic until the wanted event arrives.
func readUntil(t *testing.T, conn *websocket.Conn, schema *jsonschema.Schema, event string) frame {
	t.Helper()
	for i := 0; i < 10; i++ {
		got := readFrame(t, conn, schema)
		if got.Event == event {
			return got
		}
	}
	t.Fatalf("event %s not received", event)
	return frame{}
}

func TestRealtimeWebsocketDeliversRequestEvents(t *testing.T) {
	schema, err := jsonschema.CompileString("realtime_frame.json", realtimeFrameSchema)
	require.NoError(t, err)

	api := newTestAPI(t)
	student := api.register("santi", "student")
	writer := api.register("wendy", "writer")
	outsider := api.register("oki", "student")
	addr := api.serve()

	id := api.createRequest(student)

	studentConn := dialRealtime(t, addr, student.Token)
	writerConn := dialRealtime(t, addr, writer.Token)
	outsiderConn := dialRealtime(t, addr, outsider.Token)

	require.NoError(t, studentConn.WriteJSON(map[string]interface{}{"action": "join_request", "request_id": id}))
	joined := readFrame(t, studentConn, schema)
	require.Equal(t, "joined", joined.Event)
	require.JSONEq(t, fmt.Sprintf(`{"request_id": %d}`, id), string(joined.Data))

	require.NoError(t, outsiderConn.WriteJSON(map[string]interface{}{"action": "join_request", "request_id": id}))
	rejected := readFrame(t, outsiderConn, schema)
	require.Equal(t, "error", rejected.Event)
	require.Contains(t, string(rejected.Data), `"kind":"forbidden"`)

	require.NoError(t, writerConn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	malformed := readFrame(t, writerConn, schema)
	require.Equal(t, "error", malformed.Event)
	require.Contains(t, string(malformed.Data), `"kind":"validation_error"`)

	status, _ := api.call(http.MethodPost, fmt.Sprintf("/api/requests/%d/accept", id), writer.Token, nil)
	require.Equal(t, http.StatusOK, status)

	accepted := readUntil(t, studentConn, schema, "request_accepted")
	require.Contains(t, string(accepted.Data), `"writer_name":"wendy"`)

	// The writer sees the claim on the pool topic even without joining.
	readUntil(t, writerConn, schema, "request_accepted")

	require.NoError(t, writerConn.WriteJSON(map[string]interface{}{"action": "join_request", "request_id": id}))
	readUntil(t, writerConn, schema, "joined")

	status, _ = api.call(http.MethodPost, fmt.Sprintf("/api/chat/%d", id), writer.Token, map[string]string{"message": "Starting tonight"})
	require.Equal(t, http.StatusCreated, status)

	message := readUntil(t, studentConn, schema, "new_message")
	var payload struct {
		Message     string `json:"message"`
		MessageType string `json:"message_type"`
	}
	require.NoError(t, json.Unmarshal(message.Data, &payload))
	require.Equal(t, "Starting tonight", payload.Message)
	require.Equal(t, "text", payload.MessageType)
	readUntil(t, writerConn, schema, "new_message")

	status, _ = api.call(http.MethodPost, fmt.Sprintf("/api/requests/%d/update-status", id), writer.Token, map[string]string{"status": "in_progress"})
	require.Equal(t, http.StatusOK, status)

	// Joined to both pool and the request topic, the student still receives one copy.
	update := readUntil(t, studentConn, schema, "status_updated")
	require.Contains(t, string(update.Data), `"status":"in_progress"`)

	require.NoError(t, studentConn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, raw, err := studentConn.ReadMessage()
	require.Error(t, err, "unexpected duplicate frame: %s", raw)
}

func TestRealtimeWebsocketRequiresToken(t *testing.T) {
	api := newTestAPI(t)
	addr := api.serve()

	dialer := websocket.Dialer{HandshakeTimeout: 3 * time.Second}
	_, resp, err := dialer.Dial(fmt.Sprintf("ws://%s/api/realtime/ws", addr), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()

	_, resp, err = dialer.Dial(fmt.Sprintf("ws://%s/api/realtime/ws?token=%s", addr, strings.Repeat("x", 20)), nil)
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()
}
