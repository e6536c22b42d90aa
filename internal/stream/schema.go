package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const envelopeSchemaJSON = `{
	"type": "object",
	"required": ["type", "is_error", "content"],
	"properties": {
		"type": {"type": "integer", "enum": [0, 1, 2, 3, 4]},
		"is_error": {"type": "boolean"},
		"content": {"type": "string"}
	}
}`

const instanceSchemaJSON = `{
	"type": "object",
	"required": ["type", "data"],
	"properties": {
		"type": {"enum": ["notify", "active_status_update", "active_ip_update", "created", "deployment_task_status_update", "create_and_deploy_failed", "create_and_deploy_step"]}
	}
}`

const serverSchemaJSON = `{
	"type": "object",
	"required": ["type", "data"],
	"properties": {
		"type": {"enum": ["notify", "online_count_update", "online_players_update"]}
	}
}`

const errorSchemaJSON = `{
	"type": "object",
	"required": ["details"],
	"properties": {
		"details": {"type": "string"}
	}
}`

const syncSchemaJSON = `{
	"type": "object",
	"required": ["syncType"],
	"properties": {
		"syncType": {"enum": ["clear_last_event_id"]}
	}
}`

var (
	envelopeSchema = mustSchema(envelopeSchemaJSON)
	instanceSchema = mustSchema(instanceSchemaJSON)
	serverSchema   = mustSchema(serverSchemaJSON)
	errorSchema    = mustSchema(errorSchemaJSON)
	syncSchema     = mustSchema(syncSchemaJSON)
)

func mustSchema(src string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("stream: invalid schema: %v", err))
	}
	return schema
}

// SchemaError lists the violations reported for a payload.
type SchemaError struct {
	Violations []string
}

func (e *SchemaError) Error() string {
	return "schema validation failed: " + strings.Join(e.Violations, "; ")
}

func validate(schema *gojsonschema.Schema, raw []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	if !result.Valid() {
		violations := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			violations = append(violations, e.String())
		}
		return &SchemaError{Violations: violations}
	}
	return nil
}

// InstanceEventType enumerates instance lifecycle events.
type InstanceEventType string

const (
	InstanceNotify                     InstanceEventType = "notify"
	InstanceActiveStatusUpdate         InstanceEventType = "active_status_update"
	InstanceActiveIPUpdate             InstanceEventType = "active_ip_update"
	InstanceCreated                    InstanceEventType = "created"
	InstanceDeploymentTaskStatusUpdate InstanceEventType = "deployment_task_status_update"
	InstanceCreateAndDeployFailed      InstanceEventType = "create_and_deploy_failed"
	InstanceCreateAndDeployStep        InstanceEventType = "create_and_deploy_step"
)

// ServerEventType enumerates game-server presence events.
type ServerEventType string

const (
	ServerNotify              ServerEventType = "notify"
	ServerOnlineCountUpdate   ServerEventType = "online_count_update"
	ServerOnlinePlayersUpdate ServerEventType = "online_players_update"
)

// SyncType enumerates server-directed client commands.
type SyncType string

const SyncClearLastEventID SyncType = "clear_last_event_id"

// InstanceEvent is the payload of an instance-category envelope.
type InstanceEvent struct {
	Type InstanceEventType `json:"type"`
	Data json.RawMessage   `json:"data"`
}

// Text returns Data as a string value.
func (e InstanceEvent) Text() (string, error) {
	return rawString(e.Data)
}

// Decode unmarshals Data into v.
func (e InstanceEvent) Decode(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// ServerEvent is the payload of a server-category envelope.
type ServerEvent struct {
	Type ServerEventType `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Text returns Data as a string value.
func (e ServerEvent) Text() (string, error) {
	return rawString(e.Data)
}

// Int returns Data as an integer, accepting numeric strings.
func (e ServerEvent) Int() (int, error) {
	var n int
	if err := json.Unmarshal(e.Data, &n); err == nil {
		return n, nil
	}
	s, err := rawString(e.Data)
	if err != nil {
		return 0, err
	}
	if err := json.Unmarshal([]byte(s), &n); err != nil {
		return 0, fmt.Errorf("data is not an integer: %q", s)
	}
	return n, nil
}

// ErrNotPlayerList is returned when player data is not a JSON array of names.
var ErrNotPlayerList = errors.New("player data is not an array of names")

// Players decodes online_players_update data. The server sends the list as a
// JSON-encoded string; a bare array is accepted too.
func (e ServerEvent) Players() ([]string, error) {
	raw := []byte(e.Data)
	if s, err := rawString(e.Data); err == nil {
		raw = []byte(s)
	}
	var players []string
	if err := json.Unmarshal(raw, &players); err != nil {
		return nil, ErrNotPlayerList
	}
	if players == nil {
		// null is not an array
		return nil, ErrNotPlayerList
	}
	return players, nil
}

// ErrorEvent is the payload of an error-category envelope.
type ErrorEvent struct {
	Details string `json:"details"`
}

// SyncEvent is the payload of a sync-category envelope.
type SyncEvent struct {
	SyncType SyncType `json:"syncType"`
}

func rawString(data json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return "", fmt.Errorf("data is not a string: %s", string(data))
	}
	return s, nil
}

// ParseInstanceEvent validates and decodes instance event content.
func ParseInstanceEvent(content string) (InstanceEvent, error) {
	var evt InstanceEvent
	if err := decodeWith(instanceSchema, content, &evt); err != nil {
		return InstanceEvent{}, err
	}
	switch evt.Type {
	case InstanceNotify, InstanceActiveStatusUpdate, InstanceActiveIPUpdate, InstanceCreated,
		InstanceDeploymentTaskStatusUpdate, InstanceCreateAndDeployFailed, InstanceCreateAndDeployStep:
		return evt, nil
	default:
		return InstanceEvent{}, fmt.Errorf("unknown instance event type %q", evt.Type)
	}
}

// ParseServerEvent validates and decodes server event content.
func ParseServerEvent(content string) (ServerEvent, error) {
	var evt ServerEvent
	if err := decodeWith(serverSchema, content, &evt); err != nil {
		return ServerEvent{}, err
	}
	switch evt.Type {
	case ServerNotify, ServerOnlineCountUpdate, ServerOnlinePlayersUpdate:
		return evt, nil
	default:
		return ServerEvent{}, fmt.Errorf("unknown server event type %q", evt.Type)
	}
}

// ParseErrorEvent validates and decodes error event content.
func ParseErrorEvent(content string) (ErrorEvent, error) {
	var evt ErrorEvent
	if err := decodeWith(errorSchema, content, &evt); err != nil {
		return ErrorEvent{}, err
	}
	return evt, nil
}

// ParseSyncEvent validates and decodes sync event content.
func ParseSyncEvent(content string) (SyncEvent, error) {
	var evt SyncEvent
	if err := decodeWith(syncSchema, content, &evt); err != nil {
		return SyncEvent{}, err
	}
	switch evt.SyncType {
	case SyncClearLastEventID:
		return evt, nil
	default:
		return SyncEvent{}, fmt.Errorf("unknown sync type %q", evt.SyncType)
	}
}

func decodeWith(schema *gojsonschema.Schema, content string, v interface{}) error {
	raw := []byte(content)
	if !json.Valid(raw) {
		return errors.New("content is not valid json")
	}
	if err := validate(schema, raw); err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
