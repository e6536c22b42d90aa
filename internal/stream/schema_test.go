package stream

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDecodeEnvelope(t *testing.T) {
	t.Parallel()

	env, err := DecodeEnvelope([]byte(`{"type":2,"is_error":false,"content":"{}"}`))
	if err != nil {
		t.Fatalf("DecodeEnvelope: %v", err)
	}
	want := Envelope{Category: CategoryInstance, Content: "{}"}
	if diff := cmp.Diff(want, env); diff != "" {
		t.Fatalf("unexpected envelope (-want +got):\n%s", diff)
	}
}

func TestDecodeEnvelopeRejectsBadInput(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"not json":         `hello`,
		"missing content":  `{"type":0,"is_error":false}`,
		"missing is_error": `{"type":0,"content":"x"}`,
		"unknown type":     `{"type":7,"is_error":false,"content":"x"}`,
		"string type":      `{"type":"0","is_error":false,"content":"x"}`,
		"object content":   `{"type":0,"is_error":false,"content":{}}`,
	}
	for name, raw := range cases {
		name, raw := name, raw
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if _, err := DecodeEnvelope([]byte(raw)); err == nil {
				t.Fatalf("expected error for %s", raw)
			}
		})
	}
}

func TestCategoryString(t *testing.T) {
	t.Parallel()

	got := make([]string, 0, len(Categories))
	for _, c := range Categories {
		got = append(got, c.String())
	}
	want := []string{"deployment", "server", "instance", "error", "sync"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected names (-want +got):\n%s", diff)
	}
	if Category(9).Valid() {
		t.Fatalf("category 9 should be invalid")
	}
}

func TestParseInstanceEventActiveIP(t *testing.T) {
	t.Parallel()

	evt, err := ParseInstanceEvent(`{"type":"active_ip_update","data":"1.2.3.4"}`)
	if err != nil {
		t.Fatalf("ParseInstanceEvent: %v", err)
	}
	if evt.Type != InstanceActiveIPUpdate {
		t.Fatalf("unexpected type %q", evt.Type)
	}
	ip, err := evt.Text()
	if err != nil || ip != "1.2.3.4" {
		t.Fatalf("expected ip 1.2.3.4, got %q (%v)", ip, err)
	}
}

func TestParseInstanceEventRejectsUnknownType(t *testing.T) {
	t.Parallel()

	if _, err := ParseInstanceEvent(`{"type":"exploded","data":1}`); err == nil {
		t.Fatalf("expected unknown type to fail")
	}
	if _, err := ParseInstanceEvent(`{"type":"created"}`); err == nil {
		t.Fatalf("expected missing data to fail")
	}
	var schemaErr *SchemaError
	_, err := ParseInstanceEvent(`{"data":1}`)
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
}

func TestServerEventPlayers(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		content string
		want    []string
		wantErr bool
	}{
		{name: "encoded string", content: `{"type":"online_players_update","data":"[\"a\",\"b\"]"}`, want: []string{"a", "b"}},
		{name: "bare array", content: `{"type":"online_players_update","data":["c"]}`, want: []string{"c"}},
		{name: "empty", content: `{"type":"online_players_update","data":"[]"}`, want: []string{}},
		{name: "garbage string", content: `{"type":"online_players_update","data":"not-json"}`, wantErr: true},
		{name: "object", content: `{"type":"online_players_update","data":{"a":1}}`, wantErr: true},
		{name: "null", content: `{"type":"online_players_update","data":null}`, wantErr: true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			evt, err := ParseServerEvent(tc.content)
			if err != nil {
				t.Fatalf("ParseServerEvent: %v", err)
			}
			players, err := evt.Players()
			if tc.wantErr {
				if !errors.Is(err, ErrNotPlayerList) {
					t.Fatalf("expected ErrNotPlayerList, got %v (%v)", err, players)
				}
				return
			}
			if err != nil {
				t.Fatalf("Players: %v", err)
			}
			if diff := cmp.Diff(tc.want, players); diff != "" {
				t.Fatalf("unexpected players (-want +got):\n%s", diff)
			}
		})
	}
}

func TestServerEventInt(t *testing.T) {
	t.Parallel()

	for _, content := range []string{
		`{"type":"online_count_update","data":5}`,
		`{"type":"online_count_update","data":"5"}`,
	} {
		evt, err := ParseServerEvent(content)
		if err != nil {
			t.Fatalf("ParseServerEvent(%s): %v", content, err)
		}
		n, err := evt.Int()
		if err != nil || n != 5 {
			t.Fatalf("expected 5 from %s, got %d (%v)", content, n, err)
		}
	}
}

func TestParseErrorAndSyncEvents(t *testing.T) {
	t.Parallel()

	evt, err := ParseErrorEvent(`{"details":"disk full"}`)
	if err != nil || evt.Details != "disk full" {
		t.Fatalf("unexpected error event %+v (%v)", evt, err)
	}
	if _, err := ParseErrorEvent(`{"details":3}`); err == nil {
		t.Fatalf("expected non-string details to fail")
	}

	sync, err := ParseSyncEvent(`{"syncType":"clear_last_event_id"}`)
	if err != nil || sync.SyncType != SyncClearLastEventID {
		t.Fatalf("unexpected sync event %+v (%v)", sync, err)
	}
	_, err = ParseSyncEvent(`{"syncType":"reboot"}`)
	if err == nil || !strings.Contains(err.Error(), "schema") {
		t.Fatalf("expected schema failure, got %v", err)
	}
	if _, err := ParseSyncEvent(`{`); err == nil {
		t.Fatalf("expected invalid json to fail")
	}
}
