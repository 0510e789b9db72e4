package cli

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// consoleEnvelope mirrors pkg/console's wire envelope (spec.md §6): a type
// tag plus a raw payload. The CLI talks to the console purely over this
// JSON contract, the same as any other client — it has no access to the
// console package's unexported wire types, by design.
type consoleEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type consoleVersionedRecord struct {
	Version     string `json:"version"`
	UpdateIndex int    `json:"updateIndex"`
	Status      string `json:"status"`
	Detail      string `json:"detail,omitempty"`
}

type consoleFirstUpdate struct {
	Snapshot   map[string][]consoleVersionedRecord `json:"snapshot"`
	IgnoreList []string                              `json:"ignoreList"`
}

type consoleUpdates struct {
	Delta map[string][]consoleVersionedRecord `json:"delta"`
}

const consoleLoginTimeout = 5 * time.Second

// consoleClient is a thin websocket wrapper shared by reset, status, and
// monitor — each dials the console, logs in, and either sends one command
// or reads the subscription stream.
type consoleClient struct {
	conn  *websocket.Conn
	First consoleFirstUpdate
}

func dialConsole(addr, secret string) (*consoleClient, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/ws"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("console: dial %s: %w", addr, err)
	}
	c := &consoleClient{conn: conn}
	if err := c.login(secret); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func (c *consoleClient) login(secret string) error {
	payload, err := json.Marshal(struct {
		Password string `json:"password"`
	}{Password: secret})
	if err != nil {
		return err
	}
	if err := c.conn.WriteJSON(consoleEnvelope{Type: "LoginRequest", Payload: payload}); err != nil {
		return fmt.Errorf("console: login: %w", err)
	}

	c.conn.SetReadDeadline(time.Now().Add(consoleLoginTimeout))
	defer c.conn.SetReadDeadline(time.Time{})

	env, err := c.read()
	if err != nil {
		return fmt.Errorf("console: login: %w", err)
	}
	if env.Type != "FirstUpdate" {
		return fmt.Errorf("console: login rejected")
	}
	return json.Unmarshal(env.Payload, &c.First)
}

func (c *consoleClient) read() (consoleEnvelope, error) {
	var env consoleEnvelope
	err := c.conn.ReadJSON(&env)
	return env, err
}

func (c *consoleClient) send(msgType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.conn.WriteJSON(consoleEnvelope{Type: msgType, Payload: data})
}

func (c *consoleClient) close() error {
	return c.conn.Close()
}
