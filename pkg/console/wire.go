package console

import (
	"encoding/json"
	"fmt"

	"github.com/depreview/reviewbot/pkg/engine"
	"github.com/depreview/reviewbot/pkg/manifest"
	"github.com/depreview/reviewbot/pkg/version"
)

// envelope is the wire shape for every message in both directions: a type
// tag plus a raw payload, decoded according to the tag (spec.md §6's verb
// set has no common base type, so the wire format supplies one).
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client-to-server payloads.

type loginRequestPayload struct {
	Password string `json:"password"`
}

type pullRequestRequestPayload struct {
	Name string `json:"name"`
}

type rerunPackageRequestPayload struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Server-to-client payloads.

type updatesPayload struct {
	Delta map[string][]versionedRecord `json:"delta"`
}

type firstUpdatePayload struct {
	Snapshot   map[string][]versionedRecord `json:"snapshot"`
	IgnoreList []string                      `json:"ignoreList"`
}

type versionedRecord struct {
	Version     string `json:"version"`
	UpdateIndex int    `json:"updateIndex"`
	Status      string `json:"status"`
	Detail      string `json:"detail,omitempty"`
}

func toVersioned(p ProjectedRecord) versionedRecord {
	return versionedRecord{Version: p.Version, UpdateIndex: p.UpdateIndex, Status: p.Status, Detail: p.Detail}
}

// decodeCommand parses an incoming client envelope into the corresponding
// engine.Command, or reports isLogin for the one verb the engine itself
// never sees (authentication is purely a console/C10 concern).
func decodeCommand(env envelope) (cmd engine.Command, password string, isLogin bool, err error) {
	switch env.Type {
	case "LoginRequest":
		var p loginRequestPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, "", true, err
		}
		return nil, p.Password, true, nil
	case "ResetBackend":
		return engine.ResetBackend{}, "", false, nil
	case "ResetRules":
		return engine.ResetRules{}, "", false, nil
	case "PullRequestRequest":
		var p pullRequestRequestPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, "", false, err
		}
		name, err := manifest.ParsePackageName(p.Name)
		if err != nil {
			return nil, "", false, err
		}
		return engine.PullRequestRequest{Name: name}, "", false, nil
	case "RerunPackageRequest":
		var p rerunPackageRequestPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, "", false, err
		}
		name, err := manifest.ParsePackageName(p.Name)
		if err != nil {
			return nil, "", false, err
		}
		v, err := version.ParseVersion(p.Version)
		if err != nil {
			return nil, "", false, err
		}
		return engine.RerunPackageRequest{Name: name, Version: v}, "", false, nil
	default:
		return nil, "", false, fmt.Errorf("console: unknown message type %q", env.Type)
	}
}

func encodeEnvelope(msgType string, payload any) (envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return envelope{}, err
	}
	return envelope{Type: msgType, Payload: data}, nil
}
