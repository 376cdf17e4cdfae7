// Package model holds the shapes exchanged between the layers: the user
// record, the response envelope and the diagnostic metadata.
package model

import "github.com/goccy/go-json"

// IDField is the name of the identifier attribute of every record.
const IDField = "_id"

// User is one record of the users collection. Attributes are free-form;
// IDField always holds the canonical 24-hex string id.
type User map[string]any

// ID returns the canonical string identifier, or "" when unset.
func (u User) ID() string {
	id, _ := u[IDField].(string)
	return id
}

// Clone returns a shallow copy of u. A nil user clones to an empty one.
func (u User) Clone() User {
	out := make(User, len(u)+1)
	for k, v := range u {
		out[k] = v
	}
	return out
}

// Without returns a copy of u without the identifier field.
func (u User) Without(field string) User {
	out := u.Clone()
	delete(out, field)
	return out
}

// Filter confirms which identity filter a delete matched.
type Filter map[string]string

// Metadata is the diagnostic projection of the connection state.
type Metadata struct {
	DBName         string `json:"dbName"`
	CollectionName string `json:"collectionName"`
	URI            string `json:"uri"`
	Connected      bool   `json:"connected"`
}

// Envelope is the JSON wrapper of every users endpoint response.
// Exactly one of Data, Error and Message is rendered: Error wins over
// Message, and Data is only rendered when both are empty.
type Envelope struct {
	Action  string
	Data    any
	Error   string
	Message string
}

func (e Envelope) MarshalJSON() ([]byte, error) {
	out := map[string]any{"action": e.Action}
	switch {
	case e.Error != "":
		out["error"] = e.Error
	case e.Message != "":
		out["message"] = e.Message
	default:
		out["data"] = e.Data
	}
	return json.Marshal(out)
}

// MetadataEnvelope is returned by the introspection endpoint.
type MetadataEnvelope struct {
	Action   string            `json:"action"`
	Metadata Metadata          `json:"metadata"`
	Env      map[string]string `json:"env"`
}
