package repository

import (
	"fmt"

	"github.com/deppfellow/users-api/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// toDocument converts attributes into an insertable/settable document.
// The identifier is owned by the store and never taken from attributes.
func toDocument(attrs model.User) bson.M {
	doc := make(bson.M, len(attrs))
	for k, v := range attrs {
		if k == model.IDField {
			continue
		}
		doc[k] = v
	}
	return doc
}

// toUser converts a stored document into its external representation.
func toUser(doc bson.M) model.User {
	user := make(model.User, len(doc))
	for k, v := range doc {
		user[k] = normalize(v)
	}
	return user
}

// normalize replaces driver-specific values with JSON friendly ones.
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case primitive.ObjectID:
		return t.Hex()
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.Decimal128:
		return t.String()
	case primitive.M:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[k] = normalize(e)
		}
		return out
	case primitive.D:
		out := make(map[string]interface{}, len(t))
		for _, e := range t {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case primitive.A:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	default:
		return v
	}
}

// idString renders an inserted id in canonical form.
func idString(id interface{}) string {
	if oid, ok := id.(primitive.ObjectID); ok {
		return oid.Hex()
	}
	return fmt.Sprint(id)
}
