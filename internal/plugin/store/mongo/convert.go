package mongo

import (
	"fmt"

	"github.com/chirino/console-migrate/internal/model"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// fromBSON turns a decoded document into plain Go maps and slices. Keys and
// relationship arrays become strings; ObjectIDs inside the payload are kept.
func fromBSON(raw bson.M) model.Document {
	doc := model.Document{}
	for k, v := range raw {
		if model.IsRefField(k) {
			doc[k] = refsFromBSON(v)
			continue
		}
		doc[k] = plain(v)
	}
	return doc
}

func refsFromBSON(v any) any {
	switch t := v.(type) {
	case bson.A:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = idString(item)
		}
		return out
	case []any:
		return refsFromBSON(bson.A(t))
	case nil:
		return nil
	default:
		return idString(t)
	}
}

func plain(v any) any {
	switch t := v.(type) {
	case bson.M:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = plain(item)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = plain(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = plain(item)
		}
		return out
	default:
		return v
	}
}

func toBSON(doc model.Document) bson.M {
	out := bson.M{}
	for k, v := range doc {
		out[k] = toBSONField(k, v)
	}
	return out
}

func toBSONField(field string, v any) any {
	if !model.IsRefField(field) {
		return v
	}
	switch t := v.(type) {
	case string:
		return toObjectID(t)
	case []string:
		return toObjectIDs(t)
	case []any:
		out := make(bson.A, len(t))
		for i, item := range t {
			if s, ok := item.(string); ok {
				out[i] = toObjectID(s)
			} else {
				out[i] = item
			}
		}
		return out
	default:
		return v
	}
}

// toObjectID maps a 24-hex key to its ObjectID; any other key is a plain string.
func toObjectID(id string) any {
	if oid, err := bson.ObjectIDFromHex(id); err == nil {
		return oid
	}
	return id
}

func toObjectIDs(ids []string) bson.A {
	out := make(bson.A, len(ids))
	for i, id := range ids {
		out[i] = toObjectID(id)
	}
	return out
}

func idString(v any) string {
	switch t := v.(type) {
	case bson.ObjectID:
		return t.Hex()
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}
