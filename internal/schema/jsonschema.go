package schema

import (
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Validator renders the spec as a collection validator document,
// {$jsonSchema: {...}}, ready for collMod.
func (s *Spec) Validator() bson.D {
	return bson.D{{Key: "$jsonSchema", Value: s.JSONSchema()}}
}

// JSONSchema renders the spec in MongoDB's $jsonSchema dialect.
func (s *Spec) JSONSchema() bson.D {
	props := bson.D{}
	for _, name := range s.fieldNames() {
		props = append(props, bson.E{Key: name, Value: s.Fields[name].jsonSchema()})
	}
	if _, ok := s.Fields["_id"]; s.StrictMode && !ok {
		// _id is always present on stored documents.
		props = append(props, bson.E{Key: "_id", Value: bson.D{}})
	}

	doc := bson.D{{Key: "bsonType", Value: "object"}}
	if s.Description != "" {
		doc = append(doc, bson.E{Key: "description", Value: s.Description})
	}
	if req := s.RequiredFields(); len(req) > 0 {
		doc = append(doc, bson.E{Key: "required", Value: req})
	}
	doc = append(doc, bson.E{Key: "properties", Value: props})
	if s.StrictMode {
		doc = append(doc, bson.E{Key: "additionalProperties", Value: false})
	}
	return doc
}

func (f *Field) jsonSchema() bson.D {
	item := bson.D{{Key: "bsonType", Value: f.bsonType()}}
	if f.Min != nil {
		item = append(item, bson.E{Key: "minimum", Value: *f.Min})
	}
	if f.Max != nil {
		item = append(item, bson.E{Key: "maximum", Value: *f.Max})
	}
	if f.Pattern != "" {
		item = append(item, bson.E{Key: "pattern", Value: f.Pattern})
	}
	if len(f.Enum) > 0 {
		item = append(item, bson.E{Key: "enum", Value: f.Enum})
	}
	if !f.Array {
		return item
	}

	arr := bson.D{{Key: "bsonType", Value: "array"}, {Key: "items", Value: item}}
	if f.MinItems != nil {
		arr = append(arr, bson.E{Key: "minItems", Value: int32(*f.MinItems)})
	}
	return arr
}

func (f *Field) bsonType() interface{} {
	switch f.Type {
	case "string":
		return "string"
	case "boolean":
		return "bool"
	case "objectId", "date":
		return f.Type
	}
	switch f.Kind {
	case "int32", "int64":
		// The driver picks int or long for Go ints by magnitude.
		return bson.A{"int", "long"}
	default:
		// Writers are free to store whole numbers as ints.
		return "number"
	}
}
