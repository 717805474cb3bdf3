package api

import (
	"encoding/json"

	"google.golang.org/protobuf/types/known/structpb"
)

// toStruct converts a request or result into the google.protobuf.Struct
// carried on the wire, using its JSON field names.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	payload := map[string]any{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	return structpb.NewStruct(payload)
}

// fromStruct fills v from a google.protobuf.Struct. A nil struct leaves v
// untouched.
func fromStruct(s *structpb.Struct, v any) error {
	if s == nil {
		return nil
	}
	raw, err := json.Marshal(s.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
