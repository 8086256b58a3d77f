package webhook

import (
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// payloadSchemaJSON describes the nested WhatsApp Cloud API change shape the
// classifier understands. Only fields the pipeline reads are constrained.
const payloadSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["entry"],
  "properties": {
    "entry": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["changes"],
        "properties": {
          "changes": {
            "type": "array",
            "minItems": 1,
            "items": {
              "type": "object",
              "required": ["value"],
              "properties": { "value": { "$ref": "#/$defs/value" } }
            }
          }
        }
      }
    }
  },
  "$defs": {
    "value": {
      "type": "object",
      "properties": {
        "contacts": { "type": "array", "items": { "$ref": "#/$defs/contact" } },
        "messages": { "type": "array", "items": { "$ref": "#/$defs/message" } },
        "statuses": { "type": "array", "items": { "$ref": "#/$defs/status" } }
      }
    },
    "contact": {
      "type": "object",
      "required": ["wa_id", "profile"],
      "properties": {
        "wa_id": { "type": "string", "minLength": 1 },
        "profile": {
          "type": "object",
          "required": ["name"],
          "properties": { "name": { "type": "string" } }
        }
      }
    },
    "message": {
      "type": "object",
      "required": ["id", "from", "timestamp"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "from": { "type": "string" },
        "timestamp": { "type": ["string", "integer"] },
        "text": {
          "type": "object",
          "properties": { "body": { "type": "string" } }
        }
      }
    },
    "status": {
      "type": "object",
      "required": ["status"],
      "anyOf": [
        { "required": ["id"] },
        { "required": ["meta_msg_id"] }
      ],
      "properties": {
        "id": { "type": "string" },
        "meta_msg_id": { "type": "string" },
        "status": { "type": "string", "minLength": 1 }
      }
    }
  }
}`

// payloadSchema is compiled once; a failure here is a programming error.
var payloadSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(payloadSchemaJSON))
	if err != nil {
		panic(err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("payload.schema.json", doc); err != nil {
		panic(err)
	}
	sch, err := c.Compile("payload.schema.json")
	if err != nil {
		panic(err)
	}
	return sch
}
