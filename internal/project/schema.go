package project

// projectSchema is the JSON Schema a project file must satisfy after YAML decoding.
const projectSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["id", "name"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "name": {"type": "string", "minLength": 1},
    "tool": {"enum": ["ai", "function"]},
    "schema_fields": {"type": "array", "items": {"$ref": "#/definitions/field"}},
    "collections": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "name", "properties"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "name": {"type": "string", "minLength": 1},
          "description": {"type": "string"},
          "properties": {"type": "array", "minItems": 1, "items": {"$ref": "#/definitions/field"}}
        }
      }
    },
    "knowledge_documents": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "display_name"],
        "properties": {
          "id": {"type": "string"},
          "display_name": {"type": "string"},
          "description": {"type": "string"},
          "content": {"type": "string"},
          "content_file": {"type": "string"},
          "target_field": {"type": "string"}
        }
      }
    },
    "extraction_rules": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["rule_name", "rule_content"],
        "properties": {
          "rule_name": {"type": "string", "minLength": 1},
          "rule_content": {"type": "string"},
          "target_fields": {"type": "array", "items": {"type": "string"}}
        }
      }
    }
  },
  "definitions": {
    "field": {
      "type": "object",
      "required": ["id", "name", "type"],
      "properties": {
        "id": {"type": "string", "minLength": 1},
        "name": {"type": "string", "minLength": 1},
        "type": {"enum": ["TEXT", "NUMBER", "DATE", "CHOICE"]},
        "description": {"type": "string"},
        "auto_verification_confidence": {"type": "integer", "minimum": 0, "maximum": 100},
        "order_index": {"type": "integer"},
        "max_length": {"type": "integer", "minimum": 0},
        "min": {"type": "number"},
        "max": {"type": "number"},
        "decimals": {"type": "integer", "minimum": 0},
        "layout": {"type": "string"},
        "options": {"type": "array", "items": {"type": "string"}}
      }
    }
  }
}`
