package profile

// Schema is the JSON Schema every profile document must satisfy. Rules
// that relate two fields (preAllocatedVUs <= maxVUs) live in Validate.
const Schema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "otpload profile",
  "type": "object",
  "required": ["scenario"],
  "additionalProperties": false,
  "properties": {
    "name": {"type": "string"},
    "setupTimeout": {"$ref": "#/definitions/duration"},
    "discardResponseBodies": {"type": "boolean"},
    "thresholds": {
      "type": "object",
      "additionalProperties": {
        "type": "array",
        "minItems": 1,
        "items": {"type": "string", "minLength": 1}
      }
    },
    "scenario": {
      "oneOf": [
        {"$ref": "#/definitions/constantVUs"},
        {"$ref": "#/definitions/rampingVUs"},
        {"$ref": "#/definitions/constantArrivalRate"},
        {"$ref": "#/definitions/rampingArrivalRate"}
      ]
    }
  },
  "definitions": {
    "duration": {
      "type": "string",
      "pattern": "^(0|([0-9]+(\\.[0-9]+)?(ns|us|µs|ms|s|m|h))+)$"
    },
    "count": {"type": "integer", "minimum": 0},
    "stage": {
      "type": "object",
      "required": ["duration", "target"],
      "additionalProperties": false,
      "properties": {
        "duration": {"$ref": "#/definitions/duration"},
        "target": {"$ref": "#/definitions/count"}
      }
    },
    "stages": {
      "type": "array",
      "minItems": 1,
      "items": {"$ref": "#/definitions/stage"}
    },
    "constantVUs": {
      "type": "object",
      "required": ["executor", "vus", "duration"],
      "additionalProperties": false,
      "properties": {
        "executor": {"const": "constant-vus"},
        "vus": {"type": "integer", "minimum": 1},
        "duration": {"$ref": "#/definitions/duration"},
        "gracefulStop": {"$ref": "#/definitions/duration"}
      }
    },
    "rampingVUs": {
      "type": "object",
      "required": ["executor", "stages"],
      "additionalProperties": false,
      "properties": {
        "executor": {"const": "ramping-vus"},
        "startVUs": {"$ref": "#/definitions/count"},
        "stages": {"$ref": "#/definitions/stages"},
        "gracefulRampDown": {"$ref": "#/definitions/duration"},
        "gracefulStop": {"$ref": "#/definitions/duration"}
      }
    },
    "constantArrivalRate": {
      "type": "object",
      "required": ["executor", "duration"],
      "additionalProperties": false,
      "properties": {
        "executor": {"const": "constant-arrival-rate"},
        "rate": {"$ref": "#/definitions/count"},
        "timeUnit": {"$ref": "#/definitions/duration"},
        "duration": {"$ref": "#/definitions/duration"},
        "preAllocatedVUs": {"$ref": "#/definitions/count"},
        "maxVUs": {"$ref": "#/definitions/count"},
        "gracefulStop": {"$ref": "#/definitions/duration"}
      }
    },
    "rampingArrivalRate": {
      "type": "object",
      "required": ["executor", "stages"],
      "additionalProperties": false,
      "properties": {
        "executor": {"const": "ramping-arrival-rate"},
        "startRate": {"$ref": "#/definitions/count"},
        "timeUnit": {"$ref": "#/definitions/duration"},
        "stages": {"$ref": "#/definitions/stages"},
        "preAllocatedVUs": {"$ref": "#/definitions/count"},
        "maxVUs": {"$ref": "#/definitions/count"},
        "gracefulStop": {"$ref": "#/definitions/duration"}
      }
    }
  }
}`
