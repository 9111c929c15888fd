package validation

const (
	SchemaCreateCheckIn  = "createCheckIn"
	SchemaSubmitResponse = "submitResponse"
	SchemaLogin          = "login"
	SchemaRefresh        = "refresh"
	SchemaCreateUser     = "createUser"
)

const uuidPattern = `^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`

// Schemas holds the request schemas keyed by name.
var Schemas = map[string]string{
	SchemaCreateCheckIn: `{
		"type": "object",
		"required": ["title", "questions", "dueDate", "assignedUserIds"],
		"properties": {
			"title": {"type": "string", "minLength": 1, "maxLength": 200},
			"description": {"type": "string", "maxLength": 1000},
			"questions": {
				"type": "array",
				"minItems": 1,
				"maxItems": 20,
				"items": {"type": "string", "minLength": 1, "maxLength": 500}
			},
			"dueDate": {"type": "string", "format": "date-time"},
			"assignedUserIds": {
				"type": "array",
				"minItems": 1,
				"maxItems": 100,
				"uniqueItems": true,
				"items": {"type": "string", "pattern": "` + uuidPattern + `"}
			}
		}
	}`,

	SchemaSubmitResponse: `{
		"type": "object",
		"required": ["answers"],
		"properties": {
			"answers": {
				"type": "array",
				"minItems": 1,
				"maxItems": 20,
				"items": {
					"type": "object",
					"required": ["questionId", "response"],
					"properties": {
						"questionId": {"type": "string", "pattern": "` + uuidPattern + `"},
						"response": {"type": "string", "minLength": 1, "maxLength": 2000}
					}
				}
			}
		}
	}`,

	SchemaLogin: `{
		"type": "object",
		"required": ["email", "password"],
		"properties": {
			"email": {"type": "string", "format": "email"},
			"password": {"type": "string", "minLength": 1}
		}
	}`,

	SchemaRefresh: `{
		"type": "object",
		"required": ["refreshToken"],
		"properties": {
			"refreshToken": {"type": "string", "minLength": 1}
		}
	}`,

	SchemaCreateUser: `{
		"type": "object",
		"required": ["email", "password", "name", "role"],
		"properties": {
			"email": {"type": "string", "format": "email"},
			"password": {"type": "string", "minLength": 6},
			"name": {"type": "string", "minLength": 1, "maxLength": 100},
			"role": {"type": "string", "enum": ["manager", "member"]},
			"managerId": {"type": "string", "pattern": "` + uuidPattern + `"},
			"teamId": {"type": "string", "maxLength": 50}
		}
	}`,
}
