package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA Timetable API",
        "description": "Timetable configuration, generation and export for school class groups",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Timetable", "description": "Group configuration, generation, manual edits and exports"},
        {"name": "Observability", "description": "Health, readiness and metrics"}
    ],
    "paths": {
        "/health": {
            "get": {
                "tags": ["Observability"],
                "summary": "Health check",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/ready": {
            "get": {
                "tags": ["Observability"],
                "summary": "Readiness check against postgres and redis",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "A dependency is unreachable"}
                }
            }
        },
        "/metrics": {
            "get": {
                "tags": ["Observability"],
                "summary": "Prometheus metrics",
                "produces": ["text/plain"],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/metrics/summary": {
            "get": {
                "tags": ["Observability"],
                "summary": "Summary of request, cache and generation metrics",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/api/v1/groups/{id}/timetable/config": {
            "put": {
                "tags": ["Timetable"],
                "summary": "Save the timetable configuration of a group",
                "description": "Replaces subjects, teachers, classes and settings. The configuration is checked when a timetable is generated. The caller becomes the owner of a new group.",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ConfigureTimetableRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid payload", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Not the group owner", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/groups/{id}/subjects": {
            "post": {
                "tags": ["Timetable"],
                "summary": "Add a subject to the group master list",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/Subject"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Group not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/groups/{id}/timetable/generate": {
            "post": {
                "tags": ["Timetable"],
                "summary": "Generate a timetable for every class of the group",
                "description": "With async=true the generation is queued and a job id is returned with 202.",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "async", "in": "query", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "Generated", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "202": {"description": "Queued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Configuration rejected", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "No valid timetable within the attempt budget", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/timetable/jobs/{jobId}": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Get the state of a queued generation",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "jobId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown job", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/groups/{id}/timetable": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Get the stored timetable of a group",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "put": {
                "tags": ["Timetable"],
                "summary": "Overwrite the timetable with a hand-edited version",
                "description": "The document is stored as received.",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateTimetableRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Timetable missing", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/groups/{id}/timetable/history": {
            "get": {
                "tags": ["Timetable"],
                "summary": "List stored timetable versions",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/api/v1/groups/{id}/timetable/export": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Download one class timetable as CSV or PDF",
                "security": [{"BearerAuth": []}],
                "produces": ["text/csv", "application/pdf", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "class", "in": "query", "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf", "xlsx"]}
                ],
                "responses": {
                    "200": {"description": "File", "schema": {"type": "file"}},
                    "404": {"description": "No timetable for the class", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "Subject": {
            "type": "object",
            "required": ["name", "abbreviation"],
            "properties": {
                "name": {"type": "string"},
                "abbreviation": {"type": "string"},
                "isLab": {"type": "boolean"}
            }
        },
        "Teacher": {
            "type": "object",
            "required": ["name"],
            "properties": {
                "name": {"type": "string"},
                "subjects": {"type": "array", "items": {"type": "string"}}
            }
        },
        "SubjectAssignment": {
            "type": "object",
            "required": ["subject"],
            "properties": {
                "subject": {"type": "string"},
                "periods": {"type": "integer"},
                "teacher": {"description": "A teacher name, a list of names or null", "type": "array", "items": {"type": "string"}}
            }
        },
        "ClassConfig": {
            "type": "object",
            "required": ["name"],
            "properties": {
                "name": {"type": "string"},
                "periodsPerDay": {"type": "object", "additionalProperties": {"type": "integer"}},
                "subjectsAssigned": {"type": "array", "items": {"$ref": "#/definitions/SubjectAssignment"}}
            }
        },
        "Settings": {
            "type": "object",
            "properties": {
                "days": {"type": "array", "items": {"type": "string"}},
                "maxPeriods": {"type": "integer"},
                "rooms": {"type": "array", "items": {"type": "string"}},
                "attempts": {"type": "integer"}
            }
        },
        "ConfigureTimetableRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "members": {"type": "array", "items": {"type": "string"}},
                "subjects": {"type": "array", "items": {"$ref": "#/definitions/Subject"}},
                "teachers": {"type": "array", "items": {"$ref": "#/definitions/Teacher"}},
                "classes": {"type": "array", "items": {"$ref": "#/definitions/ClassConfig"}},
                "settings": {"$ref": "#/definitions/Settings"}
            }
        },
        "UpdateTimetableRequest": {
            "type": "object",
            "required": ["timetable"],
            "properties": {
                "timetable": {"type": "object"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "details": {"type": "object"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"},
                "request_id": {"type": "string"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
