// Package docs registers the visiond OpenAPI document with swag. It is
// maintained by hand to match the annotations in cmd/imagegend/docs.go.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/generate": {
            "post": {
                "summary": "Submit a generation task",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/types.GenerateRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/types.GenerateResponse"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/status/{task_id}": {
            "get": {
                "summary": "Task status",
                "produces": ["application/json"],
                "parameters": [{"in": "path", "name": "task_id", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.TaskStatus"}},
                    "404": {"description": "Task not found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/result/{task_id}": {
            "get": {
                "summary": "Download the generated PNG",
                "produces": ["image/png"],
                "parameters": [{"in": "path", "name": "task_id", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "PNG image"},
                    "409": {"description": "Task not completed", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "500": {"description": "Task failed", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "404": {"description": "Unknown task or missing file", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/status": {
            "get": {
                "summary": "Server status",
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ServerStatus"}}}
            }
        },
        "/unload": {
            "post": {
                "summary": "Unload all models",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.UnloadResponse"}},
                    "500": {"description": "Unload failed", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/process": {
            "post": {
                "summary": "Segment an uploaded image by bounding boxes",
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "formData", "name": "image", "type": "file", "required": true},
                    {"in": "formData", "name": "coordinates", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "Cutout file names", "schema": {"$ref": "#/definitions/types.ProcessResponse"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/processed/{filename}": {
            "get": {
                "summary": "Download a cutout",
                "produces": ["image/png"],
                "parameters": [{"in": "path", "name": "filename", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "PNG image"},
                    "404": {"description": "File not found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "types.GenerateRequest": {
            "type": "object",
            "properties": {
                "prompt": {"type": "string", "example": "a red cube"},
                "mode": {"type": "string", "enum": ["fast", "slow"], "example": "fast"}
            }
        },
        "types.GenerateResponse": {
            "type": "object",
            "properties": {
                "task_id": {"type": "string"},
                "status": {"type": "string", "example": "accepted"}
            }
        },
        "types.TaskStatus": {
            "type": "object",
            "properties": {
                "task_id": {"type": "string"},
                "status": {"type": "string", "enum": ["pending", "running", "completed", "failed"]},
                "progress": {"type": "number"},
                "result_url": {"type": "string"},
                "error": {"type": "string"}
            }
        },
        "types.ServerStatus": {
            "type": "object",
            "properties": {
                "loaded_models": {"type": "array", "items": {"type": "string"}},
                "current_model_loaded": {"type": "string"},
                "gpu_memory": {"type": "object"},
                "active_tasks": {"type": "array", "items": {"type": "string"}},
                "recent_completed_tasks": {"type": "array", "items": {"type": "string"}},
                "recent_failed_tasks": {"type": "array", "items": {"type": "string"}},
                "total_tasks_tracked": {"type": "integer"}
            }
        },
        "types.ProcessResponse": {
            "type": "object",
            "properties": {
                "images": {"type": "array", "items": {"type": "string"}}
            }
        },
        "types.UnloadResponse": {
            "type": "object",
            "properties": {"status": {"type": "string", "example": "All models unloaded"}}
        },
        "types.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "details": {"type": "string"},
                "code": {"type": "integer"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "visiond API",
	Description:      "Text-to-image generation (imagegend) and box-prompted segmentation (segmentd).",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
