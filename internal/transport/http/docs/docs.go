// Package docs registers the OpenAPI document served at /openapi.json.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/detect": {
            "get": {
                "produces": ["text/plain"],
                "tags": ["Detection"],
                "summary": "Detection service status",
                "responses": {
                    "200": {"description": "status text", "schema": {"type": "string"}}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Detection"],
                "summary": "Detect eye conditions in a base64 image",
                "parameters": [
                    {
                        "description": "data URI of the image",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/detect.Request"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/detection.Result"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httptransport.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/httptransport.ErrorResponse"}}
                }
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["System"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/httptransport.HealthResponse"}}
                }
            }
        }
    },
    "definitions": {
        "detect.Request": {
            "type": "object",
            "required": ["image"],
            "properties": {
                "image": {"type": "string", "example": "data:image/jpeg;base64,/9j/4AAQ..."}
            }
        },
        "detection.BBox": {
            "type": "object",
            "properties": {
                "x": {"type": "number"},
                "y": {"type": "number"},
                "width": {"type": "number"},
                "height": {"type": "number"}
            }
        },
        "detection.Detection": {
            "type": "object",
            "properties": {
                "class": {"type": "string"},
                "confidence": {"type": "number"},
                "bbox": {"$ref": "#/definitions/detection.BBox"}
            }
        },
        "detection.Result": {
            "type": "object",
            "properties": {
                "detections": {"type": "array", "items": {"$ref": "#/definitions/detection.Detection"}},
                "count": {"type": "integer"}
            }
        },
        "httptransport.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"}
            }
        },
        "httptransport.HealthResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "uptime": {"type": "string"},
                "goroutines": {"type": "integer"},
                "memory_rss": {"type": "integer"},
                "cpu_percent": {"type": "number"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "eyescan-server API",
	Description:      "Eye condition detection adapter over a hosted object-detection model.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
