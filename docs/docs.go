// Package docs registers the OpenAPI description served under /swagger.
// Regenerate with `swag init -g cmd/main.go` after changing handler annotations.
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
        "/events/applications": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["applications"],
                "summary": "List pending and completed applications across the host's events",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/services.HostApplications"}},
                    "401": {"description": "Unauthorized"}
                }
            }
        },
        "/events/{eventId}/applications": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["applications"],
                "summary": "List pending applications for an event",
                "parameters": [
                    {"type": "integer", "description": "Event ID", "name": "eventId", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/services.PendingApplications"}},
                    "400": {"description": "Invalid event id"},
                    "401": {"description": "Unauthorized"},
                    "403": {"description": "Not the event host"},
                    "404": {"description": "Event not found"}
                }
            }
        },
        "/events/{eventId}/applications/{userId}": {
            "put": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["applications"],
                "summary": "Approve or reject an application",
                "parameters": [
                    {"type": "integer", "description": "Event ID", "name": "eventId", "in": "path", "required": true},
                    {"type": "integer", "description": "Applicant user ID", "name": "userId", "in": "path", "required": true},
                    {"description": "Decision: approved or rejected", "name": "input", "in": "body", "required": true,
                     "schema": {"$ref": "#/definitions/handlers.reviewApplicationInput"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/services.ReviewResult"}},
                    "400": {"description": "Invalid status, transition or capacity exceeded"},
                    "401": {"description": "Unauthorized"},
                    "403": {"description": "Not the event host"},
                    "404": {"description": "Event or application not found"}
                }
            }
        },
        "/events/{eventId}/participation": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["participation"],
                "summary": "Get the current user's participation in an event",
                "parameters": [
                    {"type": "integer", "description": "Event ID", "name": "eventId", "in": "path", "required": true}
                ],
                "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}, "404": {"description": "No participation"}}
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["participation"],
                "summary": "RSVP to an event",
                "parameters": [
                    {"type": "integer", "description": "Event ID", "name": "eventId", "in": "path", "required": true},
                    {"description": "attending or interested", "name": "input", "in": "body", "required": true,
                     "schema": {"$ref": "#/definitions/handlers.rsvpInput"}}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Invalid status or event full"},
                    "401": {"description": "Unauthorized"},
                    "404": {"description": "Event not found"},
                    "409": {"description": "Already applied, attending or rejected"}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["participation"],
                "summary": "Withdraw from an event",
                "parameters": [
                    {"type": "integer", "description": "Event ID", "name": "eventId", "in": "path", "required": true}
                ],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Nothing to withdraw from"}, "404": {"description": "No participation"}}
            }
        },
        "/webhooks/payment": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["webhooks"],
                "summary": "Stripe payment webhook",
                "parameters": [
                    {"type": "string", "description": "Stripe signature", "name": "Stripe-Signature", "in": "header", "required": true}
                ],
                "responses": {"200": {"description": "received"}, "400": {"description": "Bad signature or payload"}}
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Liveness probe",
                "responses": {"200": {"description": "OK"}}
            }
        }
    },
    "definitions": {
        "handlers.reviewApplicationInput": {
            "type": "object",
            "properties": {"status": {"type": "string", "enum": ["approved", "rejected"]}}
        },
        "handlers.rsvpInput": {
            "type": "object",
            "properties": {"status": {"type": "string", "enum": ["attending", "interested"]}}
        },
        "services.ApplicantView": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "fullName": {"type": "string"},
                "username": {"type": "string"},
                "email": {"type": "string"}
            }
        },
        "services.ApplicationView": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "eventId": {"type": "integer"},
                "eventTitle": {"type": "string"},
                "userId": {"type": "integer"},
                "status": {"type": "string"},
                "ticketQuantity": {"type": "integer"},
                "totalAmount": {"type": "string"},
                "createdAt": {"type": "string"},
                "updatedAt": {"type": "string"},
                "reviewedAt": {"type": "string"},
                "applicant": {"$ref": "#/definitions/services.ApplicantView"}
            }
        },
        "services.PendingApplications": {
            "type": "object",
            "properties": {
                "eventId": {"type": "integer"},
                "eventTitle": {"type": "string"},
                "applications": {"type": "array", "items": {"$ref": "#/definitions/services.ApplicationView"}},
                "totalPending": {"type": "integer"}
            }
        },
        "services.HostApplications": {
            "type": "object",
            "properties": {
                "pending": {"type": "array", "items": {"$ref": "#/definitions/services.ApplicationView"}},
                "completed": {"type": "array", "items": {"$ref": "#/definitions/services.ApplicationView"}},
                "totalPending": {"type": "integer"},
                "totalCompleted": {"type": "integer"}
            }
        },
        "services.ReviewResult": {
            "type": "object",
            "properties": {
                "message": {"type": "string"},
                "application": {"type": "object"},
                "applicant": {"$ref": "#/definitions/services.ApplicantView"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Maly RSVP API",
	Description:      "Event RSVP, application review and payment webhook endpoints.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
