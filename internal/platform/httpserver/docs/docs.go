// Package docs provides the OpenAPI document served at /swagger/doc.json.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/items": {
            "get": {
                "summary": "List items pending validation",
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/items/{item_id}/votes": {
            "post": {
                "summary": "Record a validation judgement on an item",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK"},
                    "403": {"description": "Self validation"},
                    "409": {"description": "Duplicate vote or item decided"}
                }
            }
        },
        "/api/items/{item_id}/resolve": {
            "post": {
                "summary": "Resolve a conflicted item with a corrected value",
                "consumes": ["application/json"],
                "responses": {
                    "204": {"description": "Resolved"},
                    "409": {"description": "Not in conflict or already resolved"}
                }
            }
        },
        "/api/items/{item_id}/votes/archive": {
            "post": {
                "summary": "Archive all active votes and reopen the item",
                "responses": {"204": {"description": "Archived"}}
            }
        },
        "/api/items/{item_id}/progress": {
            "get": {
                "summary": "Quorum progress for one item",
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/assignments/lease": {
            "post": {
                "summary": "Lease a batch of work items",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/assignments/release": {
            "post": {
                "summary": "Release a held batch back to the pool",
                "responses": {"204": {"description": "Released"}}
            }
        },
        "/api/payouts": {
            "post": {
                "summary": "Request a mobile-money payout",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK"},
                    "422": {"description": "Insufficient balance"}
                }
            }
        },
        "/api/deposits": {
            "post": {
                "summary": "Create an inbound collection",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/transactions": {
            "get": {
                "summary": "List the caller's transactions",
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/transactions/{transaction_id}": {
            "get": {
                "summary": "Fetch one transaction",
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/transactions/{transaction_id}/retry": {
            "post": {
                "summary": "Converge a stuck transaction",
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/wallets/{user_id}": {
            "get": {
                "summary": "Wallet balance for one contributor",
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/payments/callback": {
            "post": {
                "summary": "Asynchronous payment provider confirmation",
                "consumes": ["application/json"],
                "responses": {"204": {"description": "Accepted"}}
            }
        }
    }
}`

var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Chorus API",
	Description:      "Consensus validation, work assignment, and settlement endpoints.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
