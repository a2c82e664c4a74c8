package api

import "sort"

// buildOpenAPIDoc returns an OpenAPI 3.1 document for the gateway API. The
// action kind enum lists the kinds served by the loaded handlers.
func buildOpenAPIDoc(kinds []string) map[string]any {
	kinds = append([]string(nil), kinds...)
	sort.Strings(kinds)

	bearer := []any{map[string]any{"BearerAuth": []string{}}}
	jsonBody := func(schema map[string]any) map[string]any {
		return map[string]any{
			"content": map[string]any{
				"application/json": map[string]any{"schema": schema},
			},
		}
	}
	ref := func(name string) map[string]any {
		return map[string]any{"$ref": "#/components/schemas/" + name}
	}
	taskParam := []any{map[string]any{
		"name":     "id",
		"in":       "path",
		"required": true,
		"schema":   map[string]any{"type": "string"},
	}}

	actionSchema := map[string]any{
		"type":                 "object",
		"required":             []string{"kind", "config", "enabled"},
		"additionalProperties": true,
		"properties": map[string]any{
			"kind":    map[string]any{"type": "string", "enum": kinds},
			"config":  map[string]any{"type": "string"},
			"enabled": map[string]any{"type": "boolean"},
			"taskId":  map[string]any{"type": "string"},
		},
	}

	paths := map[string]any{
		"/gpio/ping": map[string]any{
			"get": map[string]any{
				"operationId": "ping",
				"responses":   map[string]any{"200": map[string]any{"description": "pong"}},
			},
		},
		"/gpio/action": map[string]any{
			"post": map[string]any{
				"operationId": "postActions",
				"security":    bearer,
				"requestBody": jsonBody(map[string]any{"type": "array", "items": ref("Action")}),
				"responses": map[string]any{
					"202": map[string]any{"description": "Actions queued"},
					"400": map[string]any{"description": "Invalid body, no enabled actions, or every action rejected"},
					"403": map[string]any{"description": "Insufficient scope"},
				},
			},
		},
		"/gpio/task": map[string]any{
			"get": map[string]any{
				"operationId": "listTasks",
				"security":    bearer,
				"responses":   map[string]any{"200": map[string]any{"description": "Running tasks"}},
			},
		},
		"/gpio/task/{id}": map[string]any{
			"get": map[string]any{
				"operationId": "getTask",
				"security":    bearer,
				"parameters":  taskParam,
				"responses": map[string]any{
					"200": map[string]any{"description": "Task"},
					"404": map[string]any{"description": "Unknown task"},
				},
			},
			"delete": map[string]any{
				"operationId": "cancelTask",
				"security":    bearer,
				"parameters":  taskParam,
				"responses": map[string]any{
					"202": map[string]any{"description": "Cancellation signalled"},
					"404": map[string]any{"description": "Unknown task"},
				},
			},
		},
		"/gpio/plugins": map[string]any{
			"get": map[string]any{
				"operationId": "listPlugins",
				"security":    bearer,
				"responses":   map[string]any{"200": map[string]any{"description": "Loaded handlers"}},
			},
		},
		"/gpio/config": map[string]any{
			"get": map[string]any{
				"operationId": "listConfigs",
				"security":    bearer,
				"responses":   map[string]any{"200": map[string]any{"description": "Config documents"}},
			},
		},
		"/gpio/history": map[string]any{
			"get": map[string]any{
				"operationId": "listHistory",
				"security":    bearer,
				"responses":   map[string]any{"200": map[string]any{"description": "Recent executions"}},
			},
		},
		"/gpio/events": map[string]any{
			"get": map[string]any{
				"operationId": "streamEvents",
				"security":    bearer,
				"responses":   map[string]any{"200": map[string]any{"description": "text/event-stream"}},
			},
		},
	}

	return map[string]any{
		"openapi": "3.1.0",
		"info": map[string]any{
			"title":   "gpiogw",
			"version": "1.0",
		},
		"paths": paths,
		"components": map[string]any{
			"schemas": map[string]any{
				"Action": actionSchema,
			},
			"securitySchemes": map[string]any{
				"BearerAuth": map[string]any{
					"type":   "http",
					"scheme": "bearer",
				},
			},
		},
	}
}
