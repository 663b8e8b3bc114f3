// Package docs provides Swagger/OpenAPI documentation for the event
// analysis engine's HTTP surface.
package docs

// General API Info
//
//	@title						Event Analysis Engine API
//	@version					1.0.0
//	@description				REST API and WebSocket interface for introspecting a running analysis engine: registered analyzers, diagnostic messages, recent alarms, and the archive document view.
//
//	@contact.name				GitHub Issues
//	@contact.url				https://github.com/ruaan-deysel/eventwatch/issues
//
//	@license.name				MIT
//	@license.url				https://github.com/ruaan-deysel/eventwatch/blob/main/LICENSE
//
//	@host						localhost:8043
//	@BasePath					/api/v1
//	@schemes					http https
//
//	@tag.name					Analyzers
//	@tag.description			Registered program analyzer status
//	@tag.name					Engine
//	@tag.description			Engine diagnostic messages and rule reload
//	@tag.name					Alarms
//	@tag.description			Recently dispatched alarm history
//	@tag.name					Archive
//	@tag.description			Archive document view: look up an ingested event by id
//	@tag.name					WebSocket
//	@tag.description			Real-time EngineMessage/AlarmMessage streaming
